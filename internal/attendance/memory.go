package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store for dev mode and tests. It reproduces the
// storage-layer contract, including the unique-email constraint and the
// student to records delete cascade.
type Memory struct {
	mu       sync.Mutex
	students map[uuid.UUID]Student
	records  map[uuid.UUID]Record
	devices  map[string]struct{}
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		students: make(map[uuid.UUID]Student),
		records:  make(map[uuid.UUID]Record),
		devices:  make(map[string]struct{}),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) ListStudents(ctx context.Context) ([]Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (m *Memory) CreateStudent(ctx context.Context, s Student) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.Email == s.Email {
			return Student{}, ErrEmailTaken
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.RegisteredAt.IsZero() {
		s.RegisteredAt = time.Now().UTC()
	}
	m.students[s.ID] = s
	return s, nil
}

func (m *Memory) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return ErrStudentNotFound
	}
	delete(m.students, id)
	for rid, rec := range m.records {
		if rec.StudentID == id {
			delete(m.records, rid)
		}
	}
	return nil
}

func (m *Memory) SetStudentActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return ErrStudentNotFound
	}
	s.Active = active
	m.students[id] = s
	return nil
}

func (m *Memory) ListRecords(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) GetRecord(ctx context.Context, id uuid.UUID) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return r, nil
}

func (m *Memory) CreateRecord(ctx context.Context, r Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	r.CreatedAt = time.Now()
	m.records[r.ID] = r
	return r, nil
}

func (m *Memory) UpsertDevice(ctx context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[deviceID] = struct{}{}
	return nil
}

func (m *Memory) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	return nil
}
