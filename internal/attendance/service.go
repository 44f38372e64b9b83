package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"facemark/internal/observability"
	"facemark/internal/queue"
	"facemark/internal/recognition"
	"facemark/internal/settings"
)

// ErrAttemptInFlight is returned when a recognition attempt is requested
// while another one has not resolved yet (single-flight rule).
var ErrAttemptInFlight = errors.New("recognition attempt already in progress")

// Matcher is the recognition collaborator. nil result means no match and is
// not an error.
type Matcher interface {
	Match(ctx context.Context, frame []byte, candidates []recognition.Candidate, threshold float64) (*recognition.Match, error)
}

// SettingsSource yields the current attendance settings. It is consulted on
// every attempt so configuration changes apply immediately.
type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// Notifier delivers user-facing notices. Fire-and-forget.
type Notifier interface {
	Notify(kind, title, body string)
}

// Session is the capture collaborator: CaptureFrame returns nil while no
// session is active.
type Session interface {
	Active() bool
	CaptureFrame() []byte
}

// FrameArchiver stores captured frame payloads and returns their object key.
type FrameArchiver interface {
	SaveFrame(ctx context.Context, data []byte) (string, error)
}

// Attempt outcomes.
const (
	AttemptNoFrame  = "no_frame"
	AttemptNoMatch  = "no_match"
	AttemptDropped  = "dropped"
	AttemptRejected = "rejected"
	AttemptAccepted = "accepted"
)

// AttemptResult describes how a recognition attempt resolved.
type AttemptResult struct {
	Status         string         `json:"status"`
	Record         *Record        `json:"record,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	Reason         RejectReason   `json:"reason,omitempty"`
}

// Service runs the attendance decision pipeline from frame capture through
// matching, policy, persistence and notification. It keeps in-memory
// snapshots of students and records, refetched in full after every accepted
// write.
type Service struct {
	store    Store
	settings SettingsSource
	matcher  Matcher
	session  Session
	notifier Notifier
	frames   FrameArchiver // optional
	q        queue.Queue   // optional; accepted record ids are published here

	location string
	deviceID string
	now      func() time.Time

	inFlight atomic.Bool

	mu       sync.RWMutex
	students []Student
	records  []Record
}

// NewService wires the pipeline. frames and q may be nil.
func NewService(store Store, src SettingsSource, matcher Matcher, session Session, notifier Notifier, frames FrameArchiver, q queue.Queue, location, deviceID string) *Service {
	return &Service{
		store:    store,
		settings: src,
		matcher:  matcher,
		session:  session,
		notifier: notifier,
		frames:   frames,
		q:        q,
		location: location,
		deviceID: deviceID,
		now:      time.Now,
	}
}

// Refresh refetches both collections from storage in full. There is no
// incremental update path.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.refreshStudents(ctx); err != nil {
		return err
	}
	return s.refreshRecords(ctx)
}

func (s *Service) refreshStudents(ctx context.Context) error {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return fmt.Errorf("refresh students: %w", err)
	}
	s.mu.Lock()
	s.students = students
	s.mu.Unlock()
	return nil
}

func (s *Service) refreshRecords(ctx context.Context) error {
	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return fmt.Errorf("refresh records: %w", err)
	}
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// Students returns the current cached student snapshot.
func (s *Service) Students() []Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Student, len(s.students))
	copy(out, s.students)
	return out
}

// Records returns the current cached record snapshot, newest first.
func (s *Service) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// RegisterStudent validates and persists a new student, then refetches the
// student collection. Registration requires a reference photo.
func (s *Service) RegisterStudent(ctx context.Context, st Student) (Student, error) {
	if st.Name == "" || st.Email == "" {
		return Student{}, errors.New("name and email required")
	}
	if st.PhotoKey == "" {
		return Student{}, errors.New("reference photo required")
	}
	st.Active = true
	created, err := s.store.CreateStudent(ctx, st)
	if err != nil {
		return Student{}, err
	}
	if err := s.refreshStudents(ctx); err != nil {
		log.Printf("post-create refresh failed: %v", err)
	}
	return created, nil
}

// RemoveStudent deletes the student; storage cascades to their records, so
// both collections are refetched.
func (s *Service) RemoveStudent(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteStudent(ctx, id); err != nil {
		return err
	}
	if err := s.Refresh(ctx); err != nil {
		log.Printf("post-delete refresh failed: %v", err)
	}
	return nil
}

// SetStudentActive toggles the active flag and refetches students.
func (s *Service) SetStudentActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := s.store.SetStudentActive(ctx, id, active); err != nil {
		return err
	}
	if err := s.refreshStudents(ctx); err != nil {
		log.Printf("post-toggle refresh failed: %v", err)
	}
	return nil
}

// RegisterDevice validates and persists device metadata.
func (s *Service) RegisterDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return errors.New("device id required")
	}
	return s.store.UpsertDevice(ctx, deviceID)
}

// candidates assembles matcher input: active students with a reference photo,
// in stored order (which fixes tie-breaking).
func (s *Service) candidates() []recognition.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []recognition.Candidate
	for _, st := range s.students {
		if !st.Active || st.PhotoKey == "" {
			continue
		}
		out = append(out, recognition.Candidate{
			ID:           st.ID,
			Name:         st.Name,
			RegisteredAt: st.RegisteredAt,
		})
	}
	return out
}

// Attempt runs one recognition attempt. trigger is "manual" or "auto" and
// only affects metrics and no-match notices; the single-flight rule applies
// to both. Returns ErrAttemptInFlight when another attempt has not resolved.
func (s *Service) Attempt(ctx context.Context, manual bool) (AttemptResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return AttemptResult{}, ErrAttemptInFlight
	}
	defer s.inFlight.Store(false)

	trigger := "auto"
	if manual {
		trigger = "manual"
	}
	start := s.now()
	defer func() {
		observability.AttemptDuration.Observe(time.Since(start).Seconds())
	}()

	st, err := s.settings.Load(ctx)
	if err != nil {
		observability.AttemptsTotal.WithLabelValues("error", trigger).Inc()
		s.notifier.Notify("error", "Settings unavailable", err.Error())
		return AttemptResult{}, err
	}

	frame := s.session.CaptureFrame()
	if len(frame) == 0 {
		observability.AttemptsTotal.WithLabelValues(AttemptNoFrame, trigger).Inc()
		return AttemptResult{Status: AttemptNoFrame}, nil
	}

	match, err := s.matcher.Match(ctx, frame, s.candidates(), st.ConfidenceThreshold)
	if err != nil {
		observability.AttemptsTotal.WithLabelValues("error", trigger).Inc()
		return AttemptResult{}, err
	}

	// The session may have stopped while the matcher was suspended; a stale
	// result must not be applied.
	if !s.session.Active() {
		observability.AttemptsTotal.WithLabelValues(AttemptDropped, trigger).Inc()
		return AttemptResult{Status: AttemptDropped}, nil
	}

	if match == nil {
		observability.AttemptsTotal.WithLabelValues(AttemptNoMatch, trigger).Inc()
		if manual {
			s.notifier.Notify("info", "No match", "No registered face matched the captured frame")
		}
		return AttemptResult{Status: AttemptNoMatch}, nil
	}

	proposed := Record{
		ID:          uuid.New(),
		StudentID:   match.Candidate.ID,
		StudentName: match.Candidate.Name,
		Timestamp:   s.now(),
		Confidence:  match.Confidence,
		Location:    s.location,
		DeviceID:    s.deviceID,
	}

	decision := Decide(proposed, s.Records(), st)
	if !decision.Accepted {
		observability.AttemptsTotal.WithLabelValues(AttemptRejected, trigger).Inc()
		s.notifier.Notify("warning", "Already marked",
			fmt.Sprintf("%s is already marked present today", match.Candidate.Name))
		return AttemptResult{Status: AttemptRejected, Reason: decision.Reason}, nil
	}

	if s.frames != nil {
		key, err := s.frames.SaveFrame(ctx, frame)
		if err != nil {
			log.Printf("frame archive failed: %v", err)
		} else {
			proposed.FrameKey = key
		}
	}

	rec, err := s.store.CreateRecord(ctx, proposed)
	if err != nil {
		observability.AttemptsTotal.WithLabelValues("error", trigger).Inc()
		s.notifier.Notify("error", "Save failed", "Could not persist the attendance record")
		return AttemptResult{}, err
	}
	if err := s.refreshRecords(ctx); err != nil {
		log.Printf("post-record refresh failed: %v", err)
	}

	observability.AttemptsTotal.WithLabelValues(AttemptAccepted, trigger).Inc()
	observability.MatchConfidence.Observe(rec.Confidence)
	observability.RecordsCreated.Inc()

	switch decision.Classification {
	case ClassOutsideWorkingHours:
		s.notifier.Notify("warning", "Marked outside working hours",
			fmt.Sprintf("%s at %s (confidence %.2f)", rec.StudentName, rec.Timestamp.Format("15:04"), rec.Confidence))
	default:
		s.notifier.Notify("success", "Attendance marked",
			fmt.Sprintf("%s at %s (confidence %.2f)", rec.StudentName, rec.Timestamp.Format("15:04"), rec.Confidence))
	}

	if s.q != nil {
		if err := s.q.Publish(ctx, queue.Message{Type: "record", Body: []byte(rec.ID.String())}); err != nil {
			log.Printf("queue publish failed: %v", err)
		}
	}

	return AttemptResult{
		Status:         AttemptAccepted,
		Record:         &rec,
		Classification: decision.Classification,
	}, nil
}
