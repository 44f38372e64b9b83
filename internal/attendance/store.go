package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors mapped to HTTP statuses by the API layer.
var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrStudentNotFound = errors.New("student not found")
	ErrRecordNotFound  = errors.New("record not found")
)

// StudentStore persists students.
type StudentStore interface {
	ListStudents(ctx context.Context) ([]Student, error)
	CreateStudent(ctx context.Context, s Student) (Student, error)
	// DeleteStudent removes the student and cascades to all of their
	// attendance records.
	DeleteStudent(ctx context.Context, id uuid.UUID) error
	SetStudentActive(ctx context.Context, id uuid.UUID, active bool) error
}

// RecordStore persists attendance records.
type RecordStore interface {
	ListRecords(ctx context.Context) ([]Record, error)
	GetRecord(ctx context.Context, id uuid.UUID) (Record, error)
	CreateRecord(ctx context.Context, r Record) (Record, error)
}

// DeviceStore persists kiosk devices and their refresh tokens.
type DeviceStore interface {
	UpsertDevice(ctx context.Context, deviceID string) error
	SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error
}

// Store is the full storage collaborator the service depends on.
type Store interface {
	StudentStore
	RecordStore
	DeviceStore
}
