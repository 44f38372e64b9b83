package attendance

import (
	"time"

	"github.com/google/uuid"
)

// Student is an identity record. Only students with a non-empty PhotoKey are
// eligible candidates for matching.
type Student struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	StudentNo    string    `json:"student_no,omitempty"`
	Department   string    `json:"department,omitempty"`
	Year         int       `json:"year,omitempty"`
	PhotoKey     string    `json:"photo_key,omitempty"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Record is an immutable attendance event. StudentName is denormalized at
// event time so the record survives later renames.
type Record struct {
	ID          uuid.UUID `json:"id"`
	StudentID   uuid.UUID `json:"student_id"`
	StudentName string    `json:"student_name"`
	Timestamp   time.Time `json:"timestamp"`
	Confidence  float64   `json:"confidence"`
	FrameKey    string    `json:"frame_key,omitempty"`
	Location    string    `json:"location,omitempty"`
	DeviceID    string    `json:"device_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
