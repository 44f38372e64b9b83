package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance data in Postgres. attendance_records carries
// ON DELETE CASCADE from students, so student deletion removes records at the
// storage layer (see db/schema.sql).
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// ListStudents returns all students ordered by registration time.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, student_no, department, year, photo_key, active, registered_at
		FROM students
		ORDER BY registered_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.StudentNo, &s.Department, &s.Year, &s.PhotoKey, &s.Active, &s.RegisteredAt); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// CreateStudent inserts a new student. Duplicate emails surface as ErrEmailTaken.
func (r *Repository) CreateStudent(ctx context.Context, s Student) (Student, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.RegisteredAt.IsZero() {
		s.RegisteredAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, name, email, student_no, department, year, photo_key, active, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, s.ID, s.Name, s.Email, s.StudentNo, s.Department, s.Year, s.PhotoKey, s.Active, s.RegisteredAt)
	if err != nil {
		// 23505 = unique_violation on the email index.
		if strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key") {
			return Student{}, ErrEmailTaken
		}
		return Student{}, err
	}
	return s, nil
}

// DeleteStudent removes the student; the FK cascade removes their records.
func (r *Repository) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// SetStudentActive toggles the active flag.
func (r *Repository) SetStudentActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// ListRecords returns all attendance records, newest first.
func (r *Repository) ListRecords(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, student_name, occurred_at, confidence, frame_key, location, device_id, created_at
		FROM attendance_records
		ORDER BY occurred_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.StudentName, &rec.Timestamp, &rec.Confidence, &rec.FrameKey, &rec.Location, &rec.DeviceID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRecord returns a single record by id.
func (r *Repository) GetRecord(ctx context.Context, id uuid.UUID) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, student_name, occurred_at, confidence, frame_key, location, device_id, created_at
		FROM attendance_records WHERE id = $1
	`, id)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.StudentID, &rec.StudentName, &rec.Timestamp, &rec.Confidence, &rec.FrameKey, &rec.Location, &rec.DeviceID, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrRecordNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// CreateRecord writes a new attendance record.
func (r *Repository) CreateRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, student_name, occurred_at, confidence, frame_key, location, device_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, rec.ID, rec.StudentID, rec.StudentName, rec.Timestamp, rec.Confidence, rec.FrameKey, rec.Location, rec.DeviceID)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// UpsertDevice ensures a device record exists.
func (r *Repository) UpsertDevice(ctx context.Context, deviceID string) error {
	if deviceID == "" {
		return errors.New("device id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id)
		VALUES ($1)
		ON CONFLICT (device_id) DO NOTHING
	`, deviceID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (device_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, deviceID, token, expiresAt)
	return err
}
