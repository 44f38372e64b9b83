package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"facemark/internal/attendance"
)

var header = []string{"record_id", "student_id", "student_name", "email", "department", "timestamp", "confidence", "location", "device_id"}

// WriteCSV renders attendance records as a delimited-text document, joining
// student email/department by id. Records with a deleted student still render
// via their denormalized name.
func WriteCSV(w io.Writer, records []attendance.Record, students []attendance.Student) error {
	byID := make(map[uuid.UUID]attendance.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		s := byID[rec.StudentID]
		row := []string{
			rec.ID.String(),
			rec.StudentID.String(),
			rec.StudentName,
			s.Email,
			s.Department,
			rec.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%.2f", rec.Confidence),
			rec.Location,
			rec.DeviceID,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// BackupName returns the object name for a single-record backup document.
func BackupName(rec attendance.Record) string {
	return fmt.Sprintf("%s/%s.csv", rec.Timestamp.Format("2006-01-02"), rec.ID)
}
