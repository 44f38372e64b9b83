package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"facemark/internal/attendance"
)

func TestWriteCSV(t *testing.T) {
	alice := attendance.Student{ID: uuid.New(), Name: "Alice", Email: "alice@example.edu", Department: "CS"}
	ts := time.Date(2026, 3, 10, 9, 2, 0, 0, time.UTC)
	rec := attendance.Record{
		ID:          uuid.New(),
		StudentID:   alice.ID,
		StudentName: "Alice",
		Timestamp:   ts,
		Confidence:  0.92,
		Location:    "Main Campus",
		DeviceID:    "kiosk-1",
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []attendance.Record{rec}, []attendance.Student{alice}); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}
	if rows[0][0] != "record_id" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	got := rows[1]
	if got[2] != "Alice" || got[3] != "alice@example.edu" || got[4] != "CS" {
		t.Fatalf("join failed: %v", got)
	}
	if got[5] != ts.Format(time.RFC3339) {
		t.Fatalf("timestamp: %s", got[5])
	}
	if got[6] != "0.92" {
		t.Fatalf("confidence: %s", got[6])
	}
}

func TestWriteCSV_DeletedStudentStillRenders(t *testing.T) {
	rec := attendance.Record{
		ID:          uuid.New(),
		StudentID:   uuid.New(), // no matching student
		StudentName: "Ghost",
		Timestamp:   time.Now(),
		Confidence:  0.8,
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, []attendance.Record{rec}, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Ghost") {
		t.Fatal("denormalized name missing from export")
	}
}

func TestBackupName(t *testing.T) {
	rec := attendance.Record{
		ID:        uuid.New(),
		Timestamp: time.Date(2026, 3, 10, 9, 2, 0, 0, time.UTC),
	}
	name := BackupName(rec)
	if !strings.HasPrefix(name, "2026-03-10/") || !strings.HasSuffix(name, ".csv") {
		t.Fatalf("unexpected backup name %s", name)
	}
}
