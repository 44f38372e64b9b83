package attendance

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_CascadeDelete(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	alice, err := mem.CreateStudent(ctx, Student{Name: "Alice", Email: "alice@example.edu", PhotoKey: "p1"})
	if err != nil {
		t.Fatal(err)
	}
	bob, err := mem.CreateStudent(ctx, Student{Name: "Bob", Email: "bob@example.edu", PhotoKey: "p2"})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := mem.CreateRecord(ctx, Record{StudentID: alice.ID, StudentName: "Alice", Confidence: 0.9, Timestamp: time.Now().Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := mem.CreateRecord(ctx, Record{StudentID: bob.ID, StudentName: "Bob", Confidence: 0.8}); err != nil {
		t.Fatal(err)
	}

	if err := mem.DeleteStudent(ctx, alice.ID); err != nil {
		t.Fatal(err)
	}

	students, _ := mem.ListStudents(ctx)
	if len(students) != 1 || students[0].ID != bob.ID {
		t.Fatalf("expected only Bob left, got %+v", students)
	}

	records, _ := mem.ListRecords(ctx)
	if len(records) != 1 {
		t.Fatalf("expected Alice's records cascaded away, got %d", len(records))
	}
	if records[0].StudentID != bob.ID {
		t.Fatalf("wrong record survived: %+v", records[0])
	}
}

func TestMemory_UniqueEmail(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	if _, err := mem.CreateStudent(ctx, Student{Name: "Alice", Email: "alice@example.edu"}); err != nil {
		t.Fatal(err)
	}
	_, err := mem.CreateStudent(ctx, Student{Name: "Alice 2", Email: "alice@example.edu"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestMemory_DeleteUnknownStudent(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s, _ := mem.CreateStudent(ctx, Student{Name: "A", Email: "a@example.edu"})
	if err := mem.DeleteStudent(ctx, s.ID); err != nil {
		t.Fatal(err)
	}
	if err := mem.DeleteStudent(ctx, s.ID); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}

func TestMemory_RecordsNewestFirst(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	s, _ := mem.CreateStudent(ctx, Student{Name: "A", Email: "a@example.edu"})

	old := time.Now().Add(-time.Hour)
	recent := time.Now()
	if _, err := mem.CreateRecord(ctx, Record{StudentID: s.ID, Timestamp: old}); err != nil {
		t.Fatal(err)
	}
	if _, err := mem.CreateRecord(ctx, Record{StudentID: s.ID, Timestamp: recent}); err != nil {
		t.Fatal(err)
	}

	records, _ := mem.ListRecords(ctx)
	if len(records) != 2 || !records[0].Timestamp.After(records[1].Timestamp) {
		t.Fatalf("records not newest-first: %+v", records)
	}
}
