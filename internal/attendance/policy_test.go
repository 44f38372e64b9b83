package attendance

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"facemark/internal/settings"
)

func testSettings() settings.Settings {
	s := settings.Default()
	s.WorkingHours = settings.WorkingHours{Start: "09:00", End: "17:00"}
	s.AllowMultipleMarking = false
	return s
}

func at(t *testing.T, clock string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", "2026-03-10 "+clock, time.Local)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestDecide_WorkingHoursBoundaries(t *testing.T) {
	student := uuid.New()
	cases := []struct {
		clock string
		want  Classification
	}{
		{"08:59", ClassOutsideWorkingHours},
		{"09:00", ClassNormal},
		{"12:30", ClassNormal},
		{"17:00", ClassNormal},
		{"17:01", ClassOutsideWorkingHours},
		{"00:00", ClassOutsideWorkingHours},
		{"23:59", ClassOutsideWorkingHours},
	}
	for _, tc := range cases {
		t.Run(tc.clock, func(t *testing.T) {
			proposed := Record{ID: uuid.New(), StudentID: student, Timestamp: at(t, tc.clock)}
			d := Decide(proposed, nil, testSettings())
			if !d.Accepted {
				t.Fatalf("expected accepted, got rejection %q", d.Reason)
			}
			if d.Classification != tc.want {
				t.Fatalf("at %s: got %q, want %q", tc.clock, d.Classification, tc.want)
			}
		})
	}
}

func TestDecide_DuplicateSuppression(t *testing.T) {
	student := uuid.New()
	first := Record{ID: uuid.New(), StudentID: student, Timestamp: at(t, "09:30")}
	second := Record{ID: uuid.New(), StudentID: student, Timestamp: at(t, "15:00")}

	st := testSettings()

	d := Decide(second, []Record{first}, st)
	if d.Accepted {
		t.Fatal("expected rejection for same-day duplicate")
	}
	if d.Reason != ReasonAlreadyMarkedToday {
		t.Fatalf("got reason %q, want %q", d.Reason, ReasonAlreadyMarkedToday)
	}

	st.AllowMultipleMarking = true
	d = Decide(second, []Record{first}, st)
	if !d.Accepted {
		t.Fatalf("expected acceptance with multiple marking allowed, got %q", d.Reason)
	}
}

func TestDecide_DifferentDayOrStudentNotDuplicate(t *testing.T) {
	student := uuid.New()
	st := testSettings()

	yesterday := Record{
		ID:        uuid.New(),
		StudentID: student,
		Timestamp: at(t, "10:00").AddDate(0, 0, -1),
	}
	proposed := Record{ID: uuid.New(), StudentID: student, Timestamp: at(t, "10:00")}
	if d := Decide(proposed, []Record{yesterday}, st); !d.Accepted {
		t.Fatalf("previous-day record must not block: %q", d.Reason)
	}

	other := Record{ID: uuid.New(), StudentID: uuid.New(), Timestamp: at(t, "10:00")}
	if d := Decide(proposed, []Record{other}, st); !d.Accepted {
		t.Fatalf("other student's record must not block: %q", d.Reason)
	}
}

func TestDecide_SameInstantDifferentZoneSameDate(t *testing.T) {
	student := uuid.New()
	st := testSettings()

	local := at(t, "10:00")
	// Same calendar date expressed in UTC; sameDay must normalize zones.
	existing := Record{ID: uuid.New(), StudentID: student, Timestamp: local.UTC()}
	proposed := Record{ID: uuid.New(), StudentID: student, Timestamp: local.Add(2 * time.Hour)}

	if d := Decide(proposed, []Record{existing}, st); d.Accepted {
		t.Fatal("expected duplicate rejection across zone representations")
	}
}
