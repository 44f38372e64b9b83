package attendance

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"facemark/internal/recognition"
	"facemark/internal/settings"
)

// The scheduler and the matcher it triggers draw from the same random source
// on different goroutines, exactly as the server wires them. A locked source
// must make that safe; this test also overlaps manual attempts with the
// scheduler's own to exercise the single-flight path under load.
func TestScheduler_SharedSourceWithMatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := settings.Default()
	st.AutoMarkingEnabled = true
	st.AllowMultipleMarking = true
	st.WorkingHours = settings.WorkingHours{Start: "00:00", End: "23:59"}
	fs := &fixedSettings{s: st}

	rng := recognition.NewLockedSource(rand.New(rand.NewSource(11)))
	matcher := recognition.NewMatcher(rng, recognition.WithDelay(0, 0))
	sess := &stubSession{active: true, frame: []byte("frame")}

	mem := NewMemory()
	svc := NewService(mem, fs, matcher, sess, &recordingNotifier{}, nil, nil, "Test Campus", "kiosk-test")
	seedStudent(t, mem, "Alice", "alice@example.edu")
	if err := svc.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	sc := NewScheduler(svc, fs, sess, time.Millisecond, 1.0, rng)
	go sc.Run(ctx)

	// Manual triggers racing the scheduler's automatic ones.
	deadline := time.After(50 * time.Millisecond)
	for {
		select {
		case <-deadline:
			cancel()
			return
		default:
		}
		if _, err := svc.Attempt(ctx, true); err != nil && !errors.Is(err, ErrAttemptInFlight) {
			t.Fatalf("manual attempt: %v", err)
		}
	}
}
