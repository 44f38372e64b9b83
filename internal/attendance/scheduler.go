package attendance

import (
	"context"
	"errors"
	"log"
	"time"

	"facemark/internal/recognition"
)

// Scheduler drives auto-marking: while a capture session is active and
// auto-marking is enabled, it offers an attempt on a fixed cadence, gated by
// a random roll so not every tick fires. Overlap is prevented by the
// service's single-flight rule, not here.
type Scheduler struct {
	svc      *Service
	settings SettingsSource
	session  Session
	interval time.Duration
	gate     float64
	rng      recognition.Source
}

// NewScheduler builds a scheduler. gate is the per-tick probability of
// actually invoking the matcher (~0.3 in the reference behavior).
func NewScheduler(svc *Service, src SettingsSource, session Session, interval time.Duration, gate float64, rng recognition.Source) *Scheduler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Scheduler{
		svc:      svc,
		settings: src,
		session:  session,
		interval: interval,
		gate:     gate,
		rng:      rng,
	}
}

// Run ticks until ctx is cancelled. Tie the context to the session lifetime
// so stopping a session also stops its scheduler.
func (sc *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !sc.session.Active() {
			continue
		}
		st, err := sc.settings.Load(ctx)
		if err != nil {
			log.Printf("scheduler: settings load failed: %v", err)
			continue
		}
		if !st.AutoMarkingEnabled {
			continue
		}
		if sc.rng.Float64() >= sc.gate {
			continue
		}

		// The matcher suspends for the simulated inference delay, so run the
		// attempt off the tick loop. Ticks landing mid-attempt are dropped by
		// the single-flight guard.
		go func() {
			if _, err := sc.svc.Attempt(ctx, false); err != nil && !errors.Is(err, ErrAttemptInFlight) {
				log.Printf("scheduler: attempt failed: %v", err)
			}
		}()
	}
}
