package recognition

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Candidate is a student eligible for matching: one with a registered
// reference photo.
type Candidate struct {
	ID           uuid.UUID
	Name         string
	RegisteredAt time.Time
}

// Match is a successful recognition outcome. Confidence is rounded to two
// decimal places and never exceeds 0.98.
type Match struct {
	Candidate  Candidate
	Confidence float64
}

// Source provides uniform random draws in [0,1). *math/rand.Rand satisfies it;
// tests script it.
type Source interface {
	Float64() float64
}

// LockedSource serializes draws from an underlying Source. *rand.Rand is not
// safe for concurrent use, so a source shared between the matcher and the
// auto-marking scheduler must go through this wrapper.
type LockedSource struct {
	mu  sync.Mutex
	src Source
}

// NewLockedSource wraps src for concurrent use.
func NewLockedSource(src Source) *LockedSource {
	return &LockedSource{src: src}
}

func (l *LockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

const (
	baseMin           = 0.60
	baseSpan          = 0.35 // base confidence is uniform in [0.60, 0.95)
	recencyBonusMax   = 0.10
	recencyBonusDays  = 30
	confidenceCeiling = 0.98
	falseNegativeRate = 0.15
)

// Matcher simulates face recognition against a set of candidates. It holds no
// state between calls; all variation comes from the injected random source.
type Matcher struct {
	rng      Source
	delayMin time.Duration
	delayMax time.Duration
	now      func() time.Time
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithDelay sets the simulated inference latency window. A zero max disables
// the delay entirely (and consumes no random draw).
func WithDelay(min, max time.Duration) Option {
	return func(m *Matcher) {
		m.delayMin = min
		m.delayMax = max
	}
}

// WithClock overrides the wall clock used for the recency bonus.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// NewMatcher builds a matcher around the given random source.
func NewMatcher(rng Source, opts ...Option) *Matcher {
	m := &Matcher{
		rng:      rng,
		delayMin: 1 * time.Second,
		delayMax: 3 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match evaluates a captured frame against the candidate set and returns the
// best simulated match at or above threshold, or nil when nothing matched.
// nil is a normal outcome, not an error; the only error path is context
// cancellation during the simulated inference delay.
//
// An empty frame or empty candidate set returns nil immediately with no
// randomness consumed and no delay. The frame payload is otherwise never
// inspected; this is a simulation, not real inference.
func (m *Matcher) Match(ctx context.Context, frame []byte, candidates []Candidate, threshold float64) (*Match, error) {
	if len(frame) == 0 || len(candidates) == 0 {
		return nil, nil
	}

	if err := m.sleep(ctx); err != nil {
		return nil, err
	}

	now := m.now()

	var best *Match
	for _, cand := range candidates {
		conf := baseMin + m.rng.Float64()*baseSpan
		conf += recencyBonus(now.Sub(cand.RegisteredAt))
		if conf > confidenceCeiling {
			conf = confidenceCeiling
		}
		if conf < threshold {
			continue
		}
		// Strictly-higher wins; ties keep the first-seen candidate.
		if best == nil || conf > best.Confidence {
			best = &Match{Candidate: cand, Confidence: conf}
		}
	}

	// Simulated false negative: one roll per invocation, applied even when a
	// valid match was found above.
	if m.rng.Float64() < falseNegativeRate {
		return nil, nil
	}

	if best == nil {
		return nil, nil
	}
	best.Confidence = math.Round(best.Confidence*100) / 100
	return best, nil
}

// recencyBonus decays linearly from recencyBonusMax at enrollment time to
// zero at 30 days, never going negative.
func recencyBonus(sinceRegistration time.Duration) float64 {
	days := sinceRegistration.Hours() / 24
	if days < 0 {
		days = 0
	}
	bonus := recencyBonusMax * (1 - days/recencyBonusDays)
	if bonus < 0 {
		return 0
	}
	return bonus
}

func (m *Matcher) sleep(ctx context.Context) error {
	if m.delayMax <= 0 {
		return nil
	}
	d := m.delayMin
	if span := m.delayMax - m.delayMin; span > 0 {
		d += time.Duration(m.rng.Float64() * float64(span))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
