package recognition

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// scriptedSource replays a fixed sequence of draws and fails the test if the
// matcher consumes more than expected.
type scriptedSource struct {
	t      *testing.T
	values []float64
	i      int
}

func (s *scriptedSource) Float64() float64 {
	if s.i >= len(s.values) {
		s.t.Fatalf("random source exhausted after %d draws", s.i)
	}
	v := s.values[s.i]
	s.i++
	return v
}

// failingSource fails the test on any draw.
type failingSource struct{ t *testing.T }

func (f failingSource) Float64() float64 {
	f.t.Fatal("random source consumed when it must not be")
	return 0
}

func oldCandidate(name string) Candidate {
	return Candidate{
		ID:           uuid.New(),
		Name:         name,
		RegisteredAt: time.Now().AddDate(0, -6, 0), // bonus fully decayed
	}
}

func TestMatch_EmptyCandidates_AlwaysNil(t *testing.T) {
	m := NewMatcher(failingSource{t}, WithDelay(0, 0))
	frame := []byte("frame")

	for _, threshold := range []float64{0, 0.5, 1} {
		res, err := m.Match(context.Background(), frame, nil, threshold)
		if err != nil {
			t.Fatalf("threshold %v: %v", threshold, err)
		}
		if res != nil {
			t.Fatalf("threshold %v: expected nil, got %+v", threshold, res)
		}
	}
}

func TestMatch_EmptyFrame_Nil(t *testing.T) {
	m := NewMatcher(failingSource{t}, WithDelay(0, 0))
	res, err := m.Match(context.Background(), nil, []Candidate{oldCandidate("a")}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Fatalf("expected nil for empty frame, got %+v", res)
	}
}

func TestMatch_ConfidenceIndependentOfThreshold(t *testing.T) {
	cand := oldCandidate("alice")
	frame := []byte("frame")

	// Same scripted draws at two thresholds: the confidence must be
	// identical, only the accept gate changes.
	run := func(threshold float64) *Match {
		src := &scriptedSource{t: t, values: []float64{0.9, 0.5}} // conf, false-negative roll
		m := NewMatcher(src, WithDelay(0, 0))
		res, err := m.Match(context.Background(), frame, []Candidate{cand}, threshold)
		if err != nil {
			t.Fatal(err)
		}
		return res
	}

	high := run(0.9)
	low := run(0.5)
	if high == nil || low == nil {
		t.Fatal("expected a match at both thresholds")
	}
	if high.Confidence != low.Confidence {
		t.Fatalf("confidence changed with threshold: %v vs %v", high.Confidence, low.Confidence)
	}
	// base 0.60 + 0.9*0.35 = 0.915, rounded to 0.92
	if high.Confidence != 0.92 {
		t.Fatalf("expected confidence 0.92, got %v", high.Confidence)
	}
}

func TestMatch_ConfidenceBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := NewMatcher(rng, WithDelay(0, 0))
	cands := []Candidate{
		{ID: uuid.New(), Name: "fresh", RegisteredAt: time.Now()}, // max bonus
		oldCandidate("old"),
	}
	frame := []byte("frame")
	threshold := 0.6

	for i := 0; i < 500; i++ {
		res, err := m.Match(context.Background(), frame, cands, threshold)
		if err != nil {
			t.Fatal(err)
		}
		if res == nil {
			continue
		}
		c := res.Confidence
		if c < threshold || c > confidenceCeiling {
			t.Fatalf("confidence %v outside [%v, %v]", c, threshold, confidenceCeiling)
		}
		if c != math.Round(c*100)/100 {
			t.Fatalf("confidence %v not rounded to 2 decimals", c)
		}
	}
}

func TestMatch_TieKeepsFirstSeen(t *testing.T) {
	a := oldCandidate("first")
	b := oldCandidate("second")
	// Equal draws, zero bonus for both: tie resolved in iteration order.
	src := &scriptedSource{t: t, values: []float64{0.5, 0.5, 0.99}}
	m := NewMatcher(src, WithDelay(0, 0))

	res, err := m.Match(context.Background(), []byte("frame"), []Candidate{a, b}, 0.7)
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Candidate.ID != a.ID {
		t.Fatalf("expected first-seen candidate %s, got %s", a.Name, res.Candidate.Name)
	}
}

func TestMatch_HigherConfidenceWins(t *testing.T) {
	a := oldCandidate("weak")
	b := oldCandidate("strong")
	src := &scriptedSource{t: t, values: []float64{0.4, 0.8, 0.99}}
	m := NewMatcher(src, WithDelay(0, 0))

	res, err := m.Match(context.Background(), []byte("frame"), []Candidate{a, b}, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Candidate.ID != b.ID {
		t.Fatalf("expected %s to win, got %s", b.Name, res.Candidate.Name)
	}
}

func TestMatch_FalseNegativeDiscardsValidMatch(t *testing.T) {
	cand := oldCandidate("alice")
	// High confidence draw, then a false-negative roll under 0.15.
	src := &scriptedSource{t: t, values: []float64{0.99, 0.10}}
	m := NewMatcher(src, WithDelay(0, 0))

	res, err := m.Match(context.Background(), []byte("frame"), []Candidate{cand}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Fatalf("expected forced nil, got %+v", res)
	}
}

func TestMatch_BelowThreshold_Nil(t *testing.T) {
	cand := oldCandidate("alice")
	src := &scriptedSource{t: t, values: []float64{0.0, 0.99}} // conf 0.60, roll passes
	m := NewMatcher(src, WithDelay(0, 0))

	res, err := m.Match(context.Background(), []byte("frame"), []Candidate{cand}, 0.95)
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Fatalf("expected nil below threshold, got %+v", res)
	}
}

func TestMatch_RecencyBonusAppliesAndClamps(t *testing.T) {
	fresh := Candidate{ID: uuid.New(), Name: "fresh", RegisteredAt: time.Now()}
	// Max base draw: 0.60 + 0.35*0.9999 is just under 0.95, plus bonus 0.10,
	// clamped to 0.98.
	src := &scriptedSource{t: t, values: []float64{0.9999, 0.99}}
	m := NewMatcher(src, WithDelay(0, 0))

	res, err := m.Match(context.Background(), []byte("frame"), []Candidate{fresh}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if res == nil {
		t.Fatal("expected a match")
	}
	if res.Confidence != confidenceCeiling {
		t.Fatalf("expected clamp at %v, got %v", confidenceCeiling, res.Confidence)
	}
}

func TestLockedSource_ConcurrentDraws(t *testing.T) {
	src := NewLockedSource(rand.New(rand.NewSource(42)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if v := src.Float64(); v < 0 || v >= 1 {
					t.Errorf("draw %v outside [0,1)", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestMatch_DelayCancellation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := NewMatcher(rng, WithDelay(time.Second, 2*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Match(ctx, []byte("frame"), []Candidate{oldCandidate("a")}, 0.5)
	if err == nil {
		t.Fatal("expected context error during simulated delay")
	}
}
