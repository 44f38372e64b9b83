package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// WorkingHours is the daily window used to classify attendance. Start and End
// are "HH:MM" clock strings; the window is inclusive on both ends.
type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Channels toggles where notifications are delivered.
type Channels struct {
	WebSocket bool `json:"websocket"`
	Log       bool `json:"log"`
}

// Backup configures CSV archival of accepted records.
type Backup struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix"`
}

// Settings is the process-wide attendance configuration. It is read fresh on
// every matcher/policy decision, never snapshotted, so an update takes effect
// on the next attempt.
type Settings struct {
	AutoMarkingEnabled   bool         `json:"auto_marking_enabled"`
	ConfidenceThreshold  float64      `json:"confidence_threshold"`
	AllowMultipleMarking bool         `json:"allow_multiple_marking"`
	WorkingHours         WorkingHours `json:"working_hours"`
	Notifications        Channels     `json:"notifications"`
	Backup               Backup       `json:"backup"`
}

// Default returns the settings used when nothing has been saved yet.
func Default() Settings {
	return Settings{
		AutoMarkingEnabled:   false,
		ConfidenceThreshold:  0.75,
		AllowMultipleMarking: false,
		WorkingHours:         WorkingHours{Start: "09:00", End: "17:00"},
		Notifications:        Channels{WebSocket: true, Log: true},
		Backup:               Backup{Enabled: false, Prefix: "backups"},
	}
}

// Validate rejects settings that would break the decision pipeline.
func (s Settings) Validate() error {
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold %g out of [0,1]", s.ConfidenceThreshold)
	}
	start, err := ParseClock(s.WorkingHours.Start)
	if err != nil {
		return fmt.Errorf("working_hours.start: %w", err)
	}
	end, err := ParseClock(s.WorkingHours.End)
	if err != nil {
		return fmt.Errorf("working_hours.end: %w", err)
	}
	if start > end {
		return errors.New("working_hours start is after end")
	}
	return nil
}

// ParseClock converts an "HH:MM" string to minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}
