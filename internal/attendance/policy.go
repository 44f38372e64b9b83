package attendance

import (
	"time"

	"facemark/internal/settings"
)

// Classification labels an accepted record.
type Classification string

const (
	ClassNormal              Classification = "normal"
	ClassOutsideWorkingHours Classification = "outside_working_hours"
)

// RejectReason explains a rejected proposal.
type RejectReason string

// ReasonAlreadyMarkedToday is the only rejection the policy produces: the
// student already has a record on the same calendar date and multiple
// marking is disabled.
const ReasonAlreadyMarkedToday RejectReason = "already_marked_today"

// Decision is the policy outcome for a proposed record.
type Decision struct {
	Accepted       bool
	Classification Classification
	Reason         RejectReason
}

// Decide applies the duplicate and working-hours policy to a proposed record.
// It is a pure function: existing is the caller's current record snapshot,
// which may be stale relative to other writers (the hard uniqueness guarantee
// lives in storage, not here).
func Decide(proposed Record, existing []Record, st settings.Settings) Decision {
	if !st.AllowMultipleMarking {
		for _, rec := range existing {
			if rec.StudentID == proposed.StudentID && sameDay(proposed.Timestamp, rec.Timestamp) {
				return Decision{Accepted: false, Reason: ReasonAlreadyMarkedToday}
			}
		}
	}
	return Decision{Accepted: true, Classification: classify(proposed.Timestamp, st.WorkingHours)}
}

// classify places the timestamp inside or outside the working-hours window,
// inclusive on both ends. An unparsable window is treated as always open;
// settings validation keeps such windows from being saved in the first place.
func classify(ts time.Time, wh settings.WorkingHours) Classification {
	start, err := settings.ParseClock(wh.Start)
	if err != nil {
		return ClassNormal
	}
	end, err := settings.ParseClock(wh.End)
	if err != nil {
		return ClassNormal
	}
	minute := ts.Hour()*60 + ts.Minute()
	if minute >= start && minute <= end {
		return ClassNormal
	}
	return ClassOutsideWorkingHours
}

// sameDay reports whether two timestamps fall on the same calendar date,
// evaluated in the proposed record's location.
func sameDay(proposed, other time.Time) bool {
	y1, m1, d1 := proposed.Date()
	y2, m2, d2 := other.In(proposed.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
