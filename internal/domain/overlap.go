package domain

import (
	"time"

	"github.com/google/uuid"
)

// Interval is a half-open [Start, End) range of absolute time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether a and b share any instant. Ranges that only
// touch at an endpoint do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

func (i Interval) Overlaps(other Interval) bool {
	return Overlaps(i, other)
}

// FirstConflict returns the first active reservation in existing that
// overlaps candidate, ignoring the reservation with id exclude.
func FirstConflict(candidate Interval, existing []Reservation, exclude uuid.UUID) *Reservation {
	for i := range existing {
		r := &existing[i]
		if !r.Active() || r.ID == exclude {
			continue
		}
		if Overlaps(candidate, r.Interval()) {
			return r
		}
	}
	return nil
}

// FreeSlots keeps the candidate windows on date that no active reservation
// intersects. The result is advisory.
func FreeSlots(date time.Time, loc *time.Location, candidates []Window, existing []Reservation) []Window {
	free := make([]Window, 0, len(candidates))
	for _, w := range candidates {
		if FirstConflict(w.On(date, loc), existing, uuid.Nil) == nil {
			free = append(free, w)
		}
	}
	return free
}
