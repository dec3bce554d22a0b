package schedule

import (
	"time"
)

// Item is one contiguous time-boxed activity block of an agent's day.
// Items are immutable once created; updates replace the whole value.
type Item struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Activity    string    `json:"activity"`
	Status      Status    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
}

// Validate checks the single-item invariant.
func (it Item) Validate() error {
	if !it.StartTime.Before(it.EndTime) {
		return &ValidationError{Reason: "start_time must be before end_time"}
	}
	if it.Activity == "" {
		return &ValidationError{Missing: []string{"activity"}}
	}
	if _, err := ParseStatus(string(it.Status)); err != nil {
		return err
	}
	return nil
}

// Contains reports whether t falls within the item's half-open interval
// [StartTime, EndTime).
func (it Item) Contains(t time.Time) bool {
	return !t.Before(it.StartTime) && t.Before(it.EndTime)
}

// Expired reports whether the item's end time has been reached.
func (it Item) Expired(now time.Time) bool {
	return !now.Before(it.EndTime)
}

// Remaining returns the time left until expiry, or zero if already expired.
func (it Item) Remaining(now time.Time) time.Duration {
	d := it.EndTime.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// DaySchedule is the ordered full-day plan for one agent: contiguous,
// non-overlapping items bracketed by sleep blocks covering the non-active
// hours.
type DaySchedule struct {
	AgentID     string    `json:"agent_id"`
	Date        time.Time `json:"date"` // local midnight of the planned day
	Items       []Item    `json:"items"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Validate checks the contiguity invariant: consecutive items share a
// boundary and the plan opens and closes with sleep blocks.
func (d DaySchedule) Validate() error {
	if len(d.Items) == 0 {
		return &ValidationError{Reason: "day schedule has no items"}
	}
	for i, it := range d.Items {
		if err := it.Validate(); err != nil {
			return err
		}
		if i > 0 && !d.Items[i-1].EndTime.Equal(it.StartTime) {
			return &ValidationError{Reason: "day schedule items are not contiguous"}
		}
	}
	if d.Items[0].Status != StatusSleeping {
		return &ValidationError{Reason: "day schedule must open with a sleeping block"}
	}
	if d.Items[len(d.Items)-1].Status != StatusSleeping {
		return &ValidationError{Reason: "day schedule must close with a sleeping block"}
	}
	return nil
}

// ItemAt returns the item covering t, or false if t falls outside the plan.
func (d DaySchedule) ItemAt(t time.Time) (Item, bool) {
	for _, it := range d.Items {
		if it.Contains(t) {
			return it, true
		}
	}
	return Item{}, false
}

// ItemAfter returns the item that starts exactly when the given item ends,
// or false if the plan has no successor.
func (d DaySchedule) ItemAfter(current Item) (Item, bool) {
	for _, it := range d.Items {
		if it.StartTime.Equal(current.EndTime) {
			return it, true
		}
	}
	return Item{}, false
}

// CompletionStatus describes how a schedule item left the "current" slot.
type CompletionStatus string

const (
	CompletionCompleted   CompletionStatus = "completed"
	CompletionInterrupted CompletionStatus = "interrupted"
	CompletionModified    CompletionStatus = "modified"
	CompletionShutdown    CompletionStatus = "shutdown"
)

// HistoryEntry is one archived schedule item with its actual execution
// window. Entries are keyed by Item.StartTime for idempotent upsert.
type HistoryEntry struct {
	Item             Item             `json:"item"`
	ActualStart      time.Time        `json:"actual_start"`
	ActualEnd        time.Time        `json:"actual_end"`
	CompletionStatus CompletionStatus `json:"completion_status"`
	Notes            string           `json:"notes,omitempty"`
}
