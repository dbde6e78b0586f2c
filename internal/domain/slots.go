package domain

import "fmt"

// SlotConfig describes how a venue's day is cut into bookable windows.
type SlotConfig struct {
	Open        TimeOfDay
	Close       TimeOfDay
	SlotMinutes int
	StepMinutes int
}

func (c SlotConfig) Validate() error {
	verr := &ValidationError{}
	if !c.Open.Valid() {
		verr.Add("open", "must be between 00:00 and 24:00")
	}
	if !c.Close.Valid() {
		verr.Add("close", "must be between 00:00 and 24:00")
	}
	if c.Close <= c.Open {
		verr.Add("close", "must be after open")
	}
	if c.SlotMinutes <= 0 {
		verr.Add("slot_minutes", "must be positive")
	}
	if c.StepMinutes <= 0 {
		verr.Add("step_minutes", "must be positive")
	}
	return verr.OrNil()
}

func (c SlotConfig) String() string {
	return fmt.Sprintf("%s-%s every %dm for %dm", c.Open, c.Close, c.StepMinutes, c.SlotMinutes)
}

// GenerateSlots returns every window of SlotMinutes starting at Open and
// advancing by StepMinutes while the window still ends by Close. Windows may
// overlap when the step is shorter than the slot. A day shorter than one slot,
// or a non-positive duration or step, yields no windows.
func GenerateSlots(cfg SlotConfig) []Window {
	if cfg.SlotMinutes <= 0 || cfg.StepMinutes <= 0 {
		return []Window{}
	}
	slots := []Window{}
	for start := cfg.Open; start.Add(cfg.SlotMinutes) <= cfg.Close; start = start.Add(cfg.StepMinutes) {
		slots = append(slots, Window{Start: start, End: start.Add(cfg.SlotMinutes)})
	}
	return slots
}
