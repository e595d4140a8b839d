// Package motion contains the PIR hold/release logic that turns a raw
// occupancy signal into lighting preset decisions.
// This package has NO external I/O (no GPIO, MQTT, HTTP or time.Sleep).
// Time is always injectable via time.Time parameters.
package motion

import "time"

// Preset identifies a lighting preset slot on the controller.
// 0 means "no preset slot".
type Preset uint16

// Kind classifies a debounced decision.
type Kind string

const (
	KindMotion   Kind = "MOTION"
	KindNoMotion Kind = "NO_MOTION"
)

// Config is fixed for the lifetime of a Controller.
type Config struct {
	// HoldTicks is the number of ticks a HIGH sample keeps the motion
	// decision alive. 0 disables holding.
	HoldTicks uint32
	// TickInterval is the minimum wall-clock spacing between eligible ticks.
	TickInterval time.Duration
	// PresetOnMotion is applied when motion is decided.
	PresetOnMotion Preset
	// PresetOnNoMotion is applied when the hold window lapses without motion.
	PresetOnNoMotion Preset
}

// HoldTicksFor converts a hold duration into a tick count for the given
// interval, rounding down. Returns 0 if interval is not positive.
func HoldTicksFor(hold, interval time.Duration) uint32 {
	if interval <= 0 || hold <= 0 {
		return 0
	}
	return uint32(hold / interval)
}

// PresetApplier receives preset changes. Calls are synchronous and
// fire-and-forget: the controller never observes a failure.
type PresetApplier interface {
	ApplyPreset(p Preset)
}

// PresetApplierFunc adapts a function to PresetApplier.
type PresetApplierFunc func(p Preset)

// ApplyPreset calls f(p).
func (f PresetApplierFunc) ApplyPreset(p Preset) { f(p) }

// Fanout applies every preset to each of its appliers in order.
type Fanout []PresetApplier

// ApplyPreset forwards p to every non-nil applier.
func (f Fanout) ApplyPreset(p Preset) {
	for _, a := range f {
		if a != nil {
			a.ApplyPreset(p)
		}
	}
}

// Transition describes one applied preset change.
type Transition struct {
	Timestamp time.Time
	Kind      Kind
	Preset    Preset
	Previous  Preset
}

// Counts tracks the number of applied transitions of each kind since startup.
type Counts struct {
	Motion   int
	NoMotion int
}

// State is a point-in-time copy of the controller fields.
type State struct {
	Raw            bool
	Holding        bool
	HoldElapsed    uint32
	RecheckPending bool
	ActivePreset   Preset
	// Occupied is the outcome of the most recent recheck.
	Occupied       bool
	Enabled        bool
	Ticks          uint64
	Counts         Counts
	LastTransition *Transition
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}
