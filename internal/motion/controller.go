package motion

import (
	"time"

	"go.uber.org/atomic"
)

// Controller applies the hold-then-recheck policy to a sampled PIR signal.
// Only one goroutine may call OnTick; SetEnabled is safe from any goroutine.
type Controller struct {
	cfg     Config
	applier PresetApplier
	enabled atomic.Bool

	raw            bool
	holding        bool
	holdElapsed    uint32
	recheckPending bool
	activePreset   Preset
	decided        bool
	occupied       bool

	lastTick time.Time
	ticked   bool
	ticks    uint64

	counts         Counts
	lastTransition *Transition
	startTime      time.Time
	lastHeartbeat  time.Time
}

// NewController creates an enabled controller. applier may be nil, in which
// case transitions are only reported by OnTick.
// The startTime is used for calculating uptime in heartbeat events.
func NewController(cfg Config, applier PresetApplier, startTime time.Time) *Controller {
	c := &Controller{
		cfg:           cfg,
		applier:       applier,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	c.enabled.Store(true)
	return c
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// SetEnabled turns motion sensing on or off. While disabled OnTick does nothing.
func (c *Controller) SetEnabled(on bool) {
	c.enabled.Store(on)
}

// Enabled reports whether motion sensing is active.
func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// Due reports whether a tick at now would be eligible.
func (c *Controller) Due(now time.Time) bool {
	if !c.enabled.Load() {
		return false
	}
	return !c.ticked || now.Sub(c.lastTick) >= c.cfg.TickInterval
}

// OnTick feeds one sample taken at now. Calls closer together than
// TickInterval are ignored. Each eligible call advances the state by exactly
// one tick regardless of how much time has passed.
// Returns the transition applied on this tick, or nil.
func (c *Controller) OnTick(raw bool, now time.Time) *Transition {
	if !c.Due(now) {
		return nil
	}
	c.lastTick = now
	c.ticked = true
	c.ticks++
	c.raw = raw

	var tr *Transition
	if c.recheckPending && !c.holding {
		c.recheckPending = false
		c.decided = true
		c.occupied = raw
		if raw {
			c.holding = true
			c.holdElapsed = 0
			tr = c.apply(c.cfg.PresetOnMotion, KindMotion, now)
		} else {
			tr = c.apply(c.cfg.PresetOnNoMotion, KindNoMotion, now)
		}
	}

	// Fresh motion restarts the countdown.
	if raw {
		c.holdElapsed = 0
	}

	if c.holding && c.holdElapsed < c.cfg.HoldTicks {
		c.holdElapsed++
	} else {
		c.holding = false
		c.holdElapsed = 0
		c.recheckPending = true
	}

	return tr
}

func (c *Controller) apply(p Preset, kind Kind, now time.Time) *Transition {
	if p == c.activePreset {
		return nil
	}
	tr := &Transition{
		Timestamp: now,
		Kind:      kind,
		Preset:    p,
		Previous:  c.activePreset,
	}
	if c.applier != nil {
		c.applier.ApplyPreset(p)
	}
	c.activePreset = p

	switch kind {
	case KindMotion:
		c.counts.Motion++
	case KindNoMotion:
		c.counts.NoMotion++
	}
	c.lastTransition = tr
	return tr
}

// Decided reports whether the controller has made its first decision.
func (c *Controller) Decided() bool {
	return c.decided
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() State {
	s := State{
		Raw:            c.raw,
		Holding:        c.holding,
		HoldElapsed:    c.holdElapsed,
		RecheckPending: c.recheckPending,
		ActivePreset:   c.activePreset,
		Occupied:       c.occupied,
		Enabled:        c.enabled.Load(),
		Ticks:          c.ticks,
		Counts:         c.counts,
	}
	if c.lastTransition != nil {
		tr := *c.lastTransition
		s.LastTransition = &tr
	}
	return s
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil before the first decision while
// sensing is enabled, if the interval has not elapsed, or if interval is <= 0.
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	// A disabled controller never decides but is still alive.
	if !c.decided && c.enabled.Load() {
		return nil
	}

	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}

	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.counts,
	}
}
