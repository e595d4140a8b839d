// Package status provides a thread-safe status tracker for the pir-presets daemon.
// It is read by HTTP handlers and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/pir-presets/internal/motion"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	TickMs           int64
	HoldMs           int64
	HoldTicks        uint32
	PresetOnMotion   motion.Preset
	PresetOnNoMotion motion.Preset
	HeartbeatMs      int64
	Pin              int
	Broker           string
	WLED             string
	HTTPAddr         string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Motion        motion.State
	Decided       bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update stores the latest controller state.
// Called from the run loop on every tick.
func (t *Tracker) Update(st motion.State, decided bool) {
	t.mu.Lock()
	t.snap.Motion = st
	t.snap.Decided = decided
	t.mu.Unlock()
}

// SetEnabled records a motion sensing toggle ahead of the next Update.
func (t *Tracker) SetEnabled(on bool) {
	t.mu.Lock()
	t.snap.Motion.Enabled = on
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.Motion.LastTransition != nil {
		tr := *s.Motion.LastTransition
		s.Motion.LastTransition = &tr
	}
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	s.Now = t.now()
	return s
}
