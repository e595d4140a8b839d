package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string          `json:"event,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	Occupancy      string          `json:"occupancy"`
	Ready          bool            `json:"ready"`
	Motion         MotionJSON      `json:"motion"`
	LastTransition *TransitionJSON `json:"last_transition,omitempty"`
	UptimeSeconds  int64           `json:"uptime_seconds"`
	StartTime      string          `json:"start_time"`
	Timestamp      string          `json:"timestamp"`
	MQTT           MQTTStatus      `json:"mqtt"`
	Counts         CountsJSON      `json:"event_counts"`
	Network        *NetworkJSON    `json:"network,omitempty"`
	Config         ConfigJSON      `json:"config"`
}

// MotionJSON exposes the controller fields.
type MotionJSON struct {
	Enabled        bool   `json:"enabled"`
	Raw            bool   `json:"raw"`
	Holding        bool   `json:"holding"`
	Occupied       bool   `json:"occupied"`
	HoldElapsed    uint32 `json:"hold_elapsed_ticks"`
	RecheckPending bool   `json:"recheck_pending"`
	ActivePreset   int    `json:"active_preset"`
	Ticks          uint64 `json:"ticks"`
}

// TransitionJSON is the JSON representation of the last applied preset.
type TransitionJSON struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Preset    int    `json:"preset"`
	Previous  int    `json:"previous"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	Motion   int `json:"motion"`
	NoMotion int `json:"no_motion"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs           int64  `json:"tick_ms"`
	HoldMs           int64  `json:"hold_ms"`
	HoldTicks        uint32 `json:"hold_ticks"`
	PresetOnMotion   int    `json:"preset_on_motion"`
	PresetOnNoMotion int    `json:"preset_on_no_motion"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Pin              int    `json:"pin"`
	Broker           string `json:"broker"`
	WLED             string `json:"wled,omitempty"`
	HTTPAddr         string `json:"http_addr"`
}

// Occupancy values reported in status output.
const (
	OccupancyUnknown  = "UNKNOWN"
	OccupancyOccupied = "OCCUPIED"
	OccupancyVacant   = "VACANT"
	OccupancyDisabled = "DISABLED"
)

// Occupancy summarizes the debounced decision.
func (s Snapshot) Occupancy() string {
	switch {
	case !s.Motion.Enabled:
		return OccupancyDisabled
	case !s.Decided:
		return OccupancyUnknown
	case s.Motion.Occupied:
		return OccupancyOccupied
	default:
		return OccupancyVacant
	}
}

func buildInner(snap Snapshot) StatusInner {
	m := snap.Motion
	inner := StatusInner{
		Occupancy: snap.Occupancy(),
		Ready:     snap.Decided,
		Motion: MotionJSON{
			Enabled:        m.Enabled,
			Raw:            m.Raw,
			Holding:        m.Holding,
			Occupied:       m.Occupied,
			HoldElapsed:    m.HoldElapsed,
			RecheckPending: m.RecheckPending,
			ActivePreset:   int(m.ActivePreset),
			Ticks:          m.Ticks,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Motion:   m.Counts.Motion,
			NoMotion: m.Counts.NoMotion,
		},
		Config: ConfigJSON{
			TickMs:           snap.Config.TickMs,
			HoldMs:           snap.Config.HoldMs,
			HoldTicks:        snap.Config.HoldTicks,
			PresetOnMotion:   int(snap.Config.PresetOnMotion),
			PresetOnNoMotion: int(snap.Config.PresetOnNoMotion),
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Pin:              snap.Config.Pin,
			Broker:           snap.Config.Broker,
			WLED:             snap.Config.WLED,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}

	if tr := m.LastTransition; tr != nil {
		inner.LastTransition = &TransitionJSON{
			Timestamp: tr.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(tr.Kind),
			Preset:    int(tr.Preset),
			Previous:  int(tr.Previous),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
