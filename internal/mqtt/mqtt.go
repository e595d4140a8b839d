// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/pir-presets/internal/motion"
)

// DefaultBaseTopic is the topic prefix used when none is configured.
const DefaultBaseTopic = "wled/pir"

// Topics holds the MQTT topics used by the daemon.
type Topics struct {
	// Events receives one message per applied preset.
	Events string
	// System receives lifecycle events (startup, shutdown, heartbeat).
	System string
	// Set accepts motion sensing on/off commands.
	Set string
	// WLEDAPI is the WLED device's MQTT API topic. Empty disables it.
	WLEDAPI string
}

// NewTopics derives the topic set from a base topic and an optional WLED
// device topic (e.g. "wled/living").
func NewTopics(base, wledDevice string) Topics {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = DefaultBaseTopic
	}
	t := Topics{
		Events: base + "/events",
		System: base + "/system",
		Set:    base + "/set",
	}
	if d := strings.TrimRight(wledDevice, "/"); d != "" {
		t.WLEDAPI = d + "/api"
	}
	return t
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a preset transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(tr motion.Transition) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// CommandPublisher sends preset commands to a WLED device over its MQTT API.
type CommandPublisher interface {
	PublishCommand(p motion.Preset) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a preset transition.
type Payload struct {
	Motion MotionPayload `json:"motion"`
}

// MotionPayload contains the transition details.
type MotionPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Preset    int    `json:"preset"`
	Previous  int    `json:"previous"`
}

// FormatPayload creates the JSON payload for a preset transition.
func FormatPayload(tr motion.Transition) ([]byte, error) {
	payload := Payload{
		Motion: MotionPayload{
			Timestamp: tr.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(tr.Kind),
			Preset:    int(tr.Preset),
			Previous:  int(tr.Previous),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// FormatCommand returns the WLED MQTT API command that loads preset p.
func FormatCommand(p motion.Preset) []byte {
	return []byte("PL=" + strconv.Itoa(int(p)))
}

// ParseEnable decodes a motion sensing command payload.
func ParseEnable(payload []byte) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "TRUE", "1", "ENABLE":
		return true, nil
	case "OFF", "FALSE", "0", "DISABLE":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized motion sensing command %q", payload)
}
