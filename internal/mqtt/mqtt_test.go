package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/pir-presets/internal/motion"
)

func TestNewTopics(t *testing.T) {
	tests := []struct {
		base, device string
		want         Topics
	}{
		{"", "", Topics{Events: "wled/pir/events", System: "wled/pir/system", Set: "wled/pir/set"}},
		{"home/hall/", "", Topics{Events: "home/hall/events", System: "home/hall/system", Set: "home/hall/set"}},
		{"wled/pir", "wled/living", Topics{Events: "wled/pir/events", System: "wled/pir/system", Set: "wled/pir/set", WLEDAPI: "wled/living/api"}},
	}
	for _, tt := range tests {
		if got := NewTopics(tt.base, tt.device); got != tt.want {
			t.Errorf("NewTopics(%q, %q) = %+v, want %+v", tt.base, tt.device, got, tt.want)
		}
	}
}

func TestFormatPayload(t *testing.T) {
	tr := motion.Transition{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Kind:      motion.KindMotion,
		Preset:    1,
		Previous:  2,
	}

	payload, err := FormatPayload(tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"motion":{"timestamp":"2026-02-02T22:18:12Z","event":"MOTION","preset":1,"previous":2}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	tr := motion.Transition{
		Timestamp: time.Date(2026, 2, 2, 23, 0, 0, 0, loc),
		Kind:      motion.KindNoMotion,
		Preset:    2,
		Previous:  1,
	}

	payload, err := FormatPayload(tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Motion.Timestamp != "2026-02-02T22:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Motion.Timestamp)
	}
	if parsed.Motion.Event != "NO_MOTION" {
		t.Errorf("unexpected event: %s", parsed.Motion.Event)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestFormatCommand(t *testing.T) {
	tests := map[motion.Preset]string{0: "PL=0", 1: "PL=1", 250: "PL=250"}
	for p, want := range tests {
		if got := string(FormatCommand(p)); got != want {
			t.Errorf("FormatCommand(%d) = %q, want %q", p, got, want)
		}
	}
}

func TestParseEnable(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"ON", true, false},
		{" on\n", true, false},
		{"true", true, false},
		{"1", true, false},
		{"enable", true, false},
		{"OFF", false, false},
		{"False", false, false},
		{"0", false, false},
		{"disable", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		got, err := ParseEnable([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEnable(%q): err=%v, wantErr=%v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEnable(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	tr := motion.Transition{Timestamp: time.Now(), Kind: motion.KindMotion, Preset: 1}

	if err := f.Publish(tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Events) != 1 || f.Events[0] != tr {
		t.Errorf("expected recorded transition, got %+v", f.Events)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")
	f.CommandError = errors.New("broker down")

	if err := f.Publish(motion.Transition{}); err == nil {
		t.Error("expected Publish error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err == nil {
		t.Error("expected PublishSystem error")
	}
	if err := f.PublishCommand(1); err == nil {
		t.Error("expected PublishCommand error")
	}
	if len(f.Events)+len(f.SystemEvents)+len(f.Commands) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherDeliver(t *testing.T) {
	f := NewFakePublisher()
	var got []bool
	f.OnEnable(func(on bool) { got = append(got, on) })

	if err := f.Deliver([]byte("OFF")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Deliver([]byte("garbage")); err == nil {
		t.Error("expected error for garbage payload")
	}
	if err := f.Deliver([]byte("ON")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("unexpected handler calls: %v", got)
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(motion.Transition{})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.PublishCommand(3)
	f.Close()
	f.Connected = true

	f.Reset()

	if f.Events != nil || f.Payloads != nil || f.SystemEvents != nil || f.SystemPayloads != nil || f.Commands != nil {
		t.Error("expected recorded messages cleared")
	}
	if f.Closed || f.Connected {
		t.Error("expected flags cleared")
	}
}

func TestPresetSink(t *testing.T) {
	f := NewFakePublisher()
	var applier motion.PresetApplier = PresetSink{Publisher: f}

	applier.ApplyPreset(4)
	f.CommandError = errors.New("offline")
	applier.ApplyPreset(5) // logged, not recorded

	if len(f.Commands) != 1 || f.Commands[0] != 4 {
		t.Errorf("expected [4], got %v", f.Commands)
	}
}

func TestInterfaces(t *testing.T) {
	var _ Publisher = (*FakePublisher)(nil)
	var _ CommandPublisher = (*FakePublisher)(nil)
	var _ ConnectionStatus = (*FakePublisher)(nil)
	var _ Publisher = (*RealPublisher)(nil)
	var _ CommandPublisher = (*RealPublisher)(nil)
	var _ ConnectionStatus = (*RealPublisher)(nil)
}
