package mqtt

import (
	"github.com/sweeney/pir-presets/internal/motion"
)

// FakePublisher records published events for test assertions.
type FakePublisher struct {
	// Events contains all preset transitions that were published.
	Events []motion.Transition

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// Commands contains all presets sent via PublishCommand.
	Commands []motion.Preset

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// CommandError, if set, will be returned by PublishCommand.
	CommandError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	enable func(bool)
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the preset transition.
func (f *FakePublisher) Publish(tr motion.Transition) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Events = append(f.Events, tr)

	payload, err := FormatPayload(tr)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// PublishCommand records the preset command.
func (f *FakePublisher) PublishCommand(p motion.Preset) error {
	if f.CommandError != nil {
		return f.CommandError
	}
	f.Commands = append(f.Commands, p)
	return nil
}

// OnEnable stores the command handler.
func (f *FakePublisher) OnEnable(fn func(bool)) {
	f.enable = fn
}

// Deliver simulates an inbound message on the set topic.
func (f *FakePublisher) Deliver(payload []byte) error {
	on, err := ParseEnable(payload)
	if err != nil {
		return err
	}
	if f.enable != nil {
		f.enable(on)
	}
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Commands = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.CommandError = nil
	f.Connected = false
}
