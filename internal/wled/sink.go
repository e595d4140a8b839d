package wled

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/pir-presets/internal/motion"
)

// presetSetter is satisfied by *Client.
type presetSetter interface {
	ApplyPreset(ctx context.Context, id motion.Preset) error
}

// Sink adapts a Client to motion.PresetApplier. Failures are logged and
// otherwise dropped.
type Sink struct {
	client  presetSetter
	timeout time.Duration

	// Failures counts requests that returned an error.
	Failures int
}

// NewSink wraps client; each request is bounded by timeout (0 = none).
func NewSink(client *Client, timeout time.Duration) *Sink {
	return &Sink{client: client, timeout: timeout}
}

// ApplyPreset sends p to the device.
func (s *Sink) ApplyPreset(p motion.Preset) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.client.ApplyPreset(ctx, p); err != nil {
		s.Failures++
		log.Error().Err(err).Uint16("preset", uint16(p)).Msg("wled: apply preset failed")
		return
	}
	log.Info().Uint16("preset", uint16(p)).Msg("wled: preset applied")
}
