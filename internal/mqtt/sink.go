package mqtt

import (
	"github.com/rs/zerolog/log"

	"github.com/sweeney/pir-presets/internal/motion"
)

// PresetSink adapts a CommandPublisher to motion.PresetApplier.
// Publish failures are logged and dropped.
type PresetSink struct {
	Publisher CommandPublisher
}

// ApplyPreset publishes the WLED command for p.
func (s PresetSink) ApplyPreset(p motion.Preset) {
	if err := s.Publisher.PublishCommand(p); err != nil {
		log.Error().Err(err).Uint16("preset", uint16(p)).Msg("mqtt: preset command failed")
	}
}
