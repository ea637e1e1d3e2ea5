package hardware

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/klangbox/klangbox/internal/infra/config"
)

// NewFromConfig builds the reader adapter selected by configuration.
// Driver settings are decoded per driver type.
func NewFromConfig(cfg config.HardwareConfig) (Adapter, error) {
	switch cfg.Driver {
	case "mock", "":
		var settings MockSettings
		if err := decodeSettings(cfg.Settings, &settings); err != nil {
			return nil, errors.Wrap(err, "mock driver settings")
		}
		zlog.Info().Msgf("hardware driver initialized: driver=mock event_buffer=%d", settings.EventBuffer)
		return NewMockAdapter(settings), nil

	default:
		return nil, errors.Newf("unsupported hardware driver: %s", cfg.Driver)
	}
}

// decodeSettings decodes a settings map into a driver settings struct,
// applies defaults, and validates it.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "settings validation failed")
	}
	return nil
}
