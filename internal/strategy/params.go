package strategy

import (
	"fmt"
	"maps"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/newthinker/momentum/internal/core"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeParams decodes named options onto out, which must point to a
// struct already holding the defaults. Unknown keys are ignored and
// strings are accepted for numbers. The result is checked against its
// `validate` tags.
func DecodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return core.WrapError(core.ErrInvalidParams, err)
	}
	if err := dec.Decode(params); err != nil {
		return core.WrapError(core.ErrInvalidParams, fmt.Errorf("decoding params: %w", err))
	}
	if err := validate.Struct(out); err != nil {
		return core.WrapError(core.ErrInvalidParams, err)
	}
	return nil
}

// MergeParams returns a new map with later maps overriding earlier ones.
func MergeParams(layers ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}
