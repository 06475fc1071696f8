package factory

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/invopop/jsonschema"
	"github.com/newthinker/momentum/internal/core"
)

func lookup(name string) (builtin, error) {
	for _, b := range builtins {
		if b.name == name {
			return b, nil
		}
	}
	return builtin{}, core.WrapError(core.ErrUnknownStrategy, fmt.Errorf("%q", name))
}

// Defaults returns the default parameters of a built-in strategy keyed
// the way they are accepted in params and presets.
func Defaults(name string) (map[string]any, error) {
	b, err := lookup(name)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := mapstructure.Decode(b.defaults, &out); err != nil {
		return nil, fmt.Errorf("encoding %s defaults: %w", name, err)
	}
	return out, nil
}

// Schema describes the parameters of a built-in strategy as a JSON
// schema. Every parameter is optional and carries its default.
func Schema(name string) (*jsonschema.Schema, error) {
	b, err := lookup(name)
	if err != nil {
		return nil, err
	}
	defaults, err := Defaults(name)
	if err != nil {
		return nil, err
	}

	r := &jsonschema.Reflector{
		FieldNameTag:               "mapstructure",
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
	}
	schema := r.Reflect(b.defaults)
	schema.Title = b.name
	schema.Description = b.description

	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		if v, ok := defaults[pair.Key]; ok {
			pair.Value.Default = v
		}
	}
	return schema, nil
}
