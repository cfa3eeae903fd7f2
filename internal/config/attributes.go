package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Priya8975/leadgateway/internal/mapper"
)

type attributeDefJSON struct {
	Kind     string   `json:"kind"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
}

// LoadAttributeDefs reads the attribute-validation document named in the
// gateway's external interfaces: a JSON object mapping attribute name to
// its kind and constraints. An empty path yields no configured
// attributes, meaning every inbound field passes through unchanged.
func LoadAttributeDefs(path string) (map[string]mapper.AttributeDef, error) {
	if path == "" {
		return map[string]mapper.AttributeDef{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading attribute definitions: %w", err)
	}

	var parsed map[string]attributeDefJSON
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding attribute definitions: %w", err)
	}

	defs := make(map[string]mapper.AttributeDef, len(parsed))
	for name, d := range parsed {
		defs[name] = mapper.AttributeDef{
			Kind:     mapper.AttributeKind(d.Kind),
			Required: d.Required,
			Options:  d.Options,
			Min:      d.Min,
			Max:      d.Max,
		}
	}
	return defs, nil
}
