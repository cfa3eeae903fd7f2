// Package mapper transforms a normalized lead document into the
// downstream customer's wire payload under a permissive attribute policy:
// optional attributes that fail their configured type check are dropped
// rather than failing the whole lead.
package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Priya8975/leadgateway/internal/document"
)

// AttributeKind enumerates the three shapes a configured attribute
// definition may take.
type AttributeKind string

const (
	KindText     AttributeKind = "text"
	KindDropdown AttributeKind = "dropdown"
	KindRange    AttributeKind = "range"
)

// AttributeDef is one entry of the attribute-validation configuration
// document.
type AttributeDef struct {
	Kind     AttributeKind
	Required bool
	Options  []string // dropdown
	Min      *float64 // range, nil = open
	Max      *float64 // range, nil = open
}

// Config configures the mapper: the core phone field path, the static
// product identifier, and the per-attribute definitions.
type Config struct {
	PhoneField    string // dotted path into the normalized document, e.g. "phone"
	ProductName   string // injected from static configuration, never from input
	AttributeDefs map[string]AttributeDef
}

// Result is either a successful mapping (customer payload + omitted keys)
// or a failure with the reasons the core fields could not be satisfied.
type Result struct {
	OK              bool
	CustomerPayload document.Value
	Omitted         []string
	Reasons         []string
}

type Mapper struct {
	cfg Config
}

func New(cfg Config) *Mapper {
	return &Mapper{cfg: cfg}
}

// Map produces the customer payload from a normalized lead document.
func (m *Mapper) Map(normalized document.Value) Result {
	if normalized.Kind != document.KindObject {
		return Result{Reasons: []string{"normalized document must be an object"}}
	}

	phoneLeaf, ok := normalized.Get(m.cfg.PhoneField)
	phone, isStr := phoneLeaf.IsString()
	if !ok || !isStr || strings.TrimSpace(phone) == "" {
		return Result{Reasons: []string{fmt.Sprintf("required field %q missing or empty", m.cfg.PhoneField)}}
	}

	out := map[string]document.Value{
		"phone": document.String(phone),
		"product": document.Object(map[string]document.Value{
			"name": document.String(m.cfg.ProductName),
		}),
	}

	var omitted []string
	var reasons []string

	for key, leaf := range normalized.Obj {
		if key == m.cfg.PhoneField {
			continue
		}
		def, configured := m.cfg.AttributeDefs[key]
		if !configured {
			out[key] = leaf
			continue
		}

		validated, valErr := validateAttribute(def, leaf)
		if valErr == nil {
			out[key] = validated
			continue
		}

		if def.Required {
			reasons = append(reasons, fmt.Sprintf("required attribute %q invalid: %v", key, valErr))
			continue
		}
		omitted = append(omitted, key)
	}

	if len(reasons) > 0 {
		return Result{Reasons: reasons}
	}

	return Result{
		OK:              true,
		CustomerPayload: document.Object(out),
		Omitted:         omitted,
	}
}

func validateAttribute(def AttributeDef, leaf document.Value) (document.Value, error) {
	switch def.Kind {
	case KindText:
		s, ok := leaf.IsString()
		if !ok {
			return document.Value{}, fmt.Errorf("not a string")
		}
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return document.Value{}, fmt.Errorf("empty text")
		}
		return document.String(trimmed), nil

	case KindDropdown:
		s, ok := leaf.IsString()
		if !ok {
			return document.Value{}, fmt.Errorf("not a string")
		}
		for _, opt := range def.Options {
			if s == opt {
				return document.String(s), nil
			}
		}
		return document.Value{}, fmt.Errorf("value %q not in configured options", s)

	case KindRange:
		var num float64
		switch leaf.Kind {
		case document.KindNumber:
			num = leaf.Num
		case document.KindString:
			parsed, err := strconv.ParseFloat(leaf.Str, 64)
			if err != nil {
				return document.Value{}, fmt.Errorf("not a real number")
			}
			num = parsed
		default:
			return document.Value{}, fmt.Errorf("not a real number")
		}
		if def.Min != nil && num < *def.Min {
			return document.Value{}, fmt.Errorf("below minimum %v", *def.Min)
		}
		if def.Max != nil && num > *def.Max {
			return document.Value{}, fmt.Errorf("above maximum %v", *def.Max)
		}
		return document.Number(num), nil

	default:
		return document.Value{}, fmt.Errorf("unknown attribute kind %q", def.Kind)
	}
}
