package mapper

import (
	"testing"

	"github.com/Priya8975/leadgateway/internal/document"
)

func ptr(f float64) *float64 { return &f }

func TestMap_MissingPhoneFails(t *testing.T) {
	m := New(Config{PhoneField: "phone", ProductName: "acme"})
	doc := document.Object(map[string]document.Value{
		"name": document.String("Jane Doe"),
	})

	result := m.Map(doc)
	if result.OK {
		t.Fatal("expected failure when phone field is missing")
	}
	if len(result.Reasons) == 0 {
		t.Error("expected a reason to be recorded")
	}
}

func TestMap_EmptyPhoneFails(t *testing.T) {
	m := New(Config{PhoneField: "phone", ProductName: "acme"})
	doc := document.Object(map[string]document.Value{
		"phone": document.String("   "),
	})

	result := m.Map(doc)
	if result.OK {
		t.Fatal("expected failure when phone field is blank")
	}
}

func TestMap_SuccessIncludesProductAndPhone(t *testing.T) {
	m := New(Config{PhoneField: "phone", ProductName: "acme-insurance"})
	doc := document.Object(map[string]document.Value{
		"phone": document.String("5551234567"),
	})

	result := m.Map(doc)
	if !result.OK {
		t.Fatalf("expected success, got reasons: %v", result.Reasons)
	}

	phone, ok := result.CustomerPayload.Get("phone")
	if !ok {
		t.Fatal("expected phone in customer payload")
	}
	if s, _ := phone.IsString(); s != "5551234567" {
		t.Errorf("expected phone 5551234567, got %q", s)
	}

	productName, ok := result.CustomerPayload.Get("product.name")
	if !ok {
		t.Fatal("expected product.name in customer payload")
	}
	if s, _ := productName.IsString(); s != "acme-insurance" {
		t.Errorf("expected product name acme-insurance, got %q", s)
	}
}

func TestMap_OptionalAttributeFailureIsOmittedNotFatal(t *testing.T) {
	m := New(Config{
		PhoneField:  "phone",
		ProductName: "acme",
		AttributeDefs: map[string]AttributeDef{
			"income": {Kind: KindRange, Required: false, Min: ptr(0), Max: ptr(1000000)},
		},
	})
	doc := document.Object(map[string]document.Value{
		"phone":  document.String("5551234567"),
		"income": document.String("not-a-number"),
	})

	result := m.Map(doc)
	if !result.OK {
		t.Fatalf("expected success despite bad optional attribute, got reasons: %v", result.Reasons)
	}
	if len(result.Omitted) != 1 || result.Omitted[0] != "income" {
		t.Errorf("expected income to be omitted, got %v", result.Omitted)
	}
	if _, ok := result.CustomerPayload.Get("income"); ok {
		t.Error("expected income to be absent from customer payload")
	}
}

func TestMap_RequiredAttributeFailureFailsWholeMapping(t *testing.T) {
	m := New(Config{
		PhoneField:  "phone",
		ProductName: "acme",
		AttributeDefs: map[string]AttributeDef{
			"coverage_type": {Kind: KindDropdown, Required: true, Options: []string{"auto", "home"}},
		},
	})
	doc := document.Object(map[string]document.Value{
		"phone":         document.String("5551234567"),
		"coverage_type": document.String("life"),
	})

	result := m.Map(doc)
	if result.OK {
		t.Fatal("expected failure when required attribute fails validation")
	}
	if len(result.Reasons) == 0 {
		t.Error("expected a reason for the required attribute failure")
	}
}

func TestMap_TextAttributeTrimsWhitespace(t *testing.T) {
	m := New(Config{
		PhoneField:  "phone",
		ProductName: "acme",
		AttributeDefs: map[string]AttributeDef{
			"notes": {Kind: KindText, Required: false},
		},
	})
	doc := document.Object(map[string]document.Value{
		"phone": document.String("5551234567"),
		"notes": document.String("  looking for a quote  "),
	})

	result := m.Map(doc)
	if !result.OK {
		t.Fatalf("expected success, got reasons: %v", result.Reasons)
	}
	notes, ok := result.CustomerPayload.Get("notes")
	if !ok {
		t.Fatal("expected notes in customer payload")
	}
	if s, _ := notes.IsString(); s != "looking for a quote" {
		t.Errorf("expected trimmed notes, got %q", s)
	}
}

func TestMap_RangeAttributeRejectsOutOfBounds(t *testing.T) {
	m := New(Config{
		PhoneField:  "phone",
		ProductName: "acme",
		AttributeDefs: map[string]AttributeDef{
			"age": {Kind: KindRange, Required: false, Min: ptr(18), Max: ptr(99)},
		},
	})
	doc := document.Object(map[string]document.Value{
		"phone": document.String("5551234567"),
		"age":   document.Number(12),
	})

	result := m.Map(doc)
	if !result.OK {
		t.Fatalf("expected overall success with out-of-range optional attribute omitted, got reasons: %v", result.Reasons)
	}
	if len(result.Omitted) != 1 || result.Omitted[0] != "age" {
		t.Errorf("expected age to be omitted, got %v", result.Omitted)
	}
}

func TestMap_UnconfiguredAttributePassesThrough(t *testing.T) {
	m := New(Config{PhoneField: "phone", ProductName: "acme"})
	doc := document.Object(map[string]document.Value{
		"phone":  document.String("5551234567"),
		"source": document.String("web-form"),
	})

	result := m.Map(doc)
	if !result.OK {
		t.Fatalf("expected success, got reasons: %v", result.Reasons)
	}
	source, ok := result.CustomerPayload.Get("source")
	if !ok {
		t.Fatal("expected unconfigured attribute to pass through")
	}
	if s, _ := source.IsString(); s != "web-form" {
		t.Errorf("expected source web-form, got %q", s)
	}
}
