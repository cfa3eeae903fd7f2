// Package validator applies the gateway's fixed-order business rules to a
// raw lead document: geographic gate, homeowner gate, then required-field
// presence. The first failing rule determines the rejection code.
package validator

import (
	"regexp"

	"github.com/Priya8975/leadgateway/internal/document"
)

// Config carries the rule parameters. All three are read from the
// gateway's configuration surface; the fail-fast ordering itself is
// fixed by this package, not configurable.
type Config struct {
	ZipField         string // dotted path, e.g. "zipcode"
	ZipPattern       *regexp.Regexp
	ZipRejectCode    string

	OwnerField       string // dotted path, e.g. "house.is_owner"
	NotOwnerRejectCode string

	RequiredFields      []string // dotted paths
	MissingFieldRejectCode string
}

// Result is the outcome of Validate: either Pass is true, or Code names
// the rejection reason.
type Result struct {
	Pass bool
	Code string
}

type Validator struct {
	cfg Config
}

func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate runs the three gates in fixed order against raw, stopping at the
// first failure.
func (v *Validator) Validate(raw document.Value) Result {
	if res := v.checkZip(raw); !res.Pass {
		return res
	}
	if res := v.checkOwner(raw); !res.Pass {
		return res
	}
	if res := v.checkRequired(raw); !res.Pass {
		return res
	}
	return Result{Pass: true}
}

func (v *Validator) checkZip(raw document.Value) Result {
	leaf, ok := raw.Get(v.cfg.ZipField)
	if !ok {
		return Result{Code: v.cfg.ZipRejectCode}
	}
	s, ok := leaf.IsString()
	if !ok {
		return Result{Code: v.cfg.ZipRejectCode}
	}
	if v.cfg.ZipPattern == nil || !v.cfg.ZipPattern.MatchString(s) {
		return Result{Code: v.cfg.ZipRejectCode}
	}
	return Result{Pass: true}
}

func (v *Validator) checkOwner(raw document.Value) Result {
	leaf, ok := raw.Get(v.cfg.OwnerField)
	if !ok || !leaf.IsTrue() {
		return Result{Code: v.cfg.NotOwnerRejectCode}
	}
	return Result{Pass: true}
}

func (v *Validator) checkRequired(raw document.Value) Result {
	for _, field := range v.cfg.RequiredFields {
		leaf, ok := raw.Get(field)
		if !ok || leaf.Kind == document.KindNull {
			return Result{Code: v.cfg.MissingFieldRejectCode}
		}
		if s, isStr := leaf.IsString(); isStr && s == "" {
			return Result{Code: v.cfg.MissingFieldRejectCode}
		}
	}
	return Result{Pass: true}
}
