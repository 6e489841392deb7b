package fieldx

import "strings"

// Field is one labeled value produced by an extraction capability or typed
// in by the user. Labels are free text and need not match any template
// variable spelling.
type Field struct {
	Label      string  `json:"label"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

const (
	// RefinedConfidence marks a value produced by a user-directed refinement;
	// it outranks anything bulk extraction returns.
	RefinedConfidence = 0.99

	// ManualConfidence marks a value typed in by the user.
	ManualConfidence = 1.0
)

// emptySentinels are answers extraction capabilities give instead of a value.
var emptySentinels = map[string]struct{}{
	"":              {},
	"null":          {},
	"nil":           {},
	"none":          {},
	"n/a":           {},
	"na":            {},
	"-":             {},
	"--":            {},
	"—":             {},
	"___":           {},
	"unknown":       {},
	"not found":     {},
	"not_found":     {},
	"not available": {},
	"no encontrado": {},
	"sin datos":     {},
	"no disponible": {},
	"desconocido":   {},
}

// IsEmptyValue reports whether v carries no usable information.
func IsEmptyValue(v string) bool {
	_, ok := emptySentinels[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

func clampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// Clone returns a copy of fields that shares no backing array with the input.
func Clone(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}
