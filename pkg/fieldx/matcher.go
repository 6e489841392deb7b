package fieldx

import "strings"

// MatchTable maps several spellings of every extracted label to its value.
// Build a fresh table for every substitution pass; it is never updated in
// place.
type MatchTable struct {
	values map[string]string
	// keys holds registered keys in first-registration order for the
	// normalized fallback scan.
	keys []string
}

// BuildMatchTable registers each field's value under its normalized label,
// its lowercased label and its verbatim label. A later field overwrites an
// earlier one registered under the same key.
func BuildMatchTable(fields []Field) MatchTable {
	t := MatchTable{values: make(map[string]string, len(fields)*3)}
	for _, f := range fields {
		for _, k := range [...]string{Normalize(f.Label), strings.ToLower(f.Label), f.Label} {
			if _, seen := t.values[k]; !seen {
				t.keys = append(t.keys, k)
			}
			t.values[k] = f.Value
		}
	}
	return t
}

// Resolve finds the value for a template variable. It tries the raw name,
// its lowercase form and its normalized form as exact keys, then falls back
// to normalizing every registered key and returning the first that equals
// the normalized name. As a last resort keys are compared as unordered
// token sets after synonym folding, so "Monto Total" resolves
// total_amount. ok is false when nothing matches.
func (t MatchTable) Resolve(name string) (value string, ok bool) {
	if len(t.values) == 0 {
		return "", false
	}

	normalized := Normalize(name)
	for _, k := range [...]string{name, strings.ToLower(name), normalized} {
		if v, found := t.values[k]; found {
			return v, true
		}
	}

	for _, k := range t.keys {
		if Normalize(k) == normalized {
			return t.values[k], true
		}
	}

	if want := tokenKey(name); want != "" {
		for _, k := range t.keys {
			if tokenKey(k) == want {
				return t.values[k], true
			}
		}
	}
	return "", false
}

// Len returns the number of registered keys.
func (t MatchTable) Len() int { return len(t.keys) }

// Resolve is a convenience for one-off lookups over fields.
func Resolve(fields []Field, name string) (string, bool) {
	return BuildMatchTable(fields).Resolve(name)
}
