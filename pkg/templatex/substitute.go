package templatex

import (
	"strings"

	"github.com/Abraxas-365/docfill/pkg/fieldx"
)

// UnfilledMarker replaces every placeholder no field resolves to.
const UnfilledMarker = "___"

// Report describes one substitution pass.
type Report struct {
	Output    string   `json:"output"`
	Matched   []string `json:"matched"`
	Unmatched []string `json:"unmatched"`
}

// Complete reports whether every variable was filled.
func (r Report) Complete() bool { return len(r.Unmatched) == 0 }

// Substitute replaces every placeholder in markup with the value resolved
// from fields, or UnfilledMarker when none resolves. Text outside
// placeholders is returned untouched.
func Substitute(markup string, fields []fieldx.Field) string {
	return SubstituteReport(markup, fields).Output
}

// SubstituteReport is Substitute plus the list of variables that were and
// were not filled, each in order of first appearance.
func SubstituteReport(markup string, fields []fieldx.Field) Report {
	table := fieldx.BuildMatchTable(fields)

	report := Report{Matched: []string{}, Unmatched: []string{}}
	seen := make(map[string]struct{})

	report.Output = placeholderPattern.ReplaceAllStringFunc(markup, func(token string) string {
		name := strings.TrimSpace(token[2 : len(token)-2])
		if name == "" {
			return token
		}

		value, ok := table.Resolve(name)
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			if ok {
				report.Matched = append(report.Matched, name)
			} else {
				report.Unmatched = append(report.Unmatched, name)
			}
		}
		if !ok {
			return UnfilledMarker
		}
		return value
	})
	return report
}
