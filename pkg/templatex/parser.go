package templatex

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {{name}}. Braces cannot appear inside a name and
// there is no escape sequence.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// ParseVariables returns the distinct placeholder names in markup in order of
// first appearance, trimmed of surrounding whitespace. Placeholders whose
// name is blank are ignored. The result is never nil.
func ParseVariables(markup string) []string {
	vars := []string{}
	seen := make(map[string]struct{})

	for _, m := range placeholderPattern.FindAllStringSubmatch(markup, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		vars = append(vars, name)
	}
	return vars
}
