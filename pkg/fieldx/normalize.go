package fieldx

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns the canonical key of a human-readable label so that
// "Número de Factura", "numero_de_factura" and "NUMERO DE FACTURA" compare
// equal. Steps: strip accents, lowercase, fold runs of whitespace/hyphens
// into one underscore, drop anything outside [a-z0-9_].
func Normalize(label string) string {
	var b strings.Builder
	b.Grow(len(label))

	inSep := false
	for _, r := range norm.NFD.String(label) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToLower(r)

		if unicode.IsSpace(r) || r == '-' {
			if !inSep {
				b.WriteByte('_')
				inSep = true
			}
			continue
		}
		inSep = false

		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
