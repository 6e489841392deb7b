package fieldx

import (
	"sort"
	"strings"
)

// synonyms folds label vocabulary (Spanish and common abbreviations) onto one
// English token so "Monto Total" and "total_amount" share a token set.
var synonyms = map[string]string{
	"monto":       "amount",
	"importe":     "amount",
	"amt":         "amount",
	"fecha":       "date",
	"numero":      "number",
	"nro":         "number",
	"num":         "number",
	"no":          "number",
	"nr":          "number",
	"factura":     "invoice",
	"inv":         "invoice",
	"cliente":     "client",
	"customer":    "client",
	"nombre":      "name",
	"direccion":   "address",
	"domicilio":   "address",
	"addr":        "address",
	"telefono":    "phone",
	"tel":         "phone",
	"telephone":   "phone",
	"correo":      "email",
	"mail":        "email",
	"empresa":     "company",
	"proveedor":   "vendor",
	"supplier":    "vendor",
	"impuesto":    "tax",
	"iva":         "tax",
	"vat":         "tax",
	"descuento":   "discount",
	"cantidad":    "quantity",
	"qty":         "quantity",
	"precio":      "price",
	"descripcion": "description",
	"desc":        "description",
	"vencimiento": "due",
	"emision":     "issue",
	"pago":        "payment",
	"moneda":      "currency",
	"ciudad":      "city",
	"pais":        "country",
	"codigo":      "code",
	"cod":         "code",
	"referencia":  "reference",
	"ref":         "reference",
}

var stopwords = map[string]struct{}{
	"de": {}, "del": {}, "la": {}, "el": {}, "los": {}, "las": {}, "y": {},
	"of": {}, "the": {}, "and": {},
}

// tokenKey reduces a label to its sorted, de-duplicated set of canonical
// tokens. Returns "" when nothing meaningful is left.
func tokenKey(label string) string {
	parts := strings.FieldsFunc(Normalize(label), func(r rune) bool { return r == '_' })

	seen := make(map[string]struct{}, len(parts))
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if _, stop := stopwords[p]; stop {
			continue
		}
		if s, ok := synonyms[p]; ok {
			p = s
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		tokens = append(tokens, p)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, "_")
}
