package ocr

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the instruction sent alongside the image.
func BuildPrompt(opts *Options) string {
	var b strings.Builder

	b.WriteString("You read values off a document image and return them as JSON.\n")
	if opts.DocumentType != "" {
		fmt.Fprintf(&b, "The document is a %s.\n", opts.DocumentType)
	}
	if len(opts.LanguageHints) > 0 {
		fmt.Fprintf(&b, "Expected languages: %s.\n", strings.Join(opts.LanguageHints, ", "))
	}

	switch {
	case opts.Strict && len(opts.TargetVariables) > 0:
		b.WriteString("Extract ONLY these fields, using each name exactly as written as the label:\n")
		for _, v := range opts.TargetVariables {
			fmt.Fprintf(&b, "- %s\n", v)
		}
		b.WriteString("Do not return any other field. ")
		b.WriteString("If a field is not legible in the image return an empty string as its value.\n")
	case len(opts.TargetVariables) > 0:
		b.WriteString("Look in particular for these fields and use the names as labels when they apply:\n")
		for _, v := range opts.TargetVariables {
			fmt.Fprintf(&b, "- %s\n", v)
		}
		b.WriteString("You may also return other clearly labeled fields you find.\n")
	default:
		b.WriteString("Return every labeled field you can read, using the label printed on the document.\n")
	}

	b.WriteString("Copy values exactly as printed, including currency symbols and separators. ")
	b.WriteString("Confidence is a number between 0 and 1.\n")
	if opts.Summary {
		b.WriteString("Also write a one-sentence summary of the document.\n")
	}
	b.WriteString(`Respond with JSON only, in the form {"fields":[{"label":"...","value":"...","confidence":0.0}],"summary":"..."}.`)
	return b.String()
}
