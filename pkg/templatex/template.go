package templatex

import (
	"strings"
	"time"

	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/kernel"
)

// Template is a document body containing {{variable}} placeholders. Its
// variables are derived from Markup and never stored separately.
type Template struct {
	ID        kernel.TemplateID `json:"id" db:"id"`
	Name      string            `json:"name" db:"name"`
	Markup    string            `json:"markup" db:"markup"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

// NewTemplate validates name and markup and returns a template with a fresh ID.
func NewTemplate(name, markup string) (*Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidTemplate().WithDetail("field", "name")
	}
	if strings.TrimSpace(markup) == "" {
		return nil, ErrInvalidTemplate().WithDetail("field", "markup")
	}

	now := time.Now().UTC()
	return &Template{
		ID:        kernel.NewTemplateID(),
		Name:      name,
		Markup:    markup,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Variables returns the template's placeholder names.
func (t *Template) Variables() []string {
	return ParseVariables(t.Markup)
}

// Fill substitutes fields into the template.
func (t *Template) Fill(fields []fieldx.Field) Report {
	return SubstituteReport(t.Markup, fields)
}
