package templatex_test

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/Abraxas-365/docfill/pkg/fieldx"
	"github.com/Abraxas-365/docfill/pkg/kernel"
	"github.com/Abraxas-365/docfill/pkg/templatex"
)

func TestParseVariables(t *testing.T) {
	cases := []struct {
		markup string
		want   []string
	}{
		{"{{a}} .. {{a}} .. {{b}}", []string{"a", "b"}},
		{"<p>{{ total_amount }}</p><p>{{total_amount}}</p>", []string{"total_amount"}},
		{"no placeholders here", []string{}},
		{"{{}} {{   }} {{x}}", []string{"x"}},
		{"{{{nested}}}", []string{"nested"}},
		{"{{Número de Factura}} / {{fecha}}", []string{"Número de Factura", "fecha"}},
	}
	for _, c := range cases {
		got := templatex.ParseVariables(c.markup)
		if got == nil {
			t.Fatalf("ParseVariables(%q) returned nil", c.markup)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("ParseVariables(%q) = %q, want %q", c.markup, got, c.want)
		}
	}
}

func TestSubstitute(t *testing.T) {
	fields := []fieldx.Field{
		{Label: "Monto Total", Value: "$450.00", Confidence: 0.9},
	}

	if got := templatex.Substitute("Total: {{total_amount}}", fields); got != "Total: $450.00" {
		t.Fatalf("got %q", got)
	}
	if got := templatex.Substitute("Total: {{total_amount}}", nil); got != "Total: ___" {
		t.Fatalf("got %q", got)
	}
}

func TestSubstituteReplacesEveryInstance(t *testing.T) {
	markup := "<b>{{cliente}}</b> owes {{ total }}. Again: {{cliente}}, {{missing}}."
	fields := []fieldx.Field{
		{Label: "Cliente", Value: "ACME"},
		{Label: "TOTAL", Value: "10"},
	}

	report := templatex.SubstituteReport(markup, fields)
	want := "<b>ACME</b> owes 10. Again: ACME, ___."
	if report.Output != want {
		t.Fatalf("output = %q, want %q", report.Output, want)
	}
	if strings.Contains(report.Output, "{{") {
		t.Fatal("placeholder survived substitution")
	}
	if !reflect.DeepEqual(report.Matched, []string{"cliente", "total"}) {
		t.Fatalf("matched = %v", report.Matched)
	}
	if !reflect.DeepEqual(report.Unmatched, []string{"missing"}) || report.Complete() {
		t.Fatalf("unmatched = %v", report.Unmatched)
	}
}

func TestSubstituteIsDeterministic(t *testing.T) {
	markup := "{{a}}{{b}}{{a}}"
	fields := []fieldx.Field{{Label: "a", Value: "1"}, {Label: "A", Value: "2"}, {Label: "b", Value: "3"}}
	first := templatex.Substitute(markup, fields)
	for i := 0; i < 10; i++ {
		if got := templatex.Substitute(markup, fields); got != first {
			t.Fatalf("run %d: %q != %q", i, got, first)
		}
	}
}

func TestColorMap(t *testing.T) {
	vars := []string{"a", "b", "c"}
	m := templatex.ColorMap(vars)
	if len(m) != 3 || m["a"] != templatex.Palette[0] || m["c"] != templatex.Palette[2] {
		t.Fatalf("unexpected map %v", m)
	}
	if !reflect.DeepEqual(m, templatex.ColorMap(vars)) {
		t.Fatal("ColorMap is not deterministic")
	}

	many := make([]string, len(templatex.Palette)+1)
	for i := range many {
		many[i] = string(rune('a' + i))
	}
	colors := templatex.VariableColors(many)
	if colors[len(many)-1].Color != templatex.Palette[0] {
		t.Fatal("palette does not wrap")
	}
}

type memRepo struct {
	mu   sync.Mutex
	data map[kernel.TemplateID]templatex.Template
}

func newMemRepo() *memRepo {
	return &memRepo{data: map[kernel.TemplateID]templatex.Template{}}
}

func (r *memRepo) Save(_ context.Context, t templatex.Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[t.ID] = t
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id kernel.TemplateID) (*templatex.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return nil, templatex.ErrTemplateNotFound()
	}
	return &t, nil
}

func (r *memRepo) List(_ context.Context, opts kernel.PaginationOptions) (kernel.Paginated[templatex.Template], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]templatex.Template, 0, len(r.data))
	for _, t := range r.data {
		items = append(items, t)
	}
	return kernel.NewPaginated(items, opts.Page, opts.PageSize, len(items)), nil
}

func (r *memRepo) Delete(_ context.Context, id kernel.TemplateID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, id)
	return nil
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := templatex.NewService(newMemRepo(), nil)

	if _, err := svc.Create(ctx, "  ", "{{a}}"); !errx.HasCode(err, templatex.CodeInvalidTemplate) {
		t.Fatalf("expected invalid template error, got %v", err)
	}

	tpl, err := svc.Create(ctx, "Invoice", "Factura {{numero_de_factura}} total {{total_amount}}")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	vars, err := svc.Variables(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("Variables: %v", err)
	}
	if len(vars) != 2 || vars[0].Name != "numero_de_factura" || vars[0].Color == "" {
		t.Fatalf("vars = %+v", vars)
	}

	report, err := svc.Render(ctx, tpl.ID, []fieldx.Field{
		{Label: "Número de Factura", Value: "F001-9"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if report.Output != "Factura F001-9 total ___" {
		t.Fatalf("output = %q", report.Output)
	}

	updated, err := svc.Update(ctx, tpl.ID, "", "{{x}}")
	if err != nil || updated.Name != "Invoice" || updated.Markup != "{{x}}" {
		t.Fatalf("Update = %+v, %v", updated, err)
	}

	if err := svc.Delete(ctx, tpl.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Get(ctx, tpl.ID); !errx.HasCode(err, templatex.CodeTemplateNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
