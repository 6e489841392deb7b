package fieldx_test

import (
	"sync"
	"testing"

	"github.com/Abraxas-365/docfill/pkg/fieldx"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Número de Factura":   "numero_de_factura",
		"numero_de_factura":   "numero_de_factura",
		"NUMERO DE FACTURA":   "numero_de_factura",
		"  Fecha - Emisión  ": "_fecha_emision_",
		"R.U.C.":              "ruc",
		"Total (S/.)":         "total_s",
		"":                    "",
	}
	for in, want := range cases {
		if got := fieldx.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, in := range []string{"Número de Factura", "a _ b", "ÀÉÎ--õü", "tab\tsep", "x__y"} {
		once := fieldx.Normalize(in)
		if twice := fieldx.Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestResolve(t *testing.T) {
	fields := []fieldx.Field{
		{Label: "Número de Factura", Value: "F001-123", Confidence: 0.9},
		{Label: "Monto Total", Value: "$450.00", Confidence: 0.8},
		{Label: "Cliente", Value: "ACME", Confidence: 0.7},
	}
	table := fieldx.BuildMatchTable(fields)

	cases := []struct {
		name string
		want string
		ok   bool
	}{
		{"numero_de_factura", "F001-123", true},
		{"Número de Factura", "F001-123", true},
		{"NUMERO DE FACTURA", "F001-123", true},
		{"cliente", "ACME", true},
		{"total_amount", "$450.00", true},
		{"invoice_number", "F001-123", true},
		{"due_date", "", false},
	}
	for _, c := range cases {
		got, ok := table.Resolve(c.name)
		if ok != c.ok || got != c.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", c.name, got, ok, c.want, c.ok)
		}
	}

	if _, ok := fieldx.BuildMatchTable(nil).Resolve("anything"); ok {
		t.Fatal("empty table resolved a variable")
	}
}

func TestBuildMatchTableLaterFieldWins(t *testing.T) {
	table := fieldx.BuildMatchTable([]fieldx.Field{
		{Label: "Total", Value: "1"},
		{Label: "total", Value: "2"},
	})
	if v, _ := table.Resolve("total"); v != "2" {
		t.Fatalf("Resolve(total) = %q, want 2", v)
	}
}

func TestMerge(t *testing.T) {
	base := []fieldx.Field{
		{Label: "Monto Total", Value: "$400.00", Confidence: 0.6},
		{Label: "Cliente", Value: "ACME", Confidence: 0.7},
	}

	got := fieldx.Merge(base, fieldx.Field{Label: "monto_total", Value: "$450.00", Confidence: fieldx.RefinedConfidence})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Label != "Monto Total" || got[0].Value != "$450.00" || got[0].Confidence != 0.99 {
		t.Fatalf("merged field = %+v", got[0])
	}
	if got[1] != base[1] {
		t.Fatalf("unrelated field changed: %+v", got[1])
	}
	if base[0].Value != "$400.00" {
		t.Fatal("Merge mutated its input")
	}

	got = fieldx.Merge(got, fieldx.Field{Label: "Fecha", Value: "2024-01-01", Confidence: 3})
	if len(got) != 3 || got[2].Confidence != 1 {
		t.Fatalf("append with clamped confidence failed: %+v", got)
	}
}

func TestResultSealDropsWrites(t *testing.T) {
	r := fieldx.NewResult([]fieldx.Field{{Label: "Total", Value: "1", Confidence: 0.5}})

	var versions []uint64
	r.OnChange(func(v uint64, _ []fieldx.Field) { versions = append(versions, v) })

	if !r.Merge(fieldx.Field{Label: "Total", Value: "2", Confidence: 0.99}) {
		t.Fatal("Merge on open result returned false")
	}
	r.Seal()
	if r.Merge(fieldx.Field{Label: "Total", Value: "3", Confidence: 0.99}) {
		t.Fatal("Merge on sealed result returned true")
	}

	f, ok := r.Get("total")
	if !ok || f.Value != "2" {
		t.Fatalf("Get(total) = %+v, %v", f, ok)
	}
	if len(versions) != 1 || versions[0] != 1 {
		t.Fatalf("versions = %v, want [1]", versions)
	}
}

func TestResultConcurrentMerges(t *testing.T) {
	r := fieldx.NewResult(nil)
	labels := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	var wg sync.WaitGroup
	for _, l := range labels {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			r.Merge(fieldx.Field{Label: label, Value: label, Confidence: 0.99})
		}(l)
	}
	wg.Wait()

	fields, version := r.Snapshot()
	if len(fields) != len(labels) || version != uint64(len(labels)) {
		t.Fatalf("got %d fields at version %d", len(fields), version)
	}
}

func TestResultRemove(t *testing.T) {
	r := fieldx.NewResult([]fieldx.Field{{Label: "A"}, {Label: "B"}})
	r.Remove("a")
	if labels := r.Labels(); len(labels) != 1 || labels[0] != "B" {
		t.Fatalf("labels = %v", labels)
	}
}

func TestIsEmptyValue(t *testing.T) {
	for _, v := range []string{"", "  ", "null", "N/A", "none", "No encontrado", "___"} {
		if !fieldx.IsEmptyValue(v) {
			t.Errorf("IsEmptyValue(%q) = false", v)
		}
	}
	for _, v := range []string{"0", "$0.00", "no", "ACME"} {
		if fieldx.IsEmptyValue(v) {
			t.Errorf("IsEmptyValue(%q) = true", v)
		}
	}
}
