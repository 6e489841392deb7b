package ocr

import (
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/Abraxas-365/docfill/pkg/fieldx"
)

// DefaultConfidence is assigned to fields the provider returned without one.
const DefaultConfidence = 0.8

// ParseReport lists what lenient parsing repaired.
type ParseReport struct {
	Dropped []string
}

// ParseResponse turns a provider's text answer into an Extraction. The text
// may wrap the JSON in prose or a markdown fence. Alternative shapes (a bare
// array of fields, or a flat label->value object) are accepted, values of
// any scalar type become strings, and 0-100 confidences are rescaled.
//
// The normalized document is validated against the extraction schema. In
// strict mode a mismatch is an error; otherwise offending fields are dropped
// and reported. With target variables set in strict mode, fields that do not
// resolve to a target are discarded and the rest are relabeled with the
// target's name.
func ParseResponse(text string, opts *Options) (*Extraction, ParseReport, error) {
	var report ParseReport

	body, err := extractJSON(text)
	if err != nil {
		return nil, report, ErrMalformedOutput(err).WithDetail("raw", truncate(text, 200))
	}

	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, report, ErrMalformedOutput(err).WithDetail("raw", truncate(body, 200))
	}

	doc := normalizeDocument(decoded)
	if err := validateDocument(doc, opts.Strict, &report); err != nil {
		return nil, report, err
	}

	ext := &Extraction{Summary: stringOf(doc["summary"])}
	for _, item := range doc["fields"].([]any) {
		m := item.(map[string]any)
		ext.Fields = append(ext.Fields, fieldx.Field{
			Label:      strings.TrimSpace(m["label"].(string)),
			Value:      strings.TrimSpace(m["value"].(string)),
			Confidence: m["confidence"].(float64),
		})
	}

	if opts.Strict && len(opts.TargetVariables) > 0 {
		ext.Fields = ScopeToTargets(ext.Fields, opts.TargetVariables)
	}
	return ext, report, nil
}

// ScopeToTargets keeps the fields that resolve to one of targets, relabeled
// with that target. A lone field facing a lone target is kept regardless.
func ScopeToTargets(fields []fieldx.Field, targets []string) []fieldx.Field {
	out := make([]fieldx.Field, 0, len(targets))
	taken := make(map[string]bool, len(targets))

	for _, t := range targets {
		for _, f := range fields {
			if _, ok := fieldx.Resolve([]fieldx.Field{f}, t); ok && !taken[t] {
				f.Label = t
				out = append(out, f)
				taken[t] = true
			}
		}
	}

	if len(out) == 0 && len(targets) == 1 && len(fields) == 1 {
		f := fields[0]
		f.Label = targets[0]
		out = append(out, f)
	}
	return out
}

func extractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", errors.New("no JSON value in response")
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return "", errors.New("unterminated JSON value in response")
	}
	return s[start : end+1], nil
}

// normalizeDocument rewrites any accepted response shape into
// {"fields": [{"label", "value", "confidence"}], "summary"}.
func normalizeDocument(v any) map[string]any {
	doc := map[string]any{"fields": []any{}}

	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		if s, ok := t["summary"]; ok {
			doc["summary"] = stringOf(s)
		}
		if f, ok := t["fields"]; ok {
			switch ft := f.(type) {
			case []any:
				items = ft
			case map[string]any:
				items = flatPairs(ft)
			}
		} else {
			delete(t, "summary")
			items = flatPairs(t)
		}
	}

	fields := make([]any, 0, len(items))
	for _, item := range items {
		fields = append(fields, normalizeField(item))
	}
	doc["fields"] = fields
	return doc
}

func flatPairs(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// map order is random; keep output stable
	sort.Strings(keys)

	out := make([]any, 0, len(m))
	for _, k := range keys {
		out = append(out, map[string]any{"label": k, "value": m[k]})
	}
	return out
}

func normalizeField(item any) any {
	m, ok := item.(map[string]any)
	if !ok {
		return item
	}

	out := map[string]any{
		"label":      firstOf(m, "label", "name", "key", "field"),
		"value":      firstOf(m, "value", "text", "raw_text"),
		"confidence": firstOf(m, "confidence", "score"),
	}

	if label, ok := out["label"].(string); ok {
		out["label"] = strings.TrimSpace(label)
	}

	switch v := out["value"].(type) {
	case nil:
		out["value"] = ""
	case string:
	case float64:
		out["value"] = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		out["value"] = strconv.FormatBool(v)
	case map[string]any:
		// {"value": {"value": x, "confidence": y}}
		inner := normalizeField(v).(map[string]any)
		out["value"] = inner["value"]
		if out["confidence"] == nil {
			out["confidence"] = inner["confidence"]
		}
	}

	switch c := out["confidence"].(type) {
	case nil:
		out["confidence"] = DefaultConfidence
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(c), "%"), 64); err == nil {
			out["confidence"] = rescale(f)
		}
	case float64:
		out["confidence"] = rescale(c)
	}
	return out
}

func rescale(c float64) float64 {
	if c > 1 && c <= 100 {
		return c / 100
	}
	return c
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func validateDocument(doc map[string]any, strict bool, report *ParseReport) error {
	schemas, err := compiled()
	if err != nil {
		return ocrErrors.NewWithCause(CodeSchemaMismatch, err)
	}

	if err := schemas.doc.Validate(doc); err == nil {
		return nil
	} else if strict {
		return ocrErrors.NewWithCause(CodeSchemaMismatch, err)
	}

	kept := make([]any, 0)
	for _, item := range doc["fields"].([]any) {
		if err := schemas.item.Validate(item); err != nil {
			report.Dropped = append(report.Dropped, describe(item))
			continue
		}
		kept = append(kept, item)
	}
	doc["fields"] = kept
	if _, ok := doc["summary"].(string); !ok {
		delete(doc, "summary")
	}

	if err := schemas.doc.Validate(doc); err != nil {
		return ocrErrors.NewWithCause(CodeSchemaMismatch, err)
	}
	return nil
}

func describe(item any) string {
	if m, ok := item.(map[string]any); ok {
		if l, ok := m["label"].(string); ok && l != "" {
			return l
		}
	}
	b, _ := json.Marshal(item)
	return truncate(string(b), 60)
}

func stringOf(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
