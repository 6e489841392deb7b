package fieldx

import (
	"strings"
	"sync"
)

// Merge applies field to fields and returns the new slice. An existing
// entry with the same label (verbatim first, then by normalized label) is
// overwritten in place; otherwise the field is appended. The input slice is
// not modified.
func Merge(fields []Field, field Field) []Field {
	field.Confidence = clampConfidence(field.Confidence)
	out := Clone(fields)

	if i := indexOf(out, field.Label); i >= 0 {
		out[i].Value = field.Value
		out[i].Confidence = field.Confidence
		return out
	}
	return append(out, field)
}

func indexOf(fields []Field, label string) int {
	for i, f := range fields {
		if f.Label == label {
			return i
		}
	}
	key := Normalize(label)
	if key == "" {
		return -1
	}
	for i, f := range fields {
		if Normalize(f.Label) == key {
			return i
		}
	}
	return -1
}

// Result is the current best-known extraction for one document review
// session. Every mutation goes through its lock, so readers only ever see
// fully merged states. Once sealed it ignores further writes.
type Result struct {
	mu       sync.RWMutex
	fields   []Field
	version  uint64
	sealed   bool
	onChange []func(version uint64, fields []Field)
}

// NewResult creates a Result seeded with a copy of fields.
func NewResult(fields []Field) *Result {
	return &Result{fields: Clone(fields)}
}

// Snapshot returns a copy of the current fields and their version.
func (r *Result) Snapshot() ([]Field, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Clone(r.fields), r.version
}

// Fields returns a copy of the current fields.
func (r *Result) Fields() []Field {
	fields, _ := r.Snapshot()
	return fields
}

// Get returns the field registered under label, matching verbatim first and
// by normalized label second.
func (r *Result) Get(label string) (Field, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := indexOf(r.fields, label); i >= 0 {
		return r.fields[i], true
	}
	return Field{}, false
}

// Merge applies field atomically. It reports false when the result is
// sealed and the write was dropped.
func (r *Result) Merge(field Field) bool {
	return r.apply(func(fields []Field) []Field { return Merge(fields, field) })
}

// Replace swaps the whole field set, e.g. after a bulk extraction.
func (r *Result) Replace(fields []Field) bool {
	return r.apply(func([]Field) []Field { return Clone(fields) })
}

// Remove deletes the field registered under label.
func (r *Result) Remove(label string) bool {
	return r.apply(func(fields []Field) []Field {
		i := indexOf(fields, label)
		if i < 0 {
			return fields
		}
		out := make([]Field, 0, len(fields)-1)
		out = append(out, fields[:i]...)
		return append(out, fields[i+1:]...)
	})
}

func (r *Result) apply(fn func([]Field) []Field) bool {
	r.mu.Lock()
	if r.sealed {
		r.mu.Unlock()
		return false
	}
	r.fields = fn(r.fields)
	r.version++
	version, fields := r.version, Clone(r.fields)
	listeners := r.onChange
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(version, fields)
	}
	return true
}

// OnChange registers a listener called after every successful mutation with
// a private copy of the new state.
func (r *Result) OnChange(fn func(version uint64, fields []Field)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

// Seal makes the result read-only. Late writers (refinements that finish
// after their session was closed) are dropped.
func (r *Result) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether Seal was called.
func (r *Result) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Labels returns the labels in order, trimmed.
func (r *Result) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = strings.TrimSpace(f.Label)
	}
	return out
}
