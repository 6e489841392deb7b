package errx_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Abraxas-365/docfill/pkg/errx"
)

var (
	testRegistry = errx.NewRegistry("TEST")
	errBoom      = testRegistry.Register("BOOM", errx.TypeExternal, 0, "boom")
)

func TestRegistry_PrefixesCodeAndDefaultsStatus(t *testing.T) {
	e := testRegistry.New(errBoom)
	if e.Code != "TEST_BOOM" {
		t.Fatalf("expected TEST_BOOM, got %s", e.Code)
	}
	if e.HTTPStatus != 502 {
		t.Fatalf("expected 502 for external errors, got %d", e.HTTPStatus)
	}
}

func TestHasCode_FindsWrappedError(t *testing.T) {
	cause := errors.New("network down")
	e := testRegistry.NewWithCause(errBoom, cause).WithDetail("hint_id", "h1")
	wrapped := fmt.Errorf("refine: %w", e)

	if !errx.HasCode(wrapped, errBoom) {
		t.Fatal("expected wrapped error to carry TEST_BOOM")
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("expected cause to remain reachable")
	}
}

func TestWrap_PreservesRegisteredCode(t *testing.T) {
	base := testRegistry.New(errBoom)
	w := errx.Wrap(base, "while refining", errx.TypeExternal)
	if w.Code != base.Code {
		t.Fatalf("expected code %s, got %s", base.Code, w.Code)
	}
	if errx.Wrap(nil, "x", errx.TypeInternal) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}
