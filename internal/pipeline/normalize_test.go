package pipeline

import (
	"errors"
	"testing"

	"infolookup/internal"
)

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		raw  string
		norm string
		kind internal.IdentifierKind
	}{
		{raw: "3001234567", norm: "03001234567", kind: internal.KindPhone11},
		{raw: "  03001234567 ", norm: "03001234567", kind: internal.KindPhone11},
		{raw: "3520212345678", norm: "3520212345678", kind: internal.KindNationalID13},
		{raw: "123456789012", norm: "123456789012", kind: internal.KindInvalid},
		{raw: "0300-1234567", norm: "0300-1234567", kind: internal.KindInvalid},
		{raw: "0300 1234567", norm: "0300 1234567", kind: internal.KindInvalid},
		{raw: "abcdefghij", norm: "abcdefghij", kind: internal.KindInvalid},
		{raw: "   ", norm: "", kind: internal.KindInvalid},
	}

	for _, tc := range cases {
		got := NormalizeIdentifier(tc.raw)
		if got.Normalized != tc.norm || got.Kind != tc.kind {
			t.Fatalf("NormalizeIdentifier(%q) = %q/%s, want %q/%s", tc.raw, got.Normalized, got.Kind, tc.norm, tc.kind)
		}
		if got.Raw != tc.raw {
			t.Fatalf("raw not kept: %q", got.Raw)
		}
	}
}

func TestNormalizeRegistration(t *testing.T) {
	if got := NormalizeRegistration("  khi \t 1234 "); got != "KHI 1234" {
		t.Fatalf("got %q", got)
	}
}

func TestNewLookupQuery(t *testing.T) {
	q, err := NewLookupQuery("abc-123", "2 Wheeler")
	if err != nil {
		t.Fatal(err)
	}
	if q.RegistrationNumber != "ABC-123" || q.Category != internal.Category2W {
		t.Fatalf("unexpected query %+v", q)
	}

	if _, err := NewLookupQuery("abc-123", ""); !errors.Is(err, internal.ErrMissingCategory) {
		t.Fatalf("empty category: %v", err)
	}
	if _, err := NewLookupQuery("abc-123", "3 wheeler"); !errors.Is(err, internal.ErrUnknownCategory) {
		t.Fatalf("unknown category: %v", err)
	}
	if _, err := NewLookupQuery(" ", "4 wheeler"); !errors.Is(err, internal.ErrMissingRegistration) {
		t.Fatalf("blank registration: %v", err)
	}
}
