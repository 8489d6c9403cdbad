package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"infolookup/internal"
)

func TestParseTextSplitsOnCommaAndNewline(t *testing.T) {
	items := parseText(internal.SourceText, "03001234567, 3111234567\n\n 3520212345678 \r\nabc")
	got := Values(items)
	want := []string{"03001234567", "3111234567", "3520212345678", "abc"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}

func TestScanTextFindsDigitGroups(t *testing.T) {
	items := scanText(internal.SourceEML, "Salam,\nplease check 0300-1234567 and 35202-1234567-8\nThanks, 42")
	got := Values(items)
	if len(got) != 2 || got[0] != "03001234567" || got[1] != "3520212345678" {
		t.Fatalf("got %q", got)
	}
	if items[1].Meta["line"] != 2 {
		t.Fatalf("meta=%v", items[1].Meta)
	}
}

func TestExtractInputsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "numbers.txt")
	if err := os.WriteFile(path, []byte("03001234567\n03007654321\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	items, err := ExtractInputs(SourceForPath(path), path, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Source != internal.SourceFile {
		t.Fatalf("items=%+v", items)
	}

	if _, err := ExtractInputs("docx", path, ""); err == nil {
		t.Fatal("expected unsupported type error")
	}
}

func TestExtractInputsFromEmailRaw(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("testdata", "lookup_request.eml"))
	if err != nil {
		t.Fatal(err)
	}
	items, content, err := ExtractInputsFromEmailRaw(raw)
	if err != nil {
		t.Fatal(err)
	}
	if content.Subject != "SIM info request" {
		t.Fatalf("subject=%q", content.Subject)
	}
	got := Values(items)
	want := []string{"03001234567", "3520212345678", "03111234567"}
	if len(got) != len(want) {
		t.Fatalf("got %q want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}
