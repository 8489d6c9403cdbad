package pipeline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestParseXLSXFirstColumn(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Phone", "Note"},
		{3001234567, "bare ten digits"},
		{"03111234567", "text cell"},
		{"", "blank skipped"},
		{int64(3520212345678), "cnic"},
	})
	items, err := parseXLSX(blob, "")
	if err != nil {
		t.Fatal(err)
	}
	got := Values(items)
	want := []string{"3001234567", "03111234567", "3520212345678"}
	if len(got) != len(want) {
		t.Fatalf("got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %q want %q", got, want)
		}
		if items[i].Position != i {
			t.Fatalf("position %d = %d", i, items[i].Position)
		}
	}
	if items[0].Meta["rowNumber"] != 2 {
		t.Fatalf("meta=%v", items[0].Meta)
	}
}

func TestParseXLSXNamedColumn(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Name", "Mobile No"},
		{"Ali", "03001234567"},
		{"Sara", "03007654321"},
	})
	items, err := parseXLSX(blob, "mobile no")
	if err != nil {
		t.Fatal(err)
	}
	if got := Values(items); len(got) != 2 || got[1] != "03007654321" {
		t.Fatalf("got %q", got)
	}

	if _, err := parseXLSX(blob, "cnic"); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestParseCSV(t *testing.T) {
	items, err := parseCSV([]byte("\xef\xbb\xbfnumber,name\n03001234567,Ali\n\n3520212345678\n"), "Number")
	if err != nil {
		t.Fatal(err)
	}
	if got := Values(items); len(got) != 2 || got[0] != "03001234567" || got[1] != "3520212345678" {
		t.Fatalf("got %q", got)
	}
}

func TestColumnInputsKeepsHeaderlessFirstRow(t *testing.T) {
	cases := []struct {
		name string
		data string
		want []string
	}{
		{name: "invalid first value", data: "abc\n03001234567\n", want: []string{"abc", "03001234567"}},
		{name: "phone header", data: "Phone\n03001234567\n", want: []string{"03001234567"}},
		{name: "reg_no header", data: "reg_no\nabc 123\n", want: []string{"abc 123"}},
		{name: "mobile no header", data: "Mobile No.,name\n03001234567,Ali\n", want: []string{"03001234567"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := parseCSV([]byte(tc.data), "")
			if err != nil {
				t.Fatal(err)
			}
			got := Values(items)
			if len(got) != len(tc.want) {
				t.Fatalf("got %q want %q", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("got %q want %q", got, tc.want)
				}
			}
		})
	}

	blob := mkXLSX([][]any{{"unknown"}, {"03001234567"}})
	items, err := parseXLSX(blob, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := Values(items); len(got) != 2 || got[0] != "unknown" {
		t.Fatalf("got %q", got)
	}
}
