package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"infolookup/internal"
)

var ErrKeyColumnNotFound = errors.New("key column not found in dataset")

const collisionSuffix = "_lookup"

// Dataset is an externally supplied table. Rows may be shorter than Header.
type Dataset struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of name (case-insensitive), or -1.
func (d Dataset) Column(name string) int {
	return findHeaderIndex(d.Header, name)
}

// ColumnValues returns the cells of one column, "" where a row is short.
func (d Dataset) ColumnValues(idx int) []string {
	out := make([]string, 0, len(d.Rows))
	for _, row := range d.Rows {
		out = append(out, pickCell(row, idx))
	}
	return out
}

// ReadDataset loads the first sheet of an .xlsx file, or a .csv file, with the first row as
// header. Spreadsheet cells are read raw.
func ReadDataset(path string) (Dataset, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, err
	}

	var rows [][]string
	switch SourceForPath(path) {
	case internal.SourceXLSX:
		f, err := excelize.OpenReader(bytes.NewReader(blob))
		if err != nil {
			return Dataset{}, err
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return Dataset{}, fmt.Errorf("%s has no sheets", path)
		}
		rows, err = f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
		if err != nil {
			return Dataset{}, err
		}
	case internal.SourceCSV:
		r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(blob, []byte("\xef\xbb\xbf"))))
		r.FieldsPerRecord = -1
		for {
			rec, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return Dataset{}, err
			}
			rows = append(rows, rec)
		}
	default:
		return Dataset{}, fmt.Errorf("unsupported dataset type: %s", path)
	}

	if len(rows) == 0 {
		return Dataset{}, fmt.Errorf("%s is empty", path)
	}
	return Dataset{Header: rows[0], Rows: rows[1:]}, nil
}

// Merge left-joins results onto base by the normalized value of keyColumn. Every base row is
// kept; a key with N records yields N rows; unmatched rows get empty result columns. Result
// rows that are placeholders (no record) contribute only their status.
func Merge(base Dataset, keyColumn string, results internal.ResultTable, normalize func(string) string) (Dataset, error) {
	keyIdx := base.Column(keyColumn)
	if keyIdx < 0 {
		return Dataset{}, fmt.Errorf("%w: %q", ErrKeyColumnNotFound, keyColumn)
	}
	if normalize == nil {
		normalize = strings.TrimSpace
	}

	byKey := groupByKey(results)
	resultCols := mergedColumns(base.Header, results.Domain)
	width := len(base.Header)

	out := Dataset{
		Header: append(append([]string(nil), base.Header...), resultCols...),
		Rows:   make([][]string, 0, len(base.Rows)),
	}
	for _, baseRow := range base.Rows {
		prefix := make([]string, width)
		copy(prefix, baseRow)

		matches := byKey[normalize(pickCell(baseRow, keyIdx))]
		if len(matches) == 0 {
			out.Rows = append(out.Rows, append(prefix, make([]string, len(resultCols))...))
			continue
		}
		for _, m := range matches {
			row := append(append([]string(nil), prefix...), m.Cells(results.Domain)...)
			out.Rows = append(out.Rows, append(row, m.Status))
		}
	}
	return out, nil
}

// groupByKey collects the rows of the first input position seen for each key, so a value
// repeated in the input does not multiply join rows.
func groupByKey(results internal.ResultTable) map[string][]internal.ResultRow {
	firstPos := map[string]int{}
	out := map[string][]internal.ResultRow{}
	for _, row := range results.Rows {
		if row.Key == "" {
			continue
		}
		pos, seen := firstPos[row.Key]
		if !seen {
			firstPos[row.Key] = row.Position
			pos = row.Position
		}
		if pos != row.Position {
			continue
		}
		out[row.Key] = append(out[row.Key], row)
	}
	return out
}

// mergedColumns names the appended result columns, suffixing any that collide with a base
// header.
func mergedColumns(baseHeader []string, domain internal.Domain) []string {
	taken := map[string]struct{}{}
	for _, h := range baseHeader {
		taken[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	cols := append(domain.Columns(), internal.ColumnStatus)
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, clash := taken[strings.ToLower(c)]; clash {
			c += collisionSuffix
		}
		out = append(out, c)
	}
	return out
}
