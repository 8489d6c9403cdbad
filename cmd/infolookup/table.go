package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"infolookup/internal"
)

// renderTable lays out rows in aligned columns by display width, so Urdu names and
// other wide runes line up in a terminal.
func renderTable(headers []string, rows [][]string) []string {
	widths := make([]int, len(headers))
	measure := func(row []string) {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := runewidth.StringWidth(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	line := func(row []string) string {
		var sb strings.Builder
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(runewidth.FillRight(cell, widths[i]))
		}
		return strings.TrimRight(sb.String(), " ")
	}

	out := make([]string, 0, len(rows)+2)
	out = append(out, line(headers))
	sep := make([]string, len(widths))
	for i, w := range widths {
		sep[i] = strings.Repeat("-", w)
	}
	out = append(out, line(sep))
	for _, row := range rows {
		out = append(out, line(row))
	}
	return out
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	for _, l := range renderTable(headers, rows) {
		fmt.Fprintln(w, l)
	}
}

// printRecord shows a single-input result as Attribute/Value pairs.
func printRecord(w io.Writer, table internal.ResultTable) {
	cols := table.Domain.Columns()
	for _, row := range table.Rows {
		if row.Record == nil {
			fmt.Fprintf(w, "%s: %s\n", row.Input, row.Status)
			continue
		}
		pairs := make([][]string, 0, len(cols))
		for i, v := range row.Record.Values() {
			pairs = append(pairs, []string{cols[i], v})
		}
		printTable(w, []string{"Attribute", "Value"}, pairs)
		fmt.Fprintln(w)
	}
}

// printResults shows every row of a batch with its status.
func printResults(w io.Writer, table internal.ResultTable) {
	rows := make([][]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		cells := append([]string{row.Input}, row.Cells(table.Domain)...)
		rows = append(rows, append(cells, row.Status))
	}
	printTable(w, table.Columns(), rows)
}
