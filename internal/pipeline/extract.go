package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"infolookup/internal"
	"infolookup/internal/util"
)

var ErrColumnNotFound = errors.New("column not found")

// EmailContent is what a lookup request e-mail yields besides the extracted values.
type EmailContent struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []string
}

// ExtractInputsFromEmailRaw pulls identifiers out of the text body, HTML tables and
// spreadsheet/PDF attachments of a raw RFC 822 message. Free text is scanned for digit groups
// so signatures and greetings are not turned into rows.
func ExtractInputsFromEmailRaw(raw []byte) ([]internal.RawInput, EmailContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, EmailContent{}, err
	}

	content := EmailContent{
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	items := make([]internal.RawInput, 0)
	if env.Text != "" {
		items = append(items, scanText(internal.SourceEML, env.Text)...)
	}
	if env.HTML != "" {
		items = append(items, parseHTML(env.HTML)...)
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		content.Attachments = append(content.Attachments, filename)

		var extra []internal.RawInput
		switch lower := strings.ToLower(filename); {
		case strings.HasSuffix(lower, ".xlsx"):
			extra, err = parseXLSX(att.Content, "")
		case strings.HasSuffix(lower, ".csv"):
			extra, err = parseCSV(att.Content, "")
		case strings.HasSuffix(lower, ".pdf"):
			extra, err = parsePDF(att.Content)
		default:
			continue
		}
		if err != nil {
			continue
		}
		for i := range extra {
			extra[i].Meta["attachment"] = filename
		}
		items = append(items, extra...)
	}

	return renumber(dedupeInputs(items)), content, nil
}

func parseText(source internal.InputSource, text string) []internal.RawInput {
	values := util.SplitItems(text)
	out := make([]internal.RawInput, 0, len(values))
	for i, v := range values {
		out = append(out, internal.RawInput{
			Position: i,
			Source:   source,
			Value:    v,
			Meta:     map[string]any{"line": i + 1},
		})
	}
	return out
}

// scanText keeps only 10 to 13 digit groups from free text.
func scanText(source internal.InputSource, text string) []internal.RawInput {
	out := []internal.RawInput{}
	for lineNo, line := range splitLines(text) {
		for _, v := range util.FindDigitGroups(line) {
			out = append(out, internal.RawInput{
				Position: len(out),
				Source:   source,
				Value:    v,
				Meta:     map[string]any{"line": lineNo + 1},
			})
		}
	}
	return out
}

// parseHTML reads table cells that contain digits, in document order. Pages without tables
// fall back to scanning the visible text.
func parseHTML(html string) []internal.RawInput {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []internal.RawInput{}
	doc.Find("table").Each(func(tableIdx int, table *goquery.Selection) {
		table.Find("tr").Each(func(rowIdx int, row *goquery.Selection) {
			row.Find("td").Each(func(_ int, cell *goquery.Selection) {
				text := util.NormalizeSpaces(cell.Text())
				if text == "" || !hasDigit(text) {
					return
				}
				out = append(out, internal.RawInput{
					Position: len(out),
					Source:   internal.SourceHTML,
					Value:    text,
					Meta:     map[string]any{"table": tableIdx + 1, "row": rowIdx + 1},
				})
			})
		})
	})
	if len(out) > 0 {
		return out
	}
	return scanText(internal.SourceHTML, doc.Find("body").Text())
}

// parseXLSX reads one column of the first sheet. Cell values are read raw so a number stored
// as 3001234567 is not rendered in scientific or locale format.
func parseXLSX(content []byte, column string) ([]internal.RawInput, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []internal.RawInput{}, nil
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	return columnInputs(internal.SourceXLSX, rows, column, map[string]any{"sheet": sheet})
}

func parseCSV(content []byte, column string) ([]internal.RawInput, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows := [][]string{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return columnInputs(internal.SourceCSV, rows, column, nil)
}

func parsePDF(content []byte) ([]internal.RawInput, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []internal.RawInput{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, item := range scanText(internal.SourcePDF, text) {
			item.Position = len(out)
			item.Meta["page"] = i
			out = append(out, item)
		}
	}
	return out, nil
}

// columnInputs picks the named column (header match, case-insensitive) or the first column.
// Without a name, the first row is dropped only when its first cell reads as a header.
func columnInputs(source internal.InputSource, rows [][]string, column string, meta map[string]any) ([]internal.RawInput, error) {
	out := []internal.RawInput{}
	if len(rows) == 0 {
		return out, nil
	}

	idx, start := 0, 0
	if strings.TrimSpace(column) != "" {
		idx = findHeaderIndex(rows[0], column)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
		}
		start = 1
	} else if len(rows[0]) > 0 && looksLikeHeader(rows[0][0]) {
		start = 1
	}

	for i := start; i < len(rows); i++ {
		value := strings.TrimSpace(pickCell(rows[i], idx))
		if value == "" {
			continue
		}
		m := map[string]any{"rowNumber": i + 1}
		for k, v := range meta {
			m[k] = v
		}
		out = append(out, internal.RawInput{Position: len(out), Source: source, Value: value, Meta: m})
	}
	return out, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupeInputs(items []internal.RawInput) []internal.RawInput {
	seen := map[string]struct{}{}
	out := make([]internal.RawInput, 0, len(items))
	for _, item := range items {
		if _, exists := seen[item.Value]; exists {
			continue
		}
		seen[item.Value] = struct{}{}
		out = append(out, item)
	}
	return out
}

func renumber(items []internal.RawInput) []internal.RawInput {
	for i := range items {
		items[i].Position = i
	}
	return items
}

func findHeaderIndex(headers []string, name string) int {
	want := strings.ToLower(util.NormalizeSpaces(name))
	for i, h := range headers {
		if strings.ToLower(util.NormalizeSpaces(h)) == want {
			return i
		}
	}
	return -1
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return cells[idx]
	}
	return ""
}

var headerWords = map[string]struct{}{
	"phone": {}, "phones": {}, "number": {}, "numbers": {}, "mobile": {}, "cell": {},
	"msisdn": {}, "sim": {}, "cnic": {}, "nic": {}, "reg": {}, "registration": {},
	"vehicle": {}, "plate": {}, "no": {}, "id": {},
}

// looksLikeHeader reports whether cell is a column title such as "Phone", "Mobile No" or
// "reg_no". Anything else is data, even when it has no digits.
func looksLikeHeader(cell string) bool {
	if hasDigit(cell) {
		return false
	}
	words := strings.FieldsFunc(strings.ToLower(cell), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := headerWords[w]; ok {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// Values returns the raw values in position order.
func Values(items []internal.RawInput) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Value)
	}
	return out
}
