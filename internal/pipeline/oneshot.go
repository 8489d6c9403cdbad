package pipeline

import (
	"fmt"
	"os"
	"strings"

	"infolookup/internal"
)

// ExtractInputs reads raw lookup values from one source. For SourceText input is the block
// itself; every other source takes a file path. column selects a spreadsheet column by header
// and is ignored by the other sources.
func ExtractInputs(source internal.InputSource, input string, column string) ([]internal.RawInput, error) {
	if source == internal.SourceText {
		return parseText(internal.SourceText, input), nil
	}

	blob, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}

	switch source {
	case internal.SourceFile:
		return parseText(internal.SourceFile, string(blob)), nil
	case internal.SourceXLSX:
		return parseXLSX(blob, column)
	case internal.SourceCSV:
		return parseCSV(blob, column)
	case internal.SourceHTML:
		return parseHTML(string(blob)), nil
	case internal.SourcePDF:
		return parsePDF(blob)
	case internal.SourceEML:
		items, _, err := ExtractInputsFromEmailRaw(blob)
		return items, err
	default:
		return nil, fmt.Errorf("unsupported input type: %s", source)
	}
}

// SourceForPath guesses the source from a file extension; unknown extensions read as text.
func SourceForPath(path string) internal.InputSource {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		return internal.SourceXLSX
	case strings.HasSuffix(lower, ".csv"):
		return internal.SourceCSV
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return internal.SourceHTML
	case strings.HasSuffix(lower, ".pdf"):
		return internal.SourcePDF
	case strings.HasSuffix(lower, ".eml"):
		return internal.SourceEML
	default:
		return internal.SourceFile
	}
}
