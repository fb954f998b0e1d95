package handler

import (
	"context"
	"fmt"

	"github.com/jonwraymond/sheetbridge/apiclient"
)

// APISemanticLookup implements SemanticLookup directly against the
// upstream spreadsheet and metadata APIs, the fallback path RangeResolver
// takes once the cache has nothing for a semantic reference.
type APISemanticLookup struct {
	Spreadsheets apiclient.SpreadsheetsAPI
	Metadata     apiclient.MetadataAPI
}

func (l *APISemanticLookup) ResolveNamedRange(ctx context.Context, spreadsheetID, name string) (string, error) {
	ranges, err := l.Metadata.ListNamedRanges(ctx, spreadsheetID)
	if err != nil {
		return "", fmt.Errorf("listing named ranges: %w", err)
	}
	for _, nr := range ranges {
		if nr.Name == name {
			return nr.Range, nil
		}
	}
	return "", fmt.Errorf("no named range %q on spreadsheet %s", name, spreadsheetID)
}

func (l *APISemanticLookup) ResolveDeveloperMetadata(ctx context.Context, spreadsheetID, key string) (string, error) {
	entries, err := l.Metadata.SearchDeveloperMetadata(ctx, spreadsheetID, key)
	if err != nil {
		return "", fmt.Errorf("searching developer metadata: %w", err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no developer metadata with key %q on spreadsheet %s", key, spreadsheetID)
	}
	return entries[0].Range, nil
}

// ResolveHeader reads the sheet's first row and returns the A1 range of
// the full column beneath the first cell matching columnHeader exactly.
func (l *APISemanticLookup) ResolveHeader(ctx context.Context, spreadsheetID, sheet, columnHeader string) (string, error) {
	headerRow, err := l.Spreadsheets.GetValues(ctx, apiclient.GetValuesRequest{
		SpreadsheetID: spreadsheetID,
		Range:         sheet + "!1:1",
	})
	if err != nil {
		return "", fmt.Errorf("reading header row: %w", err)
	}
	if len(headerRow.Values) == 0 {
		return "", fmt.Errorf("sheet %q has no header row", sheet)
	}

	for i, cell := range headerRow.Values[0] {
		if fmt.Sprint(cell) == columnHeader {
			col := columnLetter(i)
			return fmt.Sprintf("%s!%s:%s", sheet, col, col), nil
		}
	}
	return "", fmt.Errorf("no column header %q on sheet %q", columnHeader, sheet)
}

// columnLetter converts a 0-indexed column number into its A1 letters.
func columnLetter(col int) string {
	var s string
	for {
		s = string(rune('A'+col%26)) + s
		col = col/26 - 1
		if col < 0 {
			break
		}
	}
	return s
}

var _ SemanticLookup = (*APISemanticLookup)(nil)
