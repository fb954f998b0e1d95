package apiclient

import (
	"context"
	"fmt"
)

// NamedRange is a user-defined name bound to a grid range, resolved by
// the semantic range resolver's "named:" form.
type NamedRange struct {
	NamedRangeID string `json:"namedRangeId"`
	Name         string `json:"name"`
	Range        string `json:"range"`
}

// DeveloperMetadataEntry is a key/value annotation attached to a sheet,
// row, column, or the whole spreadsheet, resolved by the semantic range
// resolver's "meta:" form.
type DeveloperMetadataEntry struct {
	MetadataKey   string `json:"metadataKey"`
	MetadataValue string `json:"metadataValue"`
	Range         string `json:"range"`
}

// MetadataAPI is the typed method group for named ranges and developer
// metadata, the two indirection layers the Sheets API offers on top of
// raw A1 addressing.
type MetadataAPI interface {
	ListNamedRanges(ctx context.Context, spreadsheetID string) ([]NamedRange, error)
	SearchDeveloperMetadata(ctx context.Context, spreadsheetID, key string) ([]DeveloperMetadataEntry, error)
}

type metadataClient struct {
	c *Client
}

// NewMetadataAPI builds the metadata method group over c.
func NewMetadataAPI(c *Client) MetadataAPI {
	return &metadataClient{c: c}
}

func (m *metadataClient) ListNamedRanges(ctx context.Context, spreadsheetID string) ([]NamedRange, error) {
	var out struct {
		NamedRanges []NamedRange `json:"namedRanges"`
	}
	err := m.c.do(ctx, requestSpec{
		Endpoint: "spreadsheets.namedRanges.list",
		Method:   "GET",
		Path:     fmt.Sprintf("/v4/spreadsheets/%s", spreadsheetID),
		Query:    map[string]string{"fields": "namedRanges"},
		Out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return out.NamedRanges, nil
}

func (m *metadataClient) SearchDeveloperMetadata(ctx context.Context, spreadsheetID, key string) ([]DeveloperMetadataEntry, error) {
	var out struct {
		MatchedDeveloperMetadata []struct {
			DeveloperMetadata DeveloperMetadataEntry `json:"developerMetadata"`
		} `json:"matchedDeveloperMetadata"`
	}
	err := m.c.do(ctx, requestSpec{
		Endpoint: "spreadsheets.developerMetadata.search",
		Method:   "POST",
		Path:     fmt.Sprintf("/v4/spreadsheets/%s/developerMetadata:search", spreadsheetID),
		Body: map[string]any{
			"dataFilters": []map[string]any{
				{"developerMetadataLookup": map[string]any{"metadataKey": key}},
			},
		},
		Out: &out,
	})
	if err != nil {
		return nil, err
	}
	entries := make([]DeveloperMetadataEntry, 0, len(out.MatchedDeveloperMetadata))
	for _, m := range out.MatchedDeveloperMetadata {
		entries = append(entries, m.DeveloperMetadata)
	}
	return entries, nil
}
