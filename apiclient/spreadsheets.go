package apiclient

import (
	"context"
	"fmt"
	"net/url"
)

// ValueRange is one rectangular block of cell values, addressed by an A1
// range string understood by the rangeref package.
type ValueRange struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension,omitempty"`
	Values         [][]any    `json:"values,omitempty"`
}

// GetValuesRequest is the eligibility tuple C5's Request Merger groups
// on, plus the target range.
type GetValuesRequest struct {
	SpreadsheetID      string
	Range              string
	ValueRenderOption  string
	MajorDimension     string
}

// UpdateValuesRequest writes one ValueRange.
type UpdateValuesRequest struct {
	SpreadsheetID    string
	Range            string
	ValueInputOption string
	Values           [][]any
}

// AppendValuesRequest appends rows after the last row of data in Range.
type AppendValuesRequest struct {
	SpreadsheetID    string
	Range            string
	ValueInputOption string
	Values           [][]any
}

// BatchUpdateRequest carries a set of structural/value updates compiled
// by the safety gate (C9) into one atomic upstream call.
type BatchUpdateRequest struct {
	SpreadsheetID string
	Requests      []BatchRequestItem
}

// BatchRequestItem is a single operation inside a BatchUpdateRequest.
// Exactly one field should be set; the upstream API discriminates by
// which key is present in the marshaled JSON.
type BatchRequestItem struct {
	UpdateCells    map[string]any `json:"updateCells,omitempty"`
	InsertDimension map[string]any `json:"insertDimension,omitempty"`
	DeleteDimension map[string]any `json:"deleteDimension,omitempty"`
	UpdateSheetProperties map[string]any `json:"updateSheetProperties,omitempty"`
}

// UpdateResult reports how many cells/rows/columns an update touched,
// the basis for C9's cost_estimate.
type UpdateResult struct {
	UpdatedRange   string `json:"updatedRange,omitempty"`
	UpdatedRows    int    `json:"updatedRows,omitempty"`
	UpdatedColumns int    `json:"updatedColumns,omitempty"`
	UpdatedCells   int    `json:"updatedCells,omitempty"`
}

// SpreadsheetsAPI is the typed method group for value and structural
// operations against a single spreadsheet.
type SpreadsheetsAPI interface {
	GetValues(ctx context.Context, req GetValuesRequest) (*ValueRange, error)
	BatchGetValues(ctx context.Context, spreadsheetID string, ranges []string, valueRenderOption string) ([]ValueRange, error)
	UpdateValues(ctx context.Context, req UpdateValuesRequest) (*UpdateResult, error)
	AppendValues(ctx context.Context, req AppendValuesRequest) (*UpdateResult, error)
	BatchUpdate(ctx context.Context, req BatchUpdateRequest) (*UpdateResult, error)
	ClearValues(ctx context.Context, spreadsheetID, rng string) error
}

type spreadsheetsClient struct {
	c *Client
}

// NewSpreadsheetsAPI builds the spreadsheets method group over c.
func NewSpreadsheetsAPI(c *Client) SpreadsheetsAPI {
	return &spreadsheetsClient{c: c}
}

func (s *spreadsheetsClient) GetValues(ctx context.Context, req GetValuesRequest) (*ValueRange, error) {
	var out ValueRange
	err := s.c.do(ctx, requestSpec{
		Endpoint: "spreadsheets.values.get",
		Method:   "GET",
		Path:     fmt.Sprintf("/v4/spreadsheets/%s/values/%s", req.SpreadsheetID, url.PathEscape(req.Range)),
		Query: map[string]string{
			"valueRenderOption": req.ValueRenderOption,
			"majorDimension":    req.MajorDimension,
		},
		Out: &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *spreadsheetsClient) BatchGetValues(ctx context.Context, spreadsheetID string, ranges []string, valueRenderOption string) ([]ValueRange, error) {
	var out struct {
		ValueRanges []ValueRange `json:"valueRanges"`
	}
	query := map[string]string{"valueRenderOption": valueRenderOption}
	err := s.c.do(ctx, requestSpec{
		Endpoint: "spreadsheets.values.batchGet",
		Method:   "GET",
		Path:     fmt.Sprintf("/v4/spreadsheets/%s/values:batchGet", spreadsheetID),
		Query:    withRanges(query, ranges),
		Out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return out.ValueRanges, nil
}

func withRanges(query map[string]string, ranges []string) map[string]string {
	if len(ranges) == 0 {
		return query
	}
	joined := ranges[0]
	for _, r := range ranges[1:] {
		joined += "," + r
	}
	query["ranges"] = joined
	return query
}

func (s *spreadsheetsClient) UpdateValues(ctx context.Context, req UpdateValuesRequest) (*UpdateResult, error) {
	var out UpdateResult
	err := s.c.do(ctx, requestSpec{
		Endpoint: "spreadsheets.values.update",
		Method:   "PUT",
		Path:     fmt.Sprintf("/v4/spreadsheets/%s/values/%s", req.SpreadsheetID, url.PathEscape(req.Range)),
		Query:    map[string]string{"valueInputOption": req.ValueInputOption},
		Body:     map[string]any{"range": req.Range, "values": req.Values},
		Out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *spreadsheetsClient) AppendValues(ctx context.Context, req AppendValuesRequest) (*UpdateResult, error) {
	var out UpdateResult
	err := s.c.do(ctx, requestSpec{
		Endpoint: "spreadsheets.values.append",
		Method:   "POST",
		Path:     fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append", req.SpreadsheetID, url.PathEscape(req.Range)),
		Query:    map[string]string{"valueInputOption": req.ValueInputOption},
		Body:     map[string]any{"range": req.Range, "values": req.Values},
		Out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *spreadsheetsClient) BatchUpdate(ctx context.Context, req BatchUpdateRequest) (*UpdateResult, error) {
	var out UpdateResult
	err := s.c.do(ctx, requestSpec{
		Endpoint: "spreadsheets.batchUpdate",
		Method:   "POST",
		Path:     fmt.Sprintf("/v4/spreadsheets/%s:batchUpdate", req.SpreadsheetID),
		Body:     map[string]any{"requests": req.Requests},
		Out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *spreadsheetsClient) ClearValues(ctx context.Context, spreadsheetID, rng string) error {
	return s.c.do(ctx, requestSpec{
		Endpoint: "spreadsheets.values.clear",
		Method:   "POST",
		Path:     fmt.Sprintf("/v4/spreadsheets/%s/values/%s:clear", spreadsheetID, url.PathEscape(rng)),
	})
}
