package apiclient

import (
	"context"
	"fmt"
)

// QueryResult is the tabular result of a Google Visualization Query
// Language statement run against a sheet.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// QueryAPI runs read-only query-language statements against a sheet,
// used by the gateway's higher-level "query" action for aggregate reads
// that would otherwise require pulling the whole range client-side.
type QueryAPI interface {
	ExecuteQuery(ctx context.Context, spreadsheetID, sheet, query string) (*QueryResult, error)
}

type queryClient struct {
	c *Client
}

// NewQueryAPI builds the query method group over c.
func NewQueryAPI(c *Client) QueryAPI {
	return &queryClient{c: c}
}

func (q *queryClient) ExecuteQuery(ctx context.Context, spreadsheetID, sheet, query string) (*QueryResult, error) {
	var out QueryResult
	err := q.c.do(ctx, requestSpec{
		Endpoint: "spreadsheets.query",
		Method:   "GET",
		Path:     fmt.Sprintf("/v4/spreadsheets/%s/gviz/tq", spreadsheetID),
		Query: map[string]string{
			"sheet": sheet,
			"tq":    query,
		},
		Out: &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
