package apiclient

import (
	"context"
	"fmt"
)

// FileMetadata is the subset of Drive file metadata the gateway exposes:
// enough to resolve a spreadsheet by name and to check edit permission
// before a write.
type FileMetadata struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	Owners       []string `json:"owners,omitempty"`
	Capabilities struct {
		CanEdit bool `json:"canEdit"`
	} `json:"capabilities,omitempty"`
}

// DriveAPI is the typed method group for spreadsheet discovery and
// permission checks.
type DriveAPI interface {
	GetFileMetadata(ctx context.Context, fileID string) (*FileMetadata, error)
	ListSpreadsheets(ctx context.Context, query string, pageSize int) ([]FileMetadata, error)
}

type driveClient struct {
	c *Client
}

// NewDriveAPI builds the drive method group over c.
func NewDriveAPI(c *Client) DriveAPI {
	return &driveClient{c: c}
}

func (d *driveClient) GetFileMetadata(ctx context.Context, fileID string) (*FileMetadata, error) {
	var out FileMetadata
	err := d.c.do(ctx, requestSpec{
		Endpoint: "drive.files.get",
		Method:   "GET",
		Path:     fmt.Sprintf("/drive/v3/files/%s", fileID),
		Query:    map[string]string{"fields": "id,name,mimeType,modifiedTime,owners,capabilities"},
		Out:      &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *driveClient) ListSpreadsheets(ctx context.Context, query string, pageSize int) ([]FileMetadata, error) {
	var out struct {
		Files []FileMetadata `json:"files"`
	}
	q := "mimeType='application/vnd.google-apps.spreadsheet'"
	if query != "" {
		q += " and " + query
	}
	err := d.c.do(ctx, requestSpec{
		Endpoint: "drive.files.list",
		Method:   "GET",
		Path:     "/drive/v3/files",
		Query: map[string]string{
			"q":        q,
			"pageSize": fmt.Sprintf("%d", pageSize),
			"fields":   "files(id,name,mimeType,modifiedTime)",
		},
		Out: &out,
	})
	if err != nil {
		return nil, err
	}
	return out.Files, nil
}
