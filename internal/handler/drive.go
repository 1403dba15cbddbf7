package handler

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"

	"github.com/hal9000y/workspace-mcp/internal/action"
	"github.com/hal9000y/workspace-mcp/internal/schema"
)

// DriveService is the slice of the remote client the drive family needs.
type DriveService interface {
	ListFiles(ctx context.Context, accountID, query string, limit int64) ([]*drive.File, string, error)
	GetFile(ctx context.Context, accountID, fileID string) (*drive.File, error)
}

// Drive implements the drive.* actions.
type Drive struct {
	svc DriveService
}

// NewDrive creates the drive action family.
func NewDrive(svc DriveService) *Drive {
	return &Drive{svc: svc}
}

// Descriptors enumerates the drive.* actions.
func (h *Drive) Descriptors() []action.Descriptor {
	return []action.Descriptor{
		{Name: "drive.list", Schema: h.listSchema(), Handler: h.list, Safe: true},
		{Name: "drive.get", Schema: h.getSchema(), Handler: h.get, Safe: true},
	}
}

func (h *Drive) listSchema() *schema.Schema {
	return &schema.Schema{
		Action: "drive.list",
		Doc:    docLink("drive.list"),
		Fields: []schema.Field{
			{Name: "query", Type: schema.String, MaxLen: 1024, Doc: "Drive search expression", Example: "name contains 'report'"},
			{Name: "limit", Type: schema.Int, Min: 1, Max: maxListLimit, Default: int64(defaultListLimit), Doc: "maximum files to return"},
		},
	}
}

// FileInfo is the metadata view of one Drive file.
type FileInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size,omitempty"`
	ModifiedTime string `json:"modified_time,omitempty"`
	WebViewLink  string `json:"web_view_link,omitempty"`
	Owner        string `json:"owner,omitempty"`
}

// FileListResult is the drive.list response.
type FileListResult struct {
	Files         []FileInfo `json:"files"`
	NextPageToken string     `json:"next_page_token,omitempty"`
	TotalResults  int        `json:"total_results"`
}

func (h *Drive) list(ctx context.Context, accountID string, p schema.Params) (any, error) {
	files, nextToken, err := h.svc.ListFiles(ctx, accountID, p.String("query"), p.Int("limit"))
	if err != nil {
		return nil, fmt.Errorf("svc.ListFiles failed: %w", err)
	}

	out := make([]FileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, fileInfo(f))
	}

	return FileListResult{
		Files:         out,
		NextPageToken: nextToken,
		TotalResults:  len(out),
	}, nil
}

func (h *Drive) getSchema() *schema.Schema {
	return &schema.Schema{
		Action: "drive.get",
		Doc:    docLink("drive.get"),
		Fields: []schema.Field{
			{Name: "id", Type: schema.String, Required: true, MinLen: 1, Doc: "file ID", Example: "1xYz_fileid"},
		},
	}
}

func (h *Drive) get(ctx context.Context, accountID string, p schema.Params) (any, error) {
	f, err := h.svc.GetFile(ctx, accountID, p.String("id"))
	if err != nil {
		return nil, fmt.Errorf("svc.GetFile failed: %w", err)
	}
	return fileInfo(f), nil
}

func fileInfo(f *drive.File) FileInfo {
	info := FileInfo{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Size:         f.Size,
		ModifiedTime: f.ModifiedTime,
		WebViewLink:  f.WebViewLink,
	}
	if len(f.Owners) > 0 {
		info.Owner = f.Owners[0].EmailAddress
	}
	return info
}
