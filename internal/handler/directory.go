package handler

import (
	"context"
	"fmt"

	"google.golang.org/api/people/v1"

	"github.com/hal9000y/workspace-mcp/internal/action"
	"github.com/hal9000y/workspace-mcp/internal/schema"
)

// DirectoryService is the slice of the remote client the directory family needs.
type DirectoryService interface {
	SearchDirectory(ctx context.Context, accountID, query string, limit int64) ([]*people.Person, error)
}

// Directory implements the directory.* actions.
type Directory struct {
	svc DirectoryService
}

// NewDirectory creates the directory action family.
func NewDirectory(svc DirectoryService) *Directory {
	return &Directory{svc: svc}
}

// Descriptors enumerates the directory.* actions.
func (h *Directory) Descriptors() []action.Descriptor {
	return []action.Descriptor{
		{Name: "directory.search", Schema: h.searchSchema(), Handler: h.search, Safe: true},
	}
}

func (h *Directory) searchSchema() *schema.Schema {
	return &schema.Schema{
		Action: "directory.search",
		Doc:    docLink("directory.search"),
		Fields: []schema.Field{
			{Name: "query", Type: schema.String, Required: true, MinLen: 1, MaxLen: 256, Doc: "name or address fragment", Example: "jane"},
			{Name: "limit", Type: schema.Int, Min: 1, Max: maxListLimit, Default: int64(defaultListLimit), Doc: "maximum people to return"},
		},
	}
}

// Person is one directory entry.
type Person struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// SearchResult is the directory.search response.
type SearchResult struct {
	People       []Person `json:"people"`
	TotalResults int      `json:"total_results"`
}

func (h *Directory) search(ctx context.Context, accountID string, p schema.Params) (any, error) {
	found, err := h.svc.SearchDirectory(ctx, accountID, p.String("query"), p.Int("limit"))
	if err != nil {
		return nil, fmt.Errorf("svc.SearchDirectory failed: %w", err)
	}

	out := make([]Person, 0, len(found))
	for _, person := range found {
		entry := Person{}
		if len(person.Names) > 0 {
			entry.Name = person.Names[0].DisplayName
		}
		if len(person.EmailAddresses) > 0 {
			entry.Email = person.EmailAddresses[0].Value
		}
		if len(person.Organizations) > 0 {
			entry.Organization = person.Organizations[0].Name
		}
		out = append(out, entry)
	}

	return SearchResult{People: out, TotalResults: len(out)}, nil
}
