// Package tool exposes the dispatcher and the token manager as MCP tools.
package tool

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/workspace-mcp/internal/action"
	"github.com/hal9000y/workspace-mcp/internal/auth"
)

type dispatcher interface {
	Execute(ctx context.Context, accountID, name string, raw map[string]any) *action.Envelope
	List() []action.Info
}

type authenticator interface {
	Authenticate(ctx context.Context, accountID string) (*auth.Challenge, error)
	CompleteAuthentication(ctx context.Context, handle string) error
	SignOut(accountID string) error
}

// NewServer creates the MCP server with the workspace action tools.
func NewServer(d dispatcher, mgr authenticator) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "workspace-actions", Version: "v1.0.0"}, nil)

	exec := &Execute{dispatcher: d}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "execute",
		Description: "Execute a workspace action (email, calendar, drive, directory) for an account",
	}, exec.Execute)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_actions",
		Description: "List available actions with their parameters and usage examples",
	}, exec.ListActions)

	authT := &Auth{mgr: mgr}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "authenticate",
		Description: "Start device-flow sign-in for an account; returns a code and URL for the user",
	}, authT.Authenticate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "complete_authentication",
		Description: "Finish a started device-flow sign-in once the user has approved it",
	}, authT.CompleteAuthentication)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sign_out",
		Description: "Delete an account's stored credential",
	}, authT.SignOut)

	return server
}
