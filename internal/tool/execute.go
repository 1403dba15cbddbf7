package tool

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/workspace-mcp/internal/action"
)

// ExecuteRequest is the dispatch call input.
type ExecuteRequest struct {
	AccountID string         `json:"account_id" jsonschema:"account identifier"`
	Action    string         `json:"action" jsonschema:"action name, e.g. email.send"`
	Params    map[string]any `json:"params,omitempty" jsonschema:"action parameters"`
}

// ListActionsRequest is the (empty) discovery call input.
type ListActionsRequest struct{}

// ListActionsResponse enumerates the registered actions.
type ListActionsResponse struct {
	Actions []action.Info `json:"actions" jsonschema:"registered actions with parameter info"`
}

// Execute bridges the MCP tools to the dispatcher.
type Execute struct {
	dispatcher dispatcher
}

// Execute dispatches one action. The envelope carries either data or a
// classified error; the tool call itself only fails on transport problems.
func (t *Execute) Execute(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExecuteRequest,
) (*mcp.CallToolResult, *action.Envelope, error) {
	return nil, t.dispatcher.Execute(ctx, input.AccountID, input.Action, input.Params), nil
}

// ListActions returns the discovery view used by help tooling.
func (t *Execute) ListActions(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListActionsRequest,
) (*mcp.CallToolResult, ListActionsResponse, error) {
	return nil, ListActionsResponse{Actions: t.dispatcher.List()}, nil
}
