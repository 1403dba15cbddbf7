package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hal9000y/workspace-mcp/internal/auth"
)

// AuthenticateRequest starts device-flow sign-in for one account.
type AuthenticateRequest struct {
	AccountID string `json:"account_id" jsonschema:"account identifier"`
}

// CompleteAuthenticationRequest finishes a started flow.
type CompleteAuthenticationRequest struct {
	FlowHandle string `json:"flow_handle" jsonschema:"handle returned by authenticate"`
}

// CompleteAuthenticationResponse reports the resulting account state.
type CompleteAuthenticationResponse struct {
	Status string `json:"status" jsonschema:"account authorization state after completion"`
}

// SignOutRequest deletes one account's credential record.
type SignOutRequest struct {
	AccountID string `json:"account_id" jsonschema:"account identifier"`
}

// SignOutResponse acknowledges the deletion.
type SignOutResponse struct {
	Status string `json:"status" jsonschema:"account authorization state after sign-out"`
}

// Auth bridges the MCP tools to the token manager.
type Auth struct {
	mgr authenticator
}

// Authenticate initiates the device-flow challenge.
func (t *Auth) Authenticate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AuthenticateRequest,
) (*mcp.CallToolResult, *auth.Challenge, error) {
	if input.AccountID == "" {
		return nil, nil, fmt.Errorf("account_id must not be empty")
	}

	challenge, err := t.mgr.Authenticate(ctx, input.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("mgr.Authenticate failed: %w", err)
	}

	return nil, challenge, nil
}

// CompleteAuthentication blocks until the user approves (or the flow
// expires), then reports the account state.
func (t *Auth) CompleteAuthentication(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CompleteAuthenticationRequest,
) (*mcp.CallToolResult, CompleteAuthenticationResponse, error) {
	if err := t.mgr.CompleteAuthentication(ctx, input.FlowHandle); err != nil {
		return nil, CompleteAuthenticationResponse{}, fmt.Errorf("mgr.CompleteAuthentication failed: %w", err)
	}

	return nil, CompleteAuthenticationResponse{Status: "authenticated"}, nil
}

// SignOut removes the account's stored credential. This is the only path
// that deletes an account.
func (t *Auth) SignOut(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SignOutRequest,
) (*mcp.CallToolResult, SignOutResponse, error) {
	if input.AccountID == "" {
		return nil, SignOutResponse{}, fmt.Errorf("account_id must not be empty")
	}

	if err := t.mgr.SignOut(input.AccountID); err != nil {
		return nil, SignOutResponse{}, fmt.Errorf("mgr.SignOut failed: %w", err)
	}

	return nil, SignOutResponse{Status: "unauthenticated"}, nil
}
