package action

import (
	"context"
	"fmt"
	"sort"

	"github.com/hal9000y/workspace-mcp/internal/schema"
)

// Handler executes a validated action for one account.
type Handler func(ctx context.Context, accountID string, p schema.Params) (any, error)

// Descriptor binds an action name to its schema and handler. Safe marks
// actions with no remote side effects (idempotency class).
type Descriptor struct {
	Name    string
	Schema  *schema.Schema
	Handler Handler
	Safe    bool
}

// Info is the discovery view of a registered action.
type Info struct {
	Name           string         `json:"name" jsonschema:"action name"`
	Safe           bool           `json:"safe" jsonschema:"true when the action has no remote side effects"`
	RequiredParams []string       `json:"required_params,omitempty" jsonschema:"required parameter names"`
	OptionalParams []string       `json:"optional_params,omitempty" jsonschema:"optional parameter names"`
	Example        map[string]any `json:"example,omitempty" jsonschema:"a filled-in usage example"`
	Doc            string         `json:"doc,omitempty" jsonschema:"documentation pointer"`
}

// Registry is the immutable action table, built once at startup.
type Registry struct {
	byName map[string]Descriptor
	names  []string
}

// NewRegistry builds the registry. A duplicate name is a configuration
// error; callers treat it as fatal.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]Descriptor, len(descriptors))}

	for _, d := range descriptors {
		if d.Name == "" {
			return nil, fmt.Errorf("descriptor with empty name")
		}
		if d.Schema == nil || d.Handler == nil {
			return nil, fmt.Errorf("action %q must declare both schema and handler", d.Name)
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, fmt.Errorf("action %q registered twice", d.Name)
		}
		r.byName[d.Name] = d
		r.names = append(r.names, d.Name)
	}

	sort.Strings(r.names)

	return r, nil
}

// Resolve looks up a descriptor by name.
func (r *Registry) Resolve(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns all registered action names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// List returns discovery info for every registered action, sorted by name.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.names))
	for _, name := range r.names {
		d := r.byName[name]
		out = append(out, Info{
			Name:           d.Name,
			Safe:           d.Safe,
			RequiredParams: d.Schema.RequiredNames(),
			OptionalParams: d.Schema.OptionalNames(),
			Example:        d.Schema.ExampleCall(),
			Doc:            d.Schema.Doc,
		})
	}
	return out
}
