package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/hal9000y/workspace-mcp/internal/schema"
)

// suggestionDistance is the maximum edit distance for "did you mean" hints.
const suggestionDistance = 3

// Dispatcher is the single public entry point: it validates, routes and
// executes actions, and formats every outcome as an Envelope. Handlers are
// stateless from its perspective; only the token manager keeps state
// between calls.
type Dispatcher struct {
	reg *Registry
}

// NewDispatcher creates a dispatcher over a built registry.
func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// List exposes the registry's discovery view.
func (d *Dispatcher) List() []Info {
	return d.reg.List()
}

// Execute runs one action for one account. It never returns a raw handler
// error: every failure is classified and wrapped in the envelope.
func (d *Dispatcher) Execute(ctx context.Context, accountID, name string, raw map[string]any) *Envelope {
	desc, ok := d.reg.Resolve(name)
	if !ok {
		return errorEnvelope(name, d.unknownAction(name))
	}

	if raw == nil {
		raw = map[string]any{}
	}

	params, err := desc.Schema.Validate(raw)
	if err != nil {
		var invalid *schema.Error
		if errors.As(err, &invalid) {
			return errorEnvelope(name, validationError(invalid))
		}
		return errorEnvelope(name, Classify(err))
	}

	data, err := desc.Handler(ctx, accountID, params)
	if err != nil {
		return errorEnvelope(name, Classify(err))
	}

	return successEnvelope(name, data)
}

func (d *Dispatcher) unknownAction(name string) *Error {
	available := d.reg.Names()
	suggestions := suggest(name, available)

	e := NewError(KindUnknownAction, nil, "unknown action %q", name).
		WithDetails(map[string]any{
			"available":   available,
			"suggestions": suggestions,
		})

	if len(suggestions) > 0 {
		return e.WithHint("did you mean %q?", suggestions[0])
	}
	return e.WithHint("call list_actions for the full action set: %s", strings.Join(available, ", "))
}

// suggest returns the nearest lexical matches, best first.
func suggest(name string, available []string) []string {
	type candidate struct {
		name     string
		distance int
	}

	var candidates []candidate
	for _, a := range available {
		dist := levenshtein.ComputeDistance(name, a)
		if dist <= suggestionDistance {
			candidates = append(candidates, candidate{name: a, distance: dist})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].name < candidates[j].name
	})

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.name)
	}
	return out
}

// MustRegistry wraps NewRegistry for startup wiring, where a duplicate
// action name is fatal configuration, never a runtime condition.
func MustRegistry(descriptors ...Descriptor) *Registry {
	reg, err := NewRegistry(descriptors...)
	if err != nil {
		panic(fmt.Errorf("action.NewRegistry failed: %w", err))
	}
	return reg
}
