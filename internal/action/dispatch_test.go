package action_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/workspace-mcp/internal/action"
	"github.com/hal9000y/workspace-mcp/internal/schema"
)

func newDispatcher(t *testing.T, handlers map[string]action.Handler) *action.Dispatcher {
	t.Helper()

	var descs []action.Descriptor
	for name, h := range handlers {
		d := descriptor(name)
		d.Handler = h
		descs = append(descs, d)
	}

	reg, err := action.NewRegistry(descs...)
	require.NoError(t, err)

	return action.NewDispatcher(reg)
}

func TestExecuteSuccess(t *testing.T) {
	d := newDispatcher(t, map[string]action.Handler{
		"email.list": func(_ context.Context, accountID string, p schema.Params) (any, error) {
			return map[string]any{"account": accountID, "id": p.String("id"), "limit": p.Int("limit")}, nil
		},
	})

	env := d.Execute(context.Background(), "acct1", "email.list", map[string]any{"id": "m-1"})

	require.Equal(t, "success", env.Status)
	assert.Equal(t, "email.list", env.Action)
	assert.Nil(t, env.Error)

	data := env.Data.(map[string]any)
	assert.Equal(t, "acct1", data["account"])
	assert.Equal(t, int64(50), data["limit"], "defaults applied before the handler runs")
}

func TestExecuteUnknownActionSuggests(t *testing.T) {
	d := newDispatcher(t, map[string]action.Handler{
		"email.list": noopHandler,
		"email.send": noopHandler,
	})

	env := d.Execute(context.Background(), "acct1", "email.lst", nil)

	require.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, action.KindUnknownAction, env.Error.Type)
	assert.Contains(t, env.Error.Hint, `"email.list"`)

	details := env.Error.Details.(map[string]any)
	assert.Equal(t, []string{"email.list", "email.send"}, details["available"])
	suggestions := details["suggestions"].([]string)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "email.list", suggestions[0])
}

func TestExecuteUnknownActionWithoutCloseMatch(t *testing.T) {
	d := newDispatcher(t, map[string]action.Handler{"email.list": noopHandler})

	env := d.Execute(context.Background(), "acct1", "spreadsheet.pivot", nil)

	require.Equal(t, "error", env.Status)
	assert.Equal(t, action.KindUnknownAction, env.Error.Type)
	assert.Contains(t, env.Error.Hint, "list_actions")
}

func TestExecuteValidationError(t *testing.T) {
	called := false
	d := newDispatcher(t, map[string]action.Handler{
		"email.list": func(_ context.Context, _ string, _ schema.Params) (any, error) {
			called = true
			return nil, nil
		},
	})

	env := d.Execute(context.Background(), "acct1", "email.list", map[string]any{"limit": 500})

	require.Equal(t, "error", env.Status)
	assert.Equal(t, action.KindValidation, env.Error.Type)
	assert.False(t, called, "validation failures never reach the handler")

	invalid := env.Error.Details.(*schema.Error)
	fields := make([]string, 0, len(invalid.Violations))
	for _, v := range invalid.Violations {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"id", "limit"}, fields)
	assert.NotEmpty(t, invalid.Example)
}

func TestExecuteClassifiesHandlerErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		expected action.Kind
	}{
		{
			name:     "classified error passes through",
			err:      action.NewError(action.KindAuth, nil, "no valid credential"),
			expected: action.KindAuth,
		},
		{
			name:     "wrapped classified error unwraps",
			err:      errorsJoin(action.NewError(action.KindTransient, nil, "timed out")),
			expected: action.KindTransient,
		},
		{
			name:     "raw error becomes upstream",
			err:      errors.New("socket exploded"),
			expected: action.KindUpstream,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDispatcher(t, map[string]action.Handler{
				"email.list": func(_ context.Context, _ string, _ schema.Params) (any, error) {
					return nil, tc.err
				},
			})

			env := d.Execute(context.Background(), "acct1", "email.list", map[string]any{"id": "m-1"})

			require.Equal(t, "error", env.Status)
			assert.Equal(t, tc.expected, env.Error.Type)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func errorsJoin(err error) error {
	return &wrappingError{err: err}
}

type wrappingError struct {
	err error
}

func (w *wrappingError) Error() string { return "handler: " + w.err.Error() }
func (w *wrappingError) Unwrap() error { return w.err }
