package schema_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/workspace-mcp/internal/schema"
)

func sendSchema() *schema.Schema {
	return &schema.Schema{
		Action: "email.send",
		Doc:    "https://example.com/docs#emailsend",
		Fields: []schema.Field{
			{Name: "to", Type: schema.AddressList, Required: true, Example: "a@b.com"},
			{Name: "subject", Type: schema.String, Required: true, MaxLen: 20, Example: "Hi"},
			{Name: "body", Type: schema.String, Required: true},
			{Name: "limit", Type: schema.Int, Min: 1, Max: 100, Default: int64(50)},
			{Name: "folder", Type: schema.Enum, Values: []string{"inbox", "sent"}, Default: "inbox"},
			{Name: "dry_run", Type: schema.Bool},
			{Name: "when", Type: schema.Timestamp},
		},
	}
}

func TestValidateNormalization(t *testing.T) {
	s := sendSchema()

	p, err := s.Validate(map[string]any{
		"to":      "Upper.Case@Example.COM",
		"subject": "Hello",
		"body":    "text",
		"when":    "2026-08-25T10:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"upper.case@example.com"}, p.StringList("to"), "scalar promoted to list and lower-cased")
	assert.Equal(t, int64(50), p.Int("limit"), "omitted optional gets default")
	assert.Equal(t, "inbox", p.String("folder"))
	assert.Equal(t, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC), p.Time("when"))
}

func TestValidateReportsAllViolations(t *testing.T) {
	s := sendSchema()

	_, err := s.Validate(map[string]any{
		"to":      "not-an-address",
		"body":    "text",
		"limit":   500,
		"unknown": "x",
	})
	require.Error(t, err)

	invalid, ok := err.(*schema.Error)
	require.True(t, ok, "expected *schema.Error, got %T", err)

	fields := make([]string, 0, len(invalid.Violations))
	for _, v := range invalid.Violations {
		fields = append(fields, v.Field)
	}

	assert.ElementsMatch(t, []string{"to", "subject", "limit", "unknown"}, fields,
		"every violation reported in one pass")
	assert.Equal(t, "email.send", invalid.Action)
	assert.NotEmpty(t, invalid.Example, "error carries a filled-in usage example")
	assert.Equal(t, "a@b.com", invalid.Example["to"])
}

func TestValidateRangeMessage(t *testing.T) {
	s := sendSchema()

	_, err := s.Validate(map[string]any{
		"to":      "a@b.com",
		"subject": "Hi",
		"body":    "text",
		"limit":   500,
	})
	require.Error(t, err)

	invalid := err.(*schema.Error)
	require.Len(t, invalid.Violations, 1)
	assert.Equal(t, "limit", invalid.Violations[0].Field)
	assert.Equal(t, "integer between 1 and 100", invalid.Violations[0].Expected)
	assert.Equal(t, "500", invalid.Violations[0].Got)
}

func TestValidateTypeMismatches(t *testing.T) {
	s := sendSchema()

	cases := []struct {
		name  string
		raw   map[string]any
		field string
	}{
		{
			name:  "subject not a string",
			raw:   map[string]any{"to": "a@b.com", "subject": 12, "body": "x"},
			field: "subject",
		},
		{
			name:  "limit fractional",
			raw:   map[string]any{"to": "a@b.com", "subject": "Hi", "body": "x", "limit": 1.5},
			field: "limit",
		},
		{
			name:  "dry_run not boolean",
			raw:   map[string]any{"to": "a@b.com", "subject": "Hi", "body": "x", "dry_run": "yes"},
			field: "dry_run",
		},
		{
			name:  "folder outside enum",
			raw:   map[string]any{"to": "a@b.com", "subject": "Hi", "body": "x", "folder": "junk"},
			field: "folder",
		},
		{
			name:  "when not a timestamp",
			raw:   map[string]any{"to": "a@b.com", "subject": "Hi", "body": "x", "when": "tomorrow"},
			field: "when",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Validate(tc.raw)
			require.Error(t, err)

			invalid := err.(*schema.Error)
			require.Len(t, invalid.Violations, 1)
			assert.Equal(t, tc.field, invalid.Violations[0].Field)
		})
	}
}

func TestValidateCrossFieldRunsAfterFieldChecks(t *testing.T) {
	s := &schema.Schema{
		Action: "calendar.create",
		Fields: []schema.Field{
			{Name: "start", Type: schema.Timestamp, Required: true},
			{Name: "end", Type: schema.Timestamp, Required: true},
		},
		Check: func(p schema.Params) []schema.Violation {
			if !p.Time("end").After(p.Time("start")) {
				return []schema.Violation{{Field: "end", Message: "end must be after start"}}
			}
			return nil
		},
	}

	_, err := s.Validate(map[string]any{
		"start": "2026-09-01T11:00:00Z",
		"end":   "2026-09-01T10:00:00Z",
	})
	require.Error(t, err)
	invalid := err.(*schema.Error)
	require.Len(t, invalid.Violations, 1)
	assert.Equal(t, "end", invalid.Violations[0].Field)

	// Cross-field checks wait until per-field checks pass.
	_, err = s.Validate(map[string]any{"start": "bogus", "end": "2026-09-01T10:00:00Z"})
	require.Error(t, err)
	invalid = err.(*schema.Error)
	require.Len(t, invalid.Violations, 1)
	assert.Equal(t, "start", invalid.Violations[0].Field)
}

func TestValidateAddressListForms(t *testing.T) {
	s := &schema.Schema{
		Action: "email.send",
		Fields: []schema.Field{
			{Name: "to", Type: schema.AddressList, Required: true},
		},
	}

	p, err := s.Validate(map[string]any{"to": []any{"A@b.com", "c@d.com"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@b.com", "c@d.com"}, p.StringList("to"))

	_, err = s.Validate(map[string]any{"to": []any{"a@b.com", 42}})
	require.Error(t, err)
}
