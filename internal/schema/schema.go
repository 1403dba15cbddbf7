// Package schema defines declarative parameter contracts for dispatcher actions.
//
// Every action owns one Schema. Validation runs in a fixed order (type checks,
// then range/format checks, then cross-field checks) and reports every
// violation found in a single pass. Unknown fields are a hard failure.
package schema

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"
)

// Type identifies the expected shape of a field value.
type Type string

// Field types accepted by Validate.
const (
	String      Type = "string"
	StringList  Type = "string list"
	Int         Type = "integer"
	Bool        Type = "boolean"
	Address     Type = "email address"
	AddressList Type = "email address list"
	Timestamp   Type = "RFC3339 timestamp"
	Enum        Type = "enumerated string"
	Object      Type = "object"
)

// Field describes a single parameter of an action.
type Field struct {
	Name     string
	Type     Type
	Required bool

	// Default is applied when an optional field is omitted.
	Default any

	// MinLen/MaxLen bound string lengths; zero means unbounded.
	MinLen, MaxLen int

	// Min/Max bound integer values; both zero means unbounded.
	Min, Max int64

	// Values enumerates legal inputs for Enum fields.
	Values []string

	Doc     string
	Example any
}

// Schema is the validated input contract of one action.
type Schema struct {
	Action string
	Doc    string
	Fields []Field

	// Check runs cross-field rules once all per-field checks passed.
	Check func(p Params) []Violation
}

// Params holds validated, normalized parameter values.
type Params map[string]any

// String returns a string parameter, or "" when absent.
func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

// StringList returns a list parameter, or nil when absent.
func (p Params) StringList(name string) []string {
	v, _ := p[name].([]string)
	return v
}

// Int returns an integer parameter, or 0 when absent.
func (p Params) Int(name string) int64 {
	v, _ := p[name].(int64)
	return v
}

// Bool returns a boolean parameter, or false when absent.
func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// Time returns a timestamp parameter, or the zero time when absent.
func (p Params) Time(name string) time.Time {
	v, _ := p[name].(time.Time)
	return v
}

// Object returns an object parameter, or nil when absent.
func (p Params) Object(name string) map[string]any {
	v, _ := p[name].(map[string]any)
	return v
}

// Validate normalizes raw caller input against the schema. On failure it
// returns an *Error carrying every violation found, a filled-in usage
// example and the schema's doc pointer.
func (s *Schema) Validate(raw map[string]any) (Params, error) {
	out := Params{}
	var violations []Violation

	known := make(map[string]Field, len(s.Fields))
	for _, f := range s.Fields {
		known[f.Name] = f
	}

	var unknown []string
	for name := range raw {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		violations = append(violations, Violation{
			Field:    name,
			Expected: "no such parameter",
			Got:      describe(raw[name]),
			Message:  fmt.Sprintf("unknown parameter %q is not accepted by %s", name, s.Action),
		})
	}

	for _, f := range s.Fields {
		value, present := raw[f.Name]
		if !present || value == nil {
			if f.Required {
				violations = append(violations, Violation{
					Field:    f.Name,
					Expected: string(f.Type),
					Got:      "nothing",
					Message:  fmt.Sprintf("required parameter %q is missing", f.Name),
				})
				continue
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}

		normalized, v := coerce(f, value)
		if v != nil {
			violations = append(violations, *v)
			continue
		}
		if v := checkBounds(f, normalized); v != nil {
			violations = append(violations, *v)
			continue
		}
		out[f.Name] = normalized
	}

	if len(violations) == 0 && s.Check != nil {
		violations = append(violations, s.Check(out)...)
	}

	if len(violations) > 0 {
		return nil, &Error{
			Action:     s.Action,
			Violations: violations,
			Example:    s.ExampleCall(),
			Doc:        s.Doc,
		}
	}

	return out, nil
}

// ExampleCall builds a usable parameter object from the field examples.
func (s *Schema) ExampleCall() map[string]any {
	example := map[string]any{}
	for _, f := range s.Fields {
		if f.Example != nil {
			example[f.Name] = f.Example
		} else if f.Required {
			example[f.Name] = fmt.Sprintf("<%s>", f.Type)
		}
	}
	return example
}

// RequiredNames lists required field names in declaration order.
func (s *Schema) RequiredNames() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// OptionalNames lists optional field names in declaration order.
func (s *Schema) OptionalNames() []string {
	var names []string
	for _, f := range s.Fields {
		if !f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

func coerce(f Field, value any) (any, *Violation) {
	switch f.Type {
	case String:
		return coerceString(f, value)
	case StringList:
		return coerceStringList(f, value, false)
	case Int:
		return coerceInt(f, value)
	case Bool:
		b, ok := value.(bool)
		if !ok {
			return nil, mismatch(f, value)
		}
		return b, nil
	case Address:
		addr, ok := value.(string)
		if !ok {
			return nil, mismatch(f, value)
		}
		return normalizeAddress(f, addr)
	case AddressList:
		return coerceStringList(f, value, true)
	case Timestamp:
		raw, ok := value.(string)
		if !ok {
			return nil, mismatch(f, value)
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, &Violation{
				Field:    f.Name,
				Expected: string(Timestamp),
				Got:      fmt.Sprintf("%q", raw),
				Message:  fmt.Sprintf("%q must be an RFC3339 timestamp, e.g. 2026-08-25T10:00:00Z", f.Name),
			}
		}
		return ts, nil
	case Enum:
		raw, ok := value.(string)
		if !ok {
			return nil, mismatch(f, value)
		}
		raw = strings.ToLower(strings.TrimSpace(raw))
		for _, allowed := range f.Values {
			if raw == allowed {
				return raw, nil
			}
		}
		return nil, &Violation{
			Field:    f.Name,
			Expected: "one of " + strings.Join(f.Values, ", "),
			Got:      fmt.Sprintf("%q", raw),
			Message:  fmt.Sprintf("%q must be one of: %s", f.Name, strings.Join(f.Values, ", ")),
		}
	case Object:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, mismatch(f, value)
		}
		return obj, nil
	default:
		return nil, &Violation{
			Field:    f.Name,
			Expected: string(f.Type),
			Got:      describe(value),
			Message:  fmt.Sprintf("unsupported field type %q", f.Type),
		}
	}
}

func coerceString(f Field, value any) (any, *Violation) {
	s, ok := value.(string)
	if !ok {
		return nil, mismatch(f, value)
	}
	return s, nil
}

// coerceStringList promotes a single scalar to a one-element list. Address
// lists additionally lower-case and format-check every element.
func coerceStringList(f Field, value any, addresses bool) (any, *Violation) {
	var items []string
	switch v := value.(type) {
	case string:
		items = []string{v}
	case []string:
		items = v
	case []any:
		items = make([]string, 0, len(v))
		for _, el := range v {
			s, ok := el.(string)
			if !ok {
				return nil, &Violation{
					Field:    f.Name,
					Expected: string(f.Type),
					Got:      describe(el),
					Message:  fmt.Sprintf("every element of %q must be a string", f.Name),
				}
			}
			items = append(items, s)
		}
	default:
		return nil, mismatch(f, value)
	}

	if !addresses {
		return items, nil
	}

	normalized := make([]string, 0, len(items))
	for _, item := range items {
		addr, v := normalizeAddress(f, item)
		if v != nil {
			return nil, v
		}
		normalized = append(normalized, addr.(string))
	}
	return normalized, nil
}

func coerceInt(f Field, value any) (any, *Violation) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return nil, mismatch(f, value)
		}
		return int64(v), nil
	default:
		return nil, mismatch(f, value)
	}
}

// normalizeAddress lower-cases the address before storage and rejects
// anything net/mail cannot parse.
func normalizeAddress(f Field, raw string) (any, *Violation) {
	addr := strings.ToLower(strings.TrimSpace(raw))
	if _, err := mail.ParseAddress(addr); err != nil {
		return nil, &Violation{
			Field:    f.Name,
			Expected: string(Address),
			Got:      fmt.Sprintf("%q", raw),
			Message:  fmt.Sprintf("%q is not a valid email address", raw),
		}
	}
	return addr, nil
}

func checkBounds(f Field, value any) *Violation {
	switch v := value.(type) {
	case string:
		if f.MinLen > 0 && len(v) < f.MinLen {
			return &Violation{
				Field:    f.Name,
				Expected: fmt.Sprintf("at least %d characters", f.MinLen),
				Got:      fmt.Sprintf("%d characters", len(v)),
				Message:  fmt.Sprintf("%q is too short (minimum %d characters)", f.Name, f.MinLen),
			}
		}
		if f.MaxLen > 0 && len(v) > f.MaxLen {
			return &Violation{
				Field:    f.Name,
				Expected: fmt.Sprintf("at most %d characters", f.MaxLen),
				Got:      fmt.Sprintf("%d characters", len(v)),
				Message:  fmt.Sprintf("%q is too long (maximum %d characters)", f.Name, f.MaxLen),
			}
		}
	case int64:
		if f.Min == 0 && f.Max == 0 {
			return nil
		}
		if v < f.Min || v > f.Max {
			return &Violation{
				Field:    f.Name,
				Expected: fmt.Sprintf("integer between %d and %d", f.Min, f.Max),
				Got:      fmt.Sprintf("%d", v),
				Message:  fmt.Sprintf("%q must be between %d and %d", f.Name, f.Min, f.Max),
			}
		}
	}
	return nil
}

func mismatch(f Field, value any) *Violation {
	return &Violation{
		Field:    f.Name,
		Expected: string(f.Type),
		Got:      describe(value),
		Message:  fmt.Sprintf("%q must be a %s", f.Name, f.Type),
	}
}

func describe(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("string %q", v)
	case bool:
		return fmt.Sprintf("boolean %t", v)
	case float64, int, int64:
		return fmt.Sprintf("number %v", v)
	case []any, []string:
		return "list"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
