// Package render turns structured data into HTML email that survives
// hostile mail clients: user-supplied fields are context-escaped, stylesheet
// rules are inlined per element, and a plain-text fallback accompanies
// every rendered document.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"

	"github.com/Masterminds/sprig/v3"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Rendering failure modes.
var (
	ErrUnknownTemplate = errors.New("unknown template")
	ErrUnknownTheme    = errors.New("unknown theme")
	ErrMissingData     = errors.New("missing template data")
)

// Output is the rendered result. Inlined reports whether CSS inlining
// succeeded; when false, HTML still carries its stylesheet and renders
// degraded rather than failing the send.
type Output struct {
	HTML    string `json:"html"`
	Text    string `json:"text"`
	Inlined bool   `json:"inlined"`
}

// Descriptor declares a template's data contract. UserFields names the
// fields that originate outside the system and therefore must be escaped;
// everything in Data is escaped unless the caller wraps it with Trusted.
type Descriptor struct {
	Name       string         `json:"name"`
	Required   []string       `json:"required"`
	UserFields []string       `json:"user_fields"`
	Example    map[string]any `json:"example"`
}

var descriptors = []Descriptor{
	{
		Name:       "message",
		Required:   []string{"subject", "body"},
		UserFields: []string{"subject", "body"},
		Example: map[string]any{
			"subject": "Weekly report",
			"body":    "The report is attached below.",
		},
	},
	{
		Name:       "notification",
		Required:   []string{"title", "body"},
		UserFields: []string{"title", "body"},
		Example: map[string]any{
			"title":        "Build finished",
			"body":         "Pipeline #42 completed in 3m12s.",
			"action_url":   "https://ci.example.com/builds/42",
			"action_label": "View build",
		},
	},
	{
		Name:       "invite",
		Required:   []string{"summary", "start", "end"},
		UserFields: []string{"summary", "location", "organizer", "description"},
		Example: map[string]any{
			"summary":  "Quarterly planning",
			"start":    "2026-09-01T10:00:00Z",
			"end":      "2026-09-01T11:00:00Z",
			"location": "Room 4A",
		},
	},
}

// Engine renders named templates over shared structural blocks per theme.
type Engine struct {
	themes map[string]Theme
	tmpl   *template.Template
	descs  map[string]Descriptor
}

// NewEngine parses the embedded templates and theme definitions.
func NewEngine() (*Engine, error) {
	themes, err := loadThemes()
	if err != nil {
		return nil, fmt.Errorf("loadThemes failed: %w", err)
	}

	tmpl, err := template.New("email").
		Funcs(sprig.HtmlFuncMap()).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("template.ParseFS failed: %w", err)
	}

	descs := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		descs[d.Name] = d
	}

	return &Engine{themes: themes, tmpl: tmpl, descs: descs}, nil
}

// Templates returns the declared template descriptors.
func (e *Engine) Templates() []Descriptor {
	out := make([]Descriptor, 0, len(descriptors))
	out = append(out, descriptors...)
	return out
}

// TemplateNames lists template names for schema enums.
func (e *Engine) TemplateNames() []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	return names
}

// Trusted marks a string as system-controlled HTML, exempting it from
// escaping. Callers own the audit burden for anything passed here.
func Trusted(s string) template.HTML {
	return template.HTML(s)
}

type renderContext struct {
	Theme Theme
	Data  map[string]any
}

// Render produces HTML plus a plain-text fallback for a named template.
// Inlining failure degrades to the un-inlined document; it never fails the
// render.
func (e *Engine) Render(name string, data map[string]any, themeName string) (*Output, error) {
	desc, ok := e.descs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}

	for _, field := range desc.Required {
		if v, present := data[field]; !present || v == nil || v == "" {
			return nil, fmt.Errorf("%w: %q requires field %q", ErrMissingData, name, field)
		}
	}

	if themeName == "" {
		themeName = DefaultTheme
	}
	theme, ok := e.themes[themeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTheme, themeName)
	}

	var buf bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&buf, name, renderContext{Theme: theme, Data: data}); err != nil {
		return nil, fmt.Errorf("tmpl.ExecuteTemplate failed: %w", err)
	}
	doc := buf.String()

	out := &Output{
		Text: Textify(doc),
	}

	inlined, err := InlineCSS(doc)
	if err != nil {
		log.Println(fmt.Errorf("InlineCSS failed, sending un-inlined HTML: %w", err))
		out.HTML = doc
		return out, nil
	}

	out.HTML = inlined
	out.Inlined = true

	return out, nil
}
