package render

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed themes.yaml
var themesYAML []byte

// Theme is a color/typography variant applied to the shared structural
// blocks. Content templates never hardcode styling, so themes swap without
// touching content logic.
type Theme struct {
	Name       string `yaml:"name"`
	Background string `yaml:"background"`
	Surface    string `yaml:"surface"`
	Text       string `yaml:"text"`
	Accent     string `yaml:"accent"`
	Muted      string `yaml:"muted"`
	FontFamily string `yaml:"font_family"`
}

// DefaultTheme is used when the caller does not pick one.
const DefaultTheme = "light"

func loadThemes() (map[string]Theme, error) {
	var doc struct {
		Themes []Theme `yaml:"themes"`
	}
	if err := yaml.Unmarshal(themesYAML, &doc); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal failed: %w", err)
	}

	themes := make(map[string]Theme, len(doc.Themes))
	for _, t := range doc.Themes {
		if _, exists := themes[t.Name]; exists {
			return nil, fmt.Errorf("theme %q defined twice", t.Name)
		}
		themes[t.Name] = t
	}

	if _, ok := themes[DefaultTheme]; !ok {
		return nil, fmt.Errorf("default theme %q missing", DefaultTheme)
	}

	return themes, nil
}

// ThemeNames lists the configured theme names for schema enums.
func (e *Engine) ThemeNames() []string {
	names := make([]string, 0, len(e.themes))
	for name := range e.themes {
		names = append(names, name)
	}
	return names
}
