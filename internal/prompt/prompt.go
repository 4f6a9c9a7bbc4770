// Package prompt holds extraction prompt templates and the selector that
// picks a specialized template when the document carries domain indicators.
package prompt

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/docpipe/internal/model"
)

// Template is one extraction prompt. A template with Indicators is
// specialized: it wins when any indicator substring appears in the document.
// A template without Indicators is the generic fallback for its document
// type.
type Template struct {
	Name         string             `yaml:"name"`
	DocumentType model.DocumentType `yaml:"document_type"`
	Indicators   []string           `yaml:"indicators,omitempty"`
	System       string             `yaml:"system"`
	User         string             `yaml:"user"` // {{document}} placeholder
}

// Render substitutes the document text into the user prompt.
func (t Template) Render(document string) string {
	return strings.ReplaceAll(t.User, "{{document}}", document)
}

// Library is an ordered set of templates. Specialized templates are checked
// in declaration order; the first indicator hit wins.
type Library struct {
	Templates []Template `yaml:"templates"`
}

// Select chooses a template for normalized document text. Selection is
// deterministic, advisory, and never fails: absence of any indicator falls
// through to the generic template for the hinted document type (or the
// library's last generic template when the hint is unknown).
func (l *Library) Select(cleanText string, hint model.DocumentType) Template {
	lower := strings.ToLower(cleanText)

	for _, t := range l.Templates {
		for _, ind := range t.Indicators {
			if strings.Contains(lower, strings.ToLower(ind)) {
				return t
			}
		}
	}

	var fallback *Template
	for i := range l.Templates {
		t := &l.Templates[i]
		if len(t.Indicators) > 0 {
			continue
		}
		if t.DocumentType == hint {
			return *t
		}
		fallback = t
	}
	if fallback != nil {
		return *fallback
	}
	return Template{}
}

// Load reads a template library from a YAML file.
func Load(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompt: read %s", path)
	}

	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, eris.Wrapf(err, "prompt: parse %s", path)
	}
	if len(lib.Templates) == 0 {
		return nil, eris.Errorf("prompt: %s contains no templates", path)
	}
	return &lib, nil
}
