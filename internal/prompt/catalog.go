// Package prompt holds the catalog of prompt templates sent to every
// provider for every subject.
package prompt

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/domain-runner/internal/model"
)

// Built-in prompt types.
const (
	BusinessAnalysis    = "business_analysis"
	ContentStrategy     = "content_strategy"
	TechnicalAssessment = "technical_assessment"
)

// Defaults returns the built-in prompt catalog.
func Defaults() []model.Prompt {
	return []model.Prompt{
		{
			Type:     BusinessAnalysis,
			Template: "Analyze the business model, target market, and competitive position of {domain}. What does the company do and who are its main competitors?",
		},
		{
			Type:     ContentStrategy,
			Template: "Describe the content strategy and brand messaging of {domain}. What topics, formats, and channels does it rely on?",
		},
		{
			Type:     TechnicalAssessment,
			Template: "Assess the technical stack and digital infrastructure of {domain}. What technologies and platforms does it appear to use?",
		},
	}
}

type catalogFile struct {
	Prompts []model.Prompt `yaml:"prompts"`
}

// Load returns the prompt catalog. An empty path yields the built-in
// defaults; otherwise the YAML file at path replaces them.
func Load(path string) ([]model.Prompt, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompt: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML prompt catalog and validates every entry.
func Parse(data []byte) ([]model.Prompt, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "prompt: parse catalog")
	}
	if len(f.Prompts) == 0 {
		return nil, eris.New("prompt: catalog is empty")
	}

	seen := make(map[string]bool, len(f.Prompts))
	for i, p := range f.Prompts {
		if strings.TrimSpace(p.Type) == "" {
			return nil, eris.Errorf("prompt: entry %d has no type", i)
		}
		if seen[p.Type] {
			return nil, eris.Errorf("prompt: duplicate type %q", p.Type)
		}
		if !strings.Contains(p.Template, model.DomainPlaceholder) {
			return nil, eris.Errorf("prompt: template %q has no %s placeholder", p.Type, model.DomainPlaceholder)
		}
		seen[p.Type] = true
	}
	return f.Prompts, nil
}
