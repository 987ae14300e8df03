// Package knowledge holds the assistant's static texts: the persona prompt,
// the GitHub link and the small "what is" question set.
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Answer struct {
	Aliases []string `yaml:"aliases"`
	Text    string   `yaml:"text"`
}

type Base struct {
	PromptPrefix string   `yaml:"prompt_prefix"`
	GitHubLink   string   `yaml:"github_link"`
	Fallback     string   `yaml:"fallback"`
	Answers      []Answer `yaml:"answers"`

	byAlias map[string]string
}

// Default returns the built-in texts.
func Default() *Base {
	b, err := parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("knowledge: embedded defaults: %v", err))
	}
	return b
}

// Load reads an override file. Fields left empty in the file keep their
// built-in value; answers in the file replace the built-in set.
func Load(path string) (*Base, error) {
	base := Default()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	override, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if override.PromptPrefix != "" {
		base.PromptPrefix = override.PromptPrefix
	}
	if override.GitHubLink != "" {
		base.GitHubLink = override.GitHubLink
	}
	if override.Fallback != "" {
		base.Fallback = override.Fallback
	}
	if len(override.Answers) > 0 {
		base.Answers = override.Answers
		base.byAlias = override.byAlias
	}
	return base, nil
}

func parse(raw []byte) (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	b.byAlias = make(map[string]string)
	for i, a := range b.Answers {
		if a.Text == "" {
			return nil, fmt.Errorf("answer %d has no text", i)
		}
		if len(a.Aliases) == 0 {
			return nil, fmt.Errorf("answer %d has no aliases", i)
		}
		for _, alias := range a.Aliases {
			b.byAlias[normalize(alias)] = a.Text
		}
	}
	return &b, nil
}

// Answer looks question up case-insensitively among the known aliases.
// Anything unknown gets the fallback text.
func (b *Base) Answer(question string) string {
	if text, ok := b.byAlias[normalize(question)]; ok {
		return text
	}
	return b.Fallback
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
