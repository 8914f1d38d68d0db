package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

type TemplateName string

const (
	TemplateDiaryAnalysis TemplateName = "diary_analysis.yaml"
)

// Rendered is a prompt split into the model's system instruction and the user turn.
type Rendered struct {
	System string
	User   string
}

type promptDocument struct {
	SystemInstruction string `yaml:"system_instruction"`
	User              string `yaml:"user"`
}

type compiledPrompt struct {
	system *template.Template
	user   *template.Template
}

type PromptBuilder struct {
	mu        sync.RWMutex
	templates map[TemplateName]*compiledPrompt
}

var (
	defaultBuilderOnce sync.Once
	defaultBuilder     *PromptBuilder
)

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		templates: make(map[TemplateName]*compiledPrompt),
	}
}

func DefaultPromptBuilder() *PromptBuilder {
	defaultBuilderOnce.Do(func() {
		defaultBuilder = NewPromptBuilder()
	})
	return defaultBuilder
}

func (pb *PromptBuilder) Render(name TemplateName, data any) (Rendered, error) {
	compiled, err := pb.getTemplate(name)
	if err != nil {
		return Rendered{}, err
	}

	system, err := execute(compiled.system, data)
	if err != nil {
		return Rendered{}, fmt.Errorf("render prompt %s system: %w", name, err)
	}
	user, err := execute(compiled.user, data)
	if err != nil {
		return Rendered{}, fmt.Errorf("render prompt %s user: %w", name, err)
	}

	return Rendered{System: strings.TrimSpace(system), User: strings.TrimSpace(user)}, nil
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (pb *PromptBuilder) getTemplate(name TemplateName) (*compiledPrompt, error) {
	pb.mu.RLock()
	if compiled, ok := pb.templates[name]; ok {
		pb.mu.RUnlock()
		return compiled, nil
	}
	pb.mu.RUnlock()

	filename := filepath.ToSlash(filepath.Join("templates", string(name)))
	content, err := templateFS.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("load prompt template %s: %w", name, err)
	}

	var doc promptDocument
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("decode prompt template %s: %w", name, err)
	}
	if strings.TrimSpace(doc.User) == "" {
		return nil, fmt.Errorf("prompt template %s has no user section", name)
	}

	system, err := template.New(string(name) + ":system").Parse(doc.SystemInstruction)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	user, err := template.New(string(name) + ":user").Parse(doc.User)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}

	compiled := &compiledPrompt{system: system, user: user}

	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.templates[name] = compiled

	return compiled, nil
}
