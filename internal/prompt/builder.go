package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"path/filepath"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

type TemplateName string

const (
	TemplateProductAnalysis TemplateName = "product_analysis.yaml"
)

// PromptFile is the on-disk shape of a prompt template.
type PromptFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	System      string `yaml:"system"`
	Template    string `yaml:"template"`
}

type compiledPrompt struct {
	file PromptFile
	tmpl *template.Template
}

// Rendered is a prompt ready to send.
type Rendered struct {
	System string
	User   string
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

	var buf bytes.Buffer
	if err := compiled.tmpl.Execute(&buf, data); err != nil {
		return Rendered{}, fmt.Errorf("render prompt %s: %w", name, err)
	}

	return Rendered{System: compiled.file.System, User: buf.String()}, nil
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

	var file PromptFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("decode prompt template %s: %w", name, err)
	}
	if file.Template == "" {
		return nil, fmt.Errorf("prompt template %s has no template body", name)
	}

	tmpl, err := template.New(string(name)).Option("missingkey=error").Parse(file.Template)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}

	compiled := &compiledPrompt{file: file, tmpl: tmpl}

	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.templates[name] = compiled

	return compiled, nil
}
