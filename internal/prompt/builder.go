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
	TemplatePhotoAnalysis   TemplateName = "photo_analysis.yaml"
	TemplateProfileAnalysis TemplateName = "profile_analysis.yaml"
	TemplateFollowUp        TemplateName = "follow_up.yaml"
)

// templateFile is the YAML envelope every prompt lives in.
type templateFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Preset      string `yaml:"preset"`
	Template    string `yaml:"template"`
}

type compiled struct {
	preset string
	tmpl   *template.Template
}

type PromptBuilder struct {
	mu        sync.RWMutex
	templates map[TemplateName]compiled
}

var (
	defaultBuilderOnce sync.Once
	defaultBuilder     *PromptBuilder
)

var funcs = template.FuncMap{
	"default": func(def, v string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	},
	"truncate": func(n int, s string) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "..."
	},
}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		templates: make(map[TemplateName]compiled),
	}
}

func DefaultPromptBuilder() *PromptBuilder {
	defaultBuilderOnce.Do(func() {
		defaultBuilder = NewPromptBuilder()
	})
	return defaultBuilder
}

func (pb *PromptBuilder) Render(name TemplateName, data any) (string, error) {
	c, err := pb.getTemplate(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Preset returns the model preset the template asks for.
func (pb *PromptBuilder) Preset(name TemplateName) (string, error) {
	c, err := pb.getTemplate(name)
	if err != nil {
		return "", err
	}
	return c.preset, nil
}

func (pb *PromptBuilder) getTemplate(name TemplateName) (compiled, error) {
	pb.mu.RLock()
	if c, ok := pb.templates[name]; ok {
		pb.mu.RUnlock()
		return c, nil
	}
	pb.mu.RUnlock()

	filename := filepath.ToSlash(filepath.Join("templates", string(name)))
	content, err := templateFS.ReadFile(filename)
	if err != nil {
		return compiled{}, fmt.Errorf("load prompt template %s: %w", name, err)
	}

	var file templateFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return compiled{}, fmt.Errorf("decode prompt template %s: %w", name, err)
	}
	if strings.TrimSpace(file.Template) == "" {
		return compiled{}, fmt.Errorf("prompt template %s has no template body", name)
	}

	tmpl, err := template.New(string(name)).Funcs(funcs).Option("missingkey=error").Parse(file.Template)
	if err != nil {
		return compiled{}, fmt.Errorf("parse prompt template %s: %w", name, err)
	}

	c := compiled{preset: file.Preset, tmpl: tmpl}

	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.templates[name] = c

	return c, nil
}
