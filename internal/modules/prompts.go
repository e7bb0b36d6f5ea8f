package modules

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

var templateFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
	// oneline keeps header lines on a single line.
	"oneline": func(s string) string { return strings.Join(strings.Fields(s), " ") },
}

// PromptCache parses request templates once and reuses them.
type PromptCache struct {
	fsys      fs.FS
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewPromptCache reads templates from fsys. A nil fsys uses the built-in set.
func NewPromptCache(fsys fs.FS) *PromptCache {
	if fsys == nil {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			panic(fmt.Sprintf("modules: embedded templates: %v", err))
		}
		fsys = sub
	}
	return &PromptCache{
		fsys:      fsys,
		templates: make(map[string]*template.Template),
	}
}

// Template loads and parses name.tmpl, or returns the cached parse.
func (pc *PromptCache) Template(name string) (*template.Template, error) {
	pc.mu.RLock()
	if tmpl, ok := pc.templates[name]; ok {
		pc.mu.RUnlock()
		return tmpl, nil
	}
	pc.mu.RUnlock()

	content, err := fs.ReadFile(pc.fsys, name+".tmpl")
	if err != nil {
		return nil, fmt.Errorf("reading prompt template: %w", err)
	}
	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if cached, ok := pc.templates[name]; ok {
		return cached, nil
	}
	pc.templates[name] = tmpl
	return tmpl, nil
}

// Render executes template name with data.
func (pc *PromptCache) Render(name string, data any) (string, error) {
	tmpl, err := pc.Template(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// Preload parses every named template so errors surface at startup.
func (pc *PromptCache) Preload(names ...string) error {
	for _, name := range names {
		if _, err := pc.Template(name); err != nil {
			return fmt.Errorf("preloading %s: %w", name, err)
		}
	}
	return nil
}

// Len returns the number of parsed templates.
func (pc *PromptCache) Len() int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return len(pc.templates)
}
