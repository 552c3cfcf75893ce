package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/mailcannon/mailcannon/internal/domain"
)

// FileTemplateRenderer implements domain.TemplateRenderer over a directory of
// Liquid templates. A template ID maps to <dir>/<id>/ holding subject.liquid,
// html.liquid, and optionally text.liquid. Parsed templates are cached per
// ID; template files are not expected to change while running.
type FileTemplateRenderer struct {
	dir    string
	engine *liquid.Engine

	mu    sync.RWMutex
	cache map[string]*parsedTemplate
}

type parsedTemplate struct {
	subject *liquid.Template
	html    *liquid.Template
	text    *liquid.Template
}

// NewFileTemplateRenderer creates a renderer rooted at dir.
func NewFileTemplateRenderer(dir string) *FileTemplateRenderer {
	return &FileTemplateRenderer{
		dir:    dir,
		engine: liquid.NewEngine(),
		cache:  make(map[string]*parsedTemplate),
	}
}

// validTemplateID rejects IDs that would escape the template directory.
func validTemplateID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

// Exists reports whether the template ID resolves to the required files.
func (r *FileTemplateRenderer) Exists(templateID string) bool {
	if !validTemplateID(templateID) {
		return false
	}

	r.mu.RLock()
	_, cached := r.cache[templateID]
	r.mu.RUnlock()
	if cached {
		return true
	}

	for _, name := range []string{"subject.liquid", "html.liquid"} {
		info, err := os.Stat(filepath.Join(r.dir, templateID, name))
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// Render produces the per-recipient message. Rendering is pure: the same
// template and vars always yield the same output.
func (r *FileTemplateRenderer) Render(templateID string, vars map[string]string) (*domain.RenderedMessage, error) {
	parsed, err := r.load(templateID)
	if err != nil {
		return nil, &domain.RenderError{TemplateID: templateID, Err: err}
	}

	bindings := liquid.Bindings{}
	for k, v := range vars {
		bindings[k] = v
	}

	subject, err := parsed.subject.RenderString(bindings)
	if err != nil {
		return nil, &domain.RenderError{TemplateID: templateID, Err: fmt.Errorf("subject: %w", err)}
	}

	html, err := parsed.html.RenderString(bindings)
	if err != nil {
		return nil, &domain.RenderError{TemplateID: templateID, Err: fmt.Errorf("html: %w", err)}
	}

	msg := &domain.RenderedMessage{
		Subject: strings.TrimSpace(subject),
		HTML:    html,
	}

	if parsed.text != nil {
		text, err := parsed.text.RenderString(bindings)
		if err != nil {
			return nil, &domain.RenderError{TemplateID: templateID, Err: fmt.Errorf("text: %w", err)}
		}
		msg.Text = text
	}

	return msg, nil
}

func (r *FileTemplateRenderer) load(templateID string) (*parsedTemplate, error) {
	if !validTemplateID(templateID) {
		return nil, fmt.Errorf("invalid template ID %q", templateID)
	}

	r.mu.RLock()
	parsed, ok := r.cache[templateID]
	r.mu.RUnlock()
	if ok {
		return parsed, nil
	}

	base := filepath.Join(r.dir, templateID)

	subject, err := r.parseFile(filepath.Join(base, "subject.liquid"))
	if err != nil {
		return nil, err
	}
	html, err := r.parseFile(filepath.Join(base, "html.liquid"))
	if err != nil {
		return nil, err
	}

	parsed = &parsedTemplate{subject: subject, html: html}

	// text.liquid is optional
	if _, err := os.Stat(filepath.Join(base, "text.liquid")); err == nil {
		text, err := r.parseFile(filepath.Join(base, "text.liquid"))
		if err != nil {
			return nil, err
		}
		parsed.text = text
	}

	r.mu.Lock()
	r.cache[templateID] = parsed
	r.mu.Unlock()

	return parsed, nil
}

func (r *FileTemplateRenderer) parseFile(path string) (*liquid.Template, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	tpl, err := r.engine.ParseTemplate(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return tpl, nil
}
