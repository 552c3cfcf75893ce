package domain

import "fmt"

//go:generate mockgen -destination mocks/mock_template_renderer.go -package mocks github.com/mailcannon/mailcannon/internal/domain TemplateRenderer

// RenderedMessage is the output of template rendering for one recipient.
type RenderedMessage struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// RenderError marks a template failure. Render errors are deterministic for
// given inputs, so they are never retried.
type RenderError struct {
	TemplateID string
	Err        error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed for template %s: %v", e.TemplateID, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// TemplateRenderer resolves and renders message templates. Render must be
// pure: the same template and vars always produce the same message.
type TemplateRenderer interface {
	Render(templateID string, vars map[string]string) (*RenderedMessage, error)

	// Exists reports whether the template ID resolves, without rendering.
	Exists(templateID string) bool
}
