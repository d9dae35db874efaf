// Package view renders the status page. Templates use the placeholders
// {pageTitle}, {backgroundColor} and {message}.
package view

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"

	"github.com/dkeye/RoomStatus/internal/domain"
)

var ErrTemplate = errors.New("status template unavailable")

//go:embed templates/status.html
var defaultTemplate string

var placeholders = strings.NewReplacer(
	"{pageTitle}", "{{.Title}}",
	"{backgroundColor}", "{{.Color}}",
	"{message}", "{{.Message}}",
)

// Renderer renders the status page from a template file, or from the built-in
// template when path is empty. A file template is re-read on every render.
type Renderer struct {
	path    string
	builtin *template.Template
}

func NewRenderer(path string) (*Renderer, error) {
	r := &Renderer{path: path}
	if path == "" {
		t, err := compile(defaultTemplate)
		if err != nil {
			return nil, err
		}
		r.builtin = t
	}
	return r, nil
}

func (r *Renderer) Render(w io.Writer, p domain.Presentation) error {
	t := r.builtin
	if t == nil {
		raw, err := os.ReadFile(r.path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTemplate, err)
		}
		if t, err = compile(string(raw)); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, p); err != nil {
		return fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func compile(src string) (*template.Template, error) {
	t, err := template.New("status").Parse(placeholders.Replace(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	return t, nil
}
