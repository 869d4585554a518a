package worker

import (
	"bytes"
	"fmt"
	"math"
	"text/template"

	"moodline/internal/config"
	"moodline/internal/domain"
)

// Messages renders the user-facing texts.
type Messages struct {
	processing     *template.Template
	prompt         *template.Template
	result         *template.Template
	undeterminable *template.Template
}

type resultView struct {
	Label      string
	Confidence float64
	Percent    int
}

func NewMessages(cfg config.MessagesConfig) (*Messages, error) {
	m := &Messages{}
	for _, t := range []struct {
		name string
		text string
		dst  **template.Template
	}{
		{"processing", cfg.Processing, &m.processing},
		{"prompt", cfg.Prompt, &m.prompt},
		{"result", cfg.Result, &m.result},
		{"undeterminable", cfg.Undeterminable, &m.undeterminable},
	} {
		tmpl, err := template.New(t.name).Option("missingkey=error").Parse(t.text)
		if err != nil {
			return nil, fmt.Errorf("parse %s message: %w", t.name, err)
		}
		*t.dst = tmpl
	}
	return m, nil
}

func (m *Messages) Processing() string { return render(m.processing, nil) }
func (m *Messages) Prompt() string     { return render(m.prompt, nil) }

// Summary describes a classification result. The fallback gets its own
// wording instead of reporting a 0% label.
func (m *Messages) Summary(r domain.ClassificationResult) string {
	if r.Fallback {
		return render(m.undeterminable, nil)
	}
	return render(m.result, resultView{
		Label:      r.Label,
		Confidence: r.Confidence,
		Percent:    int(math.Round(r.Confidence * 100)),
	})
}

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return t.Name()
	}
	return buf.String()
}
