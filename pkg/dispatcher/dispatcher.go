// Package dispatcher maps a code-task request onto one of the prompt
// templates for CodeHelper. It performs no I/O: the same request always
// renders the same prompt.
package dispatcher

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/jxucoder/codehelper/pkg/llm"
)

// TaskType identifies which prompt template a request uses.
type TaskType string

const (
	TaskExplain  TaskType = "explain"
	TaskFix      TaskType = "fix"
	TaskConvert  TaskType = "convert"
	TaskDocument TaskType = "document"
)

// TaskTypes lists the supported task tags in display order.
var TaskTypes = []TaskType{TaskExplain, TaskFix, TaskConvert, TaskDocument}

// Valid reports whether t is one of the supported task tags.
func (t TaskType) Valid() bool {
	switch t {
	case TaskExplain, TaskFix, TaskConvert, TaskDocument:
		return true
	}
	return false
}

// Request is a single code-task request as received from a caller.
type Request struct {
	TaskType       TaskType `json:"taskType"`
	Code           string   `json:"code"`
	Language       string   `json:"language,omitempty"`
	TargetLanguage string   `json:"targetLanguage,omitempty"`
	Extra          string   `json:"extra,omitempty"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxCodeBytes rejects code larger than n bytes. n <= 0 disables the cap.
func WithMaxCodeBytes(n int) Option {
	return func(d *Dispatcher) { d.maxCodeBytes = n }
}

// WithSystemPrompt replaces the system instruction attached to every prompt.
func WithSystemPrompt(s string) Option {
	return func(d *Dispatcher) { d.system = s }
}

// Dispatcher renders prompts from task templates.
type Dispatcher struct {
	system       string
	templates    map[TaskType]*template.Template
	maxCodeBytes int
}

// New creates a Dispatcher with the built-in templates.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		system:    llm.DefaultSystemPrompt,
		templates: make(map[TaskType]*template.Template, len(defaultTemplates)),
	}
	for task, text := range defaultTemplates {
		d.templates[task] = template.Must(parseTemplate(task, text))
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetTemplate overrides the template for a task. The text uses
// text/template syntax with the Request as data.
func (d *Dispatcher) SetTemplate(task TaskType, text string) error {
	if !task.Valid() {
		return &UnsupportedTaskError{Task: string(task)}
	}
	tmpl, err := parseTemplate(task, text)
	if err != nil {
		return fmt.Errorf("parsing %s template: %w", task, err)
	}
	d.templates[task] = tmpl
	return nil
}

// Build validates req and renders the prompt for its task.
func (d *Dispatcher) Build(req Request) (llm.Prompt, error) {
	var missing []string
	if req.TaskType == "" {
		missing = append(missing, "taskType")
	}
	if req.Code == "" {
		missing = append(missing, "code")
	}
	if len(missing) > 0 {
		return llm.Prompt{}, &MissingFieldError{Fields: missing}
	}

	tmpl, ok := d.templates[req.TaskType]
	if !ok {
		return llm.Prompt{}, &UnsupportedTaskError{Task: string(req.TaskType)}
	}
	if d.maxCodeBytes > 0 && len(req.Code) > d.maxCodeBytes {
		return llm.Prompt{}, &CodeTooLargeError{Size: len(req.Code), Limit: d.maxCodeBytes}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req); err != nil {
		return llm.Prompt{}, fmt.Errorf("rendering %s prompt: %w", req.TaskType, err)
	}
	return llm.Prompt{System: d.system, User: buf.String()}, nil
}

func parseTemplate(task TaskType, text string) (*template.Template, error) {
	return template.New(string(task)).Option("missingkey=error").Parse(text)
}
