package dispatcher

import (
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

var defaultTemplates = map[TaskType]string{
	TaskExplain: `Explain this {{.Language}} code in simple language.
Break it down step-by-step:

{{.Code}}

Extra: {{if .Extra}}{{.Extra}}{{else}}None{{end}}`,

	TaskFix: `Fix errors in this {{.Language}} code.
Find the bugs, explain the mistakes and give a corrected version:

{{.Code}}`,

	TaskConvert: `Convert this {{.Language}} code to {{.TargetLanguage}}.
Preserve the logic and optimize where possible:

{{.Code}}`,

	TaskDocument: `Write documentation for this {{.Language}} code.
Include:
- Purpose
- Summary of the flow
- Explanation of each function
- Inputs & outputs
- Example usage

{{.Code}}`,
}

// templateFile is the on-disk shape read by LoadTemplates.
type templateFile struct {
	System string            `yaml:"system"`
	Tasks  map[string]string `yaml:"tasks"`
}

// LoadTemplates applies the overrides in a YAML file:
//
//	system: You are a senior reviewer.
//	tasks:
//	  fix: |
//	    Review this {{.Language}} code ...
//
// Tasks absent from the file keep their current template. Nothing is
// applied if any entry fails to parse.
func (d *Dispatcher) LoadTemplates(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading templates: %w", err)
	}

	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing templates %s: %w", path, err)
	}

	parsed := make(map[TaskType]*template.Template, len(f.Tasks))
	for name, text := range f.Tasks {
		task := TaskType(name)
		if !task.Valid() {
			return fmt.Errorf("templates %s: %w", path, &UnsupportedTaskError{Task: name})
		}
		tmpl, err := parseTemplate(task, text)
		if err != nil {
			return fmt.Errorf("templates %s: parsing %s: %w", path, task, err)
		}
		parsed[task] = tmpl
	}

	for task, tmpl := range parsed {
		d.templates[task] = tmpl
	}
	if f.System != "" {
		d.system = f.System
	}
	return nil
}
