// Package templates holds the starter bodies offered by `canopy new`.
package templates

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// Data is what a template can refer to.
type Data struct {
	Title string
	Tag   string
	Date  time.Time
}

// Names lists the built-in templates. "blank" is the fallback.
var Names = []string{"blank", "meeting", "brainstorm", "research", "daily"}

var sources = map[string]string{
	"blank": `# {{.Title}}
`,

	"meeting": `# {{.Title}}

**Date:** {{day .Date}}
**Attendees:**

## Agenda

-

## Notes

## Action Items

- [ ]
`,

	"brainstorm": `# {{.Title}}

**Date:** {{day .Date}}

## Core idea

## Branches

-
-
-

## Keep / discard

| Idea | Keep? |
|------|-------|
|      |       |
`,

	"research": `# {{.Title}}

**Date:** {{day .Date}}{{if .Tag}}
**Topic:** #{{.Tag}}{{end}}

## Question

## Sources

-

## Notes

## Conclusion
`,

	"daily": `# {{if .Title}}{{.Title}}{{else}}{{day .Date}}{{end}}

{{weekday .Date}}

## Today

- [ ]

## Log
`,
}

var funcs = template.FuncMap{
	"day":     func(t time.Time) string { return t.Format("2006-01-02") },
	"weekday": func(t time.Time) string { return t.Format("Monday") },
}

var parsed = func() *template.Template {
	root := template.New("templates").Funcs(funcs)
	for name, src := range sources {
		template.Must(root.New(name).Parse(src))
	}
	return root
}()

// Known reports whether name is a built-in template.
func Known(name string) bool {
	_, ok := sources[name]
	return ok
}

// Render executes the named template. Unknown names use "blank"; a zero
// Date means today.
func Render(name string, d Data) (string, error) {
	if !Known(name) {
		name = "blank"
	}
	if d.Date.IsZero() {
		d.Date = time.Now()
	}
	d.Title = strings.TrimSpace(d.Title)
	var b strings.Builder
	if err := parsed.ExecuteTemplate(&b, name, d); err != nil {
		return "", fmt.Errorf("templates: render %s: %w", name, err)
	}
	return b.String(), nil
}
