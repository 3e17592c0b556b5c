package translate

import (
	"strings"
	"text/template"
)

const (
	relatedStartMarker = "<!-- redmine2github:related -->"
	relatedEndMarker   = "<!-- /redmine2github:related -->"
)

var funcs = template.FuncMap{
	"join": strings.Join,
}

var descriptionTemplate = template.Must(template.New("description").Funcs(funcs).Parse(
	`{{ .Description }}

---

Migrated from Redmine issue {{ if .RedmineLink }}[#{{ .ID }}]({{ .RedmineLink }}){{ else }}{{ .ID }}{{ end }}
* Author: {{ .AuthorName }}{{ with .AuthorMention }} ({{ . }}){{ end }}
{{- with .Assignee }}
* Assignee: {{ . }}{{ end }}
{{- with .StartDate }}
* Start date: {{ . }}{{ end }}
`))

var commentTemplate = template.Must(template.New("comment").Funcs(funcs).Parse(
	`{{ with .Text }}{{ . }}

{{ end }}{{ with .NewStatus }}Status changed to **{{ . }}**

{{ end }}---
Comment by {{ .AuthorName }}{{ with .AuthorMention }} ({{ . }}){{ end }}{{ with .Date }} on {{ . }}{{ end }}
`))

var relatedTemplate = template.Must(template.New("related").Funcs(funcs).Parse(
	relatedStartMarker + `
{{- if .OriginalRelated }}
* Related issues: {{ if .Related }}{{ join .Related ", " }}{{ else }}none migrated yet{{ end }} (Redmine: {{ join .OriginalRelated ", " }})
{{- end }}
{{- if .OriginalChildren }}
* Sub-issues: {{ if .Children }}{{ join .Children ", " }}{{ else }}none migrated yet{{ end }} (Redmine: {{ join .OriginalChildren ", " }})
{{- end }}
` + relatedEndMarker))

type descriptionParams struct {
	ID            int
	Description   string
	RedmineLink   string
	AuthorName    string
	AuthorMention string
	Assignee      string
	StartDate     string
}

type commentParams struct {
	Text          string
	NewStatus     string
	AuthorName    string
	AuthorMention string
	Date          string
}

type relatedParams struct {
	OriginalRelated  []string
	Related          []string
	OriginalChildren []string
	Children         []string
}

func render(t *template.Template, params any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, params); err != nil {
		return "", err
	}
	return b.String(), nil
}
