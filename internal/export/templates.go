package export

import (
	"bytes"
	"html/template"
	"time"
)

var itemTemplate = template.Must(template.New("item").Funcs(template.FuncMap{
	"formatDate": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
}).Parse(itemHTML))

// TemplateData holds data for item template rendering
type TemplateData struct {
	Kind         string
	Name         string
	Description  string
	Status       string
	Owner        string
	Organization string
	Version      int64
	PublishedAt  *time.Time
	ContentHTML  template.HTML
}

// RenderItemHTML renders the item template with provided data
func RenderItemHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := itemTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const itemHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .question { margin: 1.5rem 0; }
    blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #444; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <div class="meta">{{.Kind}} | {{.Status}} | v{{.Version}} | {{.Owner}}{{if .Organization}} | {{.Organization}}{{end}}{{with formatDate .PublishedAt}} | published {{.}}{{end}}</div>
  <div>{{.ContentHTML}}</div>
</body>
</html>`
