package service

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"anoa.com/tutorhub/internal/modules/dispatch/dto"
)

//go:embed templates/*.html
var templateFiles embed.FS

var mailTemplates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

// renderHTML executes the mail template named by the document.
func renderHTML(doc dto.Document) (string, error) {
	if mailTemplates.Lookup(doc.Template) == nil {
		return "", fmt.Errorf("unknown mail template %q", doc.Template)
	}
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, doc.Template, doc); err != nil {
		return "", fmt.Errorf("failed to render %s mail: %w", doc.Template, err)
	}
	return buf.String(), nil
}
