// Package functions holds the built-in handler templates for the dynamic-render and
// page-data compute functions.
package functions

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed templates/*.js
var templateFS embed.FS

const (
	// TemplateDynamic renders SSR and DSG pages.
	TemplateDynamic = "dynamic"
	// TemplatePageData answers page-data regeneration requests.
	TemplatePageData = "page-data"

	// Handler is the entrypoint export every template provides.
	Handler = "index.handler"

	sourcePrefix = "template:"
)

// Source returns the artifact source reference for a built-in template.
func Source(name string) string {
	return sourcePrefix + name
}

// TemplateName extracts the template name from a source reference.
func TemplateName(source string) (string, bool) {
	if !strings.HasPrefix(source, sourcePrefix) {
		return "", false
	}
	return strings.TrimPrefix(source, sourcePrefix), true
}

// Template returns the handler body for a built-in template.
func Template(name string) ([]byte, error) {
	data, err := templateFS.ReadFile("templates/" + name + ".js")
	if err != nil {
		return nil, fmt.Errorf("unknown function template %q: %w", name, err)
	}
	return data, nil
}
