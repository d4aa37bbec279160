package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
)

//go:embed docs/index.html docs/openapi.yaml
var docsFS embed.FS

var docsPage = template.Must(template.ParseFS(docsFS, "docs/index.html"))

// DocsHandler serves the OpenAPI document and a browsable reference page.
type DocsHandler struct {
	page []byte
	spec []byte
}

// NewDocsHandler renders the reference page once. specURL is where the page
// fetches the OpenAPI document from.
func NewDocsHandler(title, specURL string) (*DocsHandler, error) {
	spec, err := docsFS.ReadFile("docs/openapi.yaml")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = docsPage.Execute(&buf, struct{ Title, SpecURL string }{title, specURL})
	if err != nil {
		return nil, err
	}
	return &DocsHandler{page: buf.Bytes(), spec: spec}, nil
}

// UI handles GET /docs.
func (h *DocsHandler) UI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.page)
}

// OpenAPISpec handles GET /docs/openapi.yaml.
func (h *DocsHandler) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.spec)
}
