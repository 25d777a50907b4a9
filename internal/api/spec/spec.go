package spec

import (
	"embed"
	"net/http"
)

var (
	//go:embed openapi.yaml
	openapiFS embed.FS
)

// OpenAPIHandler serves the embedded OpenAPI document for the exchange API.
func OpenAPIHandler() http.HandlerFunc {
	content, readErr := openapiFS.ReadFile("openapi.yaml")
	return func(w http.ResponseWriter, r *http.Request) {
		if readErr != nil {
			http.Error(w, "openapi spec not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}
}
