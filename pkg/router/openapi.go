package router

import (
	"os"
	"path/filepath"

	"companion-engine/backend/pkg/validator"
)

// AddOpenAPIValidation turns on request validation against the schema
// at schemaPath and serves the schema under /api/docs. A missing file
// just logs a warning so development does not require one.
func (r *Router) AddOpenAPIValidation(schemaPath string) {
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.Error("failed to initialize OpenAPI validator", "error", err)
		return
	}

	r.Engine.Use(v.Middleware())
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath)

	r.Engine.Static("/api/docs", filepath.Dir(schemaPath))
	r.Logger.Info("OpenAPI schema published", "url", "/api/docs/"+filepath.Base(schemaPath))
}
