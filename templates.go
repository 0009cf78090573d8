/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	_ "embed"
	"encoding/json"
	"os"
)

// Template defines one problem family: a LaTeX question pattern with NUM1/NUM2
// placeholders, and either a literal answer (which may itself carry placeholders)
// or the name of an answer formula from problem.go.
//
// The catalog is loaded once at startup and never mutated afterwards.
type Template struct {
	Question string `json:"q"`
	Answer   string `json:"a,omitempty"`
	Formula  string `json:"formula,omitempty"`
}

//go:embed templates.json
var defaultCatalog []byte

func builtinTemplates() []Template {
	var catalog []Template
	if err := json.Unmarshal(defaultCatalog, &catalog); err != nil {
		panic("embedded template catalog is invalid: " + err.Error())
	}
	return catalog
}

// loadTemplates reads the catalog named by --templates, falling back to the
// embedded defaults on any failure. A bad catalog never fails startup.
func loadTemplates(cfg *Config) []Template {
	if cfg.templates == "" {
		return builtinTemplates()
	}

	data, err := os.ReadFile(cfg.templates)
	if err != nil {
		logf(cfg, "TEMPLATES: Failed to read %s, using built-in catalog: %v", cfg.templates, err)
		return builtinTemplates()
	}

	var catalog []Template
	if err := json.Unmarshal(data, &catalog); err != nil {
		logf(cfg, "TEMPLATES: Failed to parse %s, using built-in catalog: %v", cfg.templates, err)
		return builtinTemplates()
	}

	if len(catalog) == 0 {
		logf(cfg, "TEMPLATES: %s is empty, using built-in catalog", cfg.templates)
		return builtinTemplates()
	}

	logf(cfg, "TEMPLATES: Loaded %d templates from %s", len(catalog), cfg.templates)

	return catalog
}
