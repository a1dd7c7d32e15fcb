package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fulmenhq/stigmergylite/internal/assets"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// CatalogV1 validates tool catalogs (embedded or user override).
const CatalogV1 = "catalog-v1"

// ValidationError represents a single validation error.
type ValidationError struct {
	Path    string `json:"path,omitempty"` // Single string path (e.g., "tools.0.strategies.1")
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	return e.Path + ": " + e.Message
}

// Result holds the validation result.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// registry holds pre-compiled schemas for known schema names.
var (
	registry   = make(map[string]*gojsonschema.Schema)
	loadErrors = make(map[string]error)
)

func init() {
	known := map[string]string{
		CatalogV1: "catalog.schema.yaml",
	}
	for name, file := range known {
		schema, err := compile(file)
		if err != nil {
			loadErrors[name] = err
			continue
		}
		registry[name] = schema
	}
}

func compile(file string) (*gojsonschema.Schema, error) {
	schemaBytes, ok := assets.GetSchema(file)
	if !ok {
		return nil, fmt.Errorf("schema file %s not embedded", file)
	}
	// Convert YAML to JSON for gojsonschema
	var schemaData interface{}
	if err := yaml.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	jsonBytes, err := json.Marshal(schemaData)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", file, err)
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jsonBytes))
}

// Validate validates data (interface{}) against the named schema.
func Validate(data interface{}, schemaName string) (*Result, error) {
	schema, ok := registry[schemaName]
	if !ok {
		if err := loadErrors[schemaName]; err != nil {
			return nil, fmt.Errorf("schema %s failed to load: %w", schemaName, err)
		}
		return nil, fmt.Errorf("schema %s not found in registry", schemaName)
	}

	docLoader := gojsonschema.NewGoLoader(data)
	result, err := schema.Validate(docLoader)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	res := &Result{Valid: result.Valid()}
	if !result.Valid() {
		for _, verr := range result.Errors() {
			field := verr.Field()
			if field == "" {
				field = "root"
			}
			res.Errors = append(res.Errors, ValidationError{
				Path:    field,
				Message: verr.Description(),
			})
		}
		sort.Slice(res.Errors, func(i, j int) bool {
			return res.Errors[i].Path < res.Errors[j].Path
		})
	}

	return res, nil
}

// ValidateYAML decodes a YAML document and validates it against the named schema.
func ValidateYAML(doc []byte, schemaName string) (*Result, error) {
	var data interface{}
	if err := yaml.Unmarshal(doc, &data); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return Validate(data, schemaName)
}
