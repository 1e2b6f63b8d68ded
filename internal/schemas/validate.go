// Package schemas provides JSON Schema validation for fixture documents.
package schemas

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed seed.schema.json
var seedSchema []byte

// SeedSchema returns the embedded schema for dev backend seed files.
func SeedSchema() []byte {
	return seedSchema
}

// ValidationError lists every schema violation found in a document.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is one violation. Field is a dotted path such as
// "applications.0.status", or "(root)".
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	parts := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return fmt.Sprintf("validation failed (%d): %s", len(ve.Errors), strings.Join(parts, "; "))
}

// SchemaLoadError means the schema or the document could not be parsed, so
// no validation took place.
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	msg := "cannot validate against " + e.Path + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// ValidateSeed validates a seed document against the embedded seed schema.
func ValidateSeed(doc []byte) error {
	return validate("seed.schema.json", gojsonschema.NewBytesLoader(seedSchema), gojsonschema.NewBytesLoader(doc))
}

// ValidateSeedFile reads path and validates it with ValidateSeed.
func ValidateSeedFile(path string) ([]byte, error) {
	doc, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("seed file not found: %s", path)
	case err != nil:
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	if err := ValidateSeed(doc); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return doc, nil
}

// ValidateJSONString validates a document against an inline schema.
func ValidateJSONString(schemaContent, jsonContent string) error {
	return validate("(string schema)", gojsonschema.NewStringLoader(schemaContent), gojsonschema.NewStringLoader(jsonContent))
}

func validate(schemaName string, schemaLoader, documentLoader gojsonschema.JSONLoader) error {
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{Path: schemaName, Message: "invalid JSON", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	violations := result.Errors()
	ve := &ValidationError{Errors: make([]FieldError, len(violations))}
	for i, v := range violations {
		ve.Errors[i] = FieldError{Field: v.Field(), Message: v.Description()}
		if ve.Errors[i].Field == "" {
			ve.Errors[i].Field = "(root)"
		}
	}
	return ve
}
