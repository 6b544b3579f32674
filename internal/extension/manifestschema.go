// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Storeloft Contributors

package extension

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Compiled manifest schema, cached per process since the Manifest shape is
// fixed at build time.
var (
	schemaOnce  sync.Once
	schemaCache *jschema.Schema
	schemaErr   error
)

// GenerateManifestSchema generates the JSON Schema for plugin manifest
// documents by reflecting the Manifest struct.
func GenerateManifestSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Manifest{})

	schema.ID = jsonschema.ID(ManifestSchemaID())
	schema.Title = "Storeloft Plugin Manifest"
	schema.Description = "Schema for plugin manifest documents"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}

// ValidateManifestDocument validates a raw manifest JSON document against
// the generated manifest schema. This is the structural half of manifest
// validation; semantic checks live in Manifest.Validate.
func ValidateManifestDocument(raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("manifest data is empty")
	}

	doc, err := jschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	sch, err := compiledManifestSchema()
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// compiledManifestSchema returns the cached compiled schema, compiling it on
// first use.
func compiledManifestSchema() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaCache, schemaErr = compileManifestSchema()
	})
	return schemaCache, schemaErr
}

func compileManifestSchema() (*jschema.Schema, error) {
	schemaBytes, err := GenerateManifestSchema()
	if err != nil {
		return nil, err
	}

	schemaData, err := jschema.UnmarshalJSON(strings.NewReader(string(schemaBytes)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("manifest.schema.json", schemaData); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	sch, err := c.Compile("manifest.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return sch, nil
}

// ManifestSchemaID returns the schema $id embedded in generated schemas.
func ManifestSchemaID() string {
	return "https://storeloft.dev/schemas/plugin-manifest.schema.json"
}

// FormatSchemaError strips the wrapping prefix from a schema validation
// error for display in validation results.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	return strings.TrimPrefix(msg, "schema validation failed: ")
}
