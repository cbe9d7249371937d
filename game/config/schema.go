package config

import (
	"encoding/json"
	"fmt"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed profile.schema.json
var profileSchemaPayload string

var (
	schemaOnce    sync.Once
	profileSchema *jsonschema.Schema
	schemaErr     error
)

// ValidateProfileJSON checks raw profile JSON against the profile schema
func ValidateProfileJSON(data []byte) error {
	schemaOnce.Do(func() {
		profileSchema, schemaErr = jsonschema.CompileString("profile.schema.json", profileSchemaPayload)
	})
	if schemaErr != nil {
		return fmt.Errorf("compile profile schema: %w", schemaErr)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := profileSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
