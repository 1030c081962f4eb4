package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/ormasoftchile/stepfix/pkg/profile"
)

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document from
// the Go Template struct using invopop/jsonschema.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Template{})
	s.ID = "https://github.com/ormasoftchile/stepfix/schemas/template-v0.json"
	s.Title = "Automation Template v0"
	s.Description = "Schema for browser automation template JSON documents (Draft 2020-12)"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// GenerateProfileJSONSchema produces a JSON Schema Draft 2020-12 document
// for rule profiles.
func GenerateProfileJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&profile.Profile{})
	s.ID = "https://github.com/ormasoftchile/stepfix/schemas/profile-v0.json"
	s.Title = "stepfix Rule Profile v0"
	s.Description = "Schema for stepfix rule profile YAML documents"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile schema: %w", err)
	}
	return data, nil
}
