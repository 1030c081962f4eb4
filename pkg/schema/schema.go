// Package schema validates automation templates in three phases:
// structural (decode), semantic (JSON Schema) and domain (profile rules).
package schema

import (
	"github.com/invopop/jsonschema"

	"github.com/ormasoftchile/stepfix/pkg/template"
)

// Template is the published shape of a template document. Root fields other
// than steps are kept verbatim by the codec and are not constrained.
type Template struct {
	Name        string `json:"name,omitempty" jsonschema:"description=Human-readable template name"`
	Description string `json:"description,omitempty"`
	DataFile    string `json:"dataFile,omitempty" jsonschema:"description=Path of the JSON data the runtime iterates"`
	Steps       []Step `json:"steps" jsonschema:"required"`
}

// JSONSchemaExtend opens the root object to fields the runtime ignores.
func (Template) JSONSchemaExtend(s *jsonschema.Schema) {
	s.AdditionalProperties = jsonschema.TrueSchema
}

// Step is one action invocation.
type Step struct {
	Action  string         `json:"action" jsonschema:"required,minLength=1"`
	Comment string         `json:"comment,omitempty"`
	Params  map[string]any `json:"params,omitempty"`
}

// JSONSchemaExtend describes the nested step lists carried in params.
func (Step) JSONSchemaExtend(s *jsonschema.Schema) {
	params, ok := s.Properties.Get("params")
	if !ok {
		return
	}
	list := &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Ref: "#/$defs/Step"},
	}
	params.Properties = jsonschema.NewProperties()
	for _, key := range []string{template.ParamSteps, template.ParamThenSteps, template.ParamElseSteps} {
		params.Properties.Set(key, list)
	}
}
