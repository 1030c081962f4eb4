package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/stepfix/pkg/profile"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

// Validation phases.
const (
	PhaseStructural = "structural"
	PhaseSemantic   = "semantic"
	PhaseDomain     = "domain"
)

// Severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // location, e.g. "steps[2].params.steps[0]"
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateFile performs the full 3-phase validation pipeline on a template file.
// Phase 1: Structural (ordered JSON decode, optional repair)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (profile rules)
func ValidateFile(path string, p *profile.Profile, opts template.LoadOptions) (*template.Document, []*ValidationError) {
	doc, err := template.LoadFile(path, opts)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    PhaseStructural,
			Path:     "",
			Message:  err.Error(),
			Severity: SeverityError,
		}}
	}
	var allErrors []*ValidationError
	if doc.Repaired {
		allErrors = append(allErrors, &ValidationError{
			Phase:    PhaseStructural,
			Path:     "",
			Message:  "document is not valid JSON; validated the repaired form",
			Severity: SeverityWarning,
		})
	}
	allErrors = append(allErrors, Validate(doc, p)...)
	if len(allErrors) > 0 {
		return doc, allErrors
	}
	return doc, nil
}

// Validate runs the semantic and domain phases over a decoded document.
func Validate(doc *template.Document, p *profile.Profile) []*ValidationError {
	var errs []*ValidationError
	errs = append(errs, validateSemantic(doc)...)
	errs = append(errs, ValidateDomain(doc, p)...)
	return errs
}

var compiledSchema = sync.OnceValues(func() (*sjsonschema.Schema, error) {
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}
	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource("template-v0.json", schemaDoc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile("template-v0.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return sch, nil
})

// validateSemantic validates the encoded document against the JSON Schema.
func validateSemantic(doc *template.Document) []*ValidationError {
	sch, err := compiledSchema()
	if err != nil {
		return []*ValidationError{{
			Phase:    PhaseSemantic,
			Path:     "",
			Message:  err.Error(),
			Severity: SeverityError,
		}}
	}

	data, err := template.Marshal(doc, template.EncodeOptions{})
	if err != nil {
		return []*ValidationError{{
			Phase:    PhaseSemantic,
			Path:     "",
			Message:  fmt.Sprintf("marshal for schema validation: %v", err),
			Severity: SeverityError,
		}}
	}
	var inst interface{}
	if err := json.Unmarshal(data, &inst); err != nil {
		return []*ValidationError{{
			Phase:    PhaseSemantic,
			Path:     "",
			Message:  fmt.Sprintf("unmarshal document: %v", err),
			Severity: SeverityError,
		}}
	}

	if err := sch.Validate(inst); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    PhaseSemantic,
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: SeverityError,
				})
			}
		} else {
			errs = append(errs, &ValidationError{
				Phase:    PhaseSemantic,
				Path:     "",
				Message:  err.Error(),
				Severity: SeverityError,
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}
