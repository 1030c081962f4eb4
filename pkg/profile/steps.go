package profile

import (
	"strings"

	"github.com/ormasoftchile/stepfix/pkg/template"
)

// AnchorField reports whether s is a legacy anchor and which field it fills.
func (p *Profile) AnchorField(s template.Step) (Field, bool) {
	if s.Action != p.Anchor.Action {
		return Field{}, false
	}
	return p.positional(s)
}

// CanonicalField reports whether s is the canonical retry step of a field.
func (p *Profile) CanonicalField(s template.Step) (Field, bool) {
	if s.Action != p.Retry.Action {
		return Field{}, false
	}
	return p.positional(s)
}

func (p *Profile) positional(s template.Step) (Field, bool) {
	sel, ok := s.Params().String("selector")
	if !ok || !strings.Contains(sel, p.Anchor.Selector) {
		return Field{}, false
	}
	idx, ok := s.Params().Int("index")
	if !ok {
		return Field{}, false
	}
	return p.Field(idx)
}

// PrimaryIndex is the index of the first field, the one the prerequisite
// must precede.
func (p *Profile) PrimaryIndex() int {
	if len(p.Fields) == 0 {
		return 0
	}
	return p.Fields[0].Index
}

// IsPrerequisite reports whether s is the prerequisite parse step.
func (p *Profile) IsPrerequisite(s template.Step) bool {
	return s.Action == p.Prerequisite.Action
}

// CanonicalStep builds the retry step for f. The selector of the replaced
// anchor is kept; an empty selector falls back to the profile's widget class.
func (p *Profile) CanonicalStep(f Field, selector string) template.Step {
	if selector == "" {
		selector = p.Anchor.Selector
	}
	return template.NewStep(p.Retry.Action, p.CommentFor(f),
		template.P("selector", selector),
		template.P("index", f.Index),
		template.P("value", f.Value),
		template.P("validationSelector", f.ValidationSelector),
		template.P("maxRetries", p.Retry.MaxRetries),
	)
}

// Drift lists the parameters of a canonical step that differ from the
// profile's canonical values.
func (p *Profile) Drift(s template.Step, f Field) []string {
	want := p.CanonicalStep(f, "")
	var out []string
	for _, k := range []string{"value", "validationSelector", "maxRetries"} {
		got, ok := s.Params().Raw(k)
		exp, _ := want.Params().Raw(k)
		if !ok || !template.NewParams(template.P(k, got)).Equal(template.NewParams(template.P(k, exp))) {
			out = append(out, k)
		}
	}
	return out
}

// SettleStep builds the page-settle wait.
func (p *Profile) SettleStep() template.Step {
	params := []template.Param{template.P("duration", p.Settle.Duration)}
	if p.Settle.Comment != "" {
		params = append(params, template.P("comment", p.Settle.Comment))
	}
	return template.NewStep(template.ActionWait, "", params...)
}

// ConfirmSteps builds the arrow-key press and its short wait.
func (p *Profile) ConfirmSteps() template.StepList {
	return template.StepList{
		template.NewStep(template.ActionPressKey, "", template.P("key", p.Confirm.Key)),
		template.NewStep(template.ActionWait, "", template.P("duration", p.Confirm.Wait)),
	}
}

// PrerequisiteStep builds the parse step that produces the field variables.
func (p *Profile) PrerequisiteStep() template.Step {
	return template.NewStep(p.Prerequisite.Action, "", template.P(p.Prerequisite.Param, p.Prerequisite.Value))
}
