package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ormasoftchile/stepfix/pkg/chargejob"
	"github.com/ormasoftchile/stepfix/pkg/locate"
	"github.com/ormasoftchile/stepfix/pkg/profile"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

// requiredParams lists, per action, the parameters that must be present.
// Each inner slice holds accepted alternatives.
var requiredParams = map[string][][]string{
	template.ActionNavigate:        {{"url"}},
	template.ActionTypeInput:       {{"selector"}, {"value"}},
	template.ActionPress:           {{"key"}},
	template.ActionPressKey:        {{"key"}},
	template.ActionClick:           {{"selector"}},
	template.ActionWaitForElement:  {{"selector"}},
	template.ActionWait:            {{"duration"}},
	template.ActionParseChargeJob:  {{"chargeJob", "value"}},
	template.ActionForEach:         {{"items", "array"}},
	template.ActionForEachProperty: {{"object"}},
	template.ActionIf:              {{"condition"}},
	template.ActionLog:             {{"message", "text"}},
	template.ActionRetryInput:      {{"selector"}, {"index"}, {"value"}, {"validationSelector"}},
	"submit":                       {{"selector"}},
	"validateText":                 {{"selector"}},
	"formatDate":                   {{"date", "value"}, {"saveTo"}},
}

// positiveParams must hold positive integers when present.
var positiveParams = map[string][]string{
	template.ActionWait:           {"duration"},
	template.ActionWaitForElement: {"timeout"},
	template.ActionRetryInput:     {"maxRetries", "index"},
	"waitForPageStable":           {"timeout", "interval"},
	"validateText":                {"timeout"},
}

// Variables the loop runtime injects into every iteration.
var loopVars = []string{"index", "isFirst", "isLast"}

// ValidateDomain performs Phase 3 domain-level validation against the rule
// profile. Returns a slice of errors; empty means valid.
func ValidateDomain(doc *template.Document, p *profile.Profile) []*ValidationError {
	c := &domainCheck{profile: p}

	scope := map[string]bool{}
	for _, v := range p.Variables {
		scope[v] = true
	}
	c.walk(doc.Steps, template.Path{}, template.ParamSteps, scope, false)
	c.branches(doc)
	return c.errs
}

type domainCheck struct {
	profile *profile.Profile
	errs    []*ValidationError
}

func (c *domainCheck) add(path template.Path, sev, format string, args ...any) {
	c.errs = append(c.errs, &ValidationError{
		Phase:    PhaseDomain,
		Path:     path.String(),
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
	})
}

// walk checks a list in document order and reports whether the charge-job
// variables are set once the list has run.
func (c *domainCheck) walk(l template.StepList, at template.Path, key string, scope map[string]bool, parsed bool) bool {
	for i, s := range l {
		path := at.Child(key, i)
		c.step(path, s, scope, parsed)
		if s.Is(c.profile.Prerequisite.Action) {
			parsed = true
		}

		switch s.Kind() {
		case template.KindForEach:
			inner := withVars(scope, paramOr(s, "itemName", "item"))
			c.walk(s.Body(), path, template.ParamSteps, inner, parsed)
		case template.KindForEachProperty:
			inner := withVars(scope, paramOr(s, "keyName", "key"), paramOr(s, "valueName", "value"))
			c.walk(s.Body(), path, template.ParamSteps, inner, parsed)
		case template.KindIf:
			t := c.walk(s.Then(), path, template.ParamThenSteps, scope, parsed)
			e := c.walk(s.Else(), path, template.ParamElseSteps, scope, parsed)
			parsed = parsed || (t && e)
		}
	}
	return parsed
}

func withVars(scope map[string]bool, names ...string) map[string]bool {
	out := make(map[string]bool, len(scope)+len(names)+len(loopVars))
	for k, v := range scope {
		out[k] = v
	}
	for _, n := range append(names, loopVars...) {
		out[n] = true
	}
	return out
}

func paramOr(s template.Step, key, def string) string {
	if v, ok := s.Params().String(key); ok && v != "" {
		return v
	}
	return def
}

func (c *domainCheck) step(path template.Path, s template.Step, scope map[string]bool, parsed bool) {
	params := s.Params()

	if !slices.Contains(template.Vocabulary, s.Action) {
		c.add(path, SeverityWarning, "unknown action %q", s.Action)
	}

	for _, alts := range requiredParams[s.Action] {
		if !slices.ContainsFunc(alts, params.Has) {
			c.add(path, SeverityError, "%s requires params.%s", s.Action, strings.Join(alts, " or params."))
		}
	}

	for _, k := range positiveParams[s.Action] {
		if !params.Has(k) {
			continue
		}
		if n, ok := params.Int(k); !ok || n <= 0 {
			c.add(path, SeverityError, "params.%s must be a positive integer", k)
		}
	}

	if s.Is(c.profile.Anchor.Action) || s.Is(c.profile.Retry.Action) {
		sel, _ := params.String("selector")
		if idx, ok := params.Int("index"); ok && strings.Contains(sel, c.profile.Anchor.Selector) {
			if _, known := c.profile.Field(idx); !known {
				c.add(path, SeverityError, "field index %d has no mapping (known: %s)", idx, c.fieldIndexes())
			}
		}
	}

	strs := s.StringParams()
	for _, k := range params.Keys() {
		for _, str := range strs[k] {
			for _, name := range template.Placeholders(str) {
				root := template.Root(name)
				if !scope[root] {
					c.add(path, SeverityWarning, "params.%s references unknown variable %q", k, name)
					continue
				}
				if !parsed && slices.Contains(chargejob.Names(), root) {
					c.add(path, SeverityWarning, "params.%s reads %q before %s sets it", k, name, c.profile.Prerequisite.Action)
				}
			}
		}
	}
}

func (c *domainCheck) fieldIndexes() string {
	var idx []string
	for _, f := range c.profile.Fields {
		idx = append(idx, fmt.Sprint(f.Index))
	}
	return strings.Join(idx, ", ")
}

// branches checks that the target branches exist and carry at most one
// prerequisite each.
func (c *domainCheck) branches(doc *template.Document) {
	p := c.profile
	b, err := locate.Find(doc.Steps, p.BranchPath)
	if err != nil {
		c.add(template.Path{}, SeverityError, "%v", err)
		return
	}
	for _, br := range []struct {
		key   string
		steps template.StepList
	}{
		{template.ParamThenSteps, b.Then},
		{template.ParamElseSteps, b.Else},
	} {
		if n := br.steps.Count(p.IsPrerequisite); n > 1 {
			c.errs = append(c.errs, &ValidationError{
				Phase:    PhaseDomain,
				Path:     br.key,
				Message:  fmt.Sprintf("%s branch has %d %s steps", p.BranchName(br.key), n, p.Prerequisite.Action),
				Severity: SeverityWarning,
			})
		}
	}
}
