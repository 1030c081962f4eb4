// Package template models the automation step tree that drives the
// attendance form: typed step kinds, immutable steps, structural walks, and
// an order-preserving JSON codec.
package template

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Action tags of the browser driver vocabulary.
const (
	ActionForEach         = "forEach"
	ActionForEachProperty = "forEachProperty"
	ActionIf              = "if"
	ActionTypeInput       = "typeInput"
	ActionPressKey        = "pressKey"
	ActionPress           = "press"
	ActionClick           = "click"
	ActionNavigate        = "navigate"
	ActionLog             = "log"
	ActionWait            = "wait"
	ActionWaitForElement  = "waitForElement"
	ActionParseChargeJob  = "parseChargeJob"
	ActionRetryInput      = "retryInputWithValidation"
)

// Vocabulary lists every action the browser driver understands.
var Vocabulary = []string{
	"assertFocus", "checkFormReady", ActionClick, ActionForEach, ActionForEachProperty,
	"formatDate", "handleValidationErrors", ActionIf, ActionLog, ActionNavigate,
	ActionParseChargeJob, ActionPress, ActionPressKey, ActionRetryInput, "screenshot",
	"submit", ActionTypeInput, "validateText", "verifyAddButtonClicked", ActionWait,
	ActionWaitForElement, "waitForPageStable",
}

// Parameter keys holding nested step lists.
const (
	ParamSteps     = "steps"
	ParamThenSteps = "thenSteps"
	ParamElseSteps = "elseSteps"
)

// Kind is the structural category of a step.
type Kind int

const (
	KindLeaf Kind = iota
	KindForEach
	KindForEachProperty
	KindIf
)

func (k Kind) String() string {
	switch k {
	case KindForEach:
		return "forEach"
	case KindForEachProperty:
		return "forEachProperty"
	case KindIf:
		return "if"
	default:
		return "leaf"
	}
}

// KindOf maps an action tag to its structural kind.
func KindOf(action string) Kind {
	switch action {
	case ActionForEach:
		return KindForEach
	case ActionForEachProperty:
		return KindForEachProperty
	case ActionIf:
		return KindIf
	default:
		return KindLeaf
	}
}

// Step is one action invocation. Steps are values: the With* methods return
// modified copies and never touch the receiver.
type Step struct {
	Action  string
	Comment string

	params Params
	body   StepList // forEach, forEachProperty
	then   StepList // if
	els    StepList // if

	// order and extra retain the document layout of decoded steps.
	order []string
	extra Params
}

// StepList is an ordered sequence of steps in execution order.
type StepList []Step

// NewStep builds a leaf or container step. Nested lists for containers are
// attached with WithBody or WithBranches.
func NewStep(action, comment string, params ...Param) Step {
	return Step{Action: action, Comment: comment, params: NewParams(params...)}
}

// Kind returns the structural kind of the step.
func (s Step) Kind() Kind { return KindOf(s.Action) }

// Params returns the step's arguments, excluding nested step lists.
func (s Step) Params() Params { return s.params }

// Body returns the nested list of a forEach or forEachProperty step.
func (s Step) Body() StepList { return slices.Clone(s.body) }

// Then returns the thenSteps list of an if step.
func (s Step) Then() StepList { return slices.Clone(s.then) }

// Else returns the elseSteps list of an if step.
func (s Step) Else() StepList { return slices.Clone(s.els) }

// Children returns the nested lists of the step keyed by parameter name.
func (s Step) Children() []Child {
	switch s.Kind() {
	case KindForEach, KindForEachProperty:
		return []Child{{Key: ParamSteps, Steps: s.Body()}}
	case KindIf:
		return []Child{{Key: ParamThenSteps, Steps: s.Then()}, {Key: ParamElseSteps, Steps: s.Else()}}
	}
	return nil
}

// Child is one nested step list of a container step.
type Child struct {
	Key   string
	Steps StepList
}

// WithParam returns a copy of s with one argument set.
func (s Step) WithParam(key string, value any) Step {
	out := s
	out.params = s.params.With(key, value)
	return out
}

// WithComment returns a copy of s with a different comment.
func (s Step) WithComment(comment string) Step {
	out := s
	out.Comment = comment
	if comment != "" && s.order != nil && !slices.Contains(s.order, "comment") {
		out.order = append(slices.Clone(s.order), "comment")
	}
	return out
}

// WithBody returns a copy of a forEach/forEachProperty step with its nested
// list replaced.
func (s Step) WithBody(body StepList) Step {
	out := s
	out.body = slices.Clone(body)
	out.params = s.params.reserve(ParamSteps)
	return out
}

// WithBranches returns a copy of an if step with both branch lists replaced.
func (s Step) WithBranches(then, els StepList) Step {
	out := s
	out.then = slices.Clone(then)
	out.els = slices.Clone(els)
	out.params = s.params.reserve(ParamThenSteps).reserve(ParamElseSteps)
	return out
}

// WithChild returns a copy of s with the nested list under key replaced.
func (s Step) WithChild(key string, steps StepList) (Step, error) {
	switch {
	case key == ParamSteps && (s.Kind() == KindForEach || s.Kind() == KindForEachProperty):
		return s.WithBody(steps), nil
	case key == ParamThenSteps && s.Kind() == KindIf:
		return s.WithBranches(steps, s.els), nil
	case key == ParamElseSteps && s.Kind() == KindIf:
		return s.WithBranches(s.then, steps), nil
	}
	return s, fmt.Errorf("step %q has no nested list %q", s.Action, key)
}

// Is reports whether s is a pressKey step for the given key.
func (s Step) Is(action string) bool { return s.Action == action }

// Key returns the key of a pressKey step.
func (s Step) Key() string {
	k, _ := s.params.String("key")
	return k
}

// Duration returns the duration of a wait step.
func (s Step) Duration() (int, bool) {
	if s.Action != ActionWait {
		return 0, false
	}
	return s.params.Int("duration")
}

// Equal reports deep structural equality, ignoring document layout.
func (s Step) Equal(o Step) bool {
	if s.Action != o.Action || s.Comment != o.Comment {
		return false
	}
	if !s.params.Equal(o.params) || !s.extra.Equal(o.extra) {
		return false
	}
	return s.body.Equal(o.body) && s.then.Equal(o.then) && s.els.Equal(o.els)
}

// Equal reports element-wise structural equality.
func (l StepList) Equal(o StepList) bool {
	if len(l) != len(o) {
		return false
	}
	for i := range l {
		if !l[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Count returns the number of top-level steps matching pred.
func (l StepList) Count(pred func(Step) bool) int {
	n := 0
	for _, s := range l {
		if pred(s) {
			n++
		}
	}
	return n
}

// Index returns the index of the first step matching pred at or after from,
// or -1.
func (l StepList) Index(from int, pred func(Step) bool) int {
	for i := max(from, 0); i < len(l); i++ {
		if pred(l[i]) {
			return i
		}
	}
	return -1
}

// Describe renders a one-line summary of the step, used in outlines,
// diagrams and reports.
func (s Step) Describe() string {
	var b strings.Builder
	b.WriteString(s.Action)
	var args []string
	for _, k := range s.params.Keys() {
		switch k {
		case ParamSteps, ParamThenSteps, ParamElseSteps, "comment":
			continue
		}
		raw, _ := s.params.Raw(k)
		v := strings.TrimSpace(string(raw))
		if r := []rune(v); len(r) > 48 {
			v = string(r[:45]) + "..."
		}
		args = append(args, k+"="+v)
	}
	if len(args) > 0 {
		b.WriteString("(" + strings.Join(args, ", ") + ")")
	}
	return b.String()
}

// Outline renders the list, nested lists included, as indented
// one-line descriptions.
func (l StepList) Outline() []string {
	var lines []string
	Walk(l, func(p Path, s Step) bool {
		lines = append(lines, strings.Repeat("  ", p.Depth())+s.Describe())
		return true
	})
	return lines
}

func (s Step) String() string {
	if s.Comment != "" {
		return fmt.Sprintf("%s [%s]", s.Describe(), s.Comment)
	}
	return s.Describe()
}

// listFor reports the nested list stored under key, if the step's kind
// owns one.
func (s Step) listFor(key string) (StepList, bool) {
	switch s.Kind() {
	case KindForEach, KindForEachProperty:
		if key == ParamSteps {
			return s.body, true
		}
	case KindIf:
		switch key {
		case ParamThenSteps:
			return s.then, true
		case ParamElseSteps:
			return s.els, true
		}
	}
	return nil, false
}

var _ json.Marshaler = Step{}
