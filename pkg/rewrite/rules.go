package rewrite

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ormasoftchile/stepfix/pkg/profile"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

// Plan is what a rule emits in place of an anchor and its run.
type Plan struct {
	Emit template.StepList
	// NeedSettle asks the driver to guarantee the settle wait after Emit.
	NeedSettle bool
	Events     []Event
}

// Rule turns a classified anchor into a plan. Rules are pure.
type Rule func(Match) Plan

// RuleFor returns the anchor rule of the profile's strategy.
func RuleFor(p *profile.Profile) Rule {
	if p.Strategy == profile.StrategyConfirm {
		return ConfirmInjection(p)
	}
	return Collapse(p)
}

func anchorEvent(m Match, kind EventKind, sev Severity, edit bool, msg string) Event {
	c := m.Class
	return Event{
		Kind:     kind,
		Severity: sev,
		Index:    m.Index,
		Field:    m.Field.Index,
		Name:     m.Field.Name,
		Idiom:    m.Idiom,
		Class:    &c,
		Message:  msg,
		Edit:     edit,
	}
}

// passthrough emits the anchor and its run unchanged.
func passthrough(m Match) template.StepList {
	return append(template.StepList{m.Anchor}, m.Run...)
}

// shared handles the outcomes both strategies treat alike.
func shared(p *profile.Profile, m Match) (Plan, bool) {
	switch {
	case m.Class == Unrecognized:
		return Plan{
			Emit: passthrough(m),
			Events: []Event{anchorEvent(m, EventUnrecognizedRun, SeverityWarning, false,
				fmt.Sprintf("run ends at unexpected step #%d; anchor copied through", m.Offender))},
		}, true
	case m.Superseded:
		return Plan{
			Events: []Event{anchorEvent(m, EventSupersededInput, SeverityInfo, true,
				"legacy input dropped; canonical retry step follows")},
		}, true
	case m.Canonical:
		plan := Plan{Emit: template.StepList{m.Anchor}, NeedSettle: m.Field.Settle}
		if drift := p.Drift(m.Anchor, m.Field); len(drift) > 0 {
			plan.Events = append(plan.Events, anchorEvent(m, EventCanonicalDrift, SeverityWarning, false,
				"parameters differ from the canonical mapping: "+strings.Join(drift, ", ")))
		}
		return plan, true
	}
	return Plan{}, false
}

// Collapse replaces a legacy anchor and its run with one retry step.
func Collapse(p *profile.Profile) Rule {
	return func(m Match) Plan {
		if plan, ok := shared(p, m); ok {
			return plan
		}
		sel, _ := m.Anchor.Params().String("selector")
		return Plan{
			Emit:       template.StepList{p.CanonicalStep(m.Field, sel)},
			NeedSettle: m.Field.Settle,
			Events: []Event{anchorEvent(m, EventCollapsed, SeverityInfo, true,
				fmt.Sprintf("typed input and %d manual steps replaced by %s", len(m.Run), p.Retry.Action))},
		}
	}
}

// ConfirmInjection keeps the manual sequence and inserts the arrow-key
// confirmation and its short wait before the first Enter.
func ConfirmInjection(p *profile.Profile) Rule {
	return func(m Match) Plan {
		if plan, ok := shared(p, m); ok {
			return plan
		}
		plan := Plan{NeedSettle: m.Field.Settle}
		if m.Class == AlreadyCanonical {
			plan.Emit = passthrough(m)
			return plan
		}
		if m.EnterAt < 0 {
			plan.Emit = passthrough(m)
			plan.Events = []Event{anchorEvent(m, EventNoConfirmKey, SeverityWarning, false,
				"run has no Enter press; nothing to confirm")}
			return plan
		}
		emit := template.StepList{m.Anchor}
		emit = append(emit, m.Run[:m.EnterAt]...)
		emit = append(emit, p.ConfirmSteps()...)
		emit = append(emit, m.Run[m.EnterAt:]...)
		plan.Emit = emit
		plan.Events = []Event{anchorEvent(m, EventConfirmInjected, SeverityInfo, true,
			fmt.Sprintf("%s press and %d wait inserted before Enter", p.Confirm.Key, p.Confirm.Wait))}
		return plan
	}
}

// SettleSatisfied reports whether the settle wait required after a Part-1
// anchor whose run ends at list[end] is already present, under mode.
func SettleSatisfied(p *profile.Profile, mode profile.SentinelMode, list template.StepList, end int) bool {
	if end < len(list) && p.IsSentinel(list[end]) {
		return true
	}
	if mode != profile.SentinelAnywhere || end >= len(list) {
		return false
	}
	return slices.ContainsFunc(list[end:], p.IsSentinel)
}

// EnsurePrerequisite leaves exactly one prerequisite step in list, placed
// before the first primary anchor. A branch that already satisfies this is
// returned unchanged.
func EnsurePrerequisite(p *profile.Profile, list template.StepList) (template.StepList, []Event) {
	m := NewMatcher(p)
	primary := p.PrimaryIndex()
	anchorAt := list.Index(0, func(s template.Step) bool {
		f, ok := m.field(s)
		return ok && f.Index == primary
	})

	var at []int
	for i, s := range list {
		if p.IsPrerequisite(s) {
			at = append(at, i)
		}
	}

	if anchorAt < 0 {
		return list, []Event{{
			Kind:     EventPrereqMissingAnchor,
			Severity: SeverityWarning,
			Index:    -1,
			Field:    primary,
			Message:  fmt.Sprintf("no field %d anchor; %s placement not checked", primary, p.Prerequisite.Action),
		}}
	}

	if len(at) == 0 {
		out := slices.Insert(slices.Clone(list), anchorAt, p.PrerequisiteStep())
		return out, []Event{{
			Kind:     EventPrereqInserted,
			Severity: SeverityInfo,
			Index:    anchorAt,
			Field:    primary,
			Message:  fmt.Sprintf("%s inserted before the first field %d anchor", p.Prerequisite.Action, primary),
			Edit:     true,
		}}
	}

	keep := -1
	if at[0] < anchorAt {
		keep = at[0]
	}
	if keep >= 0 && len(at) == 1 {
		return list, nil
	}

	var events []Event
	out := make(template.StepList, 0, len(list))
	kept := list[at[0]]
	for i, s := range list {
		if i == anchorAt && keep < 0 {
			out = append(out, kept)
		}
		if p.IsPrerequisite(s) && i != keep {
			continue
		}
		out = append(out, s)
	}
	if len(at) > 1 {
		events = append(events, Event{
			Kind:     EventPrereqDeduplicated,
			Severity: SeverityWarning,
			Index:    at[1],
			Field:    primary,
			Message:  fmt.Sprintf("%d duplicate %s steps removed", len(at)-1, p.Prerequisite.Action),
			Edit:     true,
		})
	}
	if keep < 0 {
		events = append(events, Event{
			Kind:     EventPrereqMoved,
			Severity: SeverityWarning,
			Index:    at[0],
			Field:    primary,
			Message:  fmt.Sprintf("%s moved before the first field %d anchor", p.Prerequisite.Action, primary),
			Edit:     true,
		})
	}
	return out, events
}
