// Package rewrite turns legacy, manually confirmed field inputs inside the
// two target branches of a template into canonical validated-retry steps.
package rewrite

import (
	"fmt"

	"github.com/ormasoftchile/stepfix/pkg/profile"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

// Class is the classification of one anchor and its run.
type Class int

const (
	// AlreadyCanonical needs no rewrite.
	AlreadyCanonical Class = iota
	// LegacyManual is a typed input followed only by waits and key presses.
	LegacyManual
	// Unrecognized met a step that is neither auxiliary nor a stop action.
	Unrecognized
)

func (c Class) String() string {
	switch c {
	case AlreadyCanonical:
		return "already-canonical"
	case LegacyManual:
		return "legacy-manual"
	case Unrecognized:
		return "unrecognized"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// MarshalText renders the class name in reports.
func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText reads a class name written by MarshalText.
func (c *Class) UnmarshalText(text []byte) error {
	for _, k := range []Class{AlreadyCanonical, LegacyManual, Unrecognized} {
		if k.String() == string(text) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown class %q", text)
}

// Match is the result of classifying one anchor.
type Match struct {
	Class  Class
	Field  profile.Field
	Index  int // position of the anchor in the list
	Anchor template.Step
	// Run holds the auxiliary steps after the anchor. The sentinel and the
	// stop step are never part of it.
	Run template.StepList
	// End is the position just past the run.
	End int

	// Canonical is set when the anchor itself is the retry step.
	Canonical bool
	// Superseded is set when the run of a legacy anchor leads, past waits,
	// key presses and the prerequisite, to the retry step for the same field.
	Superseded bool
	// Confirmed records an arrow-key press before the first Enter.
	Confirmed bool
	// EnterAt is the run position of the first Enter, or -1.
	EnterAt int
	// SentinelNext is set when the settle wait sits at End.
	SentinelNext bool
	// Stop is the action that ended the run; empty at end of list.
	Stop string
	// Offender is the position of the step that made the run unrecognized.
	Offender int
	Idiom    string
}

// Matcher classifies anchors against a profile.
type Matcher struct {
	profile *profile.Profile
}

// NewMatcher returns a matcher for p.
func NewMatcher(p *profile.Profile) *Matcher {
	return &Matcher{profile: p}
}

// IsAnchor reports whether s is a legacy or canonical anchor.
func (m *Matcher) IsAnchor(s template.Step) bool {
	_, ok := m.field(s)
	return ok
}

func (m *Matcher) field(s template.Step) (profile.Field, bool) {
	if f, ok := m.profile.CanonicalField(s); ok {
		return f, true
	}
	return m.profile.AnchorField(s)
}

// Classify classifies the anchor at list[i]. It reports false when list[i]
// is not an anchor.
func (m *Matcher) Classify(list template.StepList, i int) (Match, bool) {
	if i < 0 || i >= len(list) {
		return Match{}, false
	}
	p := m.profile
	s := list[i]
	match := Match{Index: i, Anchor: s, EnterAt: -1, Offender: -1}

	if f, ok := p.CanonicalField(s); ok {
		match.Class = AlreadyCanonical
		match.Field = f
		match.Canonical = true
		match.End = i + 1
		match.SentinelNext = match.End < len(list) && p.IsSentinel(list[match.End])
		return match, true
	}

	f, ok := p.AnchorField(s)
	if !ok {
		return Match{}, false
	}
	match.Field = f

	j := i + 1
scan:
	for ; j < len(list); j++ {
		next := list[j]
		switch {
		case p.IsSentinel(next):
			match.SentinelNext = true
			break scan
		case p.IsStop(next):
			match.Stop = next.Action
			break scan
		case p.IsAuxiliary(next):
			match.Run = append(match.Run, next)
		default:
			match.Offender = j
			break scan
		}
	}
	match.End = j

	for k, r := range match.Run {
		if p.IsEnter(r) {
			match.EnterAt = k
			break
		}
		if p.IsConfirm(r) {
			match.Confirmed = true
		}
	}

	if match.Offender >= 0 {
		match.Class = Unrecognized
		return match, true
	}
	if m.retryFollows(list, j, f) {
		match.Class = AlreadyCanonical
		match.Superseded = true
		return match, true
	}

	switch {
	case p.Strategy == profile.StrategyConfirm && match.Confirmed:
		match.Class = AlreadyCanonical
	default:
		match.Class = LegacyManual
	}
	match.Idiom = p.IdiomOf(match.Run, match.SentinelNext)
	return match, true
}

// retryFollows reports whether the first step at or after list[j] that is
// not a wait, key press or prerequisite is the retry step for f.
func (m *Matcher) retryFollows(list template.StepList, j int, f profile.Field) bool {
	p := m.profile
	for ; j < len(list); j++ {
		s := list[j]
		if p.IsSentinel(s) || p.IsAuxiliary(s) || p.IsPrerequisite(s) {
			continue
		}
		cf, ok := p.CanonicalField(s)
		return ok && cf.Index == f.Index
	}
	return false
}
