package rewrite

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity of a rewrite event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// EventKind names what happened at one position of a branch.
type EventKind string

const (
	EventCollapsed           EventKind = "collapsed"
	EventConfirmInjected     EventKind = "confirm-injected"
	EventSettleSynthesized   EventKind = "settle-synthesized"
	EventPrereqInserted      EventKind = "prerequisite-inserted"
	EventPrereqMoved         EventKind = "prerequisite-moved"
	EventPrereqDeduplicated  EventKind = "prerequisite-deduplicated"
	EventPrereqMissingAnchor EventKind = "prerequisite-missing-anchor"
	EventUnrecognizedRun     EventKind = "unrecognized-run"
	EventCanonicalDrift      EventKind = "canonical-drift"
	EventSupersededInput     EventKind = "superseded-input"
	EventNoConfirmKey        EventKind = "no-confirm-key"
)

// Event is one audit record of a branch rewrite.
type Event struct {
	Kind     EventKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Branch   string    `json:"branch"`
	// Index is the step position the event refers to, -1 for the branch.
	Index   int    `json:"index"`
	Field   int    `json:"field,omitempty"`
	Name    string `json:"fieldName,omitempty"`
	Idiom   string `json:"idiom,omitempty"`
	Class   *Class `json:"class,omitempty"`
	Message string `json:"message"`
	// Edit is set when the event changed the branch.
	Edit bool `json:"edit"`
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s #%d %s: %s", e.Severity, e.Branch, e.Index, e.Kind, e.Message)
}

// BranchReport summarizes the rewrite of one branch.
type BranchReport struct {
	Name    string        `json:"name"`
	Key     string        `json:"key"`
	Before  int           `json:"stepsBefore"`
	After   int           `json:"stepsAfter"`
	Anchors int           `json:"anchors"`
	Classes map[Class]int `json:"classes"`
	Events  []Event       `json:"events"`
	Changed bool          `json:"changed"`
}

// Warnings returns the warning events of the branch.
func (b BranchReport) Warnings() []Event {
	var out []Event
	for _, e := range b.Events {
		if e.Severity == SeverityWarning {
			out = append(out, e)
		}
	}
	return out
}

// Edits returns the events that changed the branch.
func (b BranchReport) Edits() []Event {
	var out []Event
	for _, e := range b.Events {
		if e.Edit {
			out = append(out, e)
		}
	}
	return out
}

// Report covers one document.
type Report struct {
	RunID    string         `json:"runId"`
	Source   string         `json:"source,omitempty"`
	Profile  string         `json:"profile"`
	Strategy string         `json:"strategy"`
	Sentinel string         `json:"sentinel"`
	Branches []BranchReport `json:"branches"`
}

// Changed reports whether any branch was modified.
func (r *Report) Changed() bool {
	for _, b := range r.Branches {
		if b.Changed {
			return true
		}
	}
	return false
}

// Warnings counts warning events over all branches.
func (r *Report) Warnings() int {
	n := 0
	for _, b := range r.Branches {
		n += len(b.Warnings())
	}
	return n
}

// JSON renders the report indented.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Markdown renders the report for terminals and review screens.
func (r *Report) Markdown() string {
	var b strings.Builder
	title := "Rewrite report"
	if r.Source != "" {
		title += ": " + r.Source
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Profile `%s`, strategy `%s`, sentinel `%s`, run `%s`.\n\n", r.Profile, r.Strategy, r.Sentinel, r.RunID)
	for _, br := range r.Branches {
		status := "unchanged"
		if br.Changed {
			status = "changed"
		}
		fmt.Fprintf(&b, "## %s (%s)\n\n", br.Name, status)
		fmt.Fprintf(&b, "%d steps → %d steps, %d anchors", br.Before, br.After, br.Anchors)
		for _, c := range []Class{AlreadyCanonical, LegacyManual, Unrecognized} {
			if n := br.Classes[c]; n > 0 {
				fmt.Fprintf(&b, ", %d %s", n, c)
			}
		}
		b.WriteString(".\n\n")
		if len(br.Events) == 0 {
			b.WriteString("No events.\n\n")
			continue
		}
		b.WriteString("| # | severity | event | field | detail |\n|---|---|---|---|---|\n")
		for _, e := range br.Events {
			field := ""
			if e.Field > 0 {
				field = fmt.Sprintf("%d %s", e.Field, e.Name)
			}
			detail := e.Message
			if e.Idiom != "" {
				detail += " (" + e.Idiom + ")"
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n", e.Index, e.Severity, e.Kind, field, strings.ReplaceAll(detail, "|", `\|`))
		}
		b.WriteString("\n")
	}
	return b.String()
}
