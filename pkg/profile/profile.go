// Package profile holds the rule profile of one template family: the
// branch path, anchor widget, field mapping, canonical step shapes and the
// declarative run predicates and idioms the rewrite engine matches with.
package profile

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/stepfix/pkg/template"
)

// APIVersion is the only profile version understood.
const APIVersion = "stepfix/v0"

//go:embed default.yaml
var defaultYAML []byte

// Strategy selects how legacy runs are rewritten.
type Strategy string

const (
	// StrategyCollapse replaces anchor and run with one retry step.
	StrategyCollapse Strategy = "collapse"
	// StrategyConfirm keeps the manual sequence and only injects the
	// arrow-key confirmation.
	StrategyConfirm Strategy = "confirm"
)

// SentinelMode selects how the settle wait after a Part-1 anchor is checked.
type SentinelMode string

const (
	// SentinelAdjacent requires the settle wait directly after the emitted
	// sequence.
	SentinelAdjacent SentinelMode = "adjacent"
	// SentinelAnywhere accepts a settle wait anywhere later in the branch.
	SentinelAnywhere SentinelMode = "anywhere"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyCollapse, StrategyConfirm:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown strategy %q (want %s or %s)", s, StrategyCollapse, StrategyConfirm)
}

// ParseSentinelMode validates a sentinel mode name.
func ParseSentinelMode(s string) (SentinelMode, error) {
	switch SentinelMode(s) {
	case SentinelAdjacent, SentinelAnywhere:
		return SentinelMode(s), nil
	}
	return "", fmt.Errorf("unknown sentinel mode %q (want %s or %s)", s, SentinelAdjacent, SentinelAnywhere)
}

// Profile is the decoded rule profile.
type Profile struct {
	APIVersion   string       `yaml:"apiVersion" json:"apiVersion"`
	Name         string       `yaml:"name" json:"name"`
	Description  string       `yaml:"description,omitempty" json:"description,omitempty"`
	BranchPath   []string     `yaml:"branchPath" json:"branchPath"`
	Branches     BranchNames  `yaml:"branches" json:"branches"`
	Anchor       Anchor       `yaml:"anchor" json:"anchor"`
	Fields       []Field      `yaml:"fields" json:"fields"`
	Retry        Retry        `yaml:"retry" json:"retry"`
	Settle       Settle       `yaml:"settle" json:"settle"`
	Confirm      Confirm      `yaml:"confirm" json:"confirm"`
	Prerequisite Prerequisite `yaml:"prerequisite" json:"prerequisite"`
	Run          RunRules     `yaml:"run" json:"run"`
	Strategy     Strategy     `yaml:"strategy" json:"strategy"`
	Sentinel     SentinelMode `yaml:"sentinel" json:"sentinel"`
	Idioms       []Idiom      `yaml:"idioms,omitempty" json:"idioms,omitempty"`
	Variables    []string     `yaml:"variables,omitempty" json:"variables,omitempty"`

	compiled *compiled
}

// BranchNames label the then/else lists of the final if step in reports.
type BranchNames struct {
	Then string `yaml:"then" json:"then"`
	Else string `yaml:"else" json:"else"`
}

// Anchor identifies the positional autocomplete inputs.
type Anchor struct {
	Action   string `yaml:"action" json:"action"`
	Selector string `yaml:"selector" json:"selector"`
}

// Field is one positional input and its fixed validator/variable mapping.
type Field struct {
	Index              int    `yaml:"index" json:"index"`
	Name               string `yaml:"name" json:"name"`
	ValidationSelector string `yaml:"validationSelector" json:"validationSelector"`
	Value              string `yaml:"value" json:"value"`
	Settle             bool   `yaml:"settle,omitempty" json:"settle,omitempty"`
}

// Retry describes the canonical validated-retry step.
type Retry struct {
	Action     string `yaml:"action" json:"action"`
	MaxRetries int    `yaml:"maxRetries" json:"maxRetries"`
	// Comment may reference {index} and {field}.
	Comment string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// Settle describes the page-settle wait.
type Settle struct {
	Duration int    `yaml:"duration" json:"duration"`
	Comment  string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// Confirm describes the arrow-key confirmation idiom.
type Confirm struct {
	Key      string `yaml:"key" json:"key"`
	EnterKey string `yaml:"enterKey" json:"enterKey"`
	Wait     int    `yaml:"wait" json:"wait"`
}

// Prerequisite describes the step that produces the field variables.
type Prerequisite struct {
	Action string `yaml:"action" json:"action"`
	Param  string `yaml:"param" json:"param"`
	Value  string `yaml:"value" json:"value"`
}

// RunRules are expr predicates over one step.
type RunRules struct {
	Auxiliary string `yaml:"auxiliary" json:"auxiliary"`
	Stop      string `yaml:"stop" json:"stop"`
	Sentinel  string `yaml:"sentinel" json:"sentinel"`
	Confirm   string `yaml:"confirm" json:"confirm"`
	Enter     string `yaml:"enter" json:"enter"`
}

// Idiom is a named declarative pattern over the steps of a run. When
// SentinelNext is set, the settle wait must (true) or must not (false)
// directly follow the run.
type Idiom struct {
	Name         string        `yaml:"name" json:"name"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	SentinelNext *bool         `yaml:"sentinelNext,omitempty" json:"sentinelNext,omitempty"`
	Steps        []PatternStep `yaml:"steps" json:"steps"`
}

// PatternStep matches one or more run steps. Repeat is "", "?", "*" or "+".
type PatternStep struct {
	When   string `yaml:"when" json:"when"`
	Repeat string `yaml:"repeat,omitempty" json:"repeat,omitempty"`
}

// Default returns the embedded attendance-input-loop profile.
func Default() *Profile {
	p, err := Load(bytes.NewReader(defaultYAML))
	if err != nil {
		panic(fmt.Sprintf("profile: embedded default: %v", err))
	}
	return p
}

// DefaultYAML returns the embedded default profile source.
func DefaultYAML() []byte { return bytes.Clone(defaultYAML) }

// LoadFile reads a profile from disk.
func LoadFile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()
	p, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Load decodes a profile strictly and compiles its predicates.
func Load(r io.Reader) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("structural decode: %w", err)
	}
	if err := p.Compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Compile validates the profile and compiles every predicate. All problems
// are reported together.
func (p *Profile) Compile() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if p.APIVersion != APIVersion {
		add("apiVersion: want %q, got %q", APIVersion, p.APIVersion)
	}
	if len(p.BranchPath) == 0 {
		add("branchPath: must not be empty")
	} else {
		for i, tag := range p.BranchPath {
			k := template.KindOf(tag)
			last := i == len(p.BranchPath)-1
			if last && k != template.KindIf {
				add("branchPath[%d]: must be %q, got %q", i, template.ActionIf, tag)
			}
			if !last && k != template.KindForEach && k != template.KindForEachProperty {
				add("branchPath[%d]: %q does not hold a nested step list", i, tag)
			}
		}
	}
	if p.Anchor.Action == "" || p.Anchor.Selector == "" {
		add("anchor: action and selector are required")
	}
	if len(p.Fields) == 0 {
		add("fields: at least one field is required")
	}
	seen := map[int]bool{}
	for i, f := range p.Fields {
		if f.Index <= 0 {
			add("fields[%d].index: must be positive", i)
		}
		if seen[f.Index] {
			add("fields[%d].index: duplicate index %d", i, f.Index)
		}
		seen[f.Index] = true
		if f.ValidationSelector == "" || f.Value == "" {
			add("fields[%d]: validationSelector and value are required", i)
		}
	}
	if p.Retry.Action == "" {
		add("retry.action: required")
	}
	if p.Retry.MaxRetries <= 0 {
		add("retry.maxRetries: must be positive")
	}
	if p.Settle.Duration <= 0 {
		add("settle.duration: must be positive")
	}
	if p.Confirm.Key == "" || p.Confirm.EnterKey == "" {
		add("confirm: key and enterKey are required")
	}
	if p.Confirm.Wait < 0 {
		add("confirm.wait: must not be negative")
	}
	if p.Prerequisite.Action == "" || p.Prerequisite.Param == "" || p.Prerequisite.Value == "" {
		add("prerequisite: action, param and value are required")
	}
	if p.Strategy == "" {
		p.Strategy = StrategyCollapse
	}
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		add("strategy: %v", err)
	}
	if p.Sentinel == "" {
		p.Sentinel = SentinelAdjacent
	}
	if _, err := ParseSentinelMode(string(p.Sentinel)); err != nil {
		add("sentinel: %v", err)
	}

	c, cerrs := compile(p)
	errs = append(errs, cerrs...)
	if len(errs) > 0 {
		return fmt.Errorf("invalid profile %q: %w", p.Name, errors.Join(errs...))
	}
	p.compiled = c
	return nil
}

// WithStrategy returns a copy of p using s.
func (p *Profile) WithStrategy(s Strategy) *Profile {
	out := *p
	out.Strategy = s
	return &out
}

// WithSentinel returns a copy of p using mode m.
func (p *Profile) WithSentinel(m SentinelMode) *Profile {
	out := *p
	out.Sentinel = m
	return &out
}

// Field returns the mapping for a positional index.
func (p *Profile) Field(index int) (Field, bool) {
	for _, f := range p.Fields {
		if f.Index == index {
			return f, true
		}
	}
	return Field{}, false
}

// BranchName returns the report label for "then" or "else".
func (p *Profile) BranchName(key string) string {
	switch key {
	case template.ParamThenSteps:
		if p.Branches.Then != "" {
			return p.Branches.Then
		}
	case template.ParamElseSteps:
		if p.Branches.Else != "" {
			return p.Branches.Else
		}
	}
	return key
}

// YAML renders the effective profile.
func (p *Profile) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CommentFor renders the retry comment of a field.
func (p *Profile) CommentFor(f Field) string {
	r := strings.NewReplacer("{index}", fmt.Sprint(f.Index), "{field}", f.Name)
	return r.Replace(p.Retry.Comment)
}
