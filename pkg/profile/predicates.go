package profile

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ormasoftchile/stepfix/pkg/template"
)

// Predicate is a compiled boolean expression over one step.
type Predicate struct {
	Source  string
	program *vm.Program
}

type compiledIdiom struct {
	idiom Idiom
	steps []compiledPattern
}

type compiledPattern struct {
	pred   Predicate
	repeat string
}

type compiled struct {
	auxiliary, stop, sentinel, confirm, enter Predicate
	idioms                                    []compiledIdiom
}

// sampleEnv fixes the variable types the predicates are checked against.
func sampleEnv() map[string]any {
	return map[string]any{
		"action":         "",
		"comment":        "",
		"params":         map[string]any{},
		"duration":       0,
		"key":            "",
		"index":          0,
		"selector":       "",
		"settleDuration": 0,
		"confirmKey":     "",
		"enterKey":       "",
	}
}

// Env builds the expression environment of one step. duration and index
// are -1 when absent.
func (p *Profile) Env(s template.Step) map[string]any {
	params := s.Params()
	duration, ok := s.Duration()
	if !ok {
		duration = -1
	}
	index, ok := params.Int("index")
	if !ok {
		index = -1
	}
	selector, _ := params.String("selector")
	return map[string]any{
		"action":         s.Action,
		"comment":        s.Comment,
		"params":         params.Map(),
		"duration":       duration,
		"key":            s.Key(),
		"index":          index,
		"selector":       selector,
		"settleDuration": p.Settle.Duration,
		"confirmKey":     p.Confirm.Key,
		"enterKey":       p.Confirm.EnterKey,
	}
}

func compilePredicate(field, src string) (Predicate, error) {
	if src == "" {
		return Predicate{}, fmt.Errorf("%s: expression is required", field)
	}
	prog, err := expr.Compile(src, expr.Env(sampleEnv()), expr.AsBool())
	if err != nil {
		return Predicate{}, fmt.Errorf("%s: compile %q: %w", field, src, err)
	}
	return Predicate{Source: src, program: prog}, nil
}

func compile(p *Profile) (*compiled, []error) {
	var (
		c    compiled
		errs []error
	)
	for _, r := range []struct {
		name string
		src  string
		dst  *Predicate
	}{
		{"run.auxiliary", p.Run.Auxiliary, &c.auxiliary},
		{"run.stop", p.Run.Stop, &c.stop},
		{"run.sentinel", p.Run.Sentinel, &c.sentinel},
		{"run.confirm", p.Run.Confirm, &c.confirm},
		{"run.enter", p.Run.Enter, &c.enter},
	} {
		pred, err := compilePredicate(r.name, r.src)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*r.dst = pred
	}

	names := map[string]bool{}
	for i, id := range p.Idioms {
		if id.Name == "" {
			errs = append(errs, fmt.Errorf("idioms[%d].name: required", i))
		}
		if names[id.Name] {
			errs = append(errs, fmt.Errorf("idioms[%d].name: duplicate %q", i, id.Name))
		}
		names[id.Name] = true
		ci := compiledIdiom{idiom: id}
		for j, ps := range id.Steps {
			field := fmt.Sprintf("idioms[%d].steps[%d]", i, j)
			switch ps.Repeat {
			case "", "?", "*", "+":
			default:
				errs = append(errs, fmt.Errorf("%s.repeat: want one of \"\", ?, *, +; got %q", field, ps.Repeat))
			}
			pred, err := compilePredicate(field+".when", ps.When)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			ci.steps = append(ci.steps, compiledPattern{pred: pred, repeat: ps.Repeat})
		}
		c.idioms = append(c.idioms, ci)
	}
	return &c, errs
}

func (pr Predicate) eval(env map[string]any) bool {
	if pr.program == nil {
		return false
	}
	out, err := expr.Run(pr.program, env)
	if err != nil {
		return false
	}
	b, _ := out.(bool)
	return b
}

func (p *Profile) mustCompiled() *compiled {
	if p.compiled == nil {
		if err := p.Compile(); err != nil {
			panic(fmt.Sprintf("profile %q used before Compile: %v", p.Name, err))
		}
	}
	return p.compiled
}

// IsAuxiliary reports whether s may appear inside a run.
func (p *Profile) IsAuxiliary(s template.Step) bool {
	return p.mustCompiled().auxiliary.eval(p.Env(s))
}

// IsStop reports whether s ends a run.
func (p *Profile) IsStop(s template.Step) bool {
	return p.mustCompiled().stop.eval(p.Env(s))
}

// IsSentinel reports whether s is the settle wait.
func (p *Profile) IsSentinel(s template.Step) bool {
	return p.mustCompiled().sentinel.eval(p.Env(s))
}

// IsConfirm reports whether s is the arrow-key confirmation press.
func (p *Profile) IsConfirm(s template.Step) bool {
	return p.mustCompiled().confirm.eval(p.Env(s))
}

// IsEnter reports whether s is the Enter press.
func (p *Profile) IsEnter(s template.Step) bool {
	return p.mustCompiled().enter.eval(p.Env(s))
}

// IdiomOf returns the name of the first idiom matching run, or "".
func (p *Profile) IdiomOf(run template.StepList, sentinelNext bool) string {
	envs := make([]map[string]any, len(run))
	for i, s := range run {
		envs[i] = p.Env(s)
	}
	for _, ci := range p.mustCompiled().idioms {
		if ci.idiom.SentinelNext != nil && *ci.idiom.SentinelNext != sentinelNext {
			continue
		}
		if matchPattern(ci.steps, envs) {
			return ci.idiom.Name
		}
	}
	return ""
}

// matchPattern anchors the pattern at both ends of the run.
func matchPattern(pattern []compiledPattern, envs []map[string]any) bool {
	if len(pattern) == 0 {
		return len(envs) == 0
	}
	head, rest := pattern[0], pattern[1:]
	switch head.repeat {
	case "":
		return len(envs) > 0 && head.pred.eval(envs[0]) && matchPattern(rest, envs[1:])
	case "?":
		if matchPattern(rest, envs) {
			return true
		}
		return len(envs) > 0 && head.pred.eval(envs[0]) && matchPattern(rest, envs[1:])
	default: // "*" and "+"
		least := 0
		if head.repeat == "+" {
			least = 1
		}
		for n := 0; n <= len(envs); n++ {
			if n > 0 && !head.pred.eval(envs[n-1]) {
				return false
			}
			if n >= least && matchPattern(rest, envs[n:]) {
				return true
			}
		}
		return false
	}
}
