package rewrite

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ormasoftchile/stepfix/pkg/locate"
	"github.com/ormasoftchile/stepfix/pkg/profile"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

// Rewriter applies the rule set to the branches of a template.
type Rewriter struct {
	profile *profile.Profile
	matcher *Matcher
	rule    Rule
	logger  *zap.Logger
	runID   string
	source  string
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithLogger sets the audit logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(r *Rewriter) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRunID tags every event and log record with id.
func WithRunID(id string) Option {
	return func(r *Rewriter) { r.runID = id }
}

// WithSource names the document in reports and logs.
func WithSource(name string) Option {
	return func(r *Rewriter) { r.source = name }
}

// New returns a Rewriter for p.
func New(p *profile.Profile, opts ...Option) *Rewriter {
	r := &Rewriter{
		profile: p,
		matcher: NewMatcher(p),
		rule:    RuleFor(p),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("run_id", r.runID))
	return r
}

// Profile returns the profile in use.
func (r *Rewriter) Profile() *profile.Profile { return r.profile }

// RewriteBranch rewrites one step list in a single left-to-right pass.
func (r *Rewriter) RewriteBranch(name string, list template.StepList) (template.StepList, BranchReport) {
	p := r.profile
	rep := BranchReport{Name: name, Before: len(list), Classes: map[Class]int{}}

	work, events := EnsurePrerequisite(p, list)

	out := make(template.StepList, 0, len(work))
	for i := 0; i < len(work); {
		m, ok := r.matcher.Classify(work, i)
		if !ok {
			out = append(out, work[i])
			i++
			continue
		}
		rep.Anchors++
		rep.Classes[m.Class]++

		plan := r.rule(m)
		out = append(out, plan.Emit...)
		events = append(events, plan.Events...)

		if plan.NeedSettle && !SettleSatisfied(p, p.Sentinel, work, m.End) {
			out = append(out, p.SettleStep())
			sev := SeverityInfo
			msg := fmt.Sprintf("settle wait of %d synthesized after field %d", p.Settle.Duration, m.Field.Index)
			// A later, non-adjacent settle wait stays in place and is now doubled.
			if SettleSatisfied(p, profile.SentinelAnywhere, work, m.End) {
				sev = SeverityWarning
				msg += "; a later settle wait in the branch is not adjacent"
			}
			events = append(events, anchorEvent(m, EventSettleSynthesized, sev, true, msg))
		}
		i = m.End
	}

	for k := range events {
		events[k].Branch = name
	}
	rep.Events = events
	rep.After = len(out)
	rep.Changed = !out.Equal(list)
	r.log(rep)
	return out, rep
}

// RewriteDocument locates both branches, rewrites each independently and
// returns a new document. The input document is not modified.
func (r *Rewriter) RewriteDocument(doc *template.Document) (*template.Document, *Report, error) {
	p := r.profile
	branches, err := locate.Find(doc.Steps, p.BranchPath)
	if err != nil {
		return nil, nil, fmt.Errorf("locate branches: %w", err)
	}

	thenName := p.BranchName(template.ParamThenSteps)
	elseName := p.BranchName(template.ParamElseSteps)
	newThen, thenRep := r.RewriteBranch(thenName, branches.Then)
	newElse, elseRep := r.RewriteBranch(elseName, branches.Else)
	thenRep.Key, elseRep.Key = template.ParamThenSteps, template.ParamElseSteps

	report := &Report{
		RunID:    r.runID,
		Source:   r.source,
		Profile:  p.Name,
		Strategy: string(p.Strategy),
		Sentinel: string(p.Sentinel),
		Branches: []BranchReport{thenRep, elseRep},
	}
	if !report.Changed() {
		return doc, report, nil
	}

	steps, err := locate.Replace(doc.Steps, p.BranchPath, locate.Branches{Then: newThen, Else: newElse})
	if err != nil {
		return nil, nil, fmt.Errorf("replace branches: %w", err)
	}
	return doc.WithSteps(steps), report, nil
}

func (r *Rewriter) log(rep BranchReport) {
	for _, e := range rep.Events {
		level := zapcore.InfoLevel
		if e.Severity == SeverityWarning {
			level = zapcore.WarnLevel
		}
		if ce := r.logger.Check(level, "rewrite event"); ce != nil {
			ce.Write(
				zap.String("source", r.source),
				zap.String("branch", e.Branch),
				zap.String("event", string(e.Kind)),
				zap.Int("index", e.Index),
				zap.Int("field", e.Field),
				zap.String("idiom", e.Idiom),
				zap.Bool("edit", e.Edit),
				zap.String("message", e.Message),
			)
		}
	}
	r.logger.Debug("branch rewritten",
		zap.String("branch", rep.Name),
		zap.Int("before", rep.Before),
		zap.Int("after", rep.After),
		zap.Int("anchors", rep.Anchors),
		zap.Bool("changed", rep.Changed),
	)
}
