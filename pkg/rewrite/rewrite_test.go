package rewrite

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ormasoftchile/stepfix/pkg/locate"
	"github.com/ormasoftchile/stepfix/pkg/profile"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

const widget = ".ui-autocomplete-input.CBOBox"

var values = map[int]string{1: "${chargeJobPart1Clean}", 2: "${chargeJobPart2}", 3: "${chargeJobPart3}"}

func ti(idx int) template.Step {
	return template.NewStep(template.ActionTypeInput, "",
		template.P("selector", widget), template.P("index", idx), template.P("value", values[idx]))
}

func retry(idx int) template.Step {
	p := profile.Default()
	f, _ := p.Field(idx)
	return p.CanonicalStep(f, widget)
}

func wait(d int) template.Step {
	return template.NewStep(template.ActionWait, "", template.P("duration", d))
}

func key(k string) template.Step {
	return template.NewStep(template.ActionPressKey, "", template.P("key", k))
}

func click(sel string) template.Step {
	return template.NewStep(template.ActionClick, "", template.P("selector", sel))
}

func logStep(msg string) template.Step {
	return template.NewStep(template.ActionLog, "", template.P("message", msg))
}

func settle() template.Step { return profile.Default().SettleStep() }
func prereq() template.Step { return profile.Default().PrerequisiteStep() }
func enter() template.Step  { return key("Enter") }
func arrow() template.Step  { return key("ArrowDown") }
func otInput() template.Step {
	return template.NewStep(template.ActionTypeInput, "", template.P("selector", "#MainContent_txtOTHours"))
}

func assertSteps(t *testing.T, want, got template.StepList) {
	t.Helper()
	if diff := cmp.Diff(want.Outline(), got.Outline()); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
	require.True(t, want.Equal(got), "outlines match but steps differ")
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func newRewriter(mut ...func(*profile.Profile) *profile.Profile) *Rewriter {
	p := profile.Default()
	for _, m := range mut {
		p = m(p)
	}
	return New(p)
}

func confirmStrategy(p *profile.Profile) *profile.Profile {
	return p.WithStrategy(profile.StrategyConfirm)
}
func anywhere(p *profile.Profile) *profile.Profile { return p.WithSentinel(profile.SentinelAnywhere) }

func TestScenario_LegacyBranchWithoutPrerequisite(t *testing.T) {
	in := template.StepList{ti(1), wait(1000), enter(), ti(2), wait(1000), enter()}
	got, rep := newRewriter().RewriteBranch("regular", in)

	assertSteps(t, template.StepList{prereq(), retry(1), settle(), retry(2)}, got)
	assert.Equal(t, []EventKind{EventPrereqInserted, EventCollapsed, EventSettleSynthesized, EventCollapsed}, kinds(rep.Events))
	assert.True(t, rep.Changed)
	assert.Equal(t, 2, rep.Anchors)
	assert.Equal(t, 2, rep.Classes[LegacyManual])
	assert.Empty(t, rep.Warnings())
	for _, e := range rep.Events {
		assert.Equal(t, "regular", e.Branch)
	}
}

func TestScenario_CanonicalBranchIsFixedPoint(t *testing.T) {
	in := template.StepList{prereq(), retry(1), settle(), retry(2)}
	got, rep := newRewriter().RewriteBranch("regular", in)

	assertSteps(t, in, got)
	assert.False(t, rep.Changed)
	assert.Empty(t, rep.Events)
	assert.Equal(t, 2, rep.Classes[AlreadyCanonical])
}

func TestScenario_ConfirmedRunCollapsesWithoutReinjection(t *testing.T) {
	in := template.StepList{ti(1), wait(1000), arrow(), wait(500), enter()}

	m, ok := NewMatcher(profile.Default()).Classify(in, 0)
	require.True(t, ok)
	assert.Equal(t, LegacyManual, m.Class)
	assert.True(t, m.Confirmed)
	assert.Equal(t, "arrow-confirmed", m.Idiom)

	got, rep := newRewriter().RewriteBranch("regular", in)
	assertSteps(t, template.StepList{prereq(), retry(1), settle()}, got)
	assert.NotContains(t, kinds(rep.Events), EventConfirmInjected)
}

func TestClassify(t *testing.T) {
	p := profile.Default()
	tests := []struct {
		name         string
		list         template.StepList
		at           int
		class        Class
		run          int
		end          int
		confirmed    bool
		sentinelNext bool
		superseded   bool
		stop         string
	}{
		{"manual enter to end", template.StepList{ti(2), wait(1000), enter()}, 0, LegacyManual, 2, 3, false, false, false, ""},
		{"stops at click", template.StepList{ti(3), enter(), click("#add"), wait(1000)}, 0, LegacyManual, 1, 2, false, false, false, template.ActionClick},
		{"sentinel excluded", template.StepList{ti(1), wait(1000), enter(), settle(), ti(2)}, 0, LegacyManual, 2, 3, false, true, false, ""},
		{"any order", template.StepList{ti(1), enter(), arrow(), wait(200), wait(100)}, 0, LegacyManual, 4, 5, false, false, false, ""},
		{"arrow before enter", template.StepList{ti(1), arrow(), enter()}, 0, LegacyManual, 2, 3, true, false, false, ""},
		{"offender", template.StepList{ti(2), wait(1000), logStep("x"), enter()}, 0, Unrecognized, 1, 2, false, false, false, ""},
		{"canonical anchor", template.StepList{logStep("a"), retry(1), settle()}, 1, AlreadyCanonical, 0, 2, false, true, false, ""},
		{"superseded input", template.StepList{ti(2), retry(2), wait(1000)}, 0, AlreadyCanonical, 0, 1, false, false, true, template.ActionRetryInput},
		{"superseded after manual run", template.StepList{ti(1), wait(1000), enter(), retry(1), settle()}, 0, AlreadyCanonical, 2, 3, false, false, true, template.ActionRetryInput},
		{"superseded past settle wait", template.StepList{ti(1), enter(), settle(), wait(500), retry(1)}, 0, AlreadyCanonical, 1, 2, false, true, true, ""},
		{"superseded past prerequisite", template.StepList{ti(2), prereq(), retry(2)}, 0, AlreadyCanonical, 0, 1, false, false, true, template.ActionParseChargeJob},
		{"click between is not superseded", template.StepList{ti(1), enter(), click("#x"), retry(1)}, 0, LegacyManual, 1, 2, false, false, false, template.ActionClick},
		{"other index retry is a stop", template.StepList{ti(2), retry(3)}, 0, LegacyManual, 0, 1, false, false, false, template.ActionRetryInput},
		{"nested control stops", template.StepList{ti(1), wait(10), template.NewStep(template.ActionIf, "")}, 0, LegacyManual, 1, 2, false, false, false, template.ActionIf},
	}
	m := NewMatcher(p)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Classify(tt.list, tt.at)
			require.True(t, ok)
			assert.Equal(t, tt.class, got.Class)
			assert.Len(t, got.Run, tt.run)
			assert.Equal(t, tt.end, got.End)
			assert.Equal(t, tt.confirmed, got.Confirmed)
			assert.Equal(t, tt.sentinelNext, got.SentinelNext)
			assert.Equal(t, tt.superseded, got.Superseded)
			assert.Equal(t, tt.stop, got.Stop)
		})
	}

	_, ok := m.Classify(template.StepList{logStep("x")}, 0)
	assert.False(t, ok)
	_, ok = m.Classify(template.StepList{otInput()}, 0)
	assert.False(t, ok)
	_, ok = m.Classify(nil, 3)
	assert.False(t, ok)
}

func TestClassify_ConfirmStrategyTreatsConfirmedRunAsCanonical(t *testing.T) {
	p := profile.Default().WithStrategy(profile.StrategyConfirm)
	m, ok := NewMatcher(p).Classify(template.StepList{ti(1), wait(1000), arrow(), wait(500), enter()}, 0)
	require.True(t, ok)
	assert.Equal(t, AlreadyCanonical, m.Class)
}

func TestNonAnchorPassthrough(t *testing.T) {
	note := logStep("Regular ${date}").WithComment("═══ header ═══")
	in := template.StepList{
		note, ti(1), wait(1000), enter(), click("#MainContent_btnCheck"),
		logStep("between"), ti(2), enter(), otInput(), logStep("end"),
	}
	got, _ := newRewriter().RewriteBranch("regular", in)

	want := template.StepList{
		note, prereq(), retry(1), settle(), click("#MainContent_btnCheck"),
		logStep("between"), retry(2), otInput(), logStep("end"),
	}
	assertSteps(t, want, got)
	assert.Equal(t, "═══ header ═══", got[0].Comment)
}

func TestSentinelPreservation(t *testing.T) {
	own := template.NewStep(template.ActionWait, "settle", template.P("duration", 3000))
	in := template.StepList{prereq(), ti(1), wait(1000), arrow(), enter(), own, ti(2), enter()}

	for _, mut := range []func(*profile.Profile) *profile.Profile{
		func(p *profile.Profile) *profile.Profile { return p },
		anywhere,
		confirmStrategy,
	} {
		r := newRewriter(mut)
		got, rep := r.RewriteBranch("regular", in)
		n := got.Count(func(s template.Step) bool { return r.Profile().IsSentinel(s) })
		assert.Equal(t, 1, n, "strategy %s sentinel %s", r.Profile().Strategy, r.Profile().Sentinel)
		i := got.Index(0, func(s template.Step) bool { return s.Equal(own) })
		require.GreaterOrEqual(t, i, 0)
		assert.NotContains(t, kinds(rep.Events), EventSettleSynthesized)
	}
}

func TestSettleModes(t *testing.T) {
	in := template.StepList{prereq(), ti(1), wait(1000), enter(), click("#next"), wait(3000)}

	strict, rep := newRewriter().RewriteBranch("regular", in)
	assertSteps(t, template.StepList{prereq(), retry(1), settle(), click("#next"), wait(3000)}, strict)
	assert.Contains(t, kinds(rep.Events), EventSettleSynthesized)

	loose, rep := newRewriter(anywhere).RewriteBranch("regular", in)
	assertSteps(t, template.StepList{prereq(), retry(1), click("#next"), wait(3000)}, loose)
	assert.NotContains(t, kinds(rep.Events), EventSettleSynthesized)
}

func TestSettleOnlyForPartOne(t *testing.T) {
	in := template.StepList{ti(2), wait(1000), enter(), ti(3), enter()}
	got, _ := newRewriter().RewriteBranch("overtime", in)
	assertSteps(t, template.StepList{retry(2), retry(3)}, got)
}

func TestConfirmInjection(t *testing.T) {
	in := template.StepList{ti(1), wait(1000), enter(), ti(2), wait(1000), arrow(), wait(500), enter()}
	got, rep := newRewriter(confirmStrategy).RewriteBranch("regular", in)

	want := template.StepList{
		prereq(),
		ti(1), wait(1000), arrow(), wait(500), enter(), settle(),
		ti(2), wait(1000), arrow(), wait(500), enter(),
	}
	assertSteps(t, want, got)
	assert.Equal(t, []EventKind{EventPrereqInserted, EventConfirmInjected, EventSettleSynthesized}, kinds(rep.Events))
	assert.Equal(t, 1, rep.Classes[AlreadyCanonical])
	assert.Equal(t, 1, rep.Classes[LegacyManual])

	again, rep2 := newRewriter(confirmStrategy).RewriteBranch("regular", got)
	assertSteps(t, got, again)
	assert.False(t, rep2.Changed)
}

func TestConfirmInjection_NoEnter(t *testing.T) {
	in := template.StepList{prereq(), ti(2), wait(1000)}
	got, rep := newRewriter(confirmStrategy).RewriteBranch("regular", in)
	assertSteps(t, in, got)
	assert.Equal(t, []EventKind{EventPrereqMissingAnchor, EventNoConfirmKey}, kinds(rep.Events))
	assert.Len(t, rep.Warnings(), 2)
}

func TestUnrecognizedRunCopiedThrough(t *testing.T) {
	odd := template.NewStep("screenshot", "", template.P("filename", "x.png"))
	in := template.StepList{prereq(), ti(1), wait(1000), odd, enter(), ti(2), enter()}
	got, rep := newRewriter().RewriteBranch("regular", in)

	assertSteps(t, template.StepList{prereq(), ti(1), wait(1000), odd, enter(), retry(2)}, got)
	require.Len(t, rep.Warnings(), 1)
	w := rep.Warnings()[0]
	assert.Equal(t, EventUnrecognizedRun, w.Kind)
	assert.Equal(t, 1, w.Index)
	assert.Equal(t, 1, rep.Classes[Unrecognized])
}

func TestSupersededInputDropped(t *testing.T) {
	in := template.StepList{prereq(), ti(1), wait(1000), enter(), ti(2), retry(2)}
	got, rep := newRewriter().RewriteBranch("regular", in)
	assertSteps(t, template.StepList{prereq(), retry(1), settle(), retry(2)}, got)
	assert.Contains(t, kinds(rep.Events), EventSupersededInput)

	for i, s := range got {
		if _, ok := profile.Default().AnchorField(s); ok {
			t.Fatalf("legacy anchor left at %d", i)
		}
	}
}

func TestSupersededAfterManualRun(t *testing.T) {
	in := template.StepList{prereq(), ti(1), wait(1000), enter(), retry(1), settle(), retry(2)}
	for _, mut := range []func(*profile.Profile) *profile.Profile{
		func(p *profile.Profile) *profile.Profile { return p },
		anywhere,
		confirmStrategy,
	} {
		r := newRewriter(mut)
		got, rep := r.RewriteBranch("regular", in)
		name := string(r.Profile().Strategy) + "/" + string(r.Profile().Sentinel)

		assertSteps(t, template.StepList{prereq(), retry(1), settle(), retry(2)}, got)
		assert.Equal(t, []EventKind{EventSupersededInput}, kinds(rep.Events), name)
		assert.Equal(t, 1, got.Count(r.Profile().IsSentinel), name)
		assert.Empty(t, rep.Warnings(), name)

		again, rep2 := r.RewriteBranch("regular", got)
		assertSteps(t, got, again)
		assert.False(t, rep2.Changed, name)
	}
}

func TestSettleSynthesizedBeforeLaterSentinelWarns(t *testing.T) {
	in := template.StepList{prereq(), retry(1), wait(1000), enter(), settle()}

	got, rep := newRewriter().RewriteBranch("regular", in)
	assertSteps(t, template.StepList{prereq(), retry(1), settle(), wait(1000), enter(), settle()}, got)
	require.Len(t, rep.Warnings(), 1)
	w := rep.Warnings()[0]
	assert.Equal(t, EventSettleSynthesized, w.Kind)
	assert.Contains(t, w.Message, "not adjacent")

	loose, rep := newRewriter(anywhere).RewriteBranch("regular", in)
	assertSteps(t, in, loose)
	assert.Empty(t, rep.Events)

	_, rep = newRewriter().RewriteBranch("regular", template.StepList{prereq(), retry(1), click("#x")})
	require.Len(t, rep.Events, 1)
	assert.Equal(t, SeverityInfo, rep.Events[0].Severity)
}

func TestCanonicalDriftReportedNotFixed(t *testing.T) {
	drifted := retry(2).WithParam("maxRetries", 3)
	in := template.StepList{drifted}
	got, rep := newRewriter().RewriteBranch("overtime", in)

	assertSteps(t, in, got)
	assert.False(t, rep.Changed)
	kk := kinds(rep.Events)
	assert.Contains(t, kk, EventCanonicalDrift)
	assert.Contains(t, kk, EventPrereqMissingAnchor)
}

func TestEnsurePrerequisite(t *testing.T) {
	p := profile.Default()
	other := template.NewStep(template.ActionParseChargeJob, "", template.P("chargeJob", "${employee.OtherJob}"))
	tests := []struct {
		name   string
		in     template.StepList
		want   template.StepList
		events []EventKind
	}{
		{"insert", template.StepList{logStep("a"), ti(1)}, template.StepList{logStep("a"), prereq(), ti(1)}, []EventKind{EventPrereqInserted}},
		{"insert before canonical", template.StepList{retry(2), retry(1)}, template.StepList{retry(2), prereq(), retry(1)}, []EventKind{EventPrereqInserted}},
		{"single before is untouched", template.StepList{other, logStep("a"), ti(1)}, template.StepList{other, logStep("a"), ti(1)}, nil},
		{"duplicates removed", template.StepList{prereq(), ti(1), prereq(), other}, template.StepList{prereq(), ti(1)}, []EventKind{EventPrereqDeduplicated}},
		{"misplaced moved", template.StepList{ti(1), logStep("a"), other}, template.StepList{other, ti(1), logStep("a")}, []EventKind{EventPrereqMoved}},
		{"misplaced duplicates", template.StepList{ti(1), prereq(), prereq()}, template.StepList{prereq(), ti(1)}, []EventKind{EventPrereqDeduplicated, EventPrereqMoved}},
		{"no anchor", template.StepList{logStep("a"), ti(2)}, template.StepList{logStep("a"), ti(2)}, []EventKind{EventPrereqMissingAnchor}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, events := EnsurePrerequisite(p, tt.in)
			assertSteps(t, tt.want, got)
			assert.Equal(t, tt.events, nilIfEmpty(kinds(events)))
		})
	}
}

func nilIfEmpty(k []EventKind) []EventKind {
	if len(k) == 0 {
		return nil
	}
	return k
}

// fieldSteps yields the field index of each anchor in list and whether it is
// a retry step. Waits, key presses and the prerequisite are skipped; any
// other step yields index 0.
func fieldSteps(p *profile.Profile, list template.StepList, yield func(idx int, retry bool)) {
	for _, s := range list {
		if p.IsAuxiliary(s) || p.IsPrerequisite(s) {
			continue
		}
		if f, ok := p.CanonicalField(s); ok {
			yield(f.Index, true)
		} else if f, ok := p.AnchorField(s); ok {
			yield(f.Index, false)
		} else {
			yield(0, false)
		}
	}
}

// retryRepeats counts retry steps directly following a retry for the same field.
func retryRepeats(p *profile.Profile, list template.StepList) int {
	n, prev, prevRetry := 0, 0, false
	fieldSteps(p, list, func(idx int, retry bool) {
		if idx != 0 && idx == prev && retry && prevRetry {
			n++
		}
		prev, prevRetry = idx, retry
	})
	return n
}

// fieldRepeats counts anchors directly following an anchor for the same
// field, except a legacy input followed by its retry step.
func fieldRepeats(p *profile.Profile, list template.StepList) int {
	n, prev, prevRetry := 0, 0, false
	fieldSteps(p, list, func(idx int, retry bool) {
		if idx != 0 && idx == prev && (prevRetry || !retry) {
			n++
		}
		prev, prevRetry = idx, retry
	})
	return n
}

// randomList draws from the step shapes that appear in authored branches.
func randomList(rng *rand.Rand) template.StepList {
	pool := []func() template.Step{
		func() template.Step { return ti(1) },
		func() template.Step { return ti(2) },
		func() template.Step { return ti(3) },
		func() template.Step { return retry(1) },
		func() template.Step { return retry(2) },
		func() template.Step { return retry(3).WithParam("maxRetries", 2) },
		func() template.Step { return wait(1000) },
		func() template.Step { return wait(500) },
		func() template.Step { return wait(3000) },
		enter, arrow,
		func() template.Step { return key("Tab") },
		func() template.Step { return click("#add") },
		func() template.Step { return logStep("x") },
		prereq, otInput,
		func() template.Step { return template.NewStep(template.ActionIf, "") },
	}
	n := rng.IntN(14)
	out := make(template.StepList, n)
	for i := range out {
		out[i] = pool[rng.IntN(len(pool))]()
	}
	return out
}

func TestProperties_RandomBranches(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	variants := map[string]*Rewriter{
		"collapse/adjacent": newRewriter(),
		"collapse/anywhere": newRewriter(anywhere),
		"confirm/adjacent":  newRewriter(confirmStrategy),
		"confirm/anywhere":  newRewriter(confirmStrategy, anywhere),
	}
	for i := 0; i < 400; i++ {
		in := randomList(rng)
		for name, r := range variants {
			p := r.Profile()
			once, _ := r.RewriteBranch("b", in)
			twice, rep := r.RewriteBranch("b", once)

			// Idempotence.
			if !twice.Equal(once) {
				t.Fatalf("%s: not idempotent for\n%s\nfirst:\n%s\nsecond:\n%s", name,
					strings.Join(in.Outline(), "\n"), strings.Join(once.Outline(), "\n"), strings.Join(twice.Outline(), "\n"))
			}
			assert.Empty(t, rep.Edits(), name)

			// Classification totality.
			m := NewMatcher(p)
			for j := range once {
				if !m.IsAnchor(once[j]) {
					continue
				}
				got, ok := m.Classify(once, j)
				require.True(t, ok)
				assert.Contains(t, []Class{AlreadyCanonical, LegacyManual, Unrecognized}, got.Class)
				if p.Strategy == profile.StrategyCollapse && !got.Canonical {
					assert.Equal(t, Unrecognized, got.Class, "%s: legacy remnant at %d in\n%s", name, j, strings.Join(once.Outline(), "\n"))
				}
			}

			// Prerequisite uniqueness.
			first := once.Index(0, func(s template.Step) bool {
				f, ok := m.field(s)
				return ok && f.Index == 1
			})
			if first >= 0 {
				assert.Equal(t, 1, once.Count(p.IsPrerequisite), name)
				at := once.Index(0, p.IsPrerequisite)
				assert.Less(t, at, first, name)
			}

			// No field is typed twice in a row unless the input already did so.
			assert.LessOrEqual(t, retryRepeats(p, once), fieldRepeats(p, in),
				"%s: repeated retry for one field in\n%s\nfrom\n%s", name,
				strings.Join(once.Outline(), "\n"), strings.Join(in.Outline(), "\n"))

			// Input sentinels are never deleted.
			assert.GreaterOrEqual(t, once.Count(p.IsSentinel), in.Count(p.IsSentinel), name)
		}
	}
}

func TestRewriteDocument_Fixture(t *testing.T) {
	doc, err := template.LoadFile("../../testdata/templates/legacy.json", template.LoadOptions{})
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	r := New(profile.Default(), WithLogger(zap.New(core)), WithRunID("run-1"), WithSource("legacy.json"))
	out, rep, err := r.RewriteDocument(doc)
	require.NoError(t, err)

	got, err := template.Marshal(out, template.EncodeOptions{})
	require.NoError(t, err)
	want, err := os.ReadFile("../../testdata/templates/canonical.json")
	require.NoError(t, err)
	if diff := cmp.Diff(string(want), string(got)); diff != "" {
		t.Fatalf("rewritten document mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, rep.Branches, 2)
	assert.Equal(t, "regular", rep.Branches[0].Name)
	assert.Equal(t, "overtime", rep.Branches[1].Name)
	assert.True(t, rep.Changed())
	assert.Equal(t, 0, rep.Warnings())
	assert.Equal(t,
		[]EventKind{EventPrereqInserted, EventCollapsed, EventSettleSynthesized, EventCollapsed, EventCollapsed},
		kinds(rep.Branches[0].Events))
	assert.Equal(t, []EventKind{EventCollapsed, EventCollapsed}, kinds(rep.Branches[1].Events))
	assert.Equal(t, "settle-adjacent", rep.Branches[1].Events[0].Idiom)

	// Input untouched.
	again, err := template.Marshal(doc, template.EncodeOptions{})
	require.NoError(t, err)
	orig, err := os.ReadFile("../../testdata/templates/legacy.json")
	require.NoError(t, err)
	assert.Equal(t, string(orig), string(again))

	entries := logs.FilterMessage("rewrite event").All()
	require.Len(t, entries, 7)
	assert.Equal(t, "run-1", entries[0].ContextMap()["run_id"])
	assert.Equal(t, "regular", entries[0].ContextMap()["branch"])

	md := rep.Markdown()
	assert.Contains(t, md, "# Rewrite report: legacy.json")
	assert.Contains(t, md, "## regular (changed)")
	assert.Contains(t, md, "prerequisite-inserted")

	js, err := rep.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(js), `"legacy-manual": 3`)
}

func TestRewriteDocument_CanonicalIsUnchanged(t *testing.T) {
	doc, err := template.LoadFile("../../testdata/templates/canonical.json", template.LoadOptions{})
	require.NoError(t, err)
	out, rep, err := New(profile.Default()).RewriteDocument(doc)
	require.NoError(t, err)
	assert.Same(t, doc, out)
	assert.False(t, rep.Changed())
}

func TestRewriteDocument_StructureNotFound(t *testing.T) {
	doc, err := template.LoadFile("../../testdata/invalid/no-if.json", template.LoadOptions{})
	require.NoError(t, err)
	_, _, err = New(profile.Default()).RewriteDocument(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, locate.ErrStructureNotFound))
}

func TestVerify(t *testing.T) {
	r := New(profile.Default())

	legacy, err := template.LoadFile("../../testdata/templates/legacy.json", template.LoadOptions{})
	require.NoError(t, err)
	v, err := r.Verify(legacy)
	require.NoError(t, err)
	assert.False(t, v.UpToDate())
	require.Len(t, v.Branches, 2)
	assert.Equal(t, 0, v.Branches[0].RetrySteps)
	assert.Equal(t, 3, v.Branches[0].LegacyInputs)
	assert.Equal(t, 0, v.Branches[0].Prerequisites)
	assert.Len(t, v.Branches[0].Pending, 5)
	assert.Equal(t, 1, v.Branches[1].Prerequisites)
	assert.Equal(t, 1, v.Branches[1].SettleWaits)

	canonical, err := template.LoadFile("../../testdata/templates/canonical.json", template.LoadOptions{})
	require.NoError(t, err)
	v, err = r.Verify(canonical)
	require.NoError(t, err)
	assert.True(t, v.UpToDate())
	assert.Equal(t, 3, v.Branches[0].RetrySteps)
	assert.Equal(t, 2, v.Branches[1].RetrySteps)
	assert.Equal(t, 1, v.Branches[0].SettleWaits)
}

func TestReportJSONRoundTrip(t *testing.T) {
	legacy, err := template.LoadFile("../../testdata/templates/legacy.json", template.LoadOptions{})
	require.NoError(t, err)
	_, report, err := New(profile.Default()).RewriteDocument(legacy)
	require.NoError(t, err)

	raw, err := report.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"legacy-manual": 3`)

	var back Report
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Len(t, back.Branches, 2)
	assert.Equal(t, 3, back.Branches[0].Classes[LegacyManual])

	var c Class
	assert.Error(t, c.UnmarshalText([]byte("bogus")))
}
