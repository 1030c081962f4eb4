package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/stepfix/pkg/diff"
	"github.com/ormasoftchile/stepfix/pkg/ecosystem/tui"
	"github.com/ormasoftchile/stepfix/pkg/rewrite"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

type rewriteFlags struct {
	out     string
	inPlace bool
	dryRun  bool
	diff    bool
	review  bool
	repair  bool
	report  string
}

// reviewFunc asks the user to approve a rewrite.
type reviewFunc func(source string, rep *rewrite.Report, d *diff.DiffResult) (tui.Decision, error)

func newRewriteCmd(a *app) *cobra.Command {
	var f rewriteFlags
	cmd := &cobra.Command{
		Use:   "rewrite [template.json...]",
		Short: "Rewrite legacy field inputs into validated retry steps",
		Long: `Rewrite the regular and overtime branches of each template.

The rewritten document is printed to stdout unless --out or --in-place is
given. --dry-run writes nothing and shows what would change. Templates are
processed one after the other; a template whose branches cannot be located
is skipped and reported, the rest are still rewritten.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := f.check(len(args)); err != nil {
				return err
			}
			return a.runRewrite(cmd, args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.out, "out", "o", "", "write the rewritten template to this path")
	fl.BoolVarP(&f.inPlace, "in-place", "i", false, "replace each template file")
	fl.BoolVar(&f.dryRun, "dry-run", false, "show the changes without writing")
	fl.BoolVar(&f.diff, "diff", false, "print a unified diff of each change")
	fl.BoolVar(&f.review, "review", false, "review report and diff interactively before writing")
	fl.BoolVar(&f.repair, "repair", false, "repair malformed JSON before rewriting")
	fl.Bool("backup", false, "keep the previous file as <name>.bak")
	fl.StringVar(&f.report, "report", "", "print the rewrite report: json or md")
	_ = a.v.BindPFlag("rewrite.backup", fl.Lookup("backup"))
	return cmd
}

func (f rewriteFlags) check(files int) error {
	switch f.report {
	case "", "json", "md":
	default:
		return fmt.Errorf("--report must be json or md, got %q", f.report)
	}
	if f.out != "" && f.inPlace {
		return errors.New("--out and --in-place are mutually exclusive")
	}
	if f.out != "" && files > 1 {
		return errors.New("--out takes a single template")
	}
	if f.out == "" && !f.inPlace && files > 1 && !f.dryRun {
		return errors.New("several templates need --in-place or --dry-run")
	}
	if f.review && f.out == "" && !f.inPlace {
		return errors.New("--review needs --out or --in-place")
	}
	return nil
}

func (a *app) runRewrite(cmd *cobra.Command, args []string, f rewriteFlags) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	// The document goes to stdout when there is no target file; the report
	// and diff then move to stderr.
	toStdout := f.out == "" && !f.inPlace && !f.dryRun
	reportOut := out
	if toStdout {
		reportOut = errOut
	}

	var failed []error
	for _, source := range args {
		if err := a.rewriteOne(source, f, out, reportOut, toStdout); err != nil {
			a.logger.Error("rewrite failed", zap.String("source", source), zap.Error(err))
			fmt.Fprintf(errOut, "✗ %s: %v\n", source, err)
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d template(s) failed: %w", len(failed), len(args), errors.Join(failed...))
	}
	return nil
}

func (a *app) rewriteOne(source string, f rewriteFlags, out, reportOut io.Writer, toStdout bool) error {
	doc, err := template.LoadFile(source, template.LoadOptions{Repair: f.repair})
	if err != nil {
		return err
	}
	if doc.Repaired {
		a.logger.Warn("malformed JSON repaired", zap.String("source", source))
	}
	rw, err := a.rewriter(source)
	if err != nil {
		return err
	}
	result, report, err := rw.RewriteDocument(doc)
	if err != nil {
		return err
	}

	enc := a.encodeOptions()
	var d *diff.DiffResult
	if f.diff || f.dryRun || f.review {
		g := diff.NewGenerator(a.cfg.Rewrite.DiffContext, isTerminal(reportOut) && !color.NoColor)
		if d, err = g.Documents(doc, result, source, enc); err != nil {
			return err
		}
	}

	switch {
	case toStdout:
		if err := template.Encode(out, result, enc); err != nil {
			return err
		}
	case f.dryRun:
		fmt.Fprintf(out, "%s: %s\n", source, d.FormatSummary())
	}
	if d != nil && (f.diff || f.dryRun) && d.Changed() {
		fmt.Fprint(reportOut, d.UnifiedDiff)
	}
	if err := writeReport(reportOut, report, f.report); err != nil {
		return err
	}
	if toStdout || f.dryRun {
		return nil
	}

	target := f.out
	if f.inPlace {
		target = source
		if !report.Changed() && !doc.Repaired {
			fmt.Fprintf(out, "= %s is up to date\n", source)
			return nil
		}
	}
	if f.review {
		decision, err := a.review(source, report, d)
		if err != nil {
			return err
		}
		if decision != tui.Approved {
			a.logger.Info("rewrite not approved", zap.String("source", source), zap.Stringer("decision", decision))
			fmt.Fprintf(out, "- %s left unchanged (%s)\n", source, decision)
			return nil
		}
	}

	opts := template.SaveOptions{EncodeOptions: enc, Backup: a.cfg.Rewrite.Backup}
	if err := template.SaveFile(target, result, opts); err != nil {
		return err
	}
	a.logger.Info("template written",
		zap.String("source", source),
		zap.String("target", target),
		zap.Bool("changed", report.Changed()),
		zap.Int("warnings", report.Warnings()),
	)
	fmt.Fprintf(out, "✓ %s → %s (%d warning(s))\n", source, target, report.Warnings())
	return nil
}

func writeReport(w io.Writer, rep *rewrite.Report, format string) error {
	switch format {
	case "json":
		data, err := rep.JSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "md":
		_, err := fmt.Fprint(w, rep.Markdown())
		return err
	}
	return nil
}
