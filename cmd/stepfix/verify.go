package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/stepfix/pkg/rewrite"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

func newVerifyCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify [template.json...]",
		Short: "Check that templates are fully migrated",
		Long: `Verify rewrites a copy of each template and lists the edits that would be
made. A template is up to date when there are none. The command fails when
any template still needs rewriting, which makes it usable as a CI gate.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			results := make(map[string]*rewrite.Verification, len(args))
			pending := 0
			for _, source := range args {
				doc, err := template.LoadFile(source, template.LoadOptions{})
				if err != nil {
					return err
				}
				rw, err := a.rewriter(source)
				if err != nil {
					return err
				}
				v, err := rw.Verify(doc)
				if err != nil {
					return fmt.Errorf("%s: %w", source, err)
				}
				results[source] = v
				if !v.UpToDate() {
					pending++
				}
				if !asJSON {
					printVerification(cmd, source, v)
				}
			}
			if asJSON {
				data, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			}
			if pending > 0 {
				return fmt.Errorf("%d of %d template(s) need rewriting", pending, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verification as JSON")
	return cmd
}

func printVerification(cmd *cobra.Command, source string, v *rewrite.Verification) {
	out := cmd.OutOrStdout()
	mark := "✓"
	if !v.UpToDate() {
		mark = "✗"
	}
	fmt.Fprintf(out, "%s %s\n", mark, source)
	for _, b := range v.Branches {
		status := "up to date"
		if !b.UpToDate {
			status = fmt.Sprintf("%d pending edit(s)", len(b.Pending))
		}
		fmt.Fprintf(out, "    %-10s %s: %d retry, %d legacy, %d prerequisite, %d settle\n",
			b.Name, status, b.RetrySteps, b.LegacyInputs, b.Prerequisites, b.SettleWaits)
		for _, e := range b.Pending {
			fmt.Fprintf(out, "      - #%d %s: %s\n", e.Index, e.Kind, e.Message)
		}
		for _, e := range b.Warnings {
			fmt.Fprintf(out, "      ⚠ #%d %s: %s\n", e.Index, e.Kind, e.Message)
		}
	}
}
