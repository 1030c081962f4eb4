package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/stepfix/pkg/chargejob"
	"github.com/ormasoftchile/stepfix/pkg/diagram"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

func newPreviewCmd(a *app) *cobra.Command {
	var (
		chargeJob string
		branch    string
		format    string
		vars      []string
	)
	cmd := &cobra.Command{
		Use:   "preview [template.json]",
		Short: "Show a branch with a charge job's variables substituted",
		Long: `Preview parses a charge job the way the parseChargeJob action does at run
time and substitutes the resulting variables into one branch. Steps for
fields the charge job does not have are still listed, with their
placeholders left in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := template.LoadFile(args[0], template.LoadOptions{})
			if err != nil {
				return err
			}
			p, err := a.profile()
			if err != nil {
				return err
			}
			steps, title, err := selectBranch(doc, p, branch)
			if err != nil {
				return err
			}

			cj := chargejob.Parse(chargeJob)
			values := cj.Vars()
			for _, kv := range vars {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("invalid --var %q: expected key=value", kv)
				}
				values[k] = v
			}
			steps = template.SubstituteList(steps, values)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s: %q → %d part(s), %d field(s)\n", title, cj.Raw, len(cj.Parts), cj.ExpectedFieldCount())
			for _, name := range slices.Sorted(maps.Keys(values)) {
				fmt.Fprintf(out, "#   %s = %s\n", name, values[name])
			}

			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "    ")
				return enc.Encode(steps)
			}
			text, err := diagram.Generate(steps, diagram.Format(format), diagram.Options{Title: title})
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
			return nil
		},
	}
	cmd.Flags().StringVar(&chargeJob, "charge-job", "", "charge job string, e.g. \"(A1) Plant/Line 2/Cell\"")
	cmd.Flags().StringVarP(&branch, "branch", "b", "then", "branch to preview: then or else")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output: json, ascii or mermaid")
	cmd.Flags().StringArrayVar(&vars, "var", nil, "set another variable (key=value), repeatable")
	_ = cmd.MarkFlagRequired("charge-job")
	return cmd
}
