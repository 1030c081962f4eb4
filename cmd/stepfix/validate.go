package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/stepfix/pkg/schema"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		repair bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "validate [template.json...]",
		Short: "Validate automation templates (structure, schema and domain rules)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.profile()
			if err != nil {
				return err
			}
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			failed := 0
			results := make(map[string][]*schema.ValidationError, len(args))
			for _, path := range args {
				if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
					return fmt.Errorf("%s looks like a YAML file; templates are JSON.\nDid you mean: stepfix profile --profile %s", path, path)
				}
				doc, errs := schema.ValidateFile(path, p, template.LoadOptions{Repair: repair})
				results[path] = errs
				a.logger.Debug("validated", zap.String("source", path), zap.Int("findings", len(errs)))

				if asJSON {
					if schema.HasErrors(errs) {
						failed++
					}
					continue
				}
				if n := printFindings(errOut, errs); n > 0 {
					fmt.Fprintf(errOut, "✗ %s: validation failed with %d error(s)\n", path, n)
					failed++
					continue
				}
				fmt.Fprintf(out, "✓ %s is valid (%d steps)\n", path, stepCount(doc))
			}

			if asJSON {
				data, err := json.MarshalIndent(results, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			}
			if failed > 0 {
				return fmt.Errorf("validation failed for %d of %d template(s)", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "repair malformed JSON before validating")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print findings as JSON")
	return cmd
}

func stepCount(doc *template.Document) int {
	if doc == nil {
		return 0
	}
	return template.Fold(doc.Steps, 0, func(n int, _ template.Path, _ template.Step) int { return n + 1 })
}
