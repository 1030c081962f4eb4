package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/stepfix/pkg/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:       "schema [template|profile]",
		Short:     "Export the JSON Schema of templates or rule profiles",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"template", "profile"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "template"
			if len(args) == 1 {
				kind = args[0]
			}
			gen := schema.GenerateJSONSchema
			if kind == "profile" {
				gen = schema.GenerateProfileJSONSchema
			}
			data, err := gen()
			if err != nil {
				return fmt.Errorf("generate schema: %w", err)
			}
			var formatted bytes.Buffer
			if err := json.Indent(&formatted, data, "", "  "); err != nil {
				return fmt.Errorf("format schema: %w", err)
			}
			formatted.WriteByte('\n')

			if out == "" {
				_, err = cmd.OutOrStdout().Write(formatted.Bytes())
				return err
			}
			if err := os.WriteFile(out, formatted.Bytes(), 0o644); err != nil {
				return err
			}
			a.logger.Info("schema written")
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the schema to this file")
	return cmd
}
