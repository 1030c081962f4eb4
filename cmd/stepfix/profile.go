package main

import (
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/stepfix/pkg/profile"
)

func newProfileCmd(a *app) *cobra.Command {
	var embedded bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print the effective rule profile",
		Long: `Print the rule profile in use, after --profile, --strategy and --sentinel
are applied. With --default the embedded profile source is printed
unchanged, as a starting point for a custom profile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if embedded {
				_, err := cmd.OutOrStdout().Write(profile.DefaultYAML())
				return err
			}
			p, err := a.profile()
			if err != nil {
				return err
			}
			data, err := p.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&embedded, "default", false, "print the embedded default profile source")
	return cmd
}
