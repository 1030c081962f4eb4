package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/stepfix/pkg/diagram"
	"github.com/ormasoftchile/stepfix/pkg/locate"
	"github.com/ormasoftchile/stepfix/pkg/profile"
	"github.com/ormasoftchile/stepfix/pkg/template"
)

func newInspectCmd(a *app) *cobra.Command {
	var (
		format string
		branch string
	)
	cmd := &cobra.Command{
		Use:   "inspect [template.json]",
		Short: "Draw a template or one of its branches as ASCII or Mermaid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := template.LoadFile(args[0], template.LoadOptions{})
			if err != nil {
				return err
			}
			p, err := a.profile()
			if err != nil {
				return err
			}
			opts := diagram.Options{
				ThenLabel: p.BranchName(template.ParamThenSteps),
				ElseLabel: p.BranchName(template.ParamElseSteps),
			}

			var text string
			if branch == "" {
				text, err = diagram.GenerateDocument(doc, diagram.Format(format), opts)
			} else {
				var steps template.StepList
				if steps, opts.Title, err = selectBranch(doc, p, branch); err != nil {
					return err
				}
				text, err = diagram.Generate(steps, diagram.Format(format), opts)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "ascii", "diagram format: ascii or mermaid")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "draw only this branch: then or else")
	return cmd
}

// selectBranch returns one branch of the located if step and its label.
func selectBranch(doc *template.Document, p *profile.Profile, name string) (template.StepList, string, error) {
	branches, err := locate.Find(doc.Steps, p.BranchPath)
	if err != nil {
		return nil, "", err
	}
	switch name {
	case "then", template.ParamThenSteps, p.BranchName(template.ParamThenSteps):
		return branches.Then, p.BranchName(template.ParamThenSteps), nil
	case "else", template.ParamElseSteps, p.BranchName(template.ParamElseSteps):
		return branches.Else, p.BranchName(template.ParamElseSteps), nil
	}
	return nil, "", fmt.Errorf("unknown branch %q (want then or else)", name)
}
