package commands

import (
	"github.com/spf13/cobra"

	"deedwizard/internal/canonical"
	"deedwizard/internal/draft"
	"deedwizard/internal/finalize"
	"deedwizard/internal/validation"
	"deedwizard/pkg/domain"
)

// reviewOutput is what review prints for a saved draft.
type reviewOutput struct {
	DocumentType domain.DocumentType `json:"documentType"`
	Fallback     bool                `json:"fallback,omitempty"`
	Record       canonical.Record    `json:"record"`
	Repaired     []string            `json:"repaired,omitempty"`
	Missing      []string            `json:"missing,omitempty"`
	Issues       []validation.Issue  `json:"issues,omitempty"`
	OK           bool                `json:"ok"`
}

func review(a *app, d draft.Draft) reviewOutput {
	sel := canonical.NewSelector(canonical.WithLogger(a.logger))
	adapter, docType, fallback := sel.Select(string(d.DocumentType))
	ready := finalize.Check(adapter.ToCanonical(d.Answers, d.VerifiedProperty), d.Answers)
	return reviewOutput{
		DocumentType: docType,
		Fallback:     fallback,
		Record:       ready.Record,
		Repaired:     ready.Repaired,
		Missing:      ready.Missing,
		Issues:       ready.Issues,
		OK:           ready.Ready(),
	}
}

func reviewCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Show the canonical record and validation issues of a saved draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDraft(path)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), review(a, d))
		},
	}
	cmd.Flags().StringVarP(&path, "draft", "d", "-", "draft JSON file, - for stdin")
	return cmd
}
