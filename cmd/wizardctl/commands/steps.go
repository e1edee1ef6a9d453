package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"deedwizard/pkg/domain"
)

func stepsCmd(a *app) *cobra.Command {
	var docType string
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List the steps of a document type's flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := domain.NormalizeDocumentType(docType)
			if !ok {
				return fmt.Errorf("unknown document type %q", docType)
			}
			def, err := a.registry.Definition(t)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tFIELD\tKIND\tREQUIRED\tVISIBLE WHEN\tOPTIONS")
			for i, step := range def.Steps {
				rule := step.VisibilityRule()
				if rule == "" {
					rule = "always"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\t%s\n", i, step.Field, step.Kind, step.Required, rule, step.OptionsName())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", string(domain.DefaultDocumentType), "document type (legacy spellings accepted)")
	return cmd
}
