// Package commands implements wizardctl, an operator tool for inspecting
// flow definitions and replaying saved drafts against the deeds backend.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"deedwizard/internal/draft"
	"deedwizard/internal/flow"
	"deedwizard/internal/platform/config"
	"deedwizard/internal/platform/logger"
)

// app holds what every subcommand shares once flags are parsed.
type app struct {
	registry *flow.Registry
	logger   *slog.Logger
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var (
		definitions string
		verbose     bool
		a           = &app{}
	)
	root := &cobra.Command{
		Use:           "wizardctl",
		Short:         "Inspect deed wizard flows and replay drafts",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			a.logger = logger.NewWithWriter(cmd.ErrOrStderr(), config.Logging{Level: level, Format: "text"})

			a.registry = flow.DefaultRegistry()
			if definitions != "" {
				reg, err := flow.NewRegistry(definitions)
				if err != nil {
					return err
				}
				a.registry = reg
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&definitions, "definitions", "", "flow definitions file overriding the embedded ones")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(stepsCmd(a), reviewCmd(a), finalizeCmd(a), generateCmd(a))
	return root
}

// loadDraft reads a draft in its persisted JSON form.
func loadDraft(path string) (draft.Draft, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return draft.Draft{}, fmt.Errorf("read draft: %w", err)
	}
	return draft.Decode(data)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
