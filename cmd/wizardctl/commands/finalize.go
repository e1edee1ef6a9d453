package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"deedwizard/internal/canonical"
	"deedwizard/internal/finalize"
	"deedwizard/pkg/platform/retry"
)

// backendFlags are shared by the commands that call the deeds backend.
type backendFlags struct {
	api     string
	token   string
	timeout time.Duration
}

func (f *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.api, "api", os.Getenv("DEEDS_API_URL"), "deeds backend base URL")
	cmd.Flags().StringVar(&f.token, "token", os.Getenv("DEEDS_API_TOKEN"), "bearer token for the deeds backend")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 15*time.Second, "per-request timeout")
}

func (f *backendFlags) client(a *app) (*finalize.Client, error) {
	if f.api == "" {
		return nil, fmt.Errorf("--api or DEEDS_API_URL is required")
	}
	return finalize.NewClient(f.api, f.timeout,
		finalize.WithTokenSource(finalize.StaticToken(f.token)),
		finalize.WithClientLogger(a.logger),
	), nil
}

func cliMeta() finalize.Meta {
	return finalize.Meta{Source: "wizardctl", ClientFlow: "cli"}
}

func finalizeCmd(a *app) *cobra.Command {
	var (
		path    string
		backend backendFlags
	)
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Commit a saved draft to the deeds backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDraft(path)
			if err != nil {
				return err
			}
			client, err := backend.client(a)
			if err != nil {
				return err
			}
			adapter, _, _ := canonical.NewSelector(canonical.WithLogger(a.logger)).Select(string(d.DocumentType))
			f := finalize.New(client, finalize.WithLogger(a.logger))
			res, err := f.Finalize(cmd.Context(), adapter.ToCanonical(d.Answers, d.VerifiedProperty), d.Answers, cliMeta())
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("draft is not ready to finalize")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "draft", "d", "-", "draft JSON file, - for stdin")
	backend.register(cmd)
	return cmd
}

// generationRetry lowers the default attempt budget on request; it never
// raises it.
func generationRetry(attempts int) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = min(max(attempts, 1), cfg.MaxAttempts)
	return cfg
}

func generateCmd(a *app) *cobra.Command {
	var (
		path     string
		out      string
		attempts int
		backend  backendFlags
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a saved draft to a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDraft(path)
			if err != nil {
				return err
			}
			client, err := backend.client(a)
			if err != nil {
				return err
			}
			adapter, _, _ := canonical.NewSelector(canonical.WithLogger(a.logger)).Select(string(d.DocumentType))
			rec := adapter.ToCanonical(d.Answers, d.VerifiedProperty)

			doc, err := finalize.NewGenerator(client, generationRetry(attempts), finalize.WithLogger(a.logger)).Generate(cmd.Context(), rec, d.Answers, cliMeta())
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, doc.Body, 0o600); err != nil {
				return fmt.Errorf("write document: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", len(doc.Body), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "draft", "d", "-", "draft JSON file, - for stdin")
	cmd.Flags().StringVarP(&out, "out", "o", "deed.pdf", "output file")
	cmd.Flags().IntVar(&attempts, "attempts", retry.DefaultConfig().MaxAttempts, "maximum generation attempts, capped at the default")
	backend.register(cmd)
	return cmd
}
