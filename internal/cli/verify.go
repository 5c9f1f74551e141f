package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// ErrIssuesFound — проверка предусловий нашла проблемы.
var ErrIssuesFound = errors.New("prerequisite issues found")

// NewVerifyCmd создаёт команду проверки предусловий без изменений в хранилище.
func NewVerifyCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the warehouse is ready to load (read-only)",
		Long:  "Checks the time dimension, every integration table and the load routine. Exits with code 1 if any issue is found.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			report, err := app.Operations().Verify(cmd.Context())
			if err != nil {
				return err
			}

			printReport(out, report)
			if !report.SafeToProceed() {
				return ErrIssuesFound
			}

			out.Success("All prerequisites satisfied")
			return nil
		},
	}
}
