package cli

import (
	"github.com/spf13/cobra"
)

// NewSummaryCmd создаёт команду сводки последнего процесса.
func NewSummaryCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the latest control log entry and fact table row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}

			summary, err := app.Operations().Summary(cmd.Context())
			if summary != nil {
				printSummary(outputFn(), summary)
			}
			return err
		},
	}
}

// NewRejectionsCmd создаёт команду частых причин отклонений.
func NewRejectionsCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "rejections",
		Short: "Show the most frequent rejection reasons of the latest process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}

			groups, err := app.Operations().Rejections(cmd.Context())
			if err != nil {
				return err
			}

			out := outputFn()
			if len(groups) == 0 && !out.JSONMode() {
				out.Success("No rejections recorded for the latest process")
				return nil
			}
			printRejections(out, groups)
			return nil
		},
	}
}
