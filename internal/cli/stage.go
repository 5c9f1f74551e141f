package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStageCmd создаёт команду загрузки CSV в staging-таблицы.
func NewStageCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var source string
	var andIntegrate bool

	cmd := &cobra.Command{
		Use:   "stage",
		Short: "Load source CSV files into the staging tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()
			ctx := cmd.Context()

			if source != "" {
				app.Config.Staging.Source = source
			}
			loader, err := app.Stager()
			if err != nil {
				return err
			}

			session, err := app.Connect(ctx)
			if err != nil {
				return err
			}
			res, err := loader.Load(ctx, session)
			session.Close()
			if err != nil {
				app.PushMetrics(ctx)
				return err
			}

			printStaging(out, res)
			out.Success(fmt.Sprintf("Staged %s rows from %d files", count(int64(res.Rows())), len(res.Datasets)-len(res.Warnings)))

			if !andIntegrate {
				app.PushMetrics(ctx)
				return nil
			}
			return integrate(cmd, app, out)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Directory or s3://bucket/prefix with the CSV files (overrides STAGING.source)")
	cmd.Flags().BoolVar(&andIntegrate, "integrate", false, "Run the STG -> INT routine after loading")

	return cmd
}
