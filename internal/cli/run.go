package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/dwloader/internal/domain"
	"github.com/shaiso/dwloader/internal/orchestrator"
)

// NewRunCmd создаёт команду загрузки INT → DW.
func NewRunCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var reprocess, reset, yes bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the warehouse from the integration tables (INT -> DW)",
		Long: `Verifies prerequisites, optionally resets the warehouse, and runs the load
routine in a single transaction. Exits with code 1 if the run does not succeed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()
			ctx := cmd.Context()

			prompt := NewPromptConfirmer(app.In, out.errW)
			var confirmer orchestrator.Confirmer = prompt
			if yes {
				confirmer = orchestrator.AlwaysConfirm
			}

			if reset && !yes {
				ok, err := prompt.Ask("Reset will delete all data in the warehouse tables. Continue?")
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: reset declined", orchestrator.ErrAborted)
				}
			}

			res, err := app.Pipeline(ctx, confirmer).Run(ctx, orchestrator.Options{
				Stage:     domain.StageLoad,
				Reprocess: reprocess,
				Reset:     reset,
			})
			app.PushMetrics(ctx)
			printResult(out, res)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run succeeded: %s", res.Run.ID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "Reprocess all integration data (passed to the load routine)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Clear fact, log and dimension tables before loading")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// NewIntegrateCmd создаёт команду STG → INT.
func NewIntegrateCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "integrate",
		Short: "Move staging data into the integration tables (STG -> INT)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			return integrate(cmd, app, outputFn())
		},
	}
}

func integrate(cmd *cobra.Command, app *App, out *Output) error {
	ctx := cmd.Context()

	res, err := app.Pipeline(ctx, orchestrator.NeverConfirm).Run(ctx, orchestrator.Options{Stage: domain.StageIntegrate})
	app.PushMetrics(ctx)
	printResult(out, res)
	if err != nil {
		return err
	}

	out.Success(fmt.Sprintf("Integration succeeded: %s", res.Run.ID))
	return nil
}
