package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/dwloader/internal/orchestrator"
)

// NewResetCmd создаёт команду сброса хранилища.
func NewResetCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var dryRun, yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear fact, log and dimension tables and reseed identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			if dryRun {
				d, err := app.Dialect()
				if err != nil {
					return err
				}
				plan := app.Operations().ResetPlan(d)

				rows := make([][]string, len(plan))
				sql := make([]string, len(plan))
				for i, st := range plan {
					rows[i] = []string{strconv.Itoa(i + 1), st.SQL}
					sql[i] = st.SQL
				}
				out.Print([]string{"#", "STATEMENT"}, rows, sql)
				return nil
			}

			if !yes {
				ok, err := NewPromptConfirmer(app.In, out.errW).Ask("Reset will delete all data in the warehouse tables. Continue?")
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: reset declined", orchestrator.ErrAborted)
				}
			}

			if err := app.Operations().Reset(cmd.Context()); err != nil {
				return err
			}
			out.Success("Warehouse reset committed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements without executing them")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
