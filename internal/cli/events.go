package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/dwloader/internal/mq"
)

// NewEventsCmd создаёт команду чтения истории запусков из RabbitMQ.
func NewEventsCmd(appFn func() (*App, error), outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Consume run events from the history queue",
		Long: `Reads run.finished events from the ` + string(mq.QueueRunHistory) + ` queue and prints them.
Consumed events are acknowledged and removed from the queue. Stops after --limit events or on Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFn()
			if err != nil {
				return err
			}
			out := outputFn()

			conn, err := app.MQ()
			if err != nil {
				return err
			}
			if err := mq.SetupTopology(cmd.Context(), conn, mq.Exchange(app.Config.Events.Exchange)); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			seen := 0
			consumer := mq.NewConsumer(conn, app.Logger, mq.ConsumerConfig{
				Queue: mq.QueueRunHistory,
				Handler: printEvent(out, func() {
					seen++
					if limit > 0 && seen >= limit {
						cancel()
					}
				}),
			})

			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after N events (0 = until interrupted)")

	return cmd
}

// printEvent выводит событие строкой таблицы или JSON-документом.
func printEvent(out *Output, done func()) mq.RunEventHandler {
	return func(_ context.Context, event mq.RunFinishedPayload) error {
		if out.JSONMode() {
			out.JSON(event)
		} else {
			finished := ""
			if event.FinishedAt != nil {
				finished = event.FinishedAt.Format(time.RFC3339)
			}
			out.Table(
				[]string{"RUN_ID", "STAGE", "STATUS", "FINISHED", "ERROR"},
				[][]string{{event.RunID.String(), string(event.Stage), string(event.Status), finished, event.Error}},
			)
		}

		done()
		return nil
	}
}
