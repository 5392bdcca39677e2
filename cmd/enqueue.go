package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/matcher/internal/app"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
)

func enqueueCommand() *cobra.Command {
	var scrapID int64

	command := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish a scrap-ready job for a worker running serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				id := scrapID
				if !cmd.Flags().Changed("scrap") {
					latest, err := a.Store.Scraps.Latest(ctx)
					if merrors.IsNotFound(err) {
						return &exitError{code: 1, msg: "Scrap not found"}
					}
					if err != nil {
						return err
					}
					id = latest.ID
				}

				producer := a.NewScrapProducer()
				defer producer.Close()
				if err := producer.PublishScrap(ctx, id, ""); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued scrap %d on %s\n", id, producer.Topic())
				return nil
			})
		},
	}
	command.Flags().Int64VarP(&scrapID, "scrap", "s", 0, "id of the scrap to enqueue")
	return command
}
