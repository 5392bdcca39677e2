package cmd

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/matcher/internal/app"
	merrors "github.com/Ramsey-B/matcher/pkg/errors"
)

func matchCommand() *cobra.Command {
	var scrapID int64

	command := &cobra.Command{
		Use:   "match",
		Short: "Resolve the raw links of a scrap, the most recent one by default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				var id *int64
				if cmd.Flags().Changed("scrap") {
					id = &scrapID
				}

				scrap, result, err := a.Processor.RunMatch(ctx, id)
				var notFound *merrors.NotFoundError
				if errors.As(err, &notFound) && notFound.Resource == "scrap" {
					return &exitError{code: 1, msg: "Scrap not found"}
				}
				if err != nil {
					return err
				}

				out := json.NewEncoder(cmd.OutOrStdout())
				out.SetIndent("", "  ")
				return out.Encode(map[string]any{
					"scrap_id": scrap.ID,
					"status":   scrap.Status,
					"result":   result,
				})
			})
		},
	}
	command.Flags().Int64VarP(&scrapID, "scrap", "s", 0, "id of the scrap to match")
	return command
}
