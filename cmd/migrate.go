package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/matcher/internal/app"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app.App) error {
				return a.Migrate()
			})
		},
	}
}
