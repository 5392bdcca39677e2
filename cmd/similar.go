package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/matcher/internal/app"
	"github.com/Ramsey-B/matcher/pkg/models"
)

func similarCommand() *cobra.Command {
	var limit int

	command := &cobra.Command{
		Use:   "similar ID",
		Short: "List the objects most similar to an object, best first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid object id %q", args[0])
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				similar, err := a.Index.Similar(ctx, objectID, limit)
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), renderSimilar(similar))
				return nil
			})
		},
	}
	command.Flags().IntVarP(&limit, "limit", "l", 10, "maximum number of results")
	return command
}

func renderSimilar(similar []models.Similar) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Target", "Score"})
	for _, s := range similar {
		tw.AppendRow(table.Row{s.TargetID, fmt.Sprintf("%.4f", s.Score)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func rebuildCommand() *cobra.Command {
	var pageSize int

	command := &cobra.Command{
		Use:   "rebuild TYPE",
		Short: "Recompute the similarity edges of every object of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			objectType, ok := models.ObjectTypeFromName(args[0])
			if !ok {
				return fmt.Errorf("unknown object type %q", args[0])
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				count, err := a.Index.Rebuild(ctx, objectType, pageSize)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recomputed %d %s objects\n", count, objectType)
				return nil
			})
		},
	}
	command.Flags().IntVar(&pageSize, "page-size", 500, "objects loaded per page")
	return command
}
