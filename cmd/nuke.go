package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/matcher/internal/app"
)

func nukeCommand() *cobra.Command {
	var yes bool

	command := &cobra.Command{
		Use:   "nuke",
		Short: "Delete every object, link, attribute and scrap. Platforms are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes && !confirm(cmd, "This deletes all catalog and scrap data. Type 'yes' to continue: ") {
				return &exitError{code: 1, msg: "Aborted"}
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Store.Scraps.Nuke(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Nuked")
				return nil
			})
		},
	}
	command.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return command
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}
