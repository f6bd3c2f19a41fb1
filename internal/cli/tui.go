package cli

import (
	"github.com/spf13/cobra"

	"github.com/five82/depot/internal/app"
)

func newTUICommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:               "tui [resource]",
		Short:             "Open the interactive UI",
		GroupID:           "browse",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeResources,
		RunE: func(cmd *cobra.Command, args []string) error {
			screen := ""
			if len(args) == 1 {
				s, err := lookupScreen(args[0])
				if err != nil {
					return err
				}
				screen = s.Resource
			}
			return app.Run(cmd.Context(), g.options(app.LogToFile, nil), screen)
		},
	}
}
