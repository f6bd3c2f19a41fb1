package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/depot/internal/config"
	"github.com/five82/depot/internal/logging"
)

func newLogsCommand(g *globalFlags) *cobra.Command {
	var (
		lines int
		level string
	)
	cmd := &cobra.Command{
		Use:     "logs",
		Short:   "Print the end of depot's log file",
		GroupID: "system",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tail, err := logging.Tail(cfg.LogFile, lines)
			if err != nil {
				return err
			}
			if level != "" {
				tail = logging.FilterLevel(tail, logging.ParseLevel(level))
			}
			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "number of lines to read")
	cmd.Flags().StringVar(&level, "level", "", "only lines at or above this level")
	return cmd
}
