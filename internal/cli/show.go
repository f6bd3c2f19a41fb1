package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/depot/internal/api"
	"github.com/five82/depot/internal/app"
	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/entity"
	"github.com/five82/depot/internal/render"
	"github.com/five82/depot/internal/screens"
)

func newShowCommand(g *globalFlags) *cobra.Command {
	var output *formatValue
	var plain bool
	cmd := &cobra.Command{
		Use:               "show <resource> <id>",
		Short:             "Show one record",
		GroupID:           "browse",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeResources,
		RunE: func(cmd *cobra.Command, args []string) error {
			screen, err := lookupScreen(args[0])
			if err != nil {
				return err
			}
			s, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			record, err := fetchRecord(cmd, s, screen, args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch output.get() {
			case render.FormatJSON:
				return render.WriteJSON(out, record)
			case render.FormatYAML:
				return render.WriteYAML(out, record)
			}
			return writeRecord(out, screen, record, !plain && render.IsTerminal())
		},
	}
	output = addOutputFlag(cmd)
	cmd.Flags().BoolVar(&plain, "plain", false, "print markdown without terminal styling")
	return cmd
}

// fetchRecord loads one record. If the detail request fails for any reason
// other than a missing record, the row from the list is used instead.
func fetchRecord(cmd *cobra.Command, s *app.Session, screen screens.Screen, id string) (entity.Entity, error) {
	entry, err := s.Details.Refetch(cmd.Context(), collection.DetailKey(screen.Resource, id))
	if err == nil {
		return entry.Data, nil
	}
	if errors.Is(err, api.ErrNotFound) {
		return nil, fmt.Errorf("%s %s not found", screen.Resource, id)
	}
	list := s.Lists.Peek(collection.ListKey(screen.Resource))
	if !list.HasData {
		if listEntry, lerr := s.Lists.Refetch(cmd.Context(), collection.ListKey(screen.Resource)); lerr == nil || listEntry.HasData {
			list = listEntry
		}
	}
	for _, row := range list.Data {
		if row.ID() == id {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: showing list row, detail request failed: %v\n", err)
			return row, nil
		}
	}
	return nil, fmt.Errorf("fetch %s %s: %w", screen.Resource, id, err)
}

func writeRecord(w io.Writer, screen screens.Screen, record entity.Entity, styled bool) error {
	md := render.Markdown(screen.RecordTitle(record), record)
	if !styled {
		_, err := io.WriteString(w, md)
		return err
	}
	out, err := render.Glamour(md, render.TerminalWidth(100), "")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
