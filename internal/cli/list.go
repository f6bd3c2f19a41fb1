package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/depot/internal/app"
	"github.com/five82/depot/internal/collection"
	"github.com/five82/depot/internal/column"
	"github.com/five82/depot/internal/filter"
	"github.com/five82/depot/internal/render"
	"github.com/five82/depot/internal/screens"
	"github.com/five82/depot/internal/tablectl"
)

type listFlags struct {
	search   string
	filters  []string
	sort     string
	desc     bool
	page     int
	pageSize int
	columns  []string
	output   *formatValue
}

func newListCommand(g *globalFlags) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:     "list <resource>",
		Aliases: []string{"ls"},
		Short:   "List one page of a resource",
		Example: `  depot list inventory --filter site="North Quarry" --sort available
  depot list machines --search excavator --page 2 -o json`,
		GroupID:           "browse",
		Args:              cobra.ExactArgs(1),
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
			return runList(cmd, s, screen, f)
		},
	}
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "search the searchable columns")
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "filter as name=value (repeatable)")
	cmd.Flags().StringVar(&f.sort, "sort", "", "column key to sort by")
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page number, starting at 1")
	cmd.Flags().IntVarP(&f.pageSize, "page-size", "n", 0, "rows per page (default from prefs or config)")
	cmd.Flags().StringSliceVarP(&f.columns, "columns", "c", nil, "column keys to show, comma separated")
	f.output = addOutputFlag(cmd)
	return cmd
}

func runList(cmd *cobra.Command, s *app.Session, screen screens.Screen, f *listFlags) error {
	pageSize, hidden, sortKey, desc := s.ScreenConfig(screen)
	if f.pageSize > 0 {
		pageSize = f.pageSize
	}
	ctl := tablectl.New(screen.TableConfig(s.Role, pageSize, hidden), s.Lists)
	if sortKey != "" {
		ctl.SetSort(sortKey, desc)
	}
	if err := fetch(cmd, s.Lists, ctl.Key()); err != nil {
		return err
	}
	if err := configureList(ctl, f); err != nil {
		return err
	}
	v := ctl.View()

	out := cmd.OutOrStdout()
	switch f.output.get() {
	case render.FormatJSON:
		return render.WriteJSON(out, nonNil(v.Rows))
	case render.FormatYAML:
		return render.WriteYAML(out, nonNil(v.Rows))
	}
	writeTableView(out, v)
	return nil
}

// configureList applies the list flags to ctl, rejecting unknown names.
func configureList(ctl *tablectl.Controller, f *listFlags) error {
	for _, pair := range f.filters {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid --filter %q: want name=value", pair)
		}
		if !hasFilter(ctl.Filters(), name) {
			return fmt.Errorf("unknown filter %q (want one of %s)", name, strings.Join(filterNames(ctl.Filters()), ", "))
		}
		ctl.OnFilterChange(name, strings.TrimSpace(value))
	}
	if f.search != "" {
		ctl.OnSearchChange(f.search)
	}
	if f.sort != "" && !ctl.SetSort(f.sort, f.desc) {
		return fmt.Errorf("cannot sort by %q", f.sort)
	}
	if len(f.columns) > 0 {
		all := ctl.AllColumns()
		for _, k := range f.columns {
			if _, ok := all.ByKey(k); !ok {
				return fmt.Errorf("unknown column %q (want one of %s)", k, strings.Join(columnKeys(all), ", "))
			}
		}
		ctl.ShowOnly(f.columns)
	}
	if f.page > 1 {
		ctl.OnPageChange(f.page - 1)
	}
	return nil
}

// fetch refetches key. When the API is unreachable but the snapshot cache
// holds data, the cached rows are used with a warning.
func fetch(cmd *cobra.Command, lists *collection.Lists, key collection.Key) error {
	entry, err := lists.Refetch(cmd.Context(), key)
	if err == nil {
		return nil
	}
	if !entry.HasData {
		return fmt.Errorf("fetch %s: %w", key.Resource, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "warning: showing cached %s from %s: %v\n",
		key.Resource, entry.FetchedAt.Format("2006-01-02 15:04"), err)
	return nil
}

func writeTableView(w io.Writer, v tablectl.View) {
	if v.Empty() {
		if v.Total > 0 {
			fmt.Fprintln(w, "No results match the current search and filters")
		} else {
			fmt.Fprintln(w, "No records")
		}
		return
	}
	fmt.Fprintln(w, render.Table(v.Columns, v.Cells))
	if len(v.Summary) > 0 {
		parts := make([]string, len(v.Summary))
		for i, st := range v.Summary {
			parts[i] = st.Label + ": " + st.Value
		}
		fmt.Fprintln(w, strings.Join(parts, "  ·  "))
	}
	fmt.Fprintf(w, "Showing %d to %d of %d · page %d of %d\n",
		v.Page.From, v.Page.To, v.Page.Total, v.Page.PageIndex+1, v.Page.PageCount)
}

func hasFilter(filters []filter.Filter, name string) bool {
	return slices.ContainsFunc(filters, func(f filter.Filter) bool { return f.Name == name })
}

func filterNames(filters []filter.Filter) []string {
	out := make([]string, len(filters))
	for i, f := range filters {
		out[i] = f.Name
	}
	return out
}

func columnKeys(cols column.Set) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Key
	}
	return out
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

func newResourcesCommand(g *globalFlags) *cobra.Command {
	output := &formatValue{}
	cmd := &cobra.Command{
		Use:     "resources",
		Short:   "List the resources depot can browse",
		GroupID: "browse",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeResources(cmd.OutOrStdout(), output.get())
		},
	}
	cmd.Flags().VarP(output, "output", "o", "output format: table, json or yaml")
	return cmd
}

type resourceInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Filters     []string `json:"filters" yaml:"filters"`
}

func writeResources(w io.Writer, format render.Format) error {
	all := screens.All()
	infos := make([]resourceInfo, len(all))
	cells := make([][]string, len(all))
	for i, s := range all {
		infos[i] = resourceInfo{Name: s.Resource, Title: s.Title, Description: s.Description, Filters: filterNames(s.Filters)}
		cells[i] = []string{s.Resource, s.Title, s.Description, strings.Join(infos[i].Filters, ", ")}
	}
	switch format {
	case render.FormatJSON:
		return render.WriteJSON(w, infos)
	case render.FormatYAML:
		return render.WriteYAML(w, infos)
	}
	cols := column.Set{
		{Key: "name", Label: "Resource"},
		{Key: "title", Label: "Title"},
		{Key: "description", Label: "Description", Width: 48},
		{Key: "filters", Label: "Filters", Width: 32},
	}
	fmt.Fprintln(w, render.Table(cols, cells))
	return nil
}
