package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/five82/depot/internal/app"
	"github.com/five82/depot/internal/forms"
	"github.com/five82/depot/internal/mutation"
	"github.com/five82/depot/internal/render"
	"github.com/five82/depot/internal/screens"
)

// interactive reports whether prompts may be shown.
var interactive = render.IsTerminal

func newCreateCommand(g *globalFlags) *cobra.Command {
	var sets []string
	var output *formatValue
	cmd := &cobra.Command{
		Use:   "create <resource>",
		Short: "Create a record",
		Long: `Create a record from --set key=value pairs. Without --set on a terminal,
a form is shown. Nested keys use dots, for example --set address.city=Pune.`,
		Example:           `  depot create vendors --set name="Acme Lubes" --set phone=9800000000`,
		GroupID:           "edit",
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
			if !s.Role.CanEdit() {
				return fmt.Errorf("role %s cannot create records", s.Role)
			}

			payload, err := createPayload(screen, sets)
			if err != nil {
				return err
			}
			return execute(cmd, s, mutation.Mutation{Op: mutation.OpCreate, Resource: screen.Resource, Payload: payload}, output.get())
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field as key=value (repeatable)")
	output = addOutputFlag(cmd)
	return cmd
}

func createPayload(screen screens.Screen, sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		if !interactive() {
			return nil, errors.New("no fields given: use --set key=value")
		}
		st := forms.NewCreate(screen)
		if err := st.Form.Run(); err != nil {
			return nil, formError(err)
		}
		return st.Payload()
	}
	payload, err := forms.ParseAssignments(screen, sets)
	if err != nil {
		return nil, err
	}
	if missing := forms.MissingRequired(screen, payload); len(missing) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return payload, nil
}

func newUpdateCommand(g *globalFlags) *cobra.Command {
	var sets []string
	var output *formatValue
	cmd := &cobra.Command{
		Use:   "update <resource> <id>",
		Short: "Change fields of a record",
		Long: `Update a record from --set key=value pairs. Only the given fields are sent.
Without --set on a terminal, a form pre-filled with the record is shown.`,
		Example:           `  depot update machines 4 --set status=Active`,
		GroupID:           "edit",
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
			if !s.Role.CanEdit() {
				return fmt.Errorf("role %s cannot edit records", s.Role)
			}

			id := args[1]
			payload, err := updatePayload(cmd, s, screen, id, sets)
			if err != nil {
				return err
			}
			return execute(cmd, s, mutation.Mutation{Op: mutation.OpUpdate, Resource: screen.Resource, ID: id, Payload: payload}, output.get())
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field as key=value (repeatable)")
	output = addOutputFlag(cmd)
	return cmd
}

func updatePayload(cmd *cobra.Command, s *app.Session, screen screens.Screen, id string, sets []string) (map[string]any, error) {
	if len(sets) > 0 {
		return forms.ParseAssignments(screen, sets)
	}
	if !interactive() {
		return nil, errors.New("no fields given: use --set key=value")
	}
	record, err := fetchRecord(cmd, s, screen, id)
	if err != nil {
		return nil, err
	}
	st := forms.NewEdit(screen, record)
	if err := st.Form.Run(); err != nil {
		return nil, formError(err)
	}
	return st.Payload()
}

func newDeleteCommand(g *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:               "delete <resource> <id>",
		Aliases:           []string{"rm"},
		Short:             "Delete a record",
		GroupID:           "edit",
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
			if !s.Role.CanDelete() {
				return fmt.Errorf("role %s cannot delete records", s.Role)
			}

			id := args[1]
			if !yes {
				if !interactive() {
					return errors.New("refusing to delete without --yes when not on a terminal")
				}
				confirmed := false
				title := fmt.Sprintf("Delete %s #%s?", screen.Title, id)
				if err := forms.Confirm(title, "This cannot be undone.", &confirmed).Run(); err != nil {
					return formError(err)
				}
				if !confirmed {
					fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled")
					return nil
				}
			}
			return execute(cmd, s, mutation.Mutation{Op: mutation.OpDelete, Resource: screen.Resource, ID: id}, render.FormatTable)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// execute runs mut and reports the outcome. JSON and YAML output print the
// record echoed by the API.
func execute(cmd *cobra.Command, s *app.Session, mut mutation.Mutation, format render.Format) error {
	res, err := s.Mutations.Execute(cmd.Context(), mut)
	if err != nil {
		var merr *mutation.Error
		if errors.As(err, &merr) {
			return fmt.Errorf("%s %s: %s", mut.Op, mut.Resource, merr.Summary())
		}
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case render.FormatJSON:
		return render.WriteJSON(out, res.Entity)
	case render.FormatYAML:
		return render.WriteYAML(out, res.Entity)
	}
	id := mut.ID
	if res.Entity != nil && res.Entity.ID() != "" {
		id = res.Entity.ID()
	}
	verb := map[mutation.Op]string{
		mutation.OpCreate: "Created",
		mutation.OpUpdate: "Updated",
		mutation.OpDelete: "Deleted",
	}[mut.Op]
	fmt.Fprintf(out, "%s %s #%s\n", verb, mut.Resource, id)
	return nil
}

func formError(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("cancelled")
	}
	return err
}
