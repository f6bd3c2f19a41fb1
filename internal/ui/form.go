package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/depot/internal/forms"
	"github.com/five82/depot/internal/mutation"
)

// formModal is an open huh form: a create or edit form, or the delete
// confirmation.
type formModal struct {
	title string
	form  *huh.Form
	// state is nil for the delete confirmation.
	state     *forms.State
	confirmed *bool
	resource  string
	id        string
}

func (f *formModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.BorderFocus)).
		Padding(1, 2).
		Width(min(max(width-8, 40), 80))
	body := styles.AccentText.Bold(true).Render(f.title) + "\n\n" +
		f.form.View() + "\n" +
		styles.FaintText.Render("esc cancel")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box.Render(body))
}

// mutationDoneMsg reports a finished create, update or delete.
type mutationDoneMsg struct {
	mutation mutation.Mutation
	result   mutation.Result
	err      error
}

func (m *Model) openCreateForm() tea.Cmd {
	if !m.canWrite(m.role.CanEdit(), "create") {
		return nil
	}
	st := m.active()
	state := forms.NewCreate(st.screen)
	return m.showForm(&formModal{title: state.Title(), form: state.Form, state: state, resource: st.screen.Resource})
}

func (m *Model) openEditForm() tea.Cmd {
	if !m.canWrite(m.role.CanEdit(), "edit") {
		return nil
	}
	row, ok := m.selectedRow()
	if !ok {
		return nil
	}
	st := m.active()
	state := forms.NewEdit(st.screen, row)
	return m.showForm(&formModal{title: state.Title(), form: state.Form, state: state, resource: st.screen.Resource, id: row.ID()})
}

func (m *Model) openDeleteConfirm() tea.Cmd {
	if !m.canWrite(m.role.CanDelete(), "delete") {
		return nil
	}
	row, ok := m.selectedRow()
	if !ok {
		return nil
	}
	st := m.active()
	name := st.screen.RecordTitle(row)
	confirmed := false
	form := forms.Confirm("Delete "+name+"?", "This cannot be undone.", &confirmed)
	return m.showForm(&formModal{
		title:     "Delete " + strings.TrimSuffix(st.screen.Title, "s"),
		form:      form,
		confirmed: &confirmed,
		resource:  st.screen.Resource,
		id:        row.ID(),
	})
}

func (m *Model) canWrite(allowed bool, action string) bool {
	if !allowed {
		m.pushToast(toastError, fmt.Sprintf("Role %s cannot %s records", m.role, action))
	}
	return allowed
}

func (m *Model) showForm(f *formModal) tea.Cmd {
	m.form = f
	return f.form.Init()
}

// updateForm forwards every message to the open form and acts once it
// completes or aborts.
func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
		m.form = nil
		return m, nil
	}

	model, cmd := m.form.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		m.form.form = f
	}

	switch m.form.form.State {
	case huh.StateAborted:
		m.form = nil
		return m, nil
	case huh.StateCompleted:
		f := m.form
		m.form = nil
		return m, m.submitForm(f)
	}
	return m, cmd
}

// submitForm turns a completed form into a mutation.
func (m *Model) submitForm(f *formModal) tea.Cmd {
	if f.state == nil {
		if f.confirmed == nil || !*f.confirmed {
			return nil
		}
		return m.mutateCmd(mutation.Mutation{Op: mutation.OpDelete, Resource: f.resource, ID: f.id})
	}

	payload, err := f.state.Payload()
	if errors.Is(err, forms.ErrNothingChanged) {
		m.pushToast(toastInfo, "Nothing changed")
		return nil
	}
	if err != nil {
		m.pushToast(toastError, err.Error())
		return nil
	}
	op := mutation.OpCreate
	if f.state.Mode == forms.ModeEdit {
		op = mutation.OpUpdate
	}
	return m.mutateCmd(mutation.Mutation{Op: op, Resource: f.resource, ID: f.id, Payload: payload})
}

// mutateCmd runs mut off the UI goroutine.
func (m *Model) mutateCmd(mut mutation.Mutation) tea.Cmd {
	if m.mutations == nil {
		m.pushToast(toastError, "Writes are not available")
		return nil
	}
	ctx, coord, logger := m.ctx, m.mutations, m.logger
	m.pushToast(toastInfo, "Saving...")
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, MutationTimeout)
		defer cancel()
		res, err := coord.Execute(ctx, mut)
		if err != nil {
			logger.Info("mutation failed", "op", mut.Op.String(), "resource", mut.Resource, "id", mut.ID, "err", err)
		}
		return mutationDoneMsg{mutation: mut, result: res, err: err}
	}
}

func (m *Model) handleMutationDone(msg mutationDoneMsg) tea.Cmd {
	if msg.err != nil {
		m.pushToast(toastError, mutationErrorText(msg.err))
		return m.refresh()
	}
	mut := msg.mutation
	id := mut.ID
	if msg.result.Entity != nil && msg.result.Entity.ID() != "" {
		id = msg.result.Entity.ID()
	}
	verb := map[mutation.Op]string{
		mutation.OpCreate: "Created",
		mutation.OpUpdate: "Updated",
		mutation.OpDelete: "Deleted",
	}[mut.Op]
	m.pushToast(toastSuccess, fmt.Sprintf("%s %s #%s", verb, mut.Resource, id))
	if mut.Op == mutation.OpDelete && m.showDetail && m.detailKey.ID == mut.ID {
		m.closeDetail()
	}
	return m.refresh()
}

// mutationErrorText is the message and field errors of a failed mutation.
func mutationErrorText(err error) string {
	var merr *mutation.Error
	if errors.As(err, &merr) {
		return merr.Summary()
	}
	return err.Error()
}
