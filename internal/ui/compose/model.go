package compose

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/theme"
)

// SubmitMsg is dispatched when the user submits a new notification.
type SubmitMsg struct {
	Input model.Input
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	kind     string
	title    string
	message  string
	priority string
	subject  string
}

// Model is the Bubble Tea model for raising a local notification.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start resets the fields and builds a fresh form.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{
		kind:     string(model.TypeSystemUpdate),
		priority: string(model.PriorityMedium),
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		in := m.fb.input()
		m.form = nil
		return m, func() tea.Msg { return SubmitMsg{Input: in} }
	}
	if m.form.State == huh.StateAborted {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New Notification") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Type").
				Options(typeOptions()...).
				Value(&m.fb.kind),
			huh.NewInput().
				Title("Title").
				Placeholder("Interview scheduled").
				Value(&m.fb.title).
				Validate(validateRequired("Title")),
			huh.NewText().
				Title("Message").
				Placeholder("What happened?").
				Value(&m.fb.message).
				Validate(validateRequired("Message")),
			huh.NewSelect[string]().
				Title("Priority").
				Options(
					huh.NewOption("High", string(model.PriorityHigh)),
					huh.NewOption("Medium", string(model.PriorityMedium)),
					huh.NewOption("Low", string(model.PriorityLow)),
				).
				Value(&m.fb.priority),
			huh.NewInput().
				Title("Beneficiary / subject").
				Placeholder("Optional name the notification is about").
				Value(&m.fb.subject),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func typeOptions() []huh.Option[string] {
	types := []model.Type{
		model.TypeSystemUpdate,
		model.TypeInterviewRequest,
		model.TypeInterviewScheduled,
		model.TypeBeneficiaryUpdate,
		model.TypeBeneficiaryAssigned,
		model.TypeProgramApproval,
		model.TypeEnrollmentApproved,
		model.TypeEnrollmentRejected,
		model.TypeCoordinatorRegistration,
	}
	opts := make([]huh.Option[string], len(types))
	for i, t := range types {
		opts[i] = huh.NewOption(string(t), string(t))
	}
	return opts
}

// input builds the notification input with a payload matching its type.
func (fb *formBindings) input() model.Input {
	t := model.Type(fb.kind)
	return model.Input{
		Type:     t,
		Title:    strings.TrimSpace(fb.title),
		Message:  strings.TrimSpace(fb.message),
		Priority: model.Priority(fb.priority),
		Data:     subjectPayload(t, strings.TrimSpace(fb.subject)),
	}
}

// subjectPayload attaches the optional subject to the payload variant of t.
func subjectPayload(t model.Type, subject string) model.Payload {
	if subject == "" {
		return nil
	}
	switch t {
	case model.TypeInterviewRequest, model.TypeInterviewScheduled:
		return model.InterviewData{BeneficiaryName: subject}
	case model.TypeBeneficiaryUpdate, model.TypeBeneficiaryAssigned:
		return model.BeneficiaryData{BeneficiaryName: subject}
	case model.TypeProgramApproval:
		return model.ProgramData{ProgramName: subject}
	case model.TypeEnrollmentApproved, model.TypeEnrollmentRejected:
		return model.EnrollmentData{BeneficiaryName: subject}
	case model.TypeCoordinatorRegistration:
		return model.CoordinatorData{CoordinatorName: subject}
	case model.TypeSystemUpdate:
		return model.SystemData{Details: subject}
	default:
		return model.GenericData{"subject": subject}
	}
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
