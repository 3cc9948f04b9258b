package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/subsidy-console/internal/model"
	"github.com/nhle/subsidy-console/internal/source"
	"github.com/nhle/subsidy-console/internal/source/console"
	"github.com/nhle/subsidy-console/internal/theme"
)

// ConfigMode represents the current state of the configuration view.
type ConfigMode int

const (
	ModeForm           ConfigMode = iota // Editing connection settings
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show validation result
)

// validateTimeout bounds the connection test.
const validateTimeout = 15 * time.Second

// TokenWriter stores API tokens per role.
type TokenWriter interface {
	SetToken(role, token string) error
}

// ConfigDoneMsg signals the config view should close without changes.
type ConfigDoneMsg struct{}

// SavedMsg signals that the connection settings were tested and saved.
type SavedMsg struct {
	BaseURL string
	Token   string
}

// ValidateResultMsg carries the result of a connection test.
type ValidateResultMsg struct {
	Count int
	Err   error
}

// Model is the Bubble Tea model for the connection settings UI.
type Model struct {
	mode       ConfigMode
	cfg        *model.AppConfig
	configPath string
	tokens     TokenWriter
	role       string

	form        *huh.Form
	formBaseURL *string
	formToken   *string

	validCount int
	validError error
	spinner    spinner.Model

	width, height int
}

// New creates a new configuration view model.
func New(cfg *model.AppConfig, configPath string, tokens TokenWriter, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:        ModeForm,
		cfg:         cfg,
		configPath:  configPath,
		tokens:      tokens,
		formBaseURL: new(string),
		formToken:   new(string),
		spinner:     sp,
		width:       width,
		height:      height,
	}
}

// Start opens the form for role, pre-filled with the current base URL.
// The token is never pre-filled.
func (m *Model) Start(role string) tea.Cmd {
	m.role = role
	m.mode = ModeForm
	*m.formBaseURL = m.cfg.API.BaseURL
	*m.formToken = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ValidateResultMsg:
		m.validCount = msg.Count
		m.validError = msg.Err
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			if msg.String() == "esc" {
				m.mode = ModeForm
				m.form = m.buildForm()
				return m, m.form.Init()
			}
			return m, nil
		case ModeValidateResult:
			return m.handleResultKeys(msg)
		}
	}

	return m.updateForm(msg)
}

func (m Model) handleResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		if m.validError != nil {
			m.mode = ModeForm
			m.form = m.buildForm()
			return m, m.form.Init()
		}
	case "enter", "esc":
		if m.validError != nil {
			return m, func() tea.Msg { return ConfigDoneMsg{} }
		}
		saved := SavedMsg{
			BaseURL: strings.TrimSpace(*m.formBaseURL),
			Token:   strings.TrimSpace(*m.formToken),
		}
		return m, func() tea.Msg { return saved }
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.mode != ModeForm {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateAborted:
		return m, func() tea.Msg { return ConfigDoneMsg{} }
	case huh.StateCompleted:
		m.mode = ModeValidating
		return m, tea.Batch(m.spinner.Tick, m.validateAndSave())
	}
	return m, cmd
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Console URL").
				Placeholder("https://console.example.org").
				Value(m.formBaseURL).
				Validate(validateURL),
			huh.NewInput().
				Title(fmt.Sprintf("API token (%s)", m.role)).
				Description("Stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(m.formToken).
				Validate(validateRequired("API token")),
		),
	).WithWidth(m.formWidth())
}

// validateAndSave tests the connection with the entered values, then
// stores the token and the base URL.
func (m Model) validateAndSave() tea.Cmd {
	baseURL := strings.TrimSpace(*m.formBaseURL)
	token := strings.TrimSpace(*m.formToken)
	role := m.role
	cfg := *m.cfg
	path := m.configPath
	tokens := m.tokens

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()

		list, err := console.NewClient(baseURL).FetchNotifications(ctx, role, token)
		if err != nil {
			if source.IsAuthError(err) {
				return ValidateResultMsg{Err: fmt.Errorf("token rejected for %s: %w", role, err)}
			}
			return ValidateResultMsg{Err: err}
		}

		if err := tokens.SetToken(role, token); err != nil {
			return ValidateResultMsg{Err: fmt.Errorf("connection OK but token save failed: %w", err)}
		}
		if cfg.API.BaseURL != baseURL {
			cfg.API.BaseURL = baseURL
			if err := model.SaveConfig(path, &cfg); err != nil {
				return ValidateResultMsg{Err: fmt.Errorf("connection OK but config save failed: %w", err)}
			}
		}
		return ValidateResultMsg{Count: len(list)}
	}
}

// View renders the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	default:
		return m.viewForm()
	}
}

func (m Model) viewForm() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Console Connection") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing connection...\n\nPress esc to cancel.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | enter/esc back")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("%d notifications available for %s.", m.validCount, m.role) + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter/esc back")
	}

	return style.Render(content)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
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

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}
