// Package tui is the terminal front end: parameter inputs plus the
// "Next Step" and "Reset" actions over one Newton session.
package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/njchilds90/gonewton"
)

const (
	fieldF = iota
	fieldDF
	fieldX0
	fieldTol
	fieldMax
	fieldCount
)

var labels = [fieldCount]string{
	fieldF:   "Function f(x)",
	fieldDF:  "Derivative f'(x)",
	fieldX0:  "Initial guess",
	fieldTol: "Tolerance",
	fieldMax: "Max iterations",
}

const maxLogLines = 15

// Model owns one session for the lifetime of the terminal program.
type Model struct {
	inputs  []textinput.Model
	focus   int
	session *gonewton.Session
	last    *gonewton.StepResult
	styles  Styles
	width   int
	logger  *zap.Logger
}

func New(defaults gonewton.Params, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	values := [fieldCount]string{
		fieldF:   defaults.Function,
		fieldDF:  defaults.Derivative,
		fieldX0:  strconv.FormatFloat(defaults.X0, 'g', -1, 64),
		fieldTol: strconv.FormatFloat(defaults.Tolerance, 'e', -1, 64),
		fieldMax: strconv.Itoa(defaults.MaxIterations),
	}
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 256
		ti.Width = 40
		ti.SetValue(values[i])
		inputs[i] = ti
	}
	inputs[fieldDF].Placeholder = "empty = derive from f(x)"
	inputs[fieldF].Focus()

	return Model{
		inputs:  inputs,
		session: gonewton.NewSession("tui"),
		styles:  DefaultStyles(),
		logger:  logger.Named("tui"),
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Session returns the model's session.
func (m Model) Session() *gonewton.Session { return m.session }

// LastResult returns the outcome of the most recent action, if any.
func (m Model) LastResult() (gonewton.StepResult, bool) {
	if m.last == nil {
		return gonewton.StepResult{}, false
	}
	return *m.last, true
}

// Params reads the input fields.
func (m Model) Params() (gonewton.Params, error) {
	p := gonewton.Params{
		Function:   strings.TrimSpace(m.inputs[fieldF].Value()),
		Derivative: strings.TrimSpace(m.inputs[fieldDF].Value()),
	}
	var err error
	if p.X0, err = strconv.ParseFloat(strings.TrimSpace(m.inputs[fieldX0].Value()), 64); err != nil {
		return p, fmt.Errorf("%w: initial guess is not a number", gonewton.ErrInvalidParams)
	}
	if p.Tolerance, err = strconv.ParseFloat(strings.TrimSpace(m.inputs[fieldTol].Value()), 64); err != nil {
		return p, fmt.Errorf("%w: tolerance is not a number", gonewton.ErrInvalidParams)
	}
	if p.MaxIterations, err = strconv.Atoi(strings.TrimSpace(m.inputs[fieldMax].Value())); err != nil {
		return p, fmt.Errorf("%w: max iterations is not an integer", gonewton.ErrInvalidParams)
	}
	return p, nil
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = (i + fieldCount) % fieldCount
	return m.inputs[m.focus].Focus()
}

func (m *Model) step() {
	p, err := m.Params()
	var res gonewton.StepResult
	if err != nil {
		res = gonewton.Rejected(err)
	} else {
		res = m.session.Advance(p)
	}
	m.logger.Debug("step", zap.Stringer("kind", res.Kind), zap.Int("iterations", m.session.Iterations))
	m.last = &res
}

func (m *Model) reset() {
	m.session.Reset()
	m.last = nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlN, tea.KeyEnter:
			m.step()
			return m, nil
		case tea.KeyCtrlR:
			m.reset()
			return m, nil
		case tea.KeyTab, tea.KeyDown:
			return m, m.setFocus(m.focus + 1)
		case tea.KeyShiftTab, tea.KeyUp:
			return m, m.setFocus(m.focus - 1)
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) message() string {
	if m.last == nil {
		return ""
	}
	res := *m.last
	switch {
	case res.Kind == gonewton.StepConverged:
		return m.styles.Success.Render(res.Message())
	case res.Kind == gonewton.StepStepped:
		return res.Message()
	case errors.Is(res.Err, gonewton.ErrIterationBudgetExhausted):
		return m.styles.Warning.Render(res.Message())
	}
	return m.styles.Error.Render(res.Message())
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Newton's Method Visualization"))
	sb.WriteString("\n")

	for i, in := range m.inputs {
		label := m.styles.Label
		if i == m.focus {
			label = m.styles.Focused
		}
		sb.WriteString(label.Render(labels[i]))
		sb.WriteString(in.View())
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if msg := m.message(); msg != "" {
		sb.WriteString(msg)
		sb.WriteString("\n")
	}

	lines := m.session.Log()
	if len(lines) > maxLogLines {
		lines = append([]string{fmt.Sprintf("… %d earlier steps", len(lines)-maxLogLines)}, lines[len(lines)-maxLogLines:]...)
	}
	if len(lines) == 0 {
		lines = []string{"No steps yet."}
	}
	sb.WriteString(m.styles.Log.Render(strings.Join(lines, "\n")))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Help.Render("enter/ctrl+n next step • ctrl+r reset • tab next field • esc quit"))
	return sb.String()
}

// Run starts the interactive program and blocks until the user quits.
func Run(defaults gonewton.Params, logger *zap.Logger) error {
	_, err := tea.NewProgram(New(defaults, logger), tea.WithAltScreen()).Run()
	return err
}
