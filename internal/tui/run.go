package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/relay/internal/orchestrator"
	"github.com/ShayCichocki/relay/pkg/models"
)

// EventMsg carries one orchestrator event into the program.
type EventMsg struct {
	Event orchestrator.Event
}

// DoneMsg is sent once the run has returned.
type DoneMsg struct {
	Outcome *orchestrator.RunOutcome
}

// resolvedMsg reports the result of a y/n keypress.
type resolvedMsg struct {
	ID string
	OK bool
}

// ResolveFunc settles a pending tool request.
type ResolveFunc func(id string, allow bool) bool

type taskRow struct {
	ID     string
	Agent  models.AgentType
	Status models.TaskStatus
}

var (
	accentColor  = lipgloss.Color("#5FAFAF")
	subtleColor  = lipgloss.Color("#666666")
	successColor = lipgloss.Color("#87AF87")
	errorColor   = lipgloss.Color("#AF5F5F")
	warnColor    = lipgloss.Color("#D7AF5F")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	subtleStyle  = lipgloss.NewStyle().Foreground(subtleColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	promptStyle  = lipgloss.NewStyle().
			Bold(true).
			Foreground(warnColor).
			Border(lipgloss.NormalBorder()).
			BorderForeground(warnColor).
			Padding(0, 1)
)

// RunModel renders a single run: task statuses, streamed output and any
// tool request waiting for a decision.
type RunModel struct {
	prompt  string
	planID  string
	tasks   []taskRow
	index   map[string]int
	tail    *RingBuffer
	lines   *lineWriter
	pending []orchestrator.ToolApprovalRequest

	resolve ResolveFunc
	cancel  func()

	spinner    spinner.Model
	status     string
	outcome    *orchestrator.RunOutcome
	done       bool
	cancelling bool
	quitting   bool
	width      int
	height     int
}

// NewRunModel creates a model for a run of prompt. resolve answers tool
// requests and cancel stops the run; either may be nil.
func NewRunModel(prompt string, resolve ResolveFunc, cancel func()) *RunModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = titleStyle

	tail := NewRingBuffer(DefaultTailSize)
	return &RunModel{
		prompt:  prompt,
		index:   make(map[string]int),
		tail:    tail,
		lines:   newLineWriter(tail),
		resolve: resolve,
		cancel:  cancel,
		spinner: s,
		status:  "planning",
		width:   100,
		height:  30,
	}
}

// Init implements tea.Model.
func (m *RunModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		m.apply(msg.Event)
		return m, nil

	case DoneMsg:
		m.done = true
		m.outcome = msg.Outcome
		for id := range m.lines.partial {
			m.lines.Flush(id)
		}
		if m.cancelling {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case resolvedMsg:
		if !msg.OK {
			m.tail.Append(fmt.Sprintf("[tool] %s was already resolved", msg.ID))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *RunModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.done || m.cancelling {
			m.quitting = true
			return m, tea.Quit
		}
		m.cancelling = true
		m.status = "cancelling"
		if m.cancel != nil {
			m.cancel()
		}
		return m, nil

	case "y", "n":
		if len(m.pending) == 0 || m.resolve == nil {
			return m, nil
		}
		id := m.pending[0].ID
		allow := msg.String() == "y"
		resolve := m.resolve
		// Resolving emits on the bus, whose listener sends back into this
		// program, so it must run outside Update.
		return m, func() tea.Msg {
			return resolvedMsg{ID: id, OK: resolve(id, allow)}
		}
	}
	return m, nil
}

func (m *RunModel) apply(e orchestrator.Event) {
	switch p := e.Data.(type) {
	case orchestrator.PlanCreated:
		m.planID = p.PlanID
		m.status = "running"
		for _, id := range p.TaskIDs {
			m.row(id)
		}

	case orchestrator.TaskStarted:
		r := m.row(p.TaskID)
		r.Agent = p.Agent
		r.Status = models.TaskStatusRunning

	case orchestrator.AgentStream:
		m.lines.Write(p.TaskID, p.Text)

	case orchestrator.TaskCompleted:
		m.row(p.TaskID).Status = p.Status
		m.lines.Flush(p.TaskID)

	case orchestrator.ToolApprovalRequest:
		m.pending = append(m.pending, p)
		sort.SliceStable(m.pending, func(i, j int) bool {
			return m.pending[i].CreatedAt.Before(m.pending[j].CreatedAt)
		})

	case orchestrator.ToolDecision:
		for i, req := range m.pending {
			if req.ID == p.ID {
				m.pending = append(m.pending[:i], m.pending[i+1:]...)
				break
			}
		}
		m.tail.Append(fmt.Sprintf("[tool] %s %s", p.ID, p.Decision))

	case orchestrator.RunCompleted:
		m.status = "completed"

	case orchestrator.RunFailed:
		m.status = "failed"
	}
}

// row returns the row for id, adding a pending one when the task is new.
func (m *RunModel) row(id string) *taskRow {
	if i, ok := m.index[id]; ok {
		return &m.tasks[i]
	}
	m.index[id] = len(m.tasks)
	m.tasks = append(m.tasks, taskRow{ID: id, Status: models.TaskStatusPending})
	return &m.tasks[len(m.tasks)-1]
}

// Pending returns the tool requests still waiting on a decision.
func (m *RunModel) Pending() []orchestrator.ToolApprovalRequest {
	return m.pending
}

// Outcome returns the run outcome once DoneMsg has arrived.
func (m *RunModel) Outcome() *orchestrator.RunOutcome {
	return m.outcome
}

// View implements tea.Model.
func (m *RunModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := "relay"
	if m.planID != "" {
		header += " " + subtleStyle.Render(m.planID)
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")
	b.WriteString(subtleStyle.Render(truncate(m.prompt, m.width-2)))
	b.WriteString("\n\n")

	if m.done {
		b.WriteString(m.renderStatus())
	} else {
		b.WriteString(m.spinner.View() + " " + m.status)
	}
	b.WriteString("\n\n")

	for _, r := range m.tasks {
		b.WriteString(renderRow(r))
		b.WriteString("\n")
	}

	tailHeight := m.height - len(m.tasks) - 10
	if len(m.pending) > 0 {
		tailHeight -= 4
	}
	if tailHeight < 3 {
		tailHeight = 3
	}
	b.WriteString("\n")
	for _, line := range m.tail.Last(tailHeight) {
		b.WriteString(truncate(line, m.width-2))
		b.WriteString("\n")
	}

	if len(m.pending) > 0 {
		req := m.pending[0]
		prompt := fmt.Sprintf("%s wants to run %s%s  [y] allow  [n] deny",
			req.TaskID, req.ToolName, describeInput(req.Input))
		if n := len(m.pending) - 1; n > 0 {
			prompt += fmt.Sprintf("  (+%d waiting)", n)
		}
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(prompt))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(subtleStyle.Render("q: exit"))
	} else {
		b.WriteString(subtleStyle.Render("q: cancel run"))
	}
	return b.String()
}

func (m *RunModel) renderStatus() string {
	if m.outcome == nil {
		return m.status
	}
	if m.outcome.Status == models.TaskStatusCompleted {
		return successStyle.Render("run completed")
	}
	var b strings.Builder
	b.WriteString(errorStyle.Render("run failed"))
	for _, e := range m.outcome.Errors {
		b.WriteString("\n  ")
		b.WriteString(errorStyle.Render(e))
	}
	return b.String()
}

func renderRow(r taskRow) string {
	var icon string
	switch r.Status {
	case models.TaskStatusRunning:
		icon = titleStyle.Render("▶")
	case models.TaskStatusCompleted:
		icon = successStyle.Render("✓")
	case models.TaskStatusFailed:
		icon = errorStyle.Render("✗")
	default:
		icon = subtleStyle.Render("○")
	}
	line := fmt.Sprintf("%s %-24s %-10s", icon, r.ID, r.Status)
	if r.Agent != "" {
		line += " " + subtleStyle.Render(string(r.Agent))
	}
	return line
}

// describeInput picks the most telling tool argument for the prompt line.
func describeInput(input map[string]any) string {
	for _, key := range []string{"command", "file_path", "path", "pattern"} {
		if v, ok := input[key].(string); ok && v != "" {
			return ": " + truncate(v, 60)
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
