// Package tui provides the interactive terminal monitor for Genesis.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// App is the main TUI application model.
type App struct {
	client       *Client
	tasks        []TaskItem
	selectedIdx  int
	input        textinput.Model
	viewport     viewport.Model
	width        int
	height       int
	mode         string // "list", "detail", "life"
	currentTask  *TaskDetail
	life         *LifeStatus
	message      string
	loading      bool
	daemonOnline bool
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: submit <request> | event <type> | goal <description>"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 80

	vp := viewport.New(80, 20)

	return &App{
		client:   NewClient(apiAddr),
		input:    ti,
		viewport: vp,
		mode:     "list",
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.fetchTasks(),
		a.fetchLife(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode == "detail" || a.mode == "life" {
				a.mode = "list"
				a.currentTask = nil
				return a, a.fetchTasks()
			}

		case "up", "k":
			if a.mode == "list" && a.selectedIdx > 0 {
				a.selectedIdx--
			}

		case "down", "j":
			if a.mode == "list" && a.selectedIdx < len(a.tasks)-1 {
				a.selectedIdx++
			}

		case "enter":
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				return a, a.executeCommand(cmd)
			} else if a.mode == "list" && len(a.tasks) > 0 {
				task := a.tasks[a.selectedIdx]
				a.mode = "detail"
				return a, a.fetchTaskDetail(task.ID)
			}

		case "r":
			if a.mode == "list" {
				return a, a.fetchTasks()
			} else if a.mode == "life" {
				return a, a.fetchLife()
			}

		case "l":
			a.mode = "life"
			return a, a.fetchLife()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - 10

	case tasksLoadedMsg:
		a.loading = false
		a.tasks = msg.tasks
		if a.selectedIdx >= len(a.tasks) {
			a.selectedIdx = max(0, len(a.tasks)-1)
		}

	case taskDetailLoadedMsg:
		a.currentTask = msg.task

	case lifeLoadedMsg:
		a.life = msg.status

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case tickMsg:
		// Periodic refresh keeps progress bars and life state current.
		cmds = append(cmds, a.tickCmd(), a.fetchLife())
		if a.mode == "list" {
			cmds = append(cmds, a.fetchTasks())
		} else if a.mode == "detail" && a.currentTask != nil {
			cmds = append(cmds, a.fetchTaskDetail(a.currentTask.ID))
		}

	case commandResultMsg:
		a.message = msg.message
		return a, a.fetchTasks()

	case errMsg:
		a.message = "Error: " + msg.err.Error()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}

	header := titleStyle.Render("GENESIS Mind Monitor")
	header += "  " + daemonStatus
	if a.life != nil {
		header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(fmt.Sprintf("[%s]", a.life.State))
	}

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case "list":
		b.WriteString(a.renderTaskList(contentHeight))
	case "detail":
		b.WriteString(a.renderTaskDetail(contentHeight))
	case "life":
		b.WriteString(a.renderLifePanel(contentHeight))
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	b.WriteString("\n")

	var status string
	switch a.mode {
	case "list":
		status = fmt.Sprintf(" Tasks: %d | ↑↓:nav | Enter:detail | l:life | r:refresh | Ctrl+C:quit", len(a.tasks))
	case "life":
		status = " Life scheduler | r:refresh | Esc:back"
	default:
		status = " Esc:back | Enter:command | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderTaskList(height int) string {
	if a.loading {
		return "\n  Loading tasks...\n"
	}
	if len(a.tasks) == 0 {
		return "\n  No tasks yet. Type: submit <request> to start one.\n"
	}

	var lines []string
	for i, task := range a.tasks {
		label := fmt.Sprintf("%s  %3.0f%%  %s", a.formatStatusPlain(task.Status), task.Progress*100, truncate(task.Request, 60))
		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render("▶ "+label))
		} else {
			line := fmt.Sprintf("  %s  %3.0f%%  %s", a.formatStatus(task.Status), task.Progress*100, truncate(task.Request, 60))
			lines = append(lines, taskItemStyle.Render(line))
		}
	}

	// Limit visible lines
	if len(lines) > height {
		start := a.selectedIdx - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func (a *App) renderTaskDetail(height int) string {
	if a.currentTask == nil {
		return "\n  Loading...\n"
	}

	var b strings.Builder
	t := a.currentTask

	b.WriteString(fmt.Sprintf("\n  %s\n", lipgloss.NewStyle().Bold(true).Render(t.Request)))
	b.WriteString(fmt.Sprintf("  ID: %s\n", truncate(t.ID, 8)))
	b.WriteString(fmt.Sprintf("  Status: %s\n", a.formatStatus(t.Status)))
	b.WriteString(fmt.Sprintf("  Progress: %.0f%%\n", t.Progress*100))
	if t.Requester != "" {
		b.WriteString(fmt.Sprintf("  Requester: %s\n", t.Requester))
	}
	if t.Retries > 0 {
		b.WriteString(fmt.Sprintf("  Retries: %d/%d\n", t.Retries, t.MaxRetries))
	}
	if t.Error != "" {
		b.WriteString(fmt.Sprintf("  Error: %s\n", lipgloss.NewStyle().Foreground(errorColor).Render(t.Error)))
	}

	if len(t.Results) > 0 {
		b.WriteString("\n  Results:\n")
		for i, r := range t.Results {
			if i >= 3 {
				break
			}
			b.WriteString(fmt.Sprintf("    • %s\n", truncate(r, 80)))
		}
	}

	return b.String()
}

func (a *App) renderLifePanel(height int) string {
	var b strings.Builder

	b.WriteString("\n  Life Scheduler\n")
	b.WriteString("  " + strings.Repeat("─", 40) + "\n\n")

	if a.life == nil {
		b.WriteString("  Loading...\n")
		return b.String()
	}

	s := a.life
	stateStyle := lipgloss.NewStyle().Foreground(cyanColor).Bold(true)

	b.WriteString(fmt.Sprintf("  State:            %s\n", stateStyle.Render(s.State)))
	b.WriteString(fmt.Sprintf("  Energy:           %.2f\n", s.Energy))
	if s.ActiveRoutine != "" {
		b.WriteString(fmt.Sprintf("  Active Routine:   %s\n", s.ActiveRoutine))
	}
	if s.ActiveGoal != "" {
		b.WriteString(fmt.Sprintf("  Active Goal:      %s\n", truncate(s.ActiveGoal, 50)))
	}

	budgetStyle := lipgloss.NewStyle().Foreground(successColor)
	if s.BudgetRemaining == 0 {
		budgetStyle = lipgloss.NewStyle().Foreground(errorColor)
	} else if s.BudgetRemaining < 10 {
		budgetStyle = lipgloss.NewStyle().Foreground(warningColor)
	}
	b.WriteString(fmt.Sprintf("  LLM Budget Left:  %s\n", budgetStyle.Render(fmt.Sprintf("%d", s.BudgetRemaining))))
	b.WriteString(fmt.Sprintf("  Queue Depth:      %d\n", s.QueueDepth))

	b.WriteString("\n  " + helpStyle.Render("Commands: event <type> | goal <description>") + "\n")

	return b.String()
}

func (a *App) formatStatus(status string) string {
	switch status {
	case "pending":
		return lipgloss.NewStyle().Foreground(warningColor).Render("○ PENDING")
	case "running":
		return lipgloss.NewStyle().Foreground(primaryColor).Render("◑ RUNNING")
	case "retrying":
		return lipgloss.NewStyle().Foreground(warningColor).Render("◐ RETRYING")
	case "completed":
		return lipgloss.NewStyle().Foreground(successColor).Render("● DONE")
	case "failed":
		return lipgloss.NewStyle().Foreground(errorColor).Render("✗ FAILED")
	default:
		return status
	}
}

func (a *App) formatStatusPlain(status string) string {
	switch status {
	case "pending":
		return "○"
	case "running":
		return "◑"
	case "retrying":
		return "◐"
	case "completed":
		return "●"
	case "failed":
		return "✗"
	default:
		return "?"
	}
}

func (a *App) fetchTasks() tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		tasks, err := a.client.ListTasks()
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

func (a *App) fetchTaskDetail(taskID string) tea.Cmd {
	return func() tea.Msg {
		task, err := a.client.GetTask(taskID)
		if err != nil {
			return errMsg{err}
		}
		return taskDetailLoadedMsg{task}
	}
}

func (a *App) fetchLife() tea.Cmd {
	return func() tea.Msg {
		status, err := a.client.LifeStatus()
		if err != nil {
			return errMsg{err}
		}
		return lifeLoadedMsg{status}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ok, err := a.client.CheckHealth()
		return daemonStatusMsg{online: err == nil && ok}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]

	return func() tea.Msg {
		switch cmd {
		case "submit":
			if len(args) < 1 {
				return commandResultMsg{"Usage: submit <request>"}
			}
			request := strings.Join(args, " ")
			id, err := a.client.SubmitTask(request)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Submitted task: %s", truncate(id, 8))}

		case "event":
			if len(args) < 1 {
				return commandResultMsg{"Usage: event <type>"}
			}
			if err := a.client.AddEvent(args[0], 5); err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{"✓ Event queued"}

		case "goal":
			if len(args) < 1 {
				return commandResultMsg{"Usage: goal <description>"}
			}
			description := strings.Join(args, " ")
			id, err := a.client.AddGoal(description)
			if err != nil {
				return commandResultMsg{"Error: " + err.Error()}
			}
			return commandResultMsg{fmt.Sprintf("✓ Registered goal: %s", truncate(id, 8))}

		case "q", "quit", "exit":
			return tea.Quit()

		default:
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: submit, event, goal)", cmd)}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type commandResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type tasksLoadedMsg struct {
	tasks []TaskItem
}

type taskDetailLoadedMsg struct {
	task *TaskDetail
}

type lifeLoadedMsg struct {
	status *LifeStatus
}

type daemonStatusMsg struct {
	online bool
}

type tickMsg time.Time
