// Package tui provides the interactive terminal UI for Project Hub.
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

	projectItemStyle = lipgloss.NewStyle().
				Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	readyStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	notReadyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	daemonOnlineStyle = lipgloss.NewStyle().
				Foreground(successColor).
				Bold(true)

	daemonOfflineStyle = lipgloss.NewStyle().
				Foreground(errorColor)
)

// App is the main TUI application model.
type App struct {
	client       *Client
	projects     []ProjectItem
	selectedIdx  int
	input        textinput.Model
	viewport     viewport.Model
	width        int
	height       int
	mode         string // "list", "files", "logs", "history"
	files        []FileEntry
	fileIdx      int
	history      []AcquisitionDetail
	message      string
	loading      bool
	installing   string // project id with an install in flight
	daemonOnline bool
	previewURL   string
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	ti := textinput.New()
	ti.Placeholder = "Type: install | run | stop | files | logs | history | prompt <text>"
	ti.Focus()
	ti.CharLimit = 512
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
		a.fetchProjects(),
		a.checkDaemon(),
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
			if a.mode != "list" {
				a.mode = "list"
				return a, a.fetchProjects()
			}

		case "up", "k":
			if a.mode == "list" && a.selectedIdx > 0 {
				a.selectedIdx--
			} else if a.mode == "files" && a.fileIdx > 0 {
				a.fileIdx--
				a.syncFileViewport()
			} else {
				a.viewport.LineUp(1)
			}

		case "down", "j":
			if a.mode == "list" && a.selectedIdx < len(a.projects)-1 {
				a.selectedIdx++
			} else if a.mode == "files" && a.fileIdx < len(a.files)-1 {
				a.fileIdx++
				a.syncFileViewport()
			} else {
				a.viewport.LineDown(1)
			}

		case "enter":
			cmd := strings.TrimSpace(a.input.Value())
			if cmd != "" {
				a.input.SetValue("")
				return a, a.executeCommand(cmd)
			} else if a.mode == "list" && len(a.projects) > 0 {
				project := a.projects[a.selectedIdx]
				a.mode = "files"
				a.fileIdx = 0
				return a, a.fetchFiles(project.ID)
			}

		case "r":
			switch a.mode {
			case "list":
				return a, a.fetchProjects()
			case "logs":
				return a, a.fetchLogs()
			}

		case "l":
			a.mode = "logs"
			return a, tea.Batch(a.fetchLogs(), a.tickCmd())
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 4
		a.viewport.Width = msg.Width
		a.viewport.Height = msg.Height - 10

	case projectsLoadedMsg:
		a.loading = false
		a.projects = msg.projects
		if a.selectedIdx >= len(a.projects) {
			a.selectedIdx = max(0, len(a.projects)-1)
		}

	case filesLoadedMsg:
		a.files = msg.files
		a.fileIdx = 0
		a.syncFileViewport()

	case logsLoadedMsg:
		a.viewport.SetContent(strings.Join(msg.lines, "\n"))
		a.viewport.GotoBottom()
		if a.mode == "logs" {
			cmds = append(cmds, a.tickCmd())
		}

	case historyLoadedMsg:
		a.history = msg.history

	case tickMsg:
		if a.mode == "logs" {
			return a, a.fetchLogs()
		}

	case installDoneMsg:
		a.installing = ""
		a.message = fmt.Sprintf("✓ Installed %s at %s", msg.projectID, msg.path)
		return a, a.fetchProjects()

	case previewStartedMsg:
		a.previewURL = msg.url
		a.message = fmt.Sprintf("✓ Preview running at %s", msg.url)

	case commandResultMsg:
		a.message = msg.message
		return a, a.fetchProjects()

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case errMsg:
		a.installing = ""
		a.message = "Error: " + msg.err.Error()
	}

	// Update input
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := daemonOnlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = daemonOfflineStyle.Render("○ DAEMON")
	}

	header := titleStyle.Render("📦 PROJECT HUB")
	header += "  " + daemonStatus
	if a.previewURL != "" {
		header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(a.previewURL)
	}
	if a.installing != "" {
		header += "  " + lipgloss.NewStyle().Foreground(warningColor).Render(fmt.Sprintf("installing %s...", a.installing))
	}

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 1)) + "\n")

	contentHeight := a.height - 8
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case "list":
		b.WriteString(a.renderProjectList(contentHeight))
	case "files":
		b.WriteString(a.renderFiles(contentHeight))
	case "logs":
		b.WriteString("\n  📜 Daemon Logs\n\n")
		b.WriteString(a.viewport.View())
	case "history":
		b.WriteString(a.renderHistory(contentHeight))
	}

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	// Input box
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	b.WriteString("\n")

	// Status bar
	var status string
	switch a.mode {
	case "list":
		status = fmt.Sprintf(" Projects: %d | ↑↓:nav | Enter:browse | l:logs | r:refresh | Ctrl+C:quit", len(a.projects))
	case "files":
		status = fmt.Sprintf(" Files: %d | ↑↓:nav | Esc:back", len(a.files))
	case "logs":
		status = " Logs | r:refresh | Esc:back"
	case "history":
		status = fmt.Sprintf(" Runs: %d | Esc:back", len(a.history))
	default:
		status = " Esc:back | Enter:command | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(a.width).Render(status))

	return b.String()
}

func (a *App) renderProjectList(height int) string {
	if a.loading {
		return "\n  Loading projects...\n"
	}
	if len(a.projects) == 0 {
		return "\n  No projects in the catalog. Press r to refresh.\n"
	}

	var lines []string
	for i, project := range a.projects {
		badge := notReadyStyle.Render("○ not ready")
		if project.ReadyToRun {
			badge = readyStyle.Render("● ready")
		}

		if i == a.selectedIdx {
			line := selectedStyle.Render(fmt.Sprintf("▶ %s  %s", project.ID, plainBadge(project.ReadyToRun)))
			lines = append(lines, line)
		} else {
			line := projectItemStyle.Render(fmt.Sprintf("  %s  %s", project.ID, badge))
			lines = append(lines, line)
		}
	}

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

func (a *App) renderFiles(height int) string {
	if len(a.files) == 0 {
		return "\n  Loading files...\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, f := range a.files {
		label := f.Path
		if f.IsBinary {
			label += " " + helpStyle.Render("(binary)")
		}
		if i == a.fileIdx {
			b.WriteString(selectedStyle.Render("▶ "+label) + "\n")
		} else {
			b.WriteString(projectItemStyle.Render("  "+label) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(a.viewport.View())
	return b.String()
}

func (a *App) renderHistory(height int) string {
	if len(a.history) == 0 {
		return "\n  No recorded runs for this project.\n"
	}

	var b strings.Builder
	b.WriteString("\n  📜 Acquisition Runs\n\n")
	for i, acq := range a.history {
		if i >= height-3 {
			break
		}
		stageStyle := lipgloss.NewStyle().Foreground(successColor)
		if acq.Stage == "failed" {
			stageStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		line := fmt.Sprintf("    • %s  %s", acq.StartedAt, stageStyle.Render(acq.Stage))
		if acq.Error != "" {
			line += fmt.Sprintf("  (exit %d: %s)", acq.ExitCode, acq.Error)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (a *App) syncFileViewport() {
	if a.fileIdx >= len(a.files) {
		return
	}
	f := a.files[a.fileIdx]
	if f.IsBinary {
		a.viewport.SetContent(helpStyle.Render("binary file, not rendered"))
		return
	}
	a.viewport.SetContent(f.Content)
	a.viewport.GotoTop()
}

func plainBadge(ready bool) string {
	if ready {
		return "●"
	}
	return "○"
}

func (a *App) fetchProjects() tea.Cmd {
	a.loading = true
	return func() tea.Msg {
		projects, err := a.client.ListProjects()
		if err != nil {
			return errMsg{err}
		}
		return projectsLoadedMsg{projects}
	}
}

func (a *App) fetchFiles(projectID string) tea.Cmd {
	return func() tea.Msg {
		files, err := a.client.ProjectFiles(projectID)
		if err != nil {
			return errMsg{err}
		}
		return filesLoadedMsg{files}
	}
}

func (a *App) fetchLogs() tea.Cmd {
	return func() tea.Msg {
		lines, err := a.client.Logs()
		if err != nil {
			return errMsg{err}
		}
		return logsLoadedMsg{lines}
	}
}

func (a *App) fetchHistory(projectID string) tea.Cmd {
	return func() tea.Msg {
		history, err := a.client.History(projectID)
		if err != nil {
			return errMsg{err}
		}
		return historyLoadedMsg{history}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		ok, err := a.client.CheckHealth()
		return daemonStatusMsg{online: err == nil && ok}
	}
}

func (a *App) selectedProject() *ProjectItem {
	if len(a.projects) == 0 || a.selectedIdx >= len(a.projects) {
		return nil
	}
	return &a.projects[a.selectedIdx]
}

func (a *App) executeCommand(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "install":
		project := a.selectedProject()
		if project == nil {
			return func() tea.Msg { return commandResultMsg{"No project selected"} }
		}
		fileName := ""
		if len(project.Files) > 0 {
			fileName = project.Files[0]
		}
		a.installing = project.ID
		id := project.ID
		return func() tea.Msg {
			path, err := a.client.Install(id, fileName)
			if err != nil {
				return errMsg{err}
			}
			return installDoneMsg{projectID: id, path: path}
		}

	case "run":
		project := a.selectedProject()
		if project == nil {
			return func() tea.Msg { return commandResultMsg{"No project selected"} }
		}
		id := project.ID
		return func() tea.Msg {
			url, err := a.client.Run(id)
			if err != nil {
				return errMsg{err}
			}
			return previewStartedMsg{url: url}
		}

	case "stop":
		return func() tea.Msg {
			if err := a.client.Stop(); err != nil {
				return errMsg{err}
			}
			return commandResultMsg{"✓ Preview stopped"}
		}

	case "prompt":
		if len(args) < 1 {
			return func() tea.Msg { return commandResultMsg{"Usage: prompt <text>"} }
		}
		projectID := ""
		if p := a.selectedProject(); p != nil {
			projectID = p.ID
		}
		content := strings.Join(args, " ")
		return func() tea.Msg {
			if err := a.client.SubmitPrompt(content, projectID); err != nil {
				return errMsg{err}
			}
			return commandResultMsg{"✓ Prompt synced"}
		}

	case "files":
		project := a.selectedProject()
		if project == nil {
			return func() tea.Msg { return commandResultMsg{"No project selected"} }
		}
		a.mode = "files"
		a.fileIdx = 0
		return a.fetchFiles(project.ID)

	case "logs":
		a.mode = "logs"
		return tea.Batch(a.fetchLogs(), a.tickCmd())

	case "history":
		project := a.selectedProject()
		if project == nil {
			return func() tea.Msg { return commandResultMsg{"No project selected"} }
		}
		a.mode = "history"
		return a.fetchHistory(project.ID)

	case "refresh":
		return a.fetchProjects()

	case "q", "quit", "exit":
		return tea.Quit

	default:
		return func() tea.Msg {
			return commandResultMsg{fmt.Sprintf("Unknown: %s (try: install, run, stop, prompt, logs)", cmd)}
		}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
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

type projectsLoadedMsg struct {
	projects []ProjectItem
}

type filesLoadedMsg struct {
	files []FileEntry
}

type logsLoadedMsg struct {
	lines []string
}

type historyLoadedMsg struct {
	history []AcquisitionDetail
}

type installDoneMsg struct {
	projectID string
	path      string
}

type previewStartedMsg struct {
	url string
}

type daemonStatusMsg struct {
	online bool
}

type tickMsg time.Time
