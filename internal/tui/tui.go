// Package tui provides a Bubble Tea terminal user interface for fetcher.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/fetcher/internal/config"
	"github.com/handiism/fetcher/internal/dispatch"
	"github.com/handiism/fetcher/internal/download"
	"github.com/handiism/fetcher/internal/fetch"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateProbing
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// session is the part of the model written by work arriving through the
// dispatcher. Model is copied on every Update, so callbacks hold a pointer.
type session struct {
	logs    []LogEntry
	verbose bool
	summary *download.Summary
}

func (s *session) log(event download.ProgressEvent) {
	if event.Level == download.LevelVerbose && !s.verbose {
		return
	}
	s.logs = append(s.logs, LogEntry{Message: event.Message, Level: event.Level})
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	session   *session
	urls      []string
	err       error

	// Download context
	ctx    context.Context
	cancel context.CancelFunc

	main       *dispatch.Tea
	background *dispatch.Pool
	manager    *download.Manager

	totalBytes int64

	// Options
	indeterminate bool

	width  int
	height int
}

// NewModel creates a new TUI model. Work for the model arrives through
// dispatcher, which must be bound to the running program.
func NewModel(settings *config.Settings, dispatcher *dispatch.Tea) Model {
	ti := textinput.New()
	ti.Placeholder = "https://example.com/file.zip, https://example.com/image.png"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:         StateInput,
		textInput:     ti,
		spinner:       sp,
		progress:      prog,
		settings:      settings,
		session:       &session{},
		ctx:           ctx,
		cancel:        cancel,
		main:          dispatcher,
		background:    dispatch.NewPool(settings.MaxConcurrentFetches),
		indeterminate: fetch.ParseUnknownLengthPolicy(settings.UnknownLengthProgress) == fetch.UnknownIndeterminate,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProbeDoneMsg is sent when the size probe completes.
	ProbeDoneMsg struct {
		URLs  []string
		Total int64

		manager *download.Manager
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateProbing {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput && m.textInput.Value() != "" {
				urls := download.ParseInputURLs(m.textInput.Value())
				if len(urls) == 0 {
					m.state = StateError
					m.err = fmt.Errorf("no http(s) URLs in input")
					return m, nil
				}
				m.state = StateProbing
				m.manager = m.newManager()
				return m, tea.Batch(m.probe(urls), m.spinner.Tick)
			}

		case "i":
			if m.state == StateInput {
				m.indeterminate = !m.indeterminate
			}

		case "v":
			if m.state == StateInput {
				m.session.verbose = !m.session.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for new download
				m.state = StateInput
				m.session = &session{verbose: m.session.verbose}
				m.urls = nil
				m.err = nil
				m.totalBytes = 0
				m.manager = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case dispatch.WorkMsg:
		msg.Run()
		if m.state == StateDownloading && m.session.summary != nil {
			m.state = StateComplete
			cmds = append(cmds, m.progress.SetPercent(float64(m.manager.Percent())/100))
		}

	case ProbeDoneMsg:
		if m.state != StateProbing || msg.manager != m.manager {
			return m, nil
		}
		m.urls = msg.URLs
		m.totalBytes = msg.Total
		m.state = StateDownloading
		m.startDownload()
		cmds = append(cmds, m.tickProgress())

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			percent := float64(m.manager.Percent()) / 100
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("⇣ Fetcher"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download files over HTTP"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateProbing:
		b.WriteString(m.viewProbing())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter URL(s):"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	indeterminateCheck := "[ ]"
	if m.indeterminate {
		indeterminateCheck = "[×]"
	}
	verboseCheck := "[ ]"
	if m.session.verbose {
		verboseCheck = "[×]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Report unknown sizes as in progress (i)\n", indeterminateCheck))
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (v)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output directory: %s", m.settings.OutputDir)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewProbing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Checking sizes..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(successStyle.Render(fmt.Sprintf("Fetching %d file(s):", len(m.urls))))
	b.WriteString("\n")
	for i, u := range m.urls {
		b.WriteString(fileStyle.Render("  ♪ " + download.FileName(m.settings.FileNameFormat, u, i+1)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.progress.View())
	b.WriteString("\n")

	size := "unknown"
	if m.totalBytes > 0 {
		size = fmt.Sprintf("%.2f MB", float64(m.totalBytes)/1024/1024)
	}
	b.WriteString(infoStyle.Render(fmt.Sprintf("Files: %d | Size: %s", len(m.urls), size)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	s := m.session.summary
	if s == nil {
		s = &download.Summary{}
	}
	box := boxStyle.Render(fmt.Sprintf(
		"✨ Download Complete!\n\n"+
			"Succeeded: %d\n"+
			"Failed: %d\n"+
			"Elapsed: %s\n"+
			"Directory: %s",
		s.Succeeded,
		s.Failed,
		s.Elapsed.Round(time.Millisecond),
		filepath.Clean(m.settings.OutputDir),
	))
	b.WriteString(box)
	b.WriteString("\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.session.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • i: unknown sizes • v: verbose • esc: quit"
	case StateProbing, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// newManagerSettings copies the settings with the current options applied.
func (m Model) newManagerSettings() *config.Settings {
	settings := *m.settings
	settings.UnknownLengthProgress = fetch.UnknownSuppress.String()
	if m.indeterminate {
		settings.UnknownLengthProgress = fetch.UnknownIndeterminate.String()
	}
	return &settings
}

// newManager builds a manager for one batch.
func (m Model) newManager() *download.Manager {
	return download.NewManager(m.newManagerSettings(), m.background, m.main, m.session.log)
}

// probe sums the advertised sizes off the UI goroutine.
func (m Model) probe(urls []string) tea.Cmd {
	manager, ctx := m.manager, m.ctx
	return func() tea.Msg {
		return ProbeDoneMsg{URLs: urls, Total: manager.Probe(ctx, urls), manager: manager}
	}
}

// startDownload starts the batch. Callbacks arrive as dispatch.WorkMsg.
func (m Model) startDownload() {
	sess := m.session
	m.manager.Start(m.ctx, m.urls, func(s download.Summary) {
		sess.summary = &s
	})
}

// Run starts the TUI application.
func Run(settings *config.Settings) error {
	disp := dispatch.NewTea()
	p := tea.NewProgram(NewModel(settings, disp), tea.WithAltScreen())
	disp.Bind(p)
	_, err := p.Run()
	return err
}
