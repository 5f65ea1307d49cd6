package tui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// state represents the current phase of the command.
type state int

const (
	stateWorking state = iota // request in flight
	stateFiles                // file table ready
	stateDone                 // final message shown
	stateError                // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the WizzCloud dashboard.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	nickname string
	files    []FileRow
	doneMsg  string
	errMsg   string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles — defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 2)

	styleTableHead = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("45"))

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial dashboard model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("39"))),
	)
	return Model{
		state:   stateWorking,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── Client flow messages ─────────────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgSessionFound:
		m.nickname = msg.Nickname
		if msg.Nickname != "" {
			m.addStatus(statusOK, "Signed in as "+msg.Nickname)
		} else {
			m.addStatus(statusOK, "Found existing session")
		}
		return m, nil

	case MsgSessionNotFound:
		m.addStatus(statusInfo, "No session found")
		return m, nil

	case MsgRefreshing:
		m.addStatus(statusInfo, "Refreshing access token...")
		return m, nil

	case MsgRefreshOK:
		m.addStatus(statusOK, "Token refreshed successfully")
		return m, nil

	case MsgRefreshFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Refresh failed: %v", msg.Err))
		return m, nil

	case MsgAccessTokenRejected:
		m.addStatus(statusWarn, "Access token rejected (401), refreshing...")
		return m, nil

	case MsgTokenRefreshedRetrying:
		m.addStatus(statusOK, "Token refreshed, retrying request...")
		return m, nil

	case MsgSessionEnded:
		m.addStatus(statusWarn, "Session ended, please sign in again")
		return m, nil

	case MsgRegistered:
		m.doneMsg = "Registered " + msg.Email + ". Check your inbox for the verification code."
		m.state = stateDone
		return m, nil

	case MsgVerificationRequired:
		m.doneMsg = "Email " + msg.Email + " is not verified yet. Run: wizzcloud-cli verify " +
			msg.Email + " <code>"
		m.state = stateDone
		return m, nil

	case MsgSignedIn:
		m.nickname = msg.Nickname
		m.doneMsg = "Welcome, " + msg.Nickname + "!"
		m.state = stateDone
		return m, nil

	case MsgSignedOut:
		m.doneMsg = "Signed out"
		m.state = stateDone
		return m, nil

	case MsgAccountDeleted:
		m.doneMsg = "Account deleted"
		m.state = stateDone
		return m, nil

	case MsgFilesListed:
		m.files = msg.Files
		m.state = stateFiles
		return m, nil

	case MsgUploading:
		m.addStatus(statusInfo, "Uploading "+msg.Name+"...")
		return m, nil

	case MsgUploaded:
		m.doneMsg = "Uploaded " + msg.Name
		m.state = stateDone
		return m, nil

	case MsgDownloaded:
		m.doneMsg = "Saved to " + msg.Path
		m.state = stateDone
		return m, nil

	case MsgFileDeleted:
		m.doneMsg = "Deleted " + msg.Name
		m.state = stateDone
		return m, nil

	case MsgBlobReady:
		m.doneMsg = msg.Name + " cached at " + msg.Path
		m.state = stateDone
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateFiles:
		return tea.NewView(m.viewFiles())
	case stateDone:
		return tea.NewView(m.viewDone())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewWorking())
	}
}

// viewWorking is shown while a request is in flight.
func (m Model) viewWorking() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(m.viewTitle())
	b.WriteString("\n\n")
	b.WriteString(m.spinner.View())
	b.WriteString(" Working...\n")
	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewFiles renders the file table.
func (m Model) viewFiles() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(m.viewTitle())
	b.WriteString("\n\n")

	if len(m.files) == 0 {
		b.WriteString(styleDim.Render("  No files found"))
		b.WriteString("\n")
		b.WriteString(m.viewStatusLog())
		return b.String()
	}

	b.WriteString(styleTableHead.Render(
		fmt.Sprintf("  %8s  %10s  %-19s  %s", "ID", "SIZE", "MODIFIED", "NAME"),
	))
	b.WriteString("\n")
	for _, f := range m.files {
		b.WriteString(fmt.Sprintf("  %8d  %10s  %-19s  %s\n",
			f.ID, formatSize(f.Size), f.Updated, f.Name))
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewDone is shown after a command completes.
func (m Model) viewDone() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ " + m.doneMsg))
	b.WriteString("\n")
	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Command failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")
	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewTitle renders the dashboard header, with the nickname when known.
func (m Model) viewTitle() string {
	title := "  WizzCloud  "
	if m.nickname != "" {
		title = "  WizzCloud — " + m.nickname + "  "
	}
	return styleTitleBox.Render(styleBold.Render(title))
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}
