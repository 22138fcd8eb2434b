package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hadefuwa/eblocks-companion-app/internal/board"
)

// PageID identifies each page in the application.
type PageID int

const (
	PortsPage PageID = iota
	MonitorPage
	UploadPage
	HistoryPage
	SettingsPage
)

var PageOrder = []PageID{
	PortsPage,
	MonitorPage,
	UploadPage,
	HistoryPage,
	SettingsPage,
}

// Page is the interface every page in the application implements.
type Page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Page, tea.Cmd)
	View() string
	Name() string
	ShortHelp() []key.Binding
	SetSize(width, height int)
}

// InputCapturer is an optional interface for pages with text inputs.
// When InputCaptured returns true, the app forwards all keys directly
// to the page instead of processing shortcuts like q, ?, left, etc.
type InputCapturer interface {
	InputCaptured() bool
}

// PortSelectedMsg is broadcast to all pages when a target port is chosen,
// whether by the user through the picker or by an upload that resolved
// its port automatically. Family is the board family detected on the
// port, or Unknown.
type PortSelectedMsg struct {
	Port   string
	Family board.Family
}

// FamilySelectedMsg is broadcast to all pages when the user overrides the
// board family manually.
type FamilySelectedMsg struct {
	Family board.Family
}
