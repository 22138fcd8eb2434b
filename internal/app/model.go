package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hadefuwa/eblocks-companion-app/internal/board"
	"github.com/hadefuwa/eblocks-companion-app/internal/config"
	"github.com/hadefuwa/eblocks-companion-app/internal/serial"
	"github.com/hadefuwa/eblocks-companion-app/internal/ui"
)

type FocusArea int

const (
	FocusSidebar FocusArea = iota
	FocusContent
)

type pickerKind int

const (
	pickerNone pickerKind = iota
	pickerPort
	pickerFamily
)

// PortsLoadedMsg carries the result of a port enumeration requested by
// the port picker.
type PortsLoadedMsg struct {
	Ports []serial.PortInfo
	Err   error
}

type Model struct {
	pages          map[PageID]Page
	activePage     PageID
	focus          FocusArea
	width          int
	height         int
	showHelp       bool
	selectedPort   string
	selectedFamily board.Family
	lastPorts      []serial.PortInfo
	picker         *Picker
	pickerFor      pickerKind
	cfg            *config.Config
	projectRoot    string
	manager        *serial.Manager
}

func New(pages map[PageID]Page, cfg *config.Config, projectRoot string, manager *serial.Manager) Model {
	fam, _ := board.Parse(cfg.DefaultFamily)
	return Model{
		pages:          pages,
		cfg:            cfg,
		projectRoot:    projectRoot,
		manager:        manager,
		selectedPort:   cfg.SerialPort,
		selectedFamily: fam,
	}
}

func (m Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, p := range m.pages {
		if cmd := p.Init(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// listPorts enumerates serial ports off the event loop.
func listPorts(manager *serial.Manager) tea.Cmd {
	return func() tea.Msg {
		ports, err := manager.ListPorts()
		return PortsLoadedMsg{Ports: ports, Err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentWidth := m.width - sidebarWidth
		contentHeight := m.height - 2 - 1 // status bar + port bar
		for _, p := range m.pages {
			p.SetSize(contentWidth, contentHeight)
		}
		return m, nil

	case PortsLoadedMsg:
		m.lastPorts = msg.Ports
		if msg.Err != nil || m.picker == nil || m.pickerFor != pickerPort {
			return m, nil
		}
		var items []PickerItem
		for _, p := range msg.Ports {
			label := p.Name
			if p.Held {
				label += " (monitoring)"
			}
			desc := p.Desc.Product
			if p.Family != board.Unknown {
				desc = p.Family.DisplayName()
			}
			items = append(items, PickerItem{Label: label, Value: p.Name, Desc: desc})
		}
		m.picker.SetItems(items)
		return m, nil

	case PickerSelectedMsg:
		kind := m.pickerFor
		m.picker = nil
		m.pickerFor = pickerNone
		switch kind {
		case pickerPort:
			fam := m.familyFor(msg.Value)
			m.cfg.SerialPort = msg.Value
			if fam != board.Unknown {
				m.cfg.DefaultFamily = string(fam)
			}
			config.Save(*m.cfg, m.projectRoot, false)
			return m, func() tea.Msg { return PortSelectedMsg{Port: msg.Value, Family: fam} }
		case pickerFamily:
			fam, _ := board.Parse(msg.Value)
			m.cfg.DefaultFamily = msg.Value
			config.Save(*m.cfg, m.projectRoot, false)
			return m, func() tea.Msg { return FamilySelectedMsg{Family: fam} }
		}
		return m, nil

	case PickerClosedMsg:
		m.picker = nil
		m.pickerFor = pickerNone
		return m, nil

	case PortSelectedMsg:
		m.selectedPort = msg.Port
		if msg.Family != board.Unknown {
			m.selectedFamily = msg.Family
		}
		// Broadcast to all pages
		var cmds []tea.Cmd
		for id, page := range m.pages {
			newPage, cmd := page.Update(msg)
			m.pages[id] = newPage
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case FamilySelectedMsg:
		m.selectedFamily = msg.Family
		// Broadcast to all pages
		var cmds []tea.Cmd
		for id, page := range m.pages {
			newPage, cmd := page.Update(msg)
			m.pages[id] = newPage
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		// When picker is open, forward all keys to picker
		if m.picker != nil {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}

		// When a page has an active text input, forward all keys
		// directly to the page. Only ctrl+c still quits.
		if m.focus == FocusContent {
			if ic, ok := m.pages[m.activePage].(InputCapturer); ok && ic.InputCaptured() {
				if msg.String() == "ctrl+c" {
					return m, tea.Quit
				}
				page := m.pages[m.activePage]
				newPage, cmd := page.Update(msg)
				m.pages[m.activePage] = newPage
				return m, cmd
			}
		}

		// Global key handling
		switch {
		case key.Matches(msg, GlobalKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, GlobalKeys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, GlobalKeys.ToggleFocus):
			if m.focus == FocusSidebar {
				m.focus = FocusContent
				return m, nil
			}
			// When content focused, fall through to page handler
		}

		// Sidebar-only shortcuts
		if m.focus == FocusSidebar {
			if key.Matches(msg, GlobalKeys.PortPicker) {
				m.picker = NewPicker("Select Port")
				m.pickerFor = pickerPort
				contentWidth := m.width - sidebarWidth
				contentHeight := m.height - 2 - 1
				m.picker.SetSize(contentWidth, contentHeight)
				return m, listPorts(m.manager)
			}
			if key.Matches(msg, GlobalKeys.FamilyPicker) {
				m.picker = NewPicker("Select Family")
				m.pickerFor = pickerFamily
				contentWidth := m.width - sidebarWidth
				contentHeight := m.height - 2 - 1
				m.picker.SetSize(contentWidth, contentHeight)
				var items []PickerItem
				for _, f := range board.Families() {
					items = append(items, PickerItem{Label: f.DisplayName(), Value: string(f), Desc: f.FQBN()})
				}
				m.picker.SetItems(items)
				return m, nil
			}
		}

		// Handle arrow keys based on focus
		if m.focus == FocusSidebar {
			switch msg.String() {
			case "up":
				m.prevPage()
				return m, nil
			case "down":
				m.nextPage()
				return m, nil
			case "enter", "right":
				m.focus = FocusContent
				return m, nil
			}
		} else if m.focus == FocusContent {
			if msg.String() == "left" {
				m.focus = FocusSidebar
				return m, nil
			}
		}
	}

	// Key messages: only forward to active page when content is focused
	if _, isKey := msg.(tea.KeyMsg); isKey {
		if m.focus != FocusContent {
			return m, nil
		}
		page := m.pages[m.activePage]
		newPage, cmd := page.Update(msg)
		m.pages[m.activePage] = newPage
		return m, cmd
	}

	// Non-key messages (command results, serial ticks, etc.): forward to
	// all pages so responses reach the page that initiated the command
	var cmds []tea.Cmd
	for id, page := range m.pages {
		newPage, cmd := page.Update(msg)
		m.pages[id] = newPage
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	contentWidth := m.width - sidebarWidth
	contentHeight := m.height - 2 - 1 // status bar + port bar

	page := m.pages[m.activePage]

	portBar := renderPortBar(m.selectedPort, m.selectedFamily, m.width, m.focus == FocusSidebar)
	sidebar := renderSidebar(PageOrder, m.activePage, m.pages, contentHeight, m.focus == FocusSidebar)
	content := ui.ContentStyle.
		Width(contentWidth).
		Height(contentHeight).
		Render(page.View())

	// Overlay picker on content area when open
	if m.picker != nil {
		m.picker.SetSize(contentWidth, contentHeight)
		pickerView := m.picker.View()
		content = lipgloss.Place(
			contentWidth, contentHeight,
			lipgloss.Center, lipgloss.Center,
			pickerView,
		)
	}

	statusBar := renderStatusBar(page.ShortHelp(), m.width, m.focus)

	return renderLayout(portBar, sidebar, content, statusBar)
}

// familyFor returns the detected family for a port from the most recent
// enumeration.
func (m Model) familyFor(port string) board.Family {
	for _, p := range m.lastPorts {
		if p.Name == port {
			return p.Family
		}
	}
	return board.Unknown
}

func (m *Model) nextPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i+1)%len(PageOrder)]
			return
		}
	}
}

func (m *Model) prevPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			m.activePage = PageOrder[(i-1+len(PageOrder))%len(PageOrder)]
			return
		}
	}
}
