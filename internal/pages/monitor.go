package pages

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hadefuwa/eblocks-companion-app/internal/app"
	"github.com/hadefuwa/eblocks-companion-app/internal/board"
	"github.com/hadefuwa/eblocks-companion-app/internal/serial"
	"github.com/hadefuwa/eblocks-companion-app/internal/store"
	"github.com/hadefuwa/eblocks-companion-app/internal/ui"
)

// portManager is the slice of serial.Manager the pages need. Tests
// substitute a fake.
type portManager interface {
	Connect(port string, baud int) (*serial.Connection, error)
	Disconnect(port string) error
	Write(port string, data []byte) error
	Drain(port string) []string
	ListPorts() ([]serial.PortInfo, error)
}

type monitorState int

const (
	monitorStatePortSelect monitorState = iota
	monitorStateConnected
)

// monitorPollInterval paces the drain ticks. The read loop buffers lines
// between ticks, so nothing is lost if a tick arrives late.
const monitorPollInterval = 100 * time.Millisecond

// maxScrollback bounds the on-screen history independently of the
// receive buffer.
const maxScrollback = 2000

type monitorConnectedMsg struct {
	portName string
	baudRate int
	err      error
}

type monitorTickMsg struct {
	portName string
}

type monitorDisconnectedMsg struct {
	err error
}

type monitorWroteMsg struct {
	err error
}

type MonitorPage struct {
	store   *store.Store
	manager portManager

	state         monitorState
	ports         []serial.PortInfo
	cursor        int
	preferredPort string
	disconnecting bool

	portName     string
	baudRate     int
	defaultBaud  int
	sessionStart time.Time
	lineCount    int

	lines      []string
	viewport   viewport.Model
	autoScroll bool
	input      textinput.Model

	width, height int
	message       string
}

func NewMonitorPage(s *store.Store, defaultBaud int, manager portManager) *MonitorPage {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "send a line"
	ti.CharLimit = 256

	return &MonitorPage{
		store:       s,
		manager:     manager,
		defaultBaud: defaultBaud,
		viewport:    viewport.New(0, 0),
		autoScroll:  true,
		input:       ti,
	}
}

func (p *MonitorPage) Init() tea.Cmd {
	return p.loadPorts()
}

func (p *MonitorPage) loadPorts() tea.Cmd {
	return func() tea.Msg {
		ports, err := p.manager.ListPorts()
		return portsLoadedMsg{ports: ports, err: err}
	}
}

func (p *MonitorPage) connect(portName string, baud int) tea.Cmd {
	return func() tea.Msg {
		_, err := p.manager.Connect(portName, baud)
		return monitorConnectedMsg{portName: portName, baudRate: baud, err: err}
	}
}

// disconnect closes the port off the event loop. Disconnect blocks
// through the settling delay, which would freeze the UI if run inline.
func (p *MonitorPage) disconnect(portName string, start time.Time, lines int) tea.Cmd {
	return func() tea.Msg {
		err := p.manager.Disconnect(portName)
		if p.store != nil {
			p.store.AddMonitorSession(store.MonitorSession{
				Port:      portName,
				BaudRate:  p.baudRate,
				StartedAt: start,
				Duration:  time.Since(start).Round(time.Millisecond).String(),
				Lines:     lines,
			})
		}
		return monitorDisconnectedMsg{err: err}
	}
}

func (p *MonitorPage) tick() tea.Cmd {
	portName := p.portName
	return tea.Tick(monitorPollInterval, func(time.Time) tea.Msg {
		return monitorTickMsg{portName: portName}
	})
}

func (p *MonitorPage) send(line string) tea.Cmd {
	portName := p.portName
	return func() tea.Msg {
		err := p.manager.Write(portName, []byte(line+"\n"))
		return monitorWroteMsg{err: err}
	}
}

func (p *MonitorPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case portsLoadedMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Port scan failed: %v", msg.err)
			return p, nil
		}
		p.ports = msg.ports
		p.moveCursorTo(p.preferredPort)
		if p.cursor >= len(p.ports) {
			p.cursor = len(p.ports) - 1
		}
		if p.cursor < 0 {
			p.cursor = 0
		}
		return p, nil

	case app.PortSelectedMsg:
		p.preferredPort = msg.Port
		p.moveCursorTo(msg.Port)
		return p, nil

	case monitorConnectedMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Failed to connect: %v", msg.err)
			return p, nil
		}
		p.state = monitorStateConnected
		p.portName = msg.portName
		p.baudRate = msg.baudRate
		p.sessionStart = time.Now()
		p.lineCount = 0
		p.lines = nil
		p.viewport.SetContent("")
		p.autoScroll = true
		p.message = fmt.Sprintf("Connected to %s @ %d", msg.portName, msg.baudRate)
		return p, tea.Batch(p.input.Focus(), p.tick())

	case monitorTickMsg:
		// Ticks from a previous session keep arriving after disconnect.
		if p.state != monitorStateConnected || msg.portName != p.portName {
			return p, nil
		}
		drained := p.manager.Drain(p.portName)
		if len(drained) > 0 {
			p.lineCount += len(drained)
			p.lines = append(p.lines, drained...)
			if len(p.lines) > maxScrollback {
				p.lines = p.lines[len(p.lines)-maxScrollback:]
			}
			p.viewport.SetContent(strings.Join(p.lines, "\n"))
			if p.autoScroll {
				p.viewport.GotoBottom()
			}
		}
		return p, p.tick()

	case monitorDisconnectedMsg:
		p.disconnecting = false
		if msg.err != nil {
			p.message = fmt.Sprintf("Disconnect error: %v", msg.err)
		} else {
			p.message = "Disconnected"
		}
		return p, p.loadPorts()

	case monitorWroteMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Write failed: %v", msg.err)
		}
		return p, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *MonitorPage) handleKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	if p.state == monitorStatePortSelect {
		switch msg.String() {
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "down":
			if p.cursor < len(p.ports)-1 {
				p.cursor++
			}
		case "r":
			return p, p.loadPorts()
		case "enter":
			if p.disconnecting || len(p.ports) == 0 {
				return p, nil
			}
			target := p.ports[p.cursor]
			if target.Held {
				p.message = fmt.Sprintf("%s is already being monitored", target.Name)
				return p, nil
			}
			p.message = fmt.Sprintf("Connecting to %s...", target.Name)
			return p, p.connect(target.Name, p.defaultBaud)
		}
		return p, nil
	}

	if p.input.Focused() {
		switch msg.String() {
		case "enter":
			line := p.input.Value()
			if line == "" {
				return p, nil
			}
			p.input.SetValue("")
			return p, p.send(line)
		case "esc":
			p.input.Blur()
			return p, nil
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return p, cmd
	}

	switch msg.String() {
	case "d":
		return p, p.beginDisconnect()
	case "s":
		p.autoScroll = !p.autoScroll
		if p.autoScroll {
			p.viewport.GotoBottom()
		}
		return p, nil
	case "c":
		p.lines = nil
		p.lineCount = 0
		p.viewport.SetContent("")
		return p, nil
	case "i", "enter":
		return p, p.input.Focus()
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *MonitorPage) beginDisconnect() tea.Cmd {
	portName := p.portName
	start := p.sessionStart
	lines := p.lineCount

	p.state = monitorStatePortSelect
	p.disconnecting = true
	p.portName = ""
	p.input.Blur()
	p.input.SetValue("")
	p.message = "Disconnecting..."

	return p.disconnect(portName, start, lines)
}

// moveCursorTo points the selection at the named port if it is listed.
func (p *MonitorPage) moveCursorTo(portName string) {
	if portName == "" {
		return
	}
	for i, port := range p.ports {
		if port.Name == portName {
			p.cursor = i
			return
		}
	}
}

func (p *MonitorPage) View() string {
	if p.state == monitorStateConnected {
		return p.viewConnected()
	}
	return p.viewPortSelect()
}

func (p *MonitorPage) viewPortSelect() string {
	var b strings.Builder
	b.WriteString(ui.Title("Monitor"))
	b.WriteString("\n")

	if p.message != "" {
		b.WriteString("  " + p.message + "\n\n")
	}

	if len(p.ports) == 0 {
		b.WriteString(ui.DimStyle.Render("  No serial ports detected. Press r to rescan."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("  Select a port:\n\n")
	for i, port := range p.ports {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}

		label := fmt.Sprintf("%-24s", port.Name)
		desc := port.Desc.Product
		if port.Family != board.Unknown {
			desc = port.Family.DisplayName()
		}
		line := "  " + cursor + label + " " + ui.DimStyle.Render(desc)
		if port.Held {
			line += " " + ui.WarnBadge("monitoring")
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render(fmt.Sprintf("  Baud rate: %d", p.defaultBaud)))
	b.WriteString("\n")
	return b.String()
}

func (p *MonitorPage) viewConnected() string {
	var b strings.Builder
	b.WriteString(ui.Title("Monitor"))
	b.WriteString("\n")

	header := fmt.Sprintf("  %s @ %d", p.portName, p.baudRate)
	header += ui.DimStyle.Render(fmt.Sprintf("  (%d lines)", p.lineCount))
	if !p.autoScroll {
		header += " " + ui.WarnBadge("scroll paused")
	}
	b.WriteString(header + "\n\n")

	if len(p.lines) == 0 {
		b.WriteString(ui.DimStyle.Render("  Waiting for data..."))
		b.WriteString("\n")
	} else {
		b.WriteString(p.viewport.View())
		b.WriteString("\n")
	}

	b.WriteString("\n  " + p.input.View() + "\n")

	if p.message != "" {
		b.WriteString("\n  " + ui.DimStyle.Render(p.message) + "\n")
	}
	return b.String()
}

func (p *MonitorPage) Name() string { return "Monitor" }

func (p *MonitorPage) ShortHelp() []key.Binding {
	if p.state == monitorStateConnected {
		if p.input.Focused() {
			return []key.Binding{
				key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
				key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "unfocus")),
			}
		}
		return []key.Binding{
			key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
			key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scroll")),
			key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
			key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "input")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
	}
}

func (p *MonitorPage) InputCaptured() bool {
	return p.state == monitorStateConnected && p.input.Focused()
}

func (p *MonitorPage) SetSize(w, h int) {
	p.width = w
	p.height = h
	vpHeight := h - 8
	if vpHeight < 3 {
		vpHeight = 3
	}
	p.viewport.Width = w - 4
	p.viewport.Height = vpHeight
}
