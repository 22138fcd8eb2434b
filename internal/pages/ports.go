package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hadefuwa/eblocks-companion-app/internal/app"
	"github.com/hadefuwa/eblocks-companion-app/internal/board"
	"github.com/hadefuwa/eblocks-companion-app/internal/config"
	"github.com/hadefuwa/eblocks-companion-app/internal/serial"
	"github.com/hadefuwa/eblocks-companion-app/internal/ui"
)

// portsLoadedMsg carries a fresh enumeration. It is broadcast, so both
// the ports page and the monitor page pick it up from a single scan.
type portsLoadedMsg struct {
	ports []serial.PortInfo
	err   error
}

type PortsPage struct {
	manager portManager
	cfg     *config.Config
	root    string

	ports   []serial.PortInfo
	cursor  int
	loading bool

	selectedPort  string
	width, height int
	message       string
}

func NewPortsPage(manager portManager, cfg *config.Config, root string) *PortsPage {
	return &PortsPage{manager: manager, cfg: cfg, root: root, loading: true}
}

func (p *PortsPage) Init() tea.Cmd {
	return p.refresh()
}

func (p *PortsPage) refresh() tea.Cmd {
	return func() tea.Msg {
		ports, err := p.manager.ListPorts()
		return portsLoadedMsg{ports: ports, err: err}
	}
}

func (p *PortsPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case portsLoadedMsg:
		p.loading = false
		if msg.err != nil {
			p.message = fmt.Sprintf("Port scan failed: %v", msg.err)
			return p, nil
		}
		p.message = ""
		p.ports = msg.ports
		if p.cursor >= len(p.ports) {
			p.cursor = len(p.ports) - 1
		}
		if p.cursor < 0 {
			p.cursor = 0
		}
		return p, nil

	case app.PortSelectedMsg:
		p.selectedPort = msg.Port
		return p, nil

	case tea.KeyMsg:
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
			p.loading = true
			return p, p.refresh()
		case "enter":
			if len(p.ports) == 0 {
				return p, nil
			}
			target := p.ports[p.cursor]
			p.cfg.SerialPort = target.Name
			if target.Family != board.Unknown {
				p.cfg.DefaultFamily = string(target.Family)
			}
			config.Save(*p.cfg, p.root, false)
			return p, func() tea.Msg {
				return app.PortSelectedMsg{Port: target.Name, Family: target.Family}
			}
		}
	}
	return p, nil
}

func (p *PortsPage) View() string {
	var b strings.Builder
	b.WriteString(ui.Title("Ports"))
	b.WriteString("\n")

	if p.loading {
		b.WriteString(ui.DimStyle.Render("  Scanning ports..."))
		b.WriteString("\n")
		return b.String()
	}

	if p.message != "" {
		b.WriteString("  " + ui.ErrorBadge("Error") + " " + p.message + "\n")
		return b.String()
	}

	if len(p.ports) == 0 {
		b.WriteString(ui.DimStyle.Render("  No serial ports detected. Press r to rescan."))
		b.WriteString("\n")
		return b.String()
	}

	for i, port := range p.ports {
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}

		name := fmt.Sprintf("%-24s", port.Name)
		if port.Name == p.selectedPort {
			name = ui.BoldStyle.Render(name)
		}

		line := "  " + cursor + name + " " + p.describe(port)
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render(fmt.Sprintf("  %d port(s). Enter selects the upload/monitor target.", len(p.ports))))
	b.WriteString("\n")
	return b.String()
}

// describe renders the classification column for one port.
func (p *PortsPage) describe(port serial.PortInfo) string {
	var parts []string

	if port.Family != board.Unknown {
		parts = append(parts, ui.Badge(port.Family.DisplayName(), ui.Secondary))
	} else if port.Desc.Product != "" {
		parts = append(parts, ui.DimStyle.Render(port.Desc.Product))
	} else if !port.IsUSB {
		parts = append(parts, ui.DimStyle.Render("built-in"))
	}

	if port.IsUSB && port.Desc.VID != "" {
		parts = append(parts, ui.DimStyle.Render(port.Desc.VID+":"+port.Desc.PID))
	}
	if port.Held {
		parts = append(parts, ui.WarnBadge("monitoring"))
	}

	return strings.Join(parts, " ")
}

func (p *PortsPage) Name() string { return "Ports" }

func (p *PortsPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
	}
}

func (p *PortsPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
