package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hadefuwa/eblocks-companion-app/internal/app"
	"github.com/hadefuwa/eblocks-companion-app/internal/store"
	"github.com/hadefuwa/eblocks-companion-app/internal/ui"
)

type historySection int

const (
	historyUploads historySection = iota
	historySessions
)

type historyLoadedMsg struct {
	uploads  []store.UploadRecord
	sessions []store.MonitorSession
	err      error
}

type HistoryPage struct {
	store *store.Store

	section  historySection
	uploads  []store.UploadRecord
	sessions []store.MonitorSession
	cursor   int
	loaded   bool

	width, height int
	message       string
}

func NewHistoryPage(s *store.Store) *HistoryPage {
	return &HistoryPage{store: s}
}

func (p *HistoryPage) Init() tea.Cmd {
	return p.load()
}

func (p *HistoryPage) load() tea.Cmd {
	return func() tea.Msg {
		uploads, err := p.store.Uploads()
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		sessions, err := p.store.MonitorSessions()
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		return historyLoadedMsg{uploads: uploads, sessions: sessions}
	}
}

func (p *HistoryPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		p.loaded = true
		if msg.err != nil {
			p.message = fmt.Sprintf("Failed to load history: %v", msg.err)
			return p, nil
		}
		p.message = ""
		// Records are stored oldest first; show newest first
		p.uploads = reversed(msg.uploads)
		p.sessions = reversed(msg.sessions)
		p.clampCursor()
		return p, nil

	case uploadFinishedMsg, monitorDisconnectedMsg:
		// Something new was just recorded
		return p, p.load()

	case tea.KeyMsg:
		switch msg.String() {
		case "u":
			p.section = historyUploads
			p.cursor = 0
		case "m":
			p.section = historySessions
			p.cursor = 0
		case "r":
			return p, p.load()
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
		case "down":
			if p.cursor < p.sectionLen()-1 {
				p.cursor++
			}
		}
	}
	return p, nil
}

func reversed[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}

func (p *HistoryPage) sectionLen() int {
	if p.section == historySessions {
		return len(p.sessions)
	}
	return len(p.uploads)
}

func (p *HistoryPage) clampCursor() {
	if p.cursor >= p.sectionLen() {
		p.cursor = p.sectionLen() - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

func (p *HistoryPage) View() string {
	var b strings.Builder
	b.WriteString(ui.Title("History"))
	b.WriteString("\n")

	tabs := p.renderTabs()
	b.WriteString("  " + tabs + "\n\n")

	if !p.loaded {
		b.WriteString(ui.DimStyle.Render("  Loading history..."))
		b.WriteString("\n")
		return b.String()
	}

	if p.message != "" {
		b.WriteString("  " + p.message + "\n")
		return b.String()
	}

	if p.section == historySessions {
		p.viewSessions(&b)
	} else {
		p.viewUploads(&b)
	}
	return b.String()
}

func (p *HistoryPage) renderTabs() string {
	uploads := fmt.Sprintf("Uploads (%d)", len(p.uploads))
	sessions := fmt.Sprintf("Monitor Sessions (%d)", len(p.sessions))
	if p.section == historyUploads {
		return ui.BoldStyle.Render(uploads) + "   " + ui.DimStyle.Render(sessions)
	}
	return ui.DimStyle.Render(uploads) + "   " + ui.BoldStyle.Render(sessions)
}

func (p *HistoryPage) viewUploads(b *strings.Builder) {
	if len(p.uploads) == 0 {
		b.WriteString(ui.DimStyle.Render("  No uploads recorded yet."))
		b.WriteString("\n")
		return
	}

	start, end := p.window(len(p.uploads))
	for i := start; i < end; i++ {
		r := p.uploads[i]
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}

		badge := ui.SuccessBadge("OK")
		if !r.Success {
			badge = ui.ErrorBadge("FAIL")
		}

		line := fmt.Sprintf("  %s%s %s  %-10s %-16s %s",
			cursor,
			r.Timestamp.Format("2006-01-02 15:04"),
			badge,
			r.Family,
			r.Port,
			ui.DimStyle.Render(r.Duration),
		)
		b.WriteString(line + "\n")

		if i == p.cursor && r.Message != "" {
			b.WriteString("      " + ui.DimStyle.Render(r.Message) + "\n")
		}
	}
}

func (p *HistoryPage) viewSessions(b *strings.Builder) {
	if len(p.sessions) == 0 {
		b.WriteString(ui.DimStyle.Render("  No monitor sessions recorded yet."))
		b.WriteString("\n")
		return
	}

	start, end := p.window(len(p.sessions))
	for i := start; i < end; i++ {
		s := p.sessions[i]
		cursor := "  "
		if i == p.cursor {
			cursor = ui.BoldStyle.Render("> ")
		}

		line := fmt.Sprintf("  %s%s  %-16s @ %-7d %-10s %s",
			cursor,
			s.StartedAt.Format("2006-01-02 15:04"),
			s.Port,
			s.BaudRate,
			s.Duration,
			ui.DimStyle.Render(fmt.Sprintf("%d lines", s.Lines)),
		)
		b.WriteString(line + "\n")
	}
}

// window returns the visible slice bounds, keeping the cursor in view.
func (p *HistoryPage) window(count int) (int, int) {
	visible := p.height - 6
	if visible < 3 {
		visible = 3
	}
	if visible > count {
		visible = count
	}

	start := 0
	if p.cursor >= visible {
		start = p.cursor - visible + 1
	}
	end := start + visible
	if end > count {
		end = count
		start = end - visible
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

func (p *HistoryPage) Name() string { return "History" }

func (p *HistoryPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "uploads")),
		key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "sessions")),
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	}
}

func (p *HistoryPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
