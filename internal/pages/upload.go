package pages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"

	"github.com/hadefuwa/eblocks-companion-app/internal/app"
	"github.com/hadefuwa/eblocks-companion-app/internal/arduino"
	"github.com/hadefuwa/eblocks-companion-app/internal/board"
	"github.com/hadefuwa/eblocks-companion-app/internal/config"
	"github.com/hadefuwa/eblocks-companion-app/internal/store"
	"github.com/hadefuwa/eblocks-companion-app/internal/ui"
)

// sketchUploader runs one compile-and-flash sequence. Satisfied by
// arduino.Uploader; tests substitute a fake.
type sketchUploader interface {
	Upload(ctx context.Context, req arduino.UploadRequest) (*arduino.UploadResult, error)
}

type uploadField int

const (
	uploadFieldSource uploadField = iota
	uploadFieldFamily
	uploadFieldPort
	uploadFieldCount
)

type uploadState int

const (
	uploadStateIdle uploadState = iota
	uploadStateRunning
	uploadStateDone
)

const uploadLabelWidth = 8

type uploadFinishedMsg struct {
	result      *arduino.UploadResult
	err         error
	sketchBytes int
}

type UploadPage struct {
	store    *store.Store
	uploader sketchUploader
	cfg      *config.Config
	cwd      string

	sourceInput  textinput.Model
	family       board.Family
	selectedPort string
	portAuto     bool

	focusedField uploadField
	state        uploadState
	output       strings.Builder
	viewport     viewport.Model
	uploadStart  time.Time

	width, height int
	message       string
}

func NewUploadPage(s *store.Store, uploader sketchUploader, cfg *config.Config, cwd string) *UploadPage {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "path/to/sketch.ino"
	ti.CharLimit = 512
	ti.Focus()

	fam, _ := board.Parse(cfg.DefaultFamily)

	return &UploadPage{
		store:        s,
		uploader:     uploader,
		cfg:          cfg,
		cwd:          cwd,
		sourceInput:  ti,
		family:       fam,
		selectedPort: cfg.SerialPort,
		portAuto:     true,
		viewport:     viewport.New(0, 0),
	}
}

func (p *UploadPage) Init() tea.Cmd { return nil }

func (p *UploadPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p.handleKey(msg)

	case app.PortSelectedMsg:
		p.selectedPort = msg.Port
		if msg.Family != board.Unknown {
			p.family = msg.Family
		}
		return p, nil

	case app.FamilySelectedMsg:
		p.family = msg.Family
		return p, nil

	case uploadFinishedMsg:
		// A result that arrives after esc reset the page is stale.
		if p.state != uploadStateRunning {
			return p, nil
		}
		return p.finishUpload(msg)
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *UploadPage) handleKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	if p.state == uploadStateRunning {
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return p, cmd
	}

	switch msg.String() {
	case "tab":
		p.advanceField(1)
		return p, nil
	case "shift+tab":
		p.advanceField(-1)
		return p, nil
	case "ctrl+u":
		return p, p.startUpload()
	case "y":
		if !p.InputCaptured() && p.output.Len() > 0 {
			p.copyToClipboard()
			return p, nil
		}
	case "esc":
		if p.state == uploadStateDone {
			p.state = uploadStateIdle
			p.output.Reset()
			p.updateViewportContent()
			return p, nil
		}
		p.sourceInput.Blur()
		return p, nil
	}

	switch p.focusedField {
	case uploadFieldSource:
		switch msg.String() {
		case "enter":
			return p, p.startUpload()
		case "down":
			p.advanceField(1)
			return p, nil
		case "up":
			p.advanceField(-1)
			return p, nil
		}
		var cmd tea.Cmd
		p.sourceInput, cmd = p.sourceInput.Update(msg)
		return p, cmd

	case uploadFieldFamily:
		switch msg.String() {
		case "enter", " ":
			p.cycleFamily()
			return p, nil
		case "up":
			p.advanceField(-1)
			return p, nil
		case "down":
			p.advanceField(1)
			return p, nil
		}
		return p, nil

	case uploadFieldPort:
		switch msg.String() {
		case "enter", " ":
			if p.selectedPort != "" {
				p.portAuto = !p.portAuto
			}
			return p, nil
		case "up":
			p.advanceField(-1)
			return p, nil
		case "down":
			p.advanceField(1)
			return p, nil
		}
		return p, nil
	}

	return p, nil
}

func (p *UploadPage) advanceField(dir int) {
	if p.focusedField == uploadFieldSource {
		p.sourceInput.Blur()
	}
	p.focusedField = uploadField((int(p.focusedField) + int(uploadFieldCount) + dir) % int(uploadFieldCount))
	if p.focusedField == uploadFieldSource {
		p.sourceInput.Focus()
	}
}

func (p *UploadPage) cycleFamily() {
	families := board.Families()
	for i, f := range families {
		if f == p.family {
			p.family = families[(i+1)%len(families)]
			return
		}
	}
	p.family = families[0]
}

// portValue is what the upload request will carry.
func (p *UploadPage) portValue() string {
	if p.portAuto || p.selectedPort == "" {
		return arduino.PortAuto
	}
	return p.selectedPort
}

func (p *UploadPage) startUpload() tea.Cmd {
	source := strings.TrimSpace(p.sourceInput.Value())
	if source == "" {
		p.message = "Sketch path is required"
		return nil
	}
	if p.family == board.Unknown {
		p.message = "Select a board family first"
		return nil
	}
	// Resolve relative sketch paths against the original CWD
	if !filepath.IsAbs(source) {
		source = filepath.Join(p.cwd, source)
	}

	req := arduino.UploadRequest{
		Family: p.family,
		Port:   p.portValue(),
	}

	p.state = uploadStateRunning
	p.output.Reset()
	p.uploadStart = time.Now()
	p.message = ""
	p.output.WriteString(fmt.Sprintf("Uploading %s for %s (port: %s)...\n\n",
		filepath.Base(source), p.family.DisplayName(), req.Port))
	p.updateViewportContent()

	uploader := p.uploader
	return func() tea.Msg {
		code, err := os.ReadFile(source)
		if err != nil {
			return uploadFinishedMsg{err: fmt.Errorf("reading sketch: %w", err)}
		}
		req.Source = string(code)
		res, err := uploader.Upload(context.Background(), req)
		return uploadFinishedMsg{result: res, err: err, sketchBytes: len(code)}
	}
}

func (p *UploadPage) finishUpload(msg uploadFinishedMsg) (app.Page, tea.Cmd) {
	p.state = uploadStateDone
	wasAuto := p.portValue() == arduino.PortAuto

	record := store.UploadRecord{
		Family:      string(p.family),
		Port:        p.portValue(),
		Timestamp:   p.uploadStart,
		Success:     msg.err == nil,
		Duration:    time.Since(p.uploadStart).Round(time.Millisecond).String(),
		SketchBytes: msg.sketchBytes,
	}

	var followUp tea.Cmd
	if msg.err == nil {
		res := msg.result
		record.Port = res.Port
		record.Duration = res.Duration.Round(time.Millisecond).String()
		p.message = fmt.Sprintf("Upload complete in %s", res.Duration.Round(time.Millisecond))
		p.output.WriteString(res.Compile.Combined())
		p.output.WriteString(res.Flash.Combined())
		p.output.WriteString("\n" + p.message + "\n")
		if wasAuto && res.Port != "" {
			family := p.family
			followUp = func() tea.Msg {
				return app.PortSelectedMsg{Port: res.Port, Family: family}
			}
		}
	} else {
		record.Message = msg.err.Error()
		p.message = p.describeFailure(msg.err)
		p.output.WriteString("\n" + p.message + "\n")
	}

	p.updateViewportContent()
	p.viewport.GotoBottom()

	if p.store != nil {
		p.store.AddUpload(record)
	}

	// Persist last family and port to config
	if msg.err == nil {
		p.cfg.DefaultFamily = string(p.family)
		if port := p.portValue(); port != arduino.PortAuto {
			p.cfg.SerialPort = port
		}
		config.Save(*p.cfg, p.cwd, false)
	}
	return p, followUp
}

// describeFailure turns the upload error into a status line and appends
// any captured toolchain output so the compiler diagnostics are visible.
func (p *UploadPage) describeFailure(err error) string {
	var ce *arduino.CompileError
	if errors.As(err, &ce) {
		p.output.WriteString(ce.Result.Combined())
		return fmt.Sprintf("Compile failed (exit %d)", ce.Result.ExitCode)
	}
	var ue *arduino.UploadError
	if errors.As(err, &ue) {
		p.output.WriteString(ue.Result.Combined())
		return fmt.Sprintf("Flash failed (exit %d)", ue.Result.ExitCode)
	}
	if errors.Is(err, arduino.ErrToolchainNotFound) {
		return fmt.Sprintf("arduino-cli not found: %v", err)
	}
	if errors.Is(err, arduino.ErrNoPortResolved) {
		return "No board detected. Connect the device or pick a port."
	}
	return fmt.Sprintf("Upload failed: %v", err)
}

func (p *UploadPage) View() string {
	formHeight := 10
	outputHeight := p.height - formHeight - 1
	if outputHeight < 5 {
		outputHeight = 5
		formHeight = p.height - outputHeight - 1
	}

	form := p.viewForm(p.width)
	output := p.viewOutput(p.width, outputHeight)

	return lipgloss.JoinVertical(lipgloss.Left, form, output)
}

func (p *UploadPage) viewForm(width int) string {
	var b strings.Builder
	b.WriteString(ui.Title("Upload"))
	b.WriteString("\n")

	if p.message != "" {
		b.WriteString(p.message + "\n\n")
	}

	inputWidth := width - uploadLabelWidth - 4
	if inputWidth < 10 {
		inputWidth = 10
	}
	p.sourceInput.Width = inputWidth

	focusedLabel := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true)
	normalLabel := lipgloss.NewStyle().Foreground(ui.Text)

	renderLabel := func(name string, field uploadField) string {
		padded := fmt.Sprintf("%-*s", uploadLabelWidth, name)
		if p.focusedField == field {
			return focusedLabel.Render(padded)
		}
		return normalLabel.Render(padded)
	}

	b.WriteString(renderLabel("Sketch", uploadFieldSource) + " " + p.sourceInput.View() + "\n")

	familyVal := ui.DimStyle.Render("(press enter to choose)")
	if p.family != board.Unknown {
		familyVal = p.family.DisplayName() + "  " + ui.DimStyle.Render(p.family.FQBN())
	}
	b.WriteString(renderLabel("Family", uploadFieldFamily) + " " + familyVal + "\n")

	portVal := "auto " + ui.DimStyle.Render("(detect at upload)")
	if !p.portAuto && p.selectedPort != "" {
		portVal = p.selectedPort
	} else if p.selectedPort != "" {
		portVal = "auto " + ui.DimStyle.Render(fmt.Sprintf("(enter: use %s)", p.selectedPort))
	}
	b.WriteString(renderLabel("Port", uploadFieldPort) + " " + portVal + "\n")

	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render("ctrl+u: upload  tab: next field  esc: unfocus"))
	return b.String()
}

func (p *UploadPage) viewOutput(width int, height int) string {
	contentWidth := width - 3
	contentHeight := height - 2
	if contentWidth < 10 {
		contentWidth = 10
	}
	if contentHeight < 3 {
		contentHeight = 3
	}

	oldWidth := p.viewport.Width
	p.viewport.Width = contentWidth
	p.viewport.Height = contentHeight

	if oldWidth != contentWidth && p.output.Len() > 0 {
		p.updateViewportContent()
	}

	style := lipgloss.NewStyle().
		Width(width).
		Height(height).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderTop(true).
		BorderForeground(ui.Surface).
		PaddingLeft(1)

	if p.output.Len() == 0 {
		return style.Render(ui.DimStyle.Render("Toolchain output will appear here..."))
	}
	return style.Render(p.viewport.View())
}

func (p *UploadPage) updateViewportContent() {
	if p.viewport.Width <= 0 {
		p.viewport.SetContent(p.output.String())
		return
	}
	// Hard wrap handles long compiler paths that contain no spaces
	wrapped := wrap.String(p.output.String(), p.viewport.Width)
	lines := strings.Split(wrapped, "\n")
	for i, line := range lines {
		if ansi.PrintableRuneWidth(line) > p.viewport.Width {
			lines[i] = truncate.String(line, uint(p.viewport.Width))
		}
	}
	p.viewport.SetContent(strings.Join(lines, "\n"))
}

func (p *UploadPage) copyToClipboard() {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		// Try wl-copy (Wayland) first, fall back to xclip (X11)
		if _, err := exec.LookPath("wl-copy"); err == nil {
			cmd = exec.Command("wl-copy")
		} else {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		}
	default:
		p.message = "Clipboard copy not supported on this platform"
		return
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		p.message = fmt.Sprintf("Failed to copy: %v", err)
		return
	}

	if err := cmd.Start(); err != nil {
		p.message = fmt.Sprintf("Failed to copy: %v", err)
		return
	}

	if _, err := stdin.Write([]byte(p.output.String())); err != nil {
		p.message = fmt.Sprintf("Failed to copy: %v", err)
		stdin.Close()
		cmd.Wait()
		return
	}
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		p.message = fmt.Sprintf("Failed to copy: %v", err)
		return
	}

	p.message = "Upload output copied to clipboard"
}

func (p *UploadPage) Name() string { return "Upload" }

func (p *UploadPage) ShortHelp() []key.Binding {
	if p.state == uploadStateRunning {
		return []key.Binding{
			key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "scroll")),
		}
	}
	bindings := []key.Binding{
		key.NewBinding(key.WithKeys("ctrl+u"), key.WithHelp("ctrl+u", "upload")),
		key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "unfocus")),
	}
	if p.output.Len() > 0 {
		bindings = append(bindings, key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy output")))
	}
	return bindings
}

func (p *UploadPage) InputCaptured() bool {
	return p.state != uploadStateRunning &&
		p.focusedField == uploadFieldSource && p.sourceInput.Focused()
}

func (p *UploadPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
