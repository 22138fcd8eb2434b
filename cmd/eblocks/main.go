package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hadefuwa/eblocks-companion-app/internal/app"
	"github.com/hadefuwa/eblocks-companion-app/internal/arduino"
	"github.com/hadefuwa/eblocks-companion-app/internal/config"
	"github.com/hadefuwa/eblocks-companion-app/internal/logging"
	"github.com/hadefuwa/eblocks-companion-app/internal/pages"
	"github.com/hadefuwa/eblocks-companion-app/internal/serial"
	"github.com/hadefuwa/eblocks-companion-app/internal/store"
)

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Load(cwd)

	stateDir := filepath.Join(cwd, ".eblocks")
	log, err := logging.New(filepath.Join(stateDir, "logs"), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	settle := serial.DefaultSettleDelay()
	if cfg.SettleDelayMS > 0 {
		settle = time.Duration(cfg.SettleDelayMS) * time.Millisecond
	} else if cfg.SettleDelayMS < 0 {
		settle = 0
	}

	manager := serial.NewManager(serial.NewRegistry(), settle, log)
	defer manager.CloseAll()

	cli := arduino.NewCLI(cfg.ArduinoCLIPath, log)
	uploader := arduino.NewUploader(cli, manager, log)
	if err := uploader.SetCompileFlags(cfg.ExtraCompileFlags); err != nil {
		log.WithError(err).Warn("ignoring malformed extra_compile_flags")
	}

	st := store.New(stateDir)

	pageMap := map[app.PageID]app.Page{
		app.PortsPage:    pages.NewPortsPage(manager, &cfg, cwd),
		app.MonitorPage:  pages.NewMonitorPage(st, cfg.SerialBaudRate, manager),
		app.UploadPage:   pages.NewUploadPage(st, uploader, &cfg, cwd),
		app.HistoryPage:  pages.NewHistoryPage(st),
		app.SettingsPage: pages.NewSettingsPage(&cfg, cwd),
	}

	model := app.New(pageMap, &cfg, cwd, manager)

	log.WithField("settle", settle).Info("starting companion app")

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
