package arduino

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/hadefuwa/eblocks-companion-app/internal/logging"
)

func TestLocateConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arduino-cli")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	cli := NewCLI(path, logging.Discard())
	got, err := cli.Locate()
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if got != path {
		t.Errorf("Locate = %q, want %q", got, path)
	}
}

func TestLocateConfiguredPathMissing(t *testing.T) {
	cli := NewCLI(filepath.Join(t.TempDir(), "nope"), logging.Discard())
	if _, err := cli.Locate(); !errors.Is(err, ErrToolchainNotFound) {
		t.Errorf("Locate error = %v, want ErrToolchainNotFound", err)
	}
}

func TestLocateNotFoundAnywhere(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cli := NewCLI("", logging.Discard())
	if _, err := cli.Locate(); !errors.Is(err, ErrToolchainNotFound) {
		t.Errorf("Locate error = %v, want ErrToolchainNotFound", err)
	}
}

// shCLI returns a runner whose "toolchain" is /bin/sh, for exercising the
// exec plumbing without arduino-cli installed.
func shCLI(t *testing.T) *CLI {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	return NewCLI("/bin/sh", logging.Discard())
}

func TestRunCapturesExitAndStreams(t *testing.T) {
	cli := shCLI(t)
	res, err := cli.Run(context.Background(), 10*time.Second,
		"-c", "echo out; echo err >&2; exit 3")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("Stdout = %q, want out", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Stderr = %q, want err", res.Stderr)
	}
}

func TestRunTimeout(t *testing.T) {
	cli := shCLI(t)
	_, err := cli.Run(context.Background(), 50*time.Millisecond, "-c", "sleep 5")
	if err == nil {
		t.Fatal("Run returned nil for a hung process")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Run error = %v, want timeout", err)
	}
}

func TestResultCombined(t *testing.T) {
	tests := []struct {
		res  Result
		want string
	}{
		{Result{Stdout: "a", Stderr: "b"}, "a\nb"},
		{Result{Stdout: "a"}, "a"},
		{Result{Stderr: "b"}, "b"},
		{Result{}, ""},
	}
	for _, tt := range tests {
		if got := tt.res.Combined(); got != tt.want {
			t.Errorf("Combined() = %q, want %q", got, tt.want)
		}
	}
}
