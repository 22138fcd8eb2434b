// Package arduino drives the external arduino-cli toolchain: locating the
// executable, running it with timeouts, and sequencing compile-and-flash
// uploads around the serial-port registry.
package arduino

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Subprocess timeouts. Every toolchain call gets one; a hung external
// process must never hang the app.
const (
	versionTimeout     = 15 * time.Second
	boardListTimeout   = 30 * time.Second
	updateIndexTimeout = 2 * time.Minute
	coreInstallTimeout = 10 * time.Minute
	compileTimeout     = 5 * time.Minute
	uploadTimeout      = 3 * time.Minute
)

// Result captures one toolchain invocation. Stdout and stderr are kept
// separate so compile diagnostics can be surfaced verbatim.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Combined returns stdout and stderr concatenated for display.
func (r Result) Combined() string {
	switch {
	case r.Stderr == "":
		return r.Stdout
	case r.Stdout == "":
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Invoker runs the toolchain. Satisfied by CLI and by test fakes.
type Invoker interface {
	Locate() (string, error)
	Run(ctx context.Context, timeout time.Duration, args ...string) (Result, error)
}

// CLI locates and runs the real arduino-cli executable.
type CLI struct {
	override string
	log      *logrus.Entry

	mu       sync.Mutex
	resolved string
}

// NewCLI returns a runner. path, when non-empty, pins the executable
// location and skips discovery.
func NewCLI(path string, log *logrus.Entry) *CLI {
	return &CLI{override: path, log: log}
}

func exeName() string {
	if runtime.GOOS == "windows" {
		return "arduino-cli.exe"
	}
	return "arduino-cli"
}

// Locate resolves the toolchain executable: the configured path first,
// then a copy shipped beside this binary, then PATH. The result is cached
// for the life of the process.
func (c *CLI) Locate() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved != "" {
		return c.resolved, nil
	}

	if c.override != "" {
		if _, err := os.Stat(c.override); err != nil {
			return "", fmt.Errorf("%w: configured path %s: %v", ErrToolchainNotFound, c.override, err)
		}
		c.resolved = c.override
		return c.resolved, nil
	}

	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), exeName())
		if _, err := os.Stat(bundled); err == nil {
			c.resolved = bundled
			return c.resolved, nil
		}
	}

	if path, err := exec.LookPath(exeName()); err == nil {
		c.resolved = path
		return c.resolved, nil
	}

	return "", fmt.Errorf("%w: install it or set arduino_cli_path in the config", ErrToolchainNotFound)
}

// Run executes the toolchain with args. A non-zero exit is a valid Result
// here, not an error; callers decide what each exit code means. Errors are
// reserved for a missing executable, a failure to start, and the timeout.
func (c *CLI) Run(ctx context.Context, timeout time.Duration, args ...string) (Result, error) {
	path, err := c.Locate()
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if runErr != nil {
		// The kill on deadline also surfaces as an ExitError, so check
		// the context first.
		if ctx.Err() == context.DeadlineExceeded {
			return res, fmt.Errorf("arduino-cli %s: timed out after %v", args[0], timeout)
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return res, fmt.Errorf("arduino-cli %s: %v", args[0], runErr)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	c.log.WithFields(logrus.Fields{
		"args":     strings.Join(args, " "),
		"exit":     res.ExitCode,
		"duration": res.Duration.Round(time.Millisecond),
	}).Debug("toolchain run")
	return res, nil
}

// Version reports the toolchain's version string, as a cheap probe that
// the executable works at all.
func (c *CLI) Version(ctx context.Context) (string, error) {
	res, err := c.Run(ctx, versionTimeout, "version")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("arduino-cli version: exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}
