package arduino

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"

	"github.com/hadefuwa/eblocks-companion-app/internal/board"
)

// PortAuto defers port selection to the toolchain's own enumeration.
const PortAuto = "auto"

// PortArbiter is what the uploader needs from the serial side: to ask
// whether this process holds a port, and to make it let go. Satisfied by
// serial.Manager, whose Disconnect blocks through the settling delay.
type PortArbiter interface {
	Held(port string) bool
	Disconnect(port string) error
}

// UploadRequest describes one compile-and-flash run. It exists only for
// the duration of that run.
type UploadRequest struct {
	Source string // sketch source code, not a path
	Family board.Family
	Port   string // concrete identifier, or PortAuto
}

// UploadResult reports a completed upload. Port is the final resolved
// identifier so the caller can re-establish monitoring against it.
type UploadResult struct {
	Port     string
	Compile  Result
	Flash    Result
	Duration time.Duration
}

// Uploader sequences compile-and-flash operations. Flashing and
// monitoring are mutually exclusive uses of the same device, so before
// the toolchain touches a port the uploader releases any hold this
// process has on it, and checks again right before flashing because a
// monitor connection can appear during the multi-second compile.
type Uploader struct {
	cli      Invoker
	ports    PortArbiter
	log      *logrus.Entry
	extra    []string
	workRoot string
}

func NewUploader(cli Invoker, ports PortArbiter, log *logrus.Entry) *Uploader {
	return &Uploader{
		cli:      cli,
		ports:    ports,
		log:      log,
		workRoot: os.TempDir(),
	}
}

// SetCompileFlags parses flags shell-style and passes them to every
// compile invocation. An empty string clears them.
func (u *Uploader) SetCompileFlags(flags string) error {
	if strings.TrimSpace(flags) == "" {
		u.extra = nil
		return nil
	}
	parsed, err := shlex.Split(flags)
	if err != nil {
		return fmt.Errorf("extra compile flags: %v", err)
	}
	u.extra = parsed
	return nil
}

// SetWorkRoot overrides where sketch directories are materialized.
func (u *Uploader) SetWorkRoot(dir string) {
	u.workRoot = dir
}

// Upload compiles source for the requested family and flashes it to the
// resolved port. The sketch directory is removed on every exit path. On
// success the returned result names the port that was actually flashed.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	start := time.Now()
	log := u.log.WithFields(logrus.Fields{"family": req.Family, "port": req.Port})

	if req.Family == board.Unknown {
		return nil, fmt.Errorf("no board family selected")
	}
	if _, err := u.cli.Locate(); err != nil {
		return nil, err
	}

	// A port we hold for monitoring must be released before the
	// toolchain can claim it.
	if req.Port != PortAuto && u.ports.Held(req.Port) {
		log.Info("releasing monitored port for upload")
		if err := u.ports.Disconnect(req.Port); err != nil {
			return nil, err
		}
	}

	dir, err := u.materialize(req.Source)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	u.ensureCore(ctx, req.Family, log)

	args := []string{"compile", "--fqbn", req.Family.FQBN()}
	args = append(args, u.extra...)
	args = append(args, dir)
	compile, err := u.cli.Run(ctx, compileTimeout, args...)
	if err != nil {
		return nil, err
	}
	if compile.ExitCode != 0 {
		return nil, &CompileError{Result: compile}
	}

	port := req.Port
	if port == PortAuto {
		port, err = u.resolvePort(ctx)
		if err != nil {
			return nil, err
		}
		log = log.WithField("resolved", port)
	}

	// The compile takes long enough for the user to have reconnected the
	// monitor in the meantime.
	if u.ports.Held(port) {
		log.Info("port re-acquired during compile, releasing again")
		if err := u.ports.Disconnect(port); err != nil {
			return nil, err
		}
	}

	flash, err := u.cli.Run(ctx, uploadTimeout, "upload", "-p", port, "--fqbn", req.Family.FQBN(), dir)
	if err != nil {
		return nil, err
	}
	if flash.ExitCode != 0 {
		return nil, &UploadError{Result: flash}
	}

	log.WithField("duration", time.Since(start).Round(time.Millisecond)).Info("upload complete")
	return &UploadResult{
		Port:     port,
		Compile:  compile,
		Flash:    flash,
		Duration: time.Since(start),
	}, nil
}

// ensureCore installs the platform core for family. Best effort on both
// steps: a previously installed core is the common case, and if support
// is truly missing the compile that follows fails with the real message.
func (u *Uploader) ensureCore(ctx context.Context, family board.Family, log *logrus.Entry) {
	if res, err := u.cli.Run(ctx, updateIndexTimeout, "core", "update-index"); err != nil || res.ExitCode != 0 {
		log.WithError(err).WithField("exit", res.ExitCode).Warn("core index update failed")
	}
	if res, err := u.cli.Run(ctx, coreInstallTimeout, "core", "install", family.Core()); err != nil || res.ExitCode != 0 {
		log.WithError(err).WithField("exit", res.ExitCode).Warn("core install failed")
	}
}

// materialize writes source into a fresh sketch directory under workRoot.
// The .ino file must carry the directory's name for the toolchain to
// accept it. Timestamp naming keeps concurrent uploads apart.
func (u *Uploader) materialize(source string) (string, error) {
	name := fmt.Sprintf("sketch_%d", time.Now().UnixNano())
	dir := filepath.Join(u.workRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating sketch dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".ino"), []byte(source), 0o644); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("writing sketch: %v", err)
	}
	return dir, nil
}

// resolvePort asks the toolchain which ports it can see and picks one.
func (u *Uploader) resolvePort(ctx context.Context) (string, error) {
	res, err := u.cli.Run(ctx, boardListTimeout, "board", "list")
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w: board list exit %d: %s", ErrNoPortResolved, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return choosePort(parseBoardList(res.Stdout))
}
