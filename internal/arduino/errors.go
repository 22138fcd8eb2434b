package arduino

import (
	"errors"
	"fmt"
)

var (
	// ErrToolchainNotFound means no arduino-cli executable could be
	// resolved from the configured path, the bundled copy or PATH.
	ErrToolchainNotFound = errors.New("arduino-cli not found")

	// ErrNoPortResolved means automatic port selection found no plausible
	// board among the toolchain's detected ports.
	ErrNoPortResolved = errors.New("no upload port resolved")
)

// CompileError reports a compile step that exited non-zero. The Result
// carries the compiler's own output so the user sees the actual
// diagnostics, not a generic message.
type CompileError struct {
	Result Result
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile failed (exit %d)", e.Result.ExitCode)
}

// UploadError reports a flash step that exited non-zero. Kept distinct
// from CompileError: here the code was valid and the board could not be
// programmed, which calls for different user action.
type UploadError struct {
	Result Result
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed (exit %d)", e.Result.ExitCode)
}
