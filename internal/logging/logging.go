// Package logging configures the process-wide log sink.
//
// Logs go to a file, never to stdout or stderr, because the terminal is
// owned by the TUI while the app runs.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileName is the log file created under the log directory.
const FileName = "companion.log"

// New returns a logger entry appending to dir/companion.log at the given
// level. Unparseable levels fall back to info.
func New(dir, level string) (*logrus.Entry, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	logger.SetOutput(f)

	return logrus.NewEntry(logger), nil
}

// Discard returns an entry that drops everything. For tests.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
