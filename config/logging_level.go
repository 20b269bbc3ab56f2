package config

import (
	"io"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/logging"
)

// LogConfig selects the log level and an optional rotating log file.
type LogConfig struct {
	Level logging.Level               `json:"level"`
	File  *logging.FileAppenderConfig `json:"file,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (lc *LogConfig) Validate(path string) error {
	if lc.File != nil && lc.File.Filename == "" {
		return utils.NewConfigValidationError(path, errors.New("file.filename is required when file logging is on"))
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the process logger. The command line debug flag wins over the configured
// level. The returned closer flushes and closes the log file, if any.
func NewLogger(name string, lc LogConfig, cmdLineDebugFlag bool) (logging.Logger, io.Closer) {
	logger := logging.NewLogger(name)
	level := lc.Level
	if cmdLineDebugFlag {
		level = logging.DEBUG
	}
	logger.SetLevel(level)

	var closer io.Closer = nopCloser{}
	if lc.File != nil {
		appender, fileCloser := logging.NewFileAppender(*lc.File)
		logger.AddAppender(appender)
		closer = fileCloser
	}
	logger.Debugw("log level initialized", "level", level.String())
	return logger, closer
}
