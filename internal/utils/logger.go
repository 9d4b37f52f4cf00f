package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Logger is a logrus logger that optionally also writes to a rotating file.
type Logger struct {
	*log.Logger
	rotator *rotatelogs.RotateLogs
}

// LoggerOptions controls NewLogger. An empty Dir logs to stderr only.
type LoggerOptions struct {
	Level       string
	Dir         string
	RotateEvery time.Duration
	Keep        time.Duration
	JSON        bool
}

// NewLogger creates a logger writing to stderr and, when a directory is
// given, to bloodscan.<date>.log files rotated every RotateEvery.
func NewLogger(opts LoggerOptions) (*Logger, error) {
	l := log.New()
	level, err := log.ParseLevel(opts.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "log level %q", opts.Level)
	}
	l.SetLevel(level)
	if opts.JSON {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	logger := &Logger{Logger: l}
	if opts.Dir == "" {
		l.SetOutput(os.Stderr)
		return logger, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create log dir")
	}
	rotateEvery := opts.RotateEvery
	if rotateEvery <= 0 {
		rotateEvery = 24 * time.Hour
	}
	rl, err := rotatelogs.New(
		filepath.Join(opts.Dir, "bloodscan.%Y%m%d%H%M.log"),
		rotatelogs.WithLinkName(filepath.Join(opts.Dir, "bloodscan.log")),
		rotatelogs.WithRotationTime(rotateEvery),
		rotatelogs.WithMaxAge(opts.Keep),
	)
	if err != nil {
		return nil, errors.Wrap(err, "open rotating log")
	}
	logger.rotator = rl
	l.SetOutput(io.MultiWriter(os.Stderr, rl))
	return logger, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() {
	if l.rotator != nil {
		_ = l.rotator.Close()
	}
}
