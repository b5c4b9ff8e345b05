package cli

import (
	"io"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/platinummonkey/ssoadmin/pkg/config"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
)

// Loggers is the pair of loggers the CLI runs with: logrus for command
// output diagnostics and the structured logger handed to library packages.
// Both write to the same sink.
type Loggers struct {
	Log    *logrus.Logger
	Logger *observability.Logger

	closer io.Closer
}

// NewLoggers builds the loggers described by cfg. With a log file
// configured, output goes to a size-rotated file instead of stderr.
func NewLoggers(cfg config.ObservabilityConfig, stderr io.Writer) *Loggers {
	var (
		sink   = stderr
		closer io.Closer
	)
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
		}
		sink = rotating
		closer = rotating
	}

	log := logrus.New()
	log.SetOutput(sink)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	return &Loggers{
		Log:    log,
		Logger: observability.NewLogger(cfg.Level(), sink),
		closer: closer,
	}
}

// Close releases the log file, if any.
func (l *Loggers) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
