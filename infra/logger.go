package infra

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SetupLogger applies the logging section to the process-wide logrus
// logger. With file_output set, log lines go to both stdout and the file.
func SetupLogger(cfg LoggingConfig) error {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "parse log level %q", level)
	}
	log.SetLevel(parsed)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.FileOutput {
		if cfg.FilePath == "" {
			return errors.New("logging.file_output set without logging.file_path")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return errors.Wrap(err, "create log directory")
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	return nil
}
