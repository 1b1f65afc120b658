package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudera/llama-sub000/internal/paths"
)

// New creates a logger that writes to a timestamped file inside the logs
// directory. With verbose set, debug output is mirrored to stderr. The
// returned closer should be closed when logging is no longer needed.
func New(p paths.WorkPaths, verbose bool) (*logrus.Logger, io.Closer, error) {
	if err := os.MkdirAll(p.LogsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure logs directory: %w", err)
	}

	filename := time.Now().Format("20060102-150405") + ".log"
	filePath := filepath.Join(p.LogsDir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
		DisableColors:   true,
	})
	logger.SetOutput(file)
	logger.SetLevel(logrus.InfoLevel)
	if verbose {
		logger.SetOutput(io.MultiWriter(file, os.Stderr))
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger, file, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
