package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. format "text" selects the text formatter,
// anything else JSON. A non-empty file adds a rotating file sink next to stdout.
func New(level, format, file string) *logrus.Logger {
	logger := logrus.New()

	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer = os.Stdout
	if file != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50,
			MaxAge:     14,
			MaxBackups: 5,
			Compress:   true,
		})
	}
	logger.SetOutput(out)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		logger.WithField("level", level).Warn("unknown log level, using info")
		return logger
	}
	logger.SetLevel(parsed)
	return logger
}
