package logging

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mikepea/budgetshare/pkg/budgetshare/config"
)

// SetupLogging builds the process logger and installs it as the logrus
// standard logger so package-level logrus calls share its settings.
func SetupLogging(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stdout

	if cfg.Format == "text" {
		logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	} else {
		logger.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyLevel: "loglevel",
			},
		}
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Level = level

	logrus.SetOutput(logger.Out)
	logrus.SetFormatter(logger.Formatter)
	logrus.SetLevel(level)

	return logger
}
