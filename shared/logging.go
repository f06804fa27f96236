package shared

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ConfigureLogging applies level and format ("json" or "text") to the standard logrus logger
func ConfigureLogging(level, format string) {
	logrus.SetOutput(os.Stdout)

	parsedLevel, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL value: %s, using info", level)
		parsedLevel = logrus.InfoLevel
	}
	logrus.SetLevel(parsedLevel)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
