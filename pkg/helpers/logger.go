package helpers

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger creates a configured Logrus logger
func NewLogger(appName, env string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if env == "development" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.WithFields(logrus.Fields{"app": appName, "env": env}).Info("logger initialized")
	return logger
}

// OpFields builds the standard field set for upstream call logging:
// operation name, acting identity, and target. Enough to diagnose a failure
// without logging tokens or payload contents.
func OpFields(op, userID, target string) logrus.Fields {
	f := logrus.Fields{"op": op}
	if userID != "" {
		f["user_id"] = userID
	}
	if target != "" {
		f["target"] = target
	}
	return f
}
