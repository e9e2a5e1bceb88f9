// log.go - Leveled structured logging backed by logrus.
package server

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultLogger is the process-wide logger used by the helpers below.
var DefaultLogger = newLogger(os.Stdout)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	ConfigureLogger(l, os.Getenv("FD_LOG_FORMAT"), os.Getenv("FD_ENV"), os.Getenv("FD_LOG_LEVEL"))
	return l
}

// ConfigureLogger applies format and level settings. JSON output is used when
// format is "json" or env is "production"; unknown levels fall back to info.
func ConfigureLogger(l *logrus.Logger, format, env, level string) {
	if format == "json" || env == "production" {
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{logrus.FieldKeyTime: "time", logrus.FieldKeyMsg: "msg"},
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
}

func Debug(msg string, fields map[string]any) {
	DefaultLogger.WithFields(fields).Debug(msg)
}

func Info(msg string, fields map[string]any) {
	DefaultLogger.WithFields(fields).Info(msg)
}

func Warn(msg string, fields map[string]any) {
	DefaultLogger.WithFields(fields).Warn(msg)
}

// Error logs msg at error level with err attached under "error".
func Error(msg string, fields map[string]any, err error) {
	entry := DefaultLogger.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}
