// Package log provides loggers of the host. Loggers are never used by the
// audio goroutine.
package log

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

// Environment variables that configure loggers returned by GetLogger.
const (
	// DebugEnv enables debug level when it's parsed as true.
	DebugEnv = "HOST_DEBUG"
	// FormatEnv selects json output when set to "json".
	FormatEnv = "HOST_LOG_FORMAT"
)

// Logger is a global interface for host loggers.
type Logger interface {
	Debug(...any)
	Info(...any)
	Warn(...any)
	Error(...any)
}

// GetLogger returns a new logger instance configured by environment.
func GetLogger() *logrus.Logger {
	l := logrus.New()
	if debug, err := strconv.ParseBool(os.Getenv(DebugEnv)); err == nil && debug {
		l.SetLevel(logrus.DebugLevel)
	}
	if os.Getenv(FormatEnv) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}

// Silent is a logger that discards everything. It's used when logger is
// not provided.
var Silent Logger = silent{}

type silent struct{}

func (silent) Debug(...any) {}

func (silent) Info(...any) {}

func (silent) Warn(...any) {}

func (silent) Error(...any) {}
