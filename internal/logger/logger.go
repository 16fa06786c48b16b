// Package logger builds the process logger.  It is the same gommon logger
// echo uses internally, so one instance is shared by the HTTP server, the
// services and the background workers.
package logger

import (
	"io"
	"strings"

	"github.com/labstack/gommon/log"
)

// jsonHeader renders one JSON object per line.
const jsonHeader = `{"time":"${time_rfc3339}","level":"${level}","prefix":"${prefix}","file":"${short_file}","line":"${line}"}`

// New returns a logger tagged with prefix at the given level name.
func New(prefix, level string) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(jsonHeader)
	l.SetLevel(ParseLevel(level))
	return l
}

// NewWithOutput is New writing to w.  Tests use it to capture lines.
func NewWithOutput(prefix, level string, w io.Writer) *log.Logger {
	l := New(prefix, level)
	l.SetOutput(w)
	return l
}

// ParseLevel maps DEBUG, INFO, WARN, ERROR and OFF.  Anything else is INFO.
func ParseLevel(s string) log.Lvl {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return log.DEBUG
	case "WARN", "WARNING":
		return log.WARN
	case "ERROR":
		return log.ERROR
	case "OFF":
		return log.OFF
	default:
		return log.INFO
	}
}
