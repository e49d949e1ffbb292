// Package logging builds the application logger and the matching logger
// handed to Raft.
package logging

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/sirupsen/logrus"
)

// RFC3339Milli is an RFC3339 timestamp with milliseconds.
const RFC3339Milli = "2006-01-02T15:04:05.000Z07:00"

// New returns a logrus logger writing to out at the given level. format is
// "text" or "json".
func New(level, format string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl)

	switch format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: RFC3339Milli})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: RFC3339Milli})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return l, nil
}

// Raft returns an hclog logger for Raft at the same level and encoding as l,
// writing to the same output.
func Raft(l *logrus.Logger, name string) hclog.Logger {
	_, json := l.Formatter.(*logrus.JSONFormatter)
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclogLevel(l.GetLevel()),
		Output:     l.Out,
		JSONFormat: json,
		TimeFormat: RFC3339Milli,
	})
}

func hclogLevel(lvl logrus.Level) hclog.Level {
	switch lvl {
	case logrus.TraceLevel:
		return hclog.Trace
	case logrus.DebugLevel:
		return hclog.Debug
	case logrus.InfoLevel:
		return hclog.Info
	case logrus.WarnLevel:
		return hclog.Warn
	default:
		return hclog.Error
	}
}
