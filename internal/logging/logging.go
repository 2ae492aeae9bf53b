// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// Level is a logrus level name such as "info" or "debug".
	Level  string
	Output io.Writer
	// Journal additionally sends entries to the systemd journal when its
	// socket is available.
	Journal bool
}

// Setup configures the standard logger. It may be called more than once;
// hooks from earlier calls are dropped.
func Setup(opts Options) error {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	logger := logrus.StandardLogger()
	logger.SetLevel(level)
	logger.SetOutput(opts.Output)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.ReplaceHooks(make(logrus.LevelHooks))

	if opts.Journal {
		if !journal.Enabled() {
			logrus.Warn("journal logging requested, but the journal is not available")
			return nil
		}
		logger.AddHook(&journalHook{levels: enabledLevels(level)})
	}
	return nil
}

// enabledLevels returns the levels up to and including level.
func enabledLevels(level logrus.Level) []logrus.Level {
	var levels []logrus.Level
	for _, l := range logrus.AllLevels {
		if l <= level {
			levels = append(levels, l)
		}
	}
	return levels
}

var priorities = map[logrus.Level]journal.Priority{
	logrus.PanicLevel: journal.PriEmerg,
	logrus.FatalLevel: journal.PriCrit,
	logrus.ErrorLevel: journal.PriErr,
	logrus.WarnLevel:  journal.PriWarning,
	logrus.InfoLevel:  journal.PriInfo,
	logrus.DebugLevel: journal.PriDebug,
	logrus.TraceLevel: journal.PriDebug,
}

type journalHook struct {
	levels []logrus.Level
}

func (hook *journalHook) Levels() []logrus.Level {
	return hook.levels
}

func (hook *journalHook) Fire(entry *logrus.Entry) error {
	vars := make(map[string]string, len(entry.Data))
	for key, value := range entry.Data {
		vars[journalField(key)] = fmt.Sprint(value)
	}
	return journal.Send(entry.Message, priorities[entry.Level], vars)
}

// journalField turns a logrus field name into a valid journal field name:
// upper case letters, digits and underscores, without a leading underscore.
func journalField(key string) string {
	field := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, key)
	return strings.TrimLeft(field, "_")
}
