// Package log bridges third-party loggers onto logrus.
package log

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// BadgerLogger implements badger.Logger on a logrus entry. Badger's informational
// startup and compaction chatter is demoted to debug level.
type BadgerLogger struct {
	entry *logrus.Entry
}

// NewBadgerLogger creates a new adapter
func NewBadgerLogger(entry *logrus.Entry) *BadgerLogger {
	return &BadgerLogger{entry: entry}
}

func (l *BadgerLogger) Errorf(f string, v ...interface{}) { l.entry.Errorf(trim(f), v...) }

func (l *BadgerLogger) Warningf(f string, v ...interface{}) { l.entry.Warnf(trim(f), v...) }

func (l *BadgerLogger) Infof(f string, v ...interface{}) { l.entry.Debugf(trim(f), v...) }

func (l *BadgerLogger) Debugf(f string, v ...interface{}) { l.entry.Tracef(trim(f), v...) }

// trim drops the trailing newline badger puts on most format strings
func trim(f string) string {
	return strings.TrimRight(f, "\n")
}
