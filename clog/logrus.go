package clog

import (
	"github.com/sirupsen/logrus"
)

// logrusProvider adapts a logrus.FieldLogger to the LogProvider interface so
// Clog values can be backed by structured logging instead of the bare
// stdlib logger in defaultLogger.
type logrusProvider struct {
	entry *logrus.Entry
}

var _ LogProvider = logrusProvider{}

// NewLogrusLogger returns a Clog backed by logrus, with output enabled and
// every message tagged with a "component" field so multi-component log
// streams stay greppable.
func NewLogrusLogger(component string, level logrus.Level) Clog {
	base := logrus.New()
	base.SetLevel(level)
	c := Clog{}
	c.SetLogProvider(logrusProvider{entry: base.WithField("component", component)})
	c.LogMode(true)
	return c
}

func (p logrusProvider) Critical(format string, v ...interface{}) {
	p.entry.Errorf("CRITICAL: "+format, v...)
}

func (p logrusProvider) Error(format string, v ...interface{}) {
	p.entry.Errorf(format, v...)
}

func (p logrusProvider) Warn(format string, v ...interface{}) {
	p.entry.Warnf(format, v...)
}

func (p logrusProvider) Debug(format string, v ...interface{}) {
	p.entry.Debugf(format, v...)
}
