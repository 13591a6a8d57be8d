package logging

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// Dummy returns a logger that drops everything. Used by tests and by callers
// that opt out of logging.
func Dummy() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &dummyLogger{&logrusEntryWrapper{e: logrus.NewEntry(l)}}
}

type dummyLogger struct {
	Logger
}

func (d *dummyLogger) WithContext(_ context.Context) Logger           { return d }
func (d *dummyLogger) WithField(_ string, _ interface{}) Logger       { return d }
func (d *dummyLogger) WithFields(_ Fields) Logger                     { return d }
func (d *dummyLogger) WithError(_ error) Logger                       { return d }
func (d *dummyLogger) IsTracing() bool                                { return false }
func (d *dummyLogger) IsDebugging() bool                              { return false }
