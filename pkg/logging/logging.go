package logging

// Logger is the minimal logging surface shared by every component.
// Components never talk to the logging backend directly; the supervisor
// hands each one a prefixed Logger at construction time.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type prefixLogger struct {
	prefix string
	next   Logger
}

// NewPrefixLogger returns a Logger that prepends a fixed prefix to every
// message, used to tag per-daemon and per-component log lines.
func NewPrefixLogger(prefix string, next Logger) Logger {
	return &prefixLogger{prefix: prefix, next: next}
}

func (l *prefixLogger) Debugf(format string, args ...interface{}) {
	l.next.Debugf(l.prefix+format, args...)
}

func (l *prefixLogger) Infof(format string, args ...interface{}) {
	l.next.Infof(l.prefix+format, args...)
}

func (l *prefixLogger) Warnf(format string, args ...interface{}) {
	l.next.Warnf(l.prefix+format, args...)
}

func (l *prefixLogger) Errorf(format string, args ...interface{}) {
	l.next.Errorf(l.prefix+format, args...)
}

// NopLogger discards everything. Used in tests and as a safe default.
type NopLogger struct{}

func (NopLogger) Debugf(format string, args ...interface{}) {}
func (NopLogger) Infof(format string, args ...interface{})  {}
func (NopLogger) Warnf(format string, args ...interface{})  {}
func (NopLogger) Errorf(format string, args ...interface{}) {}
