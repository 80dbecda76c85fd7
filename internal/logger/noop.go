package logger

import "context"

var _ Logger = (*NoopLogger)(nil)

// NoopLogger discards everything. Default for components built without a logger.
type NoopLogger struct{}

func NewNoop() *NoopLogger { return &NoopLogger{} }

func (*NoopLogger) Debug(string, ...interface{})                         {}
func (*NoopLogger) Info(string, ...interface{})                          {}
func (*NoopLogger) Warn(string, ...interface{})                          {}
func (*NoopLogger) Error(string, ...interface{})                         {}
func (*NoopLogger) DebugContext(context.Context, string, ...interface{}) {}
func (*NoopLogger) InfoContext(context.Context, string, ...interface{})  {}
func (*NoopLogger) WarnContext(context.Context, string, ...interface{})  {}
func (*NoopLogger) ErrorContext(context.Context, string, ...interface{}) {}
func (l *NoopLogger) Named(string) Logger                                { return l }
func (l *NoopLogger) WithFields(...interface{}) Logger                   { return l }
func (*NoopLogger) Sync() error                                          { return nil }
