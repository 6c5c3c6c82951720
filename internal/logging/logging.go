// Package logging defines the Logger interface the orchestrator and
// commands log through, backed by zap.
package logging

import "go.uber.org/zap"

// Logger is the narrow surface callers depend on, so they take an
// interface rather than a concrete *zap.Logger.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Sync() error
}

// zapLogger adapts a *zap.SugaredLogger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l zapLogger) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l zapLogger) Warnf(format string, args ...any)  { l.s.Warnf(format, args...) }
func (l zapLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
func (l zapLogger) Sync() error                       { return l.s.Sync() }

// New builds a production-configured Logger, or a development one (human
// readable, debug level enabled) when debug is true.
func New(debug bool) (Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return zapLogger{s: z.Sugar()}, nil
}

// Nop is a Logger that discards everything, for tests that exercise code
// paths which log but don't want to assert on log content.
type Nop struct{}

func (Nop) Debugf(string, ...any) {}
func (Nop) Infof(string, ...any)  {}
func (Nop) Warnf(string, ...any)  {}
func (Nop) Errorf(string, ...any) {}
func (Nop) Sync() error           { return nil }
