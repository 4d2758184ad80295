// Package diag records the diagnostics of a processing run. A Sink is owned
// by the orchestrator: every diagnostic is forwarded to its logger and kept
// so that callers can inspect what was reported for each target.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Level is the severity of a diagnostic.
type Level int

const (
	Info Level = iota
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case Warn:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Scope identifies what a diagnostic is about. Empty fields are omitted.
type Scope struct {
	Target  string
	Product string
	Config  string
	ResTag  string
}

func (s Scope) attrs() []any {
	var out []any
	if s.Target != "" {
		out = append(out, "target", s.Target)
	}
	if s.Product != "" {
		out = append(out, "product", s.Product)
	}
	if s.Config != "" {
		out = append(out, "config", s.Config)
	}
	if s.ResTag != "" {
		out = append(out, "res_tag", s.ResTag)
	}
	return out
}

// Diagnostic is one recorded event.
type Diagnostic struct {
	Level   Level
	Scope   Scope
	Message string
	Err     error
}

// Sink collects diagnostics. It is safe for concurrent use.
type Sink struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries []Diagnostic
}

// NewSink returns a Sink that forwards to logger.
func NewSink(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{logger: logger}
}

// Report records a diagnostic and logs it.
func (s *Sink) Report(ctx context.Context, lvl Level, scope Scope, msg string, err error) {
	d := Diagnostic{Level: lvl, Scope: scope, Message: msg, Err: err}
	s.mu.Lock()
	s.entries = append(s.entries, d)
	s.mu.Unlock()

	args := scope.attrs()
	if err != nil {
		args = append(args, "error", err)
	}
	s.logger.Log(ctx, lvl.slogLevel(), msg, args...)
}

// Infof, Warnf and Errorf are shorthands for Report without an error value.
func (s *Sink) Infof(ctx context.Context, scope Scope, format string, args ...any) {
	s.Report(ctx, Info, scope, fmt.Sprintf(format, args...), nil)
}

func (s *Sink) Warnf(ctx context.Context, scope Scope, format string, args ...any) {
	s.Report(ctx, Warn, scope, fmt.Sprintf(format, args...), nil)
}

func (s *Sink) Errorf(ctx context.Context, scope Scope, err error, format string, args ...any) {
	s.Report(ctx, Error, scope, fmt.Sprintf(format, args...), err)
}

// Entries returns a copy of every recorded diagnostic.
func (s *Sink) Entries() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Diagnostic(nil), s.entries...)
}

// Filter returns the recorded diagnostics at exactly lvl.
func (s *Sink) Filter(lvl Level) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.Entries() {
		if d.Level == lvl {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of diagnostics at lvl.
func (s *Sink) Count(lvl Level) int {
	return len(s.Filter(lvl))
}
