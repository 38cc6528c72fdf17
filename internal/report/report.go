// Package report renders the results of one polling iteration.
package report

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// ClearScreen moves the cursor home and erases the terminal.
const ClearScreen = "\033[H\033[2J"

// Reporter receives every result of one iteration, in registration order.
type Reporter interface {
	Report(ctx context.Context, results []domain.EvaluationResult) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, results []domain.EvaluationResult) error

func (f ReporterFunc) Report(ctx context.Context, results []domain.EvaluationResult) error {
	return f(ctx, results)
}

// Line formats a single result the way the console shows it.
func Line(r domain.EvaluationResult) string {
	if r.Err != nil {
		return fmt.Sprintf("failed to retrieve %s from %s in %d ms: %v", r.FlagKey, r.Provider, r.LatencyMillis(), r.Err)
	}
	return fmt.Sprintf("retrieved %s value from %s in %d ms: %t", r.FlagKey, r.Provider, r.LatencyMillis(), r.Value)
}

// Console redraws the terminal with one line per provider.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	clear bool
}

type ConsoleOption func(*Console)

// WithoutClear keeps previous output instead of clearing the screen, which
// suits redirected output.
func WithoutClear() ConsoleOption {
	return func(c *Console) { c.clear = false }
}

func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{out: out, clear: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Report writes the whole frame in one flush so a redraw never shows a
// half-printed iteration.
func (c *Console) Report(ctx context.Context, results []domain.EvaluationResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := bufio.NewWriter(c.out)
	if c.clear {
		if _, err := w.WriteString(ClearScreen); err != nil {
			return err
		}
	}
	for _, r := range results {
		if _, err := fmt.Fprintln(w, Line(r)); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Log writes each result as a structured record.
type Log struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLog logs successes at level and failures at warn or above.
func NewLog(logger *slog.Logger, level slog.Level) *Log {
	return &Log{logger: logger, level: level}
}

func (l *Log) Report(ctx context.Context, results []domain.EvaluationResult) error {
	for _, r := range results {
		attrs := []slog.Attr{
			slog.String("provider", r.Provider),
			slog.String("flag", r.FlagKey),
			slog.Int64("latency_ms", r.LatencyMillis()),
		}
		if r.Err != nil {
			level := max(l.level, slog.LevelWarn)
			attrs = append(attrs, slog.String("error", r.Err.Error()))
			l.logger.LogAttrs(ctx, level, "flag evaluation failed", attrs...)
			continue
		}
		attrs = append(attrs, slog.Bool("value", r.Value))
		l.logger.LogAttrs(ctx, l.level, "flag evaluated", attrs...)
	}
	return nil
}

// Multi fans results out to several reporters and joins their errors.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, results []domain.EvaluationResult) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, results); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
