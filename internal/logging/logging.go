// Package logging sets up the outer, CLI-facing logger: a console handler
// fanned out to an optional Seq sink. The parser core never touches this
// package directly; cmd/redologparser adapts its *slog.Logger into a
// logr.Logger (via ToLogr) and hands that to internal/parser.
package logging

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-logr/logr"
	slogseq "github.com/sokkalf/slog-seq"
)

// multiHandler forwards log records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// SetupLogger builds the CLI logger and returns it with a cleanup function.
// It does not replace slog's default logger.
func SetupLogger(seqURL string) (*slog.Logger, func()) {
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	})

	if seqURL == "" {
		console := slog.New(consoleHandler)
		return console, func() {}
	}

	_, seqHandler := slogseq.NewLogger(
		seqURL,
		slogseq.WithBatchSize(1),
		slogseq.WithFlushInterval(500*time.Millisecond),
		slogseq.WithHandlerOptions(&slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		}),
	)

	if seqHandler == nil {
		console := slog.New(consoleHandler)
		return console, func() {}
	}

	multi := &multiHandler{handlers: []slog.Handler{consoleHandler, seqHandler}}
	logger := slog.New(multi)

	closeFn := func() {
		seqHandler.Close()
	}

	return logger, closeFn
}

// ToLogr adapts an outer *slog.Logger into the logr.Logger interface the
// parser core expects, so the CLI's single logging setup backs both the
// slog-facing application code and the logr-facing core.
func ToLogr(l *slog.Logger) logr.Logger {
	return logr.FromSlogHandler(l.Handler())
}
