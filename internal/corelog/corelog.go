// Package corelog is the logging facade used by the parser core.
//
// The core never imports log/slog or zap directly and never reaches for a
// package-level logger: every component that needs to log takes a
// logr.Logger through its constructor, the same way router.Router holds
// lob_id_to_xid and orphaned_lobs as fields instead of as module globals.
package corelog

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"go.uber.org/zap"
)

// NewStd returns a stdlib-backed logr.Logger, suitable for tests and small
// CLIs that don't need the seq/zap fan-out the full application wires up.
func NewStd() logr.Logger {
	return stdr.New(nil)
}

// NewZapSugared wraps a *zap.SugaredLogger behind logr.Logger so the hot
// decode path (VectorDecoder) can use zap's low-allocation structured
// logging without leaking the zap dependency into callers that only know
// about logr.
func NewZapSugared(z *zap.SugaredLogger) logr.Logger {
	return logr.New(&zapSink{sugar: z})
}

type zapSink struct {
	sugar *zap.SugaredLogger
	name  string
	kv    []interface{}
}

func (s *zapSink) Init(info logr.RuntimeInfo) {}

func (s *zapSink) Enabled(level int) bool { return true }

func (s *zapSink) Info(level int, msg string, kv ...interface{}) {
	args := append(append([]interface{}{}, s.kv...), kv...)
	if s.name != "" {
		args = append(args, "logger", s.name)
	}
	if level > 0 {
		s.sugar.Debugw(msg, args...)
		return
	}
	s.sugar.Infow(msg, args...)
}

func (s *zapSink) Error(err error, msg string, kv ...interface{}) {
	args := append(append([]interface{}{}, s.kv...), kv...)
	args = append(args, "error", err)
	s.sugar.Warnw(msg, args...)
}

func (s *zapSink) WithValues(kv ...interface{}) logr.LogSink {
	return &zapSink{sugar: s.sugar, name: s.name, kv: append(append([]interface{}{}, s.kv...), kv...)}
}

func (s *zapSink) WithName(name string) logr.LogSink {
	joined := name
	if s.name != "" {
		joined = s.name + "." + name
	}
	return &zapSink{sugar: s.sugar, name: joined, kv: s.kv}
}

var _ logr.LogSink = (*zapSink)(nil)
