// Package builder defines the Builder sink (spec.md §6.2): the external
// consumer of finalized transactions, and a reference implementation that
// logs what it receives. Row materialization and SQL-level semantics are
// explicitly out of scope here (spec.md Non-goals) — a real consumer
// would translate Apply's companion pairs into typed column callbacks the
// way original_source/src/builder/Builder.h does.
package builder

import (
	"github.com/go-logr/logr"

	"github.com/leengari/redologparser/internal/vector"
	"github.com/leengari/redologparser/internal/xid"
)

// Builder is the sink CheckpointEngine delivers finalized transactions to
// (spec.md §6.2).
type Builder interface {
	// Begin announces that transaction x is about to be flushed.
	Begin(x xid.Xid) error
	// Apply delivers one companion pair from the transaction, in the order
	// it was originally appended.
	Apply(p vector.Pair) error
	// Commit finalizes the transaction at the given commit SCN.
	Commit(x xid.Xid, commitSCN uint64) error
	// ProcessCheckpoint reports that every record up to (scn, seq, offset)
	// has been durably assembled (spec.md §6.2, §4.5). switchRedo is true
	// only for the final checkpoint emitted when the reader hands off to
	// the next redo log file.
	ProcessCheckpoint(scn, timestamp uint64, seq uint32, offset uint64, switchRedo bool) error
}

// LoggingBuilder is a reference Builder that records activity through a
// logr.Logger instead of materializing rows; useful for dry runs and
// tests (spec.md §6.2 describes the sink contract but not a concrete
// consumer).
type LoggingBuilder struct {
	log logr.Logger
}

func NewLoggingBuilder(log logr.Logger) *LoggingBuilder {
	return &LoggingBuilder{log: log.WithName("builder")}
}

func (b *LoggingBuilder) Begin(x xid.Xid) error {
	b.log.V(1).Info("begin", "xid", x.String())
	return nil
}

func (b *LoggingBuilder) Apply(p vector.Pair) error {
	op := p.First.OpCode
	b.log.V(1).Info("apply", "opcode", op, "obj", p.First.Obj, "bdba", p.First.Bdba)
	return nil
}

func (b *LoggingBuilder) Commit(x xid.Xid, commitSCN uint64) error {
	b.log.Info("commit", "xid", x.String(), "scn", commitSCN)
	return nil
}

func (b *LoggingBuilder) ProcessCheckpoint(scn, timestamp uint64, seq uint32, offset uint64, switchRedo bool) error {
	b.log.Info("checkpoint", "scn", scn, "timestamp", timestamp, "seq", seq, "offset", offset, "switchRedo", switchRedo)
	return nil
}
