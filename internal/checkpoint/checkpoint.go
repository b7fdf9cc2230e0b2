// Package checkpoint implements CheckpointEngine (spec.md §4.5): flushing
// committed transactions to the Builder in commit-SCN order and persisting
// the recovery state needed to resume after a restart.
package checkpoint

import (
	"sort"
	"sync"

	"github.com/go-logr/logr"

	"github.com/leengari/redologparser/internal/builder"
	"github.com/leengari/redologparser/internal/txn"
	"github.com/leengari/redologparser/internal/xid"
)

// State is the persisted checkpoint record (spec.md §6.3): everything
// needed to resume a parser instance without replaying already-flushed
// transactions.
type State struct {
	ParserInstanceID string
	ProcessedSCN     uint64
	NextBlock        uint64
	SkipXidList      []xid.Xid
	BrokenXidList    []xid.Xid
}

// Store persists and loads checkpoint state (spec.md §6.3). Implementations
// live outside this package (e.g. a file- or database-backed store); the
// reference cmd wiring passes a nil Store, and with a nil Store the Engine
// persists nothing.
type Store interface {
	Load() (State, bool, error)
	Save(State) error
}

// pending is a committed transaction awaiting flush, ordered by commit SCN.
type pending struct {
	tx         *txn.Transaction
	commitSCN  uint64
	rolledBack bool
}

// Engine is the CheckpointEngine (spec.md §4.5).
type Engine struct {
	log   logr.Logger
	b     builder.Builder
	store Store

	// firstDataSCN gates the per-LWN process_checkpoint callback the same
	// way it gates commit visibility in the router (spec.md §3.2, §4.5
	// step 2: "if lwn_scn > metadata.first_data_scn").
	firstDataSCN uint64

	mu         sync.Mutex
	queue      []pending
	processed  uint64
	skipXids   map[xid.Xid]struct{}
	brokenXids map[xid.Xid]struct{}
}

func New(log logr.Logger, b builder.Builder, store Store, firstDataSCN uint64) *Engine {
	return &Engine{
		log:          log.WithName("checkpoint"),
		b:            b,
		store:        store,
		firstDataSCN: firstDataSCN,
		skipXids:     make(map[xid.Xid]struct{}),
		brokenXids:   make(map[xid.Xid]struct{}),
	}
}

// Commit implements router.Sink: queue a committed transaction for flush.
func (e *Engine) Commit(t *txn.Transaction, commitSCN uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, pending{tx: t, commitSCN: commitSCN})
}

// Rollback implements router.Sink: a transaction that reached Commit with
// the rollback flag set is discarded, never flushed (spec.md §4.3).
func (e *Engine) Rollback(t *txn.Transaction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(e.queue, pending{tx: t, rolledBack: true})
}

// Flush delivers every queued transaction to the Builder in commit-SCN
// order, then advances and persists ProcessedSCN (spec.md §4.5).
func (e *Engine) Flush() error {
	e.mu.Lock()
	batch := e.queue
	e.queue = nil
	e.mu.Unlock()

	sort.SliceStable(batch, func(i, j int) bool { return batch[i].commitSCN < batch[j].commitSCN })

	for _, p := range batch {
		if p.rolledBack {
			continue
		}
		if err := e.b.Begin(p.tx.Xid); err != nil {
			return err
		}
		for _, op := range p.tx.Ops {
			if err := e.b.Apply(op.Pair); err != nil {
				return err
			}
		}
		if err := e.b.Commit(p.tx.Xid, p.commitSCN); err != nil {
			return err
		}
		if p.commitSCN > e.processed {
			e.processed = p.commitSCN
		}
	}

	if e.store == nil {
		return nil
	}
	return e.store.Save(e.snapshot())
}

// ProcessCheckpoint implements CheckpointEngine step 2 (spec.md §4.5): once
// an LWN has been fully routed, report its position to the Builder so it can
// persist progress, provided the LWN's scn is past the configured data
// cutoff. switchRedo is forwarded unchanged for the final checkpoint a log
// switch emits (scenario S6).
func (e *Engine) ProcessCheckpoint(scn, timestamp uint64, seq uint32, offset uint64, switchRedo bool) error {
	if scn <= e.firstDataSCN {
		return nil
	}
	return e.b.ProcessCheckpoint(scn, timestamp, seq, offset, switchRedo)
}

// LogSwitch handles a detected redo-log-file switch: flush whatever is
// queued so no committed-but-unflushed work survives across the boundary
// (spec.md §4.5).
func (e *Engine) LogSwitch(nextBlock uint64) error {
	if err := e.Flush(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store == nil {
		return nil
	}
	s := e.snapshotLocked()
	s.NextBlock = nextBlock
	return e.store.Save(s)
}

func (e *Engine) snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() State {
	skip := make([]xid.Xid, 0, len(e.skipXids))
	for x := range e.skipXids {
		skip = append(skip, x)
	}
	broken := make([]xid.Xid, 0, len(e.brokenXids))
	for x := range e.brokenXids {
		broken = append(broken, x)
	}
	return State{ProcessedSCN: e.processed, SkipXidList: skip, BrokenXidList: broken}
}
