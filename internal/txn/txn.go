// Package txn implements Transaction and TransactionBuffer (spec.md §3.1,
// §4.4): the chunked arena that accumulates a transaction's change vectors
// until commit, rollback, or eviction.
package txn

import (
	"github.com/leengari/redologparser/internal/lob"
	"github.com/leengari/redologparser/internal/vector"
	"github.com/leengari/redologparser/internal/xid"
)

// Op is one appended operation: a companion pair plus the chunk range it
// was copied into, so RollbackLastOp can rewind the chunk when the dropped
// op was the last write into it.
type Op struct {
	Pair       vector.Pair
	ChunkIndex int
	ChunkStart int
	ChunkEnd   int
}

// chunk is one fixed-size arena slab (spec.md §5, §9: ownership is
// chunk-at-a-time, never per-vector, to bound allocator churn).
type chunk struct {
	buf []byte
	len int
}

func newChunk(size uint32) *chunk { return &chunk{buf: make([]byte, size)} }

func (c *chunk) remaining() int { return len(c.buf) - c.len }

// append copies data into the chunk's free tail and returns the byte range
// it now occupies. Caller must have checked remaining() >= len(data).
func (c *chunk) append(data []byte) (start, end int) {
	start = c.len
	end = start + len(data)
	copy(c.buf[start:end], data)
	c.len = end
	return start, end
}

// Transaction is one in-flight transaction (spec.md §3.1).
type Transaction struct {
	Xid       xid.Xid
	ParentXid xid.Xid

	Ops []Op

	LobCtx *lob.Ctx

	FirstSeen uint64 // scn of the Begin/first op when a caller records it; Buffer.Find and the router leave it zero.
	Broken    bool

	// System marks a transaction that touched a table with OPTIONS_SYSTEM_TABLE
	// set, gating it against first_schema_scn instead of first_data_scn at
	// commit (spec.md §3.2, §4.3 schema filter).
	System bool

	// Shutdown marks a transaction that touched a debug table via a
	// 0x0B02 data vector (spec.md §4.3 schema filter, OPTIONS_DEBUG_TABLE).
	Shutdown bool

	chunkSize uint32
	chunks    []*chunk
}

// NewTransaction allocates an empty transaction owned by TransactionBuffer.
func NewTransaction(x xid.Xid, chunkSize uint32) *Transaction {
	return &Transaction{
		Xid:       x,
		ParentXid: x.Parent(),
		LobCtx:    lob.NewCtx(),
		chunkSize: chunkSize,
	}
}

// Append copies p's underlying bytes into the transaction's arena and
// records the resulting Op (spec.md §4.4, "append"). Only First's bytes
// are archived; Second (when present) is kept by reference in the Op's
// Pair, and its bytes are not copied into the arena.
func (t *Transaction) Append(p vector.Pair) {
	data := p.First.Data
	if len(t.chunks) == 0 || t.chunks[len(t.chunks)-1].remaining() < len(data) {
		size := t.chunkSize
		if uint32(len(data)) > size {
			size = uint32(len(data))
		}
		t.chunks = append(t.chunks, newChunk(size))
	}
	c := t.chunks[len(t.chunks)-1]
	start, end := c.append(data)
	t.Ops = append(t.Ops, Op{Pair: p, ChunkIndex: len(t.chunks) - 1, ChunkStart: start, ChunkEnd: end})
}

// RollbackLastOp drops the most recently appended operation matching
// (obj, bdba, slot), implementing partial-rollback vectors (spec.md §4.4).
// It returns false if no matching op was found (a soft inconsistency the
// caller should log, not fail on).
func (t *Transaction) RollbackLastOp(obj, bdba uint32, slot uint16) bool {
	for i := len(t.Ops) - 1; i >= 0; i-- {
		op := t.Ops[i]
		r := op.Pair.First
		if r.Obj == obj && r.Bdba == bdba && r.Slot == slot {
			t.Ops = append(t.Ops[:i], t.Ops[i+1:]...)
			if c := t.chunks[op.ChunkIndex]; c.len == op.ChunkEnd {
				c.len = op.ChunkStart // rewind the write cursor over the tail op
			}
			return true
		}
	}
	return false
}

// Size reports the transaction's total buffered payload size in bytes,
// used against TransactionSizeMax (spec.md §3.1, §4.4).
func (t *Transaction) Size() uint64 {
	var n uint64
	for _, c := range t.chunks {
		n += uint64(c.len)
	}
	return n
}

// Checkpoint returns a copy of the ops accumulated so far without clearing
// them. The checkpoint engine flushes only committed transactions and does
// not call it.
func (t *Transaction) Checkpoint() []Op {
	out := make([]Op, len(t.Ops))
	copy(out, t.Ops)
	return out
}

// Buffer owns the set of in-flight transactions, keyed by Xid
// (spec.md §3.1's TransactionBuffer).
type Buffer struct {
	byXid     map[xid.Xid]*Transaction
	chunkSize uint32
	sizeMax   uint64
}

func NewBuffer(chunkSize uint32, sizeMax uint64) *Buffer {
	return &Buffer{byXid: make(map[xid.Xid]*Transaction), chunkSize: chunkSize, sizeMax: sizeMax}
}

// Find returns the transaction for x, creating it if create is true and it
// does not yet exist (spec.md §4.3, "find_transaction").
func (b *Buffer) Find(x xid.Xid, create bool) (*Transaction, bool) {
	t, ok := b.byXid[x]
	if !ok && create {
		t = NewTransaction(x, b.chunkSize)
		b.byXid[x] = t
		return t, true
	}
	return t, ok
}

// Drop removes a transaction from the buffer (commit, rollback, or
// eviction past TransactionSizeMax; spec.md §4.4 "drop_transaction").
func (b *Buffer) Drop(x xid.Xid) {
	delete(b.byXid, x)
}

// Len reports the number of in-flight transactions.
func (b *Buffer) Len() int { return len(b.byXid) }

// OverSize reports whether t has grown past the configured cap, the
// trigger for TransactionRouter's size-cap eviction (spec.md §4.3).
func (b *Buffer) OverSize(t *Transaction) bool {
	return b.sizeMax > 0 && t.Size() > b.sizeMax
}

// All returns every in-flight transaction, for checkpoint flush ordering
// (spec.md §4.5: flush in commit-SCN order — callers sort the result).
func (b *Buffer) All() []*Transaction {
	out := make([]*Transaction, 0, len(b.byXid))
	for _, t := range b.byXid {
		out = append(out, t)
	}
	return out
}
