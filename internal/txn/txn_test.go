package txn

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/leengari/redologparser/internal/vector"
	"github.com/leengari/redologparser/internal/xid"
)

func makePair(obj, bdba uint32, slot uint16, data []byte) vector.Pair {
	r := &vector.RedoLogRecord{Obj: obj, Bdba: bdba, Slot: slot, Data: data}
	return vector.Pair{First: r}
}

func TestBufferFindCreatesOnlyWhenAsked(t *testing.T) {
	b := NewBuffer(64, 0)
	x := xid.New(1, 2, 3)

	_, ok := b.Find(x, false)
	assert.Assert(t, !ok)

	tx, ok := b.Find(x, true)
	assert.Assert(t, ok)
	assert.Equal(t, tx.Xid, x)
	assert.Equal(t, b.Len(), 1)
}

func TestAppendSpansChunks(t *testing.T) {
	tx := NewTransaction(xid.New(1, 1, 1), 4) // tiny chunk size forces a new chunk per append
	tx.Append(makePair(10, 20, 1, []byte{1, 2, 3}))
	tx.Append(makePair(10, 20, 2, []byte{4, 5, 6}))

	assert.Equal(t, len(tx.Ops), 2)
	assert.Equal(t, len(tx.chunks), 2)
	assert.Assert(t, tx.Size() > 0)
}

func TestRollbackLastOpRemovesMatchingOp(t *testing.T) {
	tx := NewTransaction(xid.New(1, 1, 1), 64)
	tx.Append(makePair(10, 20, 1, []byte{1}))
	tx.Append(makePair(10, 20, 2, []byte{2}))

	ok := tx.RollbackLastOp(10, 20, 2)
	assert.Assert(t, ok)
	assert.Equal(t, len(tx.Ops), 1)
	assert.Equal(t, tx.Ops[0].Pair.First.Slot, uint16(1))

	ok = tx.RollbackLastOp(99, 99, 99)
	assert.Assert(t, !ok)
}

func TestBufferOverSize(t *testing.T) {
	b := NewBuffer(4, 4)
	tx, _ := b.Find(xid.New(1, 1, 1), true)
	tx.Append(makePair(1, 1, 1, []byte{1, 2, 3, 4, 5}))
	assert.Assert(t, b.OverSize(tx))
}
