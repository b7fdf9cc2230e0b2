package checkpoint

import (
	"testing"

	"github.com/go-logr/logr"
	"gotest.tools/v3/assert"

	"github.com/leengari/redologparser/internal/txn"
	"github.com/leengari/redologparser/internal/vector"
	"github.com/leengari/redologparser/internal/xid"
)

type recordingBuilder struct {
	begins      []xid.Xid
	applies     int
	commits     []uint64
	checkpoints []uint64
}

func (b *recordingBuilder) Begin(x xid.Xid) error { b.begins = append(b.begins, x); return nil }
func (b *recordingBuilder) Apply(p vector.Pair) error { b.applies++; return nil }
func (b *recordingBuilder) Commit(x xid.Xid, scn uint64) error {
	b.commits = append(b.commits, scn)
	return nil
}

func (b *recordingBuilder) ProcessCheckpoint(scn, timestamp uint64, seq uint32, offset uint64, switchRedo bool) error {
	b.checkpoints = append(b.checkpoints, scn)
	return nil
}

type memStore struct {
	saved State
	calls int
}

func (s *memStore) Load() (State, bool, error) { return s.saved, s.calls > 0, nil }
func (s *memStore) Save(st State) error         { s.saved = st; s.calls++; return nil }

func TestFlushOrdersByCommitSCN(t *testing.T) {
	b := &recordingBuilder{}
	store := &memStore{}
	e := New(logr.Discard(), b, store, 0)

	t1 := txn.NewTransaction(xid.New(1, 1, 1), 64)
	t1.Append(vector.Pair{First: &vector.RedoLogRecord{}})
	t2 := txn.NewTransaction(xid.New(2, 2, 2), 64)
	t2.Append(vector.Pair{First: &vector.RedoLogRecord{}})

	e.Commit(t2, 200)
	e.Commit(t1, 100)

	assert.NilError(t, e.Flush())
	assert.Equal(t, len(b.commits), 2)
	assert.Equal(t, b.commits[0], uint64(100))
	assert.Equal(t, b.commits[1], uint64(200))
	assert.Equal(t, b.applies, 2)
	assert.Equal(t, store.calls, 1)
}

func TestRollbackSkipsBuilder(t *testing.T) {
	b := &recordingBuilder{}
	e := New(logr.Discard(), b, nil, 0)

	t1 := txn.NewTransaction(xid.New(3, 3, 3), 64)
	e.Rollback(t1)

	assert.NilError(t, e.Flush())
	assert.Equal(t, len(b.commits), 0)
	assert.Equal(t, len(b.begins), 0)
}
