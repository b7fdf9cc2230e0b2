package router

import (
	"testing"

	"github.com/go-logr/logr"
	"gotest.tools/v3/assert"

	"github.com/leengari/redologparser/internal/config"
	"github.com/leengari/redologparser/internal/lob"
	"github.com/leengari/redologparser/internal/schema"
	"github.com/leengari/redologparser/internal/txn"
	"github.com/leengari/redologparser/internal/vector"
	"github.com/leengari/redologparser/internal/xid"
)

type fakeSink struct {
	commits   []uint64
	rollbacks int
}

func (f *fakeSink) Commit(t *txn.Transaction, commitSCN uint64) { f.commits = append(f.commits, commitSCN) }
func (f *fakeSink) Rollback(t *txn.Transaction)                 { f.rollbacks++ }

func rec(op vector.OpCode, x xid.Xid) *vector.RedoLogRecord {
	return &vector.RedoLogRecord{OpCode: op, Xid: x}
}

func TestBeginThenCommitFlushesToSink(t *testing.T) {
	sink := &fakeSink{}
	r := New(config.Default(), logr.Discard(), nil, sink)
	x := xid.New(1, 1, 1)

	assert.NilError(t, r.Route(vector.Pair{First: rec(vector.OpBegin, x)}))

	dml := rec(vector.OpCode(0x0B02), x)
	assert.NilError(t, r.Route(vector.Pair{First: dml}))

	commit := rec(vector.OpCommit, x)
	commit.ScnRecord = 500
	assert.NilError(t, r.Route(vector.Pair{First: commit}))

	assert.Equal(t, len(sink.commits), 1)
	assert.Equal(t, sink.commits[0], uint64(500))
}

func TestCommitWithRollbackFlagRoutesToRollback(t *testing.T) {
	sink := &fakeSink{}
	r := New(config.Default(), logr.Discard(), nil, sink)
	x := xid.New(2, 2, 2)

	assert.NilError(t, r.Route(vector.Pair{First: rec(vector.OpBegin, x)}))
	commit := rec(vector.OpCommit, x)
	commit.FlgRecord = vector.FlgRollbackOp0504
	assert.NilError(t, r.Route(vector.Pair{First: commit}))

	assert.Equal(t, sink.rollbacks, 1)
	assert.Equal(t, len(sink.commits), 0)
}

type stubLookup struct{ known map[uint32]bool }

func (s stubLookup) Find(obj uint32) (schema.Table, bool) {
	if s.known[obj] {
		return schema.Table{Obj: obj}, true
	}
	return schema.Table{}, false
}

func TestSchemaFilterDropsUnknownObjects(t *testing.T) {
	sink := &fakeSink{}
	lookup := stubLookup{known: map[uint32]bool{7: true}}
	r := New(config.Default(), logr.Discard(), lookup, sink)
	x := xid.New(3, 3, 3)

	dml := rec(vector.OpCode(0x0B02), x)
	dml.Obj = 999 // unknown
	assert.NilError(t, r.Route(vector.Pair{First: dml}))

	dmlKnown := rec(vector.OpCode(0x0B02), x)
	dmlKnown.Obj = 7
	assert.NilError(t, r.Route(vector.Pair{First: dmlKnown}))

	commit := rec(vector.OpCommit, x)
	commit.ScnRecord = 1
	assert.NilError(t, r.Route(vector.Pair{First: commit}))

	assert.Equal(t, len(sink.commits), 1)
}

func TestSizeCapEvictionSkipsLaterVectorsAndNoopsCommit(t *testing.T) {
	sink := &fakeSink{}
	cfg := config.Default()
	cfg.TransactionSizeMax = 1
	r := New(cfg, logr.Discard(), nil, sink)
	x := xid.New(4, 4, 4)

	big := rec(vector.OpCode(0x0B02), x)
	big.Data = make([]byte, 64)
	assert.NilError(t, r.Route(vector.Pair{First: big})) // crosses the cap, evicts and skips x

	// A later vector under the same xid must not recreate the transaction.
	again := rec(vector.OpCode(0x0B02), x)
	assert.NilError(t, r.Route(vector.Pair{First: again}))

	commit := rec(vector.OpCommit, x)
	commit.ScnRecord = 500
	assert.NilError(t, r.Route(vector.Pair{First: commit}))

	assert.Equal(t, len(sink.commits), 0)
	assert.Equal(t, sink.rollbacks, 0)

	// The skip entry cleared on that no-op commit; a fresh xid reusing the
	// same value must route normally again.
	_, skipped := r.skipXids[x]
	assert.Assert(t, !skipped)
}

func TestCommitBelowFirstDataSCNIsPurgedSilently(t *testing.T) {
	sink := &fakeSink{}
	cfg := config.Default()
	cfg.FirstDataSCN = 100
	r := New(cfg, logr.Discard(), nil, sink)
	x := xid.New(5, 5, 5)

	assert.NilError(t, r.Route(vector.Pair{First: rec(vector.OpCode(0x0B02), x)}))
	commit := rec(vector.OpCommit, x)
	commit.ScnRecord = 50
	assert.NilError(t, r.Route(vector.Pair{First: commit}))

	assert.Equal(t, len(sink.commits), 0)
}

func TestSystemTableMarksTransactionAgainstSchemaCutoff(t *testing.T) {
	sink := &fakeSink{}
	lookup := stubSystemLookup{obj: 42}
	cfg := config.Default()
	cfg.FirstDataSCN = 1000
	cfg.FirstSchemaSCN = 10
	r := New(cfg, logr.Discard(), lookup, sink)
	x := xid.New(6, 6, 6)

	dml := rec(vector.OpCode(0x0B02), x)
	dml.Obj = 42
	assert.NilError(t, r.Route(vector.Pair{First: dml}))

	commit := rec(vector.OpCommit, x)
	commit.ScnRecord = 50 // below FirstDataSCN but above FirstSchemaSCN
	assert.NilError(t, r.Route(vector.Pair{First: commit}))

	assert.Equal(t, len(sink.commits), 1)
}

type stubSystemLookup struct{ obj uint32 }

func (s stubSystemLookup) Find(obj uint32) (schema.Table, bool) {
	if obj != s.obj {
		return schema.Table{}, false
	}
	return schema.Table{Obj: obj, Options: schema.OptionsSystemTable}, true
}

func TestLobDataVectorBypassesSchemaFilter(t *testing.T) {
	sink := &fakeSink{}
	lookup := stubLookup{known: map[uint32]bool{}} // dictionary populated, nothing known
	r := New(config.Default(), logr.Discard(), lookup, sink)

	idx := rec(vector.OpIndexInsert0A02, xid.New(8, 8, 8))
	idx.LobID = lob.ID{1, 2, 3}
	idx.LobPageNo = 1
	idx.Bdba = 77
	assert.NilError(t, r.Route(vector.Pair{First: idx}))

	lobRec := rec(vector.OpLobData1301, xid.Xid(0))
	lobRec.Obj = 0
	lobRec.LobID = lob.ID{1, 2, 3}
	lobRec.LobPageNo = 1
	lobRec.Data = []byte{9}
	assert.NilError(t, r.Route(vector.Pair{First: lobRec}))

	owner, ok := r.buf.Find(xid.New(8, 8, 8), false)
	assert.Assert(t, ok)
	assert.DeepEqual(t, owner.LobCtx.Lobs[lob.ID{1, 2, 3}].DataMap[77], []byte{9})
}
