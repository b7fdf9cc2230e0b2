// Package vector implements the VectorDecoder (spec.md §4.2): decoding one
// LwnMember's payload into 1..N change vectors and pairing companions.
package vector

import (
	"github.com/leengari/redologparser/internal/lob"
	"github.com/leengari/redologparser/internal/xid"
)

// OpCode identifies a redo change-vector family (spec.md §3.1).
type OpCode uint16

const (
	OpUndo            OpCode = 0x0501
	OpBegin           OpCode = 0x0502
	OpCommit          OpCode = 0x0504
	OpRollback1       OpCode = 0x0506
	OpRollback2       OpCode = 0x050B
	OpSession0513     OpCode = 0x0513
	OpSession0514     OpCode = 0x0514
	OpLobData1301     OpCode = 0x1301
	OpLobData1A06     OpCode = 0x1A06
	OpDDL             OpCode = 0x1801
	OpIndexInsert0A02 OpCode = 0x0A02
	OpIndexInit0A08   OpCode = 0x0A08
	OpIndexUpdate0A12 OpCode = 0x0A12

	// OpDataInsert0B02 is the specific Data DML opcode the schema filter's
	// OPTIONS_DEBUG_TABLE check keys on to mark a transaction shutdown
	// (spec.md §4.3).
	OpDataInsert0B02 OpCode = 0x0B02
)

// IsDataDML reports whether op is in the 0x0B02..0x0B16 Data DML family
// (spec.md §4.2).
func (op OpCode) IsDataDML() bool { return op >= 0x0B02 && op <= 0x0B16 }

// IsIndexLob reports whether op is in the experimental index/LOB family.
func (op OpCode) IsIndexLob() bool {
	return op == OpIndexInsert0A02 || op == OpIndexInit0A08 || op == OpIndexUpdate0A12
}

// IsLobData reports whether op carries standalone LOB data.
func (op OpCode) IsLobData() bool { return op == OpLobData1301 || op == OpLobData1A06 }

// Flag bits carried in the vector header / undo header (spec.md §4.2).
const (
	FlgMultiBlockUndoTail uint16 = 0x0008
	FlgMultiBlockUndoMid  uint16 = 0x0010
	FlgRollbackOp0504     uint16 = 0x0002
)

// RedoLogRecord is one decoded change vector (spec.md §3.1).
type RedoLogRecord struct {
	OpCode OpCode
	Cls    uint16
	Afn    uint32
	Dba    uint32

	ScnRecord uint64
	Seq       uint8
	Typ       uint8
	FlgRecord uint16
	ConID     uint32

	Xid               xid.Xid
	Usn               uint16
	Slt               uint16
	Sqn               uint32
	Uba               uint64
	Obj               uint32
	DataObj           uint32
	Bdba              uint32
	Slot              uint16
	FieldCnt          int
	FieldLengthsDelta int
	FieldPos          int

	// Data is the vector's payload slice into the assembled record (not a
	// copy), valid only for the lifetime of the owning LwnMember's arena
	// chunk.
	Data []byte

	// LOB-specific fields (0x0A02/0A08/0A12/0x1301/0x1A06).
	LobID        lob.ID
	LobPageNo    lob.PageNo
	IndKey       []byte
	IndKeyLength int

	// DDL-specific.
	DDLType uint16
	DDLSeq  uint16
	DDLText string

	// Opaque metadata copied through unchanged per spec.md §9's open
	// question; never branched on by this implementation.
	Fbi byte
	Rbl uint32

	// Block/offset origin coordinates (spec.md §3.1).
	Block  uint64
	Offset int
}

// IsUndo / IsBegin / IsCommit / IsRollback classify the vector's family for
// the pairing state machine in decoder.go.
func (r *RedoLogRecord) IsUndo() bool     { return r.OpCode == OpUndo }
func (r *RedoLogRecord) IsBegin() bool    { return r.OpCode == OpBegin }
func (r *RedoLogRecord) IsCommit() bool   { return r.OpCode == OpCommit }
func (r *RedoLogRecord) IsRollback() bool { return r.OpCode == OpRollback1 || r.OpCode == OpRollback2 }

// IsMultiBlockUndo reports whether this undo vector's flags mean "no redo
// companion expected" (spec.md §4.2, Undo family).
func (r *RedoLogRecord) IsMultiBlockUndo() bool {
	return r.FlgRecord&FlgMultiBlockUndoTail != 0 || r.FlgRecord&FlgMultiBlockUndoMid != 0
}

// Pair is a companion pair of vectors, or a lone vector when no companion
// ever arrived (spec.md §4.2).
type Pair struct {
	First  *RedoLogRecord
	Second *RedoLogRecord // nil for single-undo / multi-block undo
}
