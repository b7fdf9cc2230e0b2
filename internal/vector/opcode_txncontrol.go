package vector

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/leengari/redologparser/internal/xid"
)

// ktudhMinLen is the undo-header field's minimum length, grounded on
// original_source/src/OpCode0502.cpp's "if (fieldLength < 32)" guard.
const ktudhMinLen = 32

// ktudh parses the undo-header sub-record shared by the Begin (0x0502) and
// Undo (0x0501) vectors, grounded field-for-field on OpCode0502.cpp's
// ktudh() (lines 87-124): slt at +0, sqn at +4, uba(56-bit) at +8, flg at
// +16, siz at +18, fbi at +20.
//
// usn is not present in the ktudh field itself in the source (it is
// already known on the record before this field is reached); this
// implementation takes it from the vector's own Afn, which in this format
// doubles as the owning undo segment's file number.
func ktudh(r *RedoLogRecord, data []byte) error {
	if len(data) < ktudhMinLen {
		return fmt.Errorf("ktudh field too short: %d bytes", len(data))
	}
	slt := ByteOrder.Uint16(data[0:2])
	sqn := ByteOrder.Uint32(data[4:8])
	uba := read56(data[8:15])
	flg := ByteOrder.Uint16(data[16:18])
	fbi := data[20]

	r.Usn = uint16(r.Afn)
	r.Slt = slt
	r.Sqn = sqn
	r.Xid = xid.New(r.Usn, slt, sqn)
	r.Uba = uba
	r.FlgRecord = flg
	r.Fbi = fbi
	return nil
}

// decodeBegin implements the Begin (0x0502) vector, grounded on
// OpCode0502.cpp's process(): field 1 is always ktudh; field 2 is kteop
// when flg==0x0080, else pdb; field 3 is pdb only when flg!=0x0080.
func decodeBegin(log logr.Logger, r *RedoLogRecord, fields []field) error {
	if len(fields) < 1 {
		return nil
	}
	if err := ktudh(r, fields[0].bytes); err != nil {
		log.Info("begin vector: short ktudh field", "error", err.Error())
		return nil
	}

	for i := 1; i < len(fields); i++ {
		fb := fields[i].bytes
		isPdb := (i == 1 && r.FlgRecord != 0x0080) || (i == 2 && r.FlgRecord != 0x0080)
		switch {
		case i == 1 && r.FlgRecord == 0x0080:
			if len(fb) < 36 {
				log.Info("begin vector: short kteop field", "length", len(fb))
			}
			// kteop (extent-map redo) fields are diagnostic-only in this
			// implementation; nothing on RedoLogRecord depends on them.
		case isPdb:
			if len(fb) < 4 {
				log.Info("begin vector: short pdb field", "length", len(fb))
				continue
			}
			r.ConID = uint32(read56(fb[0:7]))
		}
	}
	return nil
}

// decodeUndo implements the Undo (0x0501) vector: field 1 is the same
// ktudh sub-record as Begin's; an optional field 2 carries the obj/
// data_obj/bdba this undo applies to (spec.md §4.2's Undo family table).
func decodeUndo(log logr.Logger, r *RedoLogRecord, fields []field) error {
	if len(fields) < 1 {
		return nil
	}
	if err := ktudh(r, fields[0].bytes); err != nil {
		log.Info("undo vector: short ktudh field", "error", err.Error())
		return nil
	}
	if len(fields) >= 2 {
		fb := fields[1].bytes
		if len(fb) < 12 {
			log.Info("undo vector: short object-header field", "length", len(fb))
			return nil
		}
		r.Obj = ByteOrder.Uint32(fb[0:4])
		r.DataObj = ByteOrder.Uint32(fb[4:8])
		r.Bdba = ByteOrder.Uint32(fb[8:12])
	}
	return nil
}

// decodeCommit implements the Commit (0x0504) vector. The rollback-commit
// bit and the commit scn/timestamp live on the generic vector header
// (FlgRecord, ScnRecord) already decoded before dispatch; nothing
// opcode-specific remains to parse (spec.md §4.3, Commit finalisation).
func decodeCommit(log logr.Logger, r *RedoLogRecord, fields []field) error {
	return nil
}

// decodeRollback implements the partial-rollback vectors (0x0506/0x050B):
// an optional field names the (obj, bdba, slot) of the operation being
// undone, used by Transaction.RollbackLastOp (spec.md §4.4).
func decodeRollback(log logr.Logger, r *RedoLogRecord, fields []field) error {
	if len(fields) < 1 {
		return nil
	}
	fb := fields[0].bytes
	if len(fb) < 10 {
		log.Info("rollback vector: short target field", "length", len(fb))
		return nil
	}
	r.Obj = ByteOrder.Uint32(fb[0:4])
	r.Bdba = ByteOrder.Uint32(fb[4:8])
	r.Slot = ByteOrder.Uint16(fb[8:10])
	return nil
}

func decodeSession(log logr.Logger, r *RedoLogRecord, fields []field) error {
	return nil // metadata only, spec.md §4.2
}
