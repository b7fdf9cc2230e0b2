package vector

import (
	"encoding/binary"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/leengari/redologparser/internal/config"
)

// ByteOrder matches spec.md §4.2's explicit big-endian opcode encoding
// ("op_code = (data[0] << 8) | data[1]"); the rest of the vector header
// follows the same convention.
var ByteOrder = binary.BigEndian

// RecordHeaderLenShort is the pre-12c record header length (spec.md §4.2).
const RecordHeaderLenShort = 24

// RecordHeaderLenExtended is the 12c+ record header length, carrying
// SCN48/SCN64 + LWN-back-pointer + con_uid (spec.md §4.2).
const RecordHeaderLenExtended = 68

// vectorHeaderLenShort / vectorHeaderLenExtended are the offsets at which
// each vector's field-lengths array begins (spec.md §4.2).
const (
	vectorHeaderLenShort    = 24
	vectorHeaderLenExtended = 32
)

// fieldAlign rounds length up to a multiple of 4 (spec.md §4.1, §4.2).
func fieldAlign(n int) int { return (n + 3) &^ 3 }

// Decoder errors, spec.md §4.1/§4.2/§7.
type DecodeError struct {
	Block  uint64
	Offset int
	Detail string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("vector: block %d offset %d: %s", e.Block, e.Offset, e.Detail)
}

// VectorDecoder parses one LwnMember payload into 1..N change vectors and
// pairs companions (spec.md §4.2).
type VectorDecoder struct {
	cfg config.Config
	log logr.Logger
}

func New(cfg config.Config, log logr.Logger) *VectorDecoder {
	return &VectorDecoder{cfg: cfg, log: log.WithName("vector")}
}

// Decode parses payload (one LwnMember's bytes) into companion pairs.
// block/baseOffset are the origin coordinates carried through onto each
// RedoLogRecord for diagnostics (spec.md §3.1).
func (d *VectorDecoder) Decode(block uint64, baseOffset int, payload []byte) ([]Pair, error) {
	if len(payload) < 5 {
		return nil, &DecodeError{Block: block, Offset: baseOffset, Detail: "record too small for header"}
	}
	recordLength := int(ByteOrder.Uint32(payload[0:4]))
	vld := payload[4]

	headerLen := RecordHeaderLenShort
	if vld&0x04 != 0 {
		headerLen = RecordHeaderLenExtended
	}
	if recordLength > len(payload) {
		recordLength = len(payload)
	}
	if headerLen > recordLength {
		return nil, &DecodeError{Block: block, Offset: baseOffset, Detail: "record header overruns record length"}
	}

	extended := vld&0x04 != 0

	var pairs []Pair
	var prev *RedoLogRecord

	pos := headerLen
	for pos < recordLength {
		rec, next, err := d.decodeOneVector(block, baseOffset+pos, payload[pos:recordLength], extended)
		if err != nil {
			return pairs, err
		}
		if rec == nil {
			break
		}
		pos += next

		if rec.OpCode == OpDDL && !d.cfg.Has(config.FlagTrackDDL) {
			continue // DDL markers are only emitted when DDL tracking is on
		}
		pairs, prev = d.pair(pairs, prev, rec)
	}
	if prev != nil {
		pairs = append(pairs, Pair{First: prev})
	}
	return pairs, nil
}

// pair implements the companion-pairing state machine from spec.md §4.2:
// keep prev/cur slots; undo+data/index/session -> pair; rollback after
// data/index -> rollback pair; otherwise flush prev alone.
func (d *VectorDecoder) pair(pairs []Pair, prev *RedoLogRecord, cur *RedoLogRecord) ([]Pair, *RedoLogRecord) {
	if prev == nil {
		return pairs, cur
	}

	if prev.IsUndo() && !prev.IsMultiBlockUndo() && (cur.OpCode.IsDataDML() || cur.OpCode.IsIndexLob() ||
		cur.OpCode == OpSession0513 || cur.OpCode == OpSession0514) {
		promoteCompanionMeta(prev, cur)
		pairs = append(pairs, Pair{First: prev, Second: cur})
		return pairs, nil
	}

	if cur.IsRollback() && (prev.OpCode.IsDataDML() || prev.OpCode.IsIndexLob()) {
		pairs = append(pairs, Pair{First: prev, Second: cur})
		return pairs, nil
	}

	// Both slots filled without pairing: emit prev alone, cur becomes prev.
	pairs = append(pairs, Pair{First: prev})
	return pairs, cur
}

// promoteCompanionMeta copies obj/data_obj from the undo vector onto its
// redo companion before routing (spec.md §4.2, testable property #2).
func promoteCompanionMeta(undo, redo *RedoLogRecord) {
	redo.Obj = undo.Obj
	redo.DataObj = undo.DataObj
}

// decodeOneVector parses the vector header + field-lengths array at the
// start of data, dispatches to the opcode-specific decoder, and returns the
// number of bytes consumed (so the caller can advance pos). extended
// selects the 12c+ header layout (con_id, flg) versus the short pre-12c
// one; it comes from the owning record's vld byte, not from data's length,
// since data is the remaining record slice and may run well past this
// vector's own extent (spec.md §4.2).
func (d *VectorDecoder) decodeOneVector(block uint64, offset int, data []byte, extended bool) (*RedoLogRecord, int, error) {
	if len(data) < 22 {
		return nil, 0, nil // trailing padding, not a full vector header
	}

	r := &RedoLogRecord{Block: block, Offset: offset}
	r.OpCode = OpCode(ByteOrder.Uint16(data[0:2]))
	r.Cls = ByteOrder.Uint16(data[2:4])
	r.Afn = ByteOrder.Uint32(data[4:8]) & 0xFFFF
	r.Dba = ByteOrder.Uint32(data[8:12])
	r.ScnRecord = read48(data[12:18])
	r.Seq = data[20]
	r.Typ = data[21]

	headerLen := vectorHeaderLenShort
	if extended {
		if len(data) < vectorHeaderLenExtended {
			return nil, 0, &DecodeError{Block: block, Offset: offset, Detail: "extended vector header overruns record"}
		}
		r.ConID = uint32(ByteOrder.Uint16(data[24:26]))
		r.FlgRecord = ByteOrder.Uint16(data[28:30])
		headerLen = vectorHeaderLenExtended
	}
	if len(data) < headerLen+2 {
		return nil, 0, &DecodeError{Block: block, Offset: offset, Detail: "field list overruns record"}
	}

	firstU16 := int(ByteOrder.Uint16(data[headerLen : headerLen+2]))
	if firstU16 < 2 {
		return nil, 0, &DecodeError{Block: block, Offset: offset, Detail: "invalid field-lengths header"}
	}
	fieldCnt := (firstU16 - 2) / 2
	fieldPos := headerLen + fieldAlign(firstU16)
	if fieldPos > len(data) {
		return nil, 0, &DecodeError{Block: block, Offset: offset, Detail: "field_pos exceeds record length"}
	}

	r.FieldCnt = fieldCnt
	r.FieldLengthsDelta = headerLen
	r.FieldPos = fieldPos

	fields, consumed, err := readFields(data, headerLen, fieldPos, fieldCnt)
	if err != nil {
		return nil, 0, &DecodeError{Block: block, Offset: offset, Detail: err.Error()}
	}
	r.Data = data[:consumed]

	if err := dispatch(d.log, r, fields); err != nil {
		return nil, 0, err
	}

	return r, consumed, nil
}

// field is one decoded field: its bytes within data, already bounds-checked.
type field struct {
	bytes []byte
}

// readFields walks the field-lengths array starting at index 1 (index 0 is
// the lengths-array's own size, already consumed into fieldPos) and slices
// out each field's bytes from fieldPos onward, validating running bounds
// per spec.md §4.2 / §3.2.
func readFields(data []byte, lengthsStart, fieldPos, fieldCnt int) ([]field, int, error) {
	fields := make([]field, 0, fieldCnt)
	pos := fieldPos
	total := len(data)
	for i := 1; i <= fieldCnt; i++ {
		lenOff := lengthsStart + i*2
		if lenOff+2 > total {
			return nil, 0, fmt.Errorf("field length list overrun at field %d", i)
		}
		flen := int(ByteOrder.Uint16(data[lenOff : lenOff+2]))
		if pos+flen > total {
			return nil, 0, fmt.Errorf("field %d overruns record (pos=%d len=%d total=%d)", i, pos, flen, total)
		}
		fields = append(fields, field{bytes: data[pos : pos+flen]})
		pos += fieldAlign(flen)
		if pos > total {
			return nil, 0, fmt.Errorf("field %d padded length overruns record", i)
		}
	}
	return fields, pos, nil
}

func read48(b []byte) uint64 {
	_ = b[5]
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 | uint64(b[4])<<32 | uint64(b[5])<<40
}

// read56 reads a 56-bit (7-byte) big-endian quantity, used for the undo
// block address (uba) and pdb id sub-fields (spec.md §4.2).
func read56(b []byte) uint64 {
	_ = b[6]
	var v uint64
	for i := 0; i < 7; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
