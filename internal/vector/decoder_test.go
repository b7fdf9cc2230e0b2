package vector

import (
	"testing"

	"github.com/go-logr/logr"
	"gotest.tools/v3/assert"

	"github.com/leengari/redologparser/internal/config"
)

// buildVector encodes one short-header (pre-12c) vector: the fixed 24-byte
// header, a field-lengths array for fieldData, then each field padded to a
// 4-byte boundary (spec.md §4.2).
func buildVector(opcode OpCode, fieldData [][]byte) []byte {
	var out []byte
	header := make([]byte, vectorHeaderLenShort)
	ByteOrder.PutUint16(header[0:2], uint16(opcode))
	out = append(out, header...)

	lengths := make([]byte, 2+len(fieldData)*2)
	ByteOrder.PutUint16(lengths[0:2], uint16(len(lengths)))
	for i, f := range fieldData {
		ByteOrder.PutUint16(lengths[2+i*2:4+i*2], uint16(len(f)))
	}
	out = append(out, alignPad(lengths)...)

	for _, f := range fieldData {
		out = append(out, alignPad(f)...)
	}
	return out
}

func alignPad(b []byte) []byte {
	n := fieldAlign(len(b))
	padded := make([]byte, n)
	copy(padded, b)
	return padded
}

// buildRecord wraps one or more encoded vectors in the short (pre-12c)
// record header: a 4-byte record length and a vld byte with bit 0x04 clear.
func buildRecord(vectors ...[]byte) []byte {
	body := make([]byte, RecordHeaderLenShort)
	var all []byte
	all = append(all, body...)
	for _, v := range vectors {
		all = append(all, v...)
	}
	ByteOrder.PutUint32(all[0:4], uint32(len(all)))
	return all
}

func TestDecodeDataDMLVector(t *testing.T) {
	bdbaSlot := make([]byte, 6)
	ByteOrder.PutUint32(bdbaSlot[0:4], 0xdeadbeef)
	ByteOrder.PutUint16(bdbaSlot[4:6], 7)

	v := buildVector(OpCode(0x0B02), [][]byte{bdbaSlot})
	record := buildRecord(v)

	d := New(config.Default(), logr.Discard())
	pairs, err := d.Decode(1, 0, record)
	assert.NilError(t, err)
	assert.Equal(t, len(pairs), 1)
	assert.Equal(t, pairs[0].First.Bdba, uint32(0xdeadbeef))
	assert.Equal(t, pairs[0].First.Slot, uint16(7))
	assert.Assert(t, pairs[0].Second == nil)
}

func TestUndoDataDMLPairing(t *testing.T) {
	ktudhField := make([]byte, ktudhMinLen)
	ByteOrder.PutUint16(ktudhField[0:2], 11) // slt
	ByteOrder.PutUint32(ktudhField[4:8], 22) // sqn
	objHeader := make([]byte, 12)
	ByteOrder.PutUint32(objHeader[0:4], 100) // obj
	ByteOrder.PutUint32(objHeader[4:8], 200) // data_obj

	undo := buildVector(OpUndo, [][]byte{ktudhField, objHeader})

	bdbaSlot := make([]byte, 6)
	ByteOrder.PutUint32(bdbaSlot[0:4], 0x1234)
	dml := buildVector(OpCode(0x0B02), [][]byte{bdbaSlot})

	record := buildRecord(undo, dml)

	d := New(config.Default(), logr.Discard())
	pairs, err := d.Decode(1, 0, record)
	assert.NilError(t, err)
	assert.Equal(t, len(pairs), 1)
	assert.Assert(t, pairs[0].Second != nil)
	assert.Equal(t, pairs[0].First.Xid.SLT(), uint16(11))
	// obj/data_obj promoted from the undo companion onto the DML vector.
	assert.Equal(t, pairs[0].Second.Obj, uint32(100))
	assert.Equal(t, pairs[0].Second.DataObj, uint32(200))
}
