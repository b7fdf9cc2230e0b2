package assembler

import (
	"testing"

	"github.com/go-logr/logr"
	"gotest.tools/v3/assert"

	"github.com/leengari/redologparser/internal/block"
)

// memReader is a minimal in-memory block.Reader backing one fixed set of
// blocks, enough to drive RecordAssembler end to end without a real file.
type memReader struct {
	blockSize int
	blocks    [][]byte
}

func (m *memReader) BlockSize() int   { return m.blockSize }
func (m *memReader) FirstSCN() uint64 { return 0 }
func (m *memReader) NextSCN() uint64  { return 0 }

func (m *memReader) Block(n uint64) ([]byte, error) {
	if int(n) >= len(m.blocks) {
		return nil, block.ErrNoMoreData
	}
	return m.blocks[n], nil
}

func (m *memReader) ConfirmReadData(byteOffset uint64) error { return nil }
func (m *memReader) CheckFinished(byteOffset uint64) bool    { return true }
func (m *memReader) GetRet() (block.RetStatus, bool)         { return block.RedoFinished, true }

// buildLwnBlock constructs one single-block LWN group: a 16-byte block
// header, a 24-byte LWN descriptor (scn, num_blocks=1, num_recs), and a
// single record. The record must already start with its own 4-byte length,
// which is how the assembler frames records.
func buildLwnBlock(blockSize int, scn uint64, rec []byte) []byte {
	buf := make([]byte, blockSize)
	lwn := buf[block.HeaderSize:]
	ByteOrder.PutUint64(lwn[0:8], scn)
	ByteOrder.PutUint32(lwn[8:12], 1) // num_blocks
	ByteOrder.PutUint32(lwn[12:16], 1)

	body := lwn[lwnHeaderSize:]
	copy(body, rec)
	return buf
}

// putRecordSCN writes scn into rec's own 48-bit packed-scn field, using the
// same little-endian-first byte order as read48.
func putRecordSCN(rec []byte, scn uint64) {
	b := rec[recordHeaderSCNOff:recordHeaderSCNEnd]
	for i := 0; i < 6; i++ {
		b[i] = byte(scn >> (8 * uint(i)))
	}
}

func TestAssemblerReadsOneLWN(t *testing.T) {
	blockSize := 512
	recLen := 16
	rec := make([]byte, recLen)
	ByteOrder.PutUint32(rec[0:4], uint32(recLen))
	ByteOrder.PutUint32(rec[4:8], 0xAABBCCDD) // sub_scn
	putRecordSCN(rec, 2000)

	blk0 := buildLwnBlock(blockSize, 1000, rec)
	blocks := make([][]byte, block.FirstBlock+1)
	blocks[block.FirstBlock] = blk0

	r := &memReader{blockSize: blockSize, blocks: blocks}
	a := New(r, logr.Discard())

	lwn, err := a.Next()
	assert.NilError(t, err)
	assert.Equal(t, lwn.SCN, uint64(1000))
	assert.Equal(t, len(lwn.Members), 1)
	assert.Equal(t, lwn.Members[0].SubSCN, uint32(0xAABBCCDD))
	// The record's own packed scn must be used, not the lwn-level scn, even
	// though they happen to differ here (spec.md §3.1 LwnMember.scn, §4.1
	// sort, §8 invariants #1/#4).
	assert.Equal(t, lwn.Members[0].SCN, uint64(2000))
}

func TestAssemblerNoMoreData(t *testing.T) {
	r := &memReader{blockSize: 512, blocks: nil}
	a := New(r, logr.Discard())
	_, err := a.Next()
	assert.Equal(t, err, block.ErrNoMoreData)
}
