// Package block defines the Reader contract (spec.md §6.1) that the
// RecordAssembler consumes, and RedoBlock, the fixed-size unit it reads.
//
// BlockReader itself is out of scope (spec.md §1, §2): production
// deployments plug in a file/archive/standby-tailing implementation. This
// package only defines the contract plus a minimal FileReader good enough
// to drive the parser against a flat redo file in tests and small tools.
package block

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ByteOrder matches the teacher's wal package convention, but redo block
// headers and LWN headers in this format are big-endian per spec.md §4.2
// ("op_code = (data[0] << 8) | data[1]").
var ByteOrder = binary.BigEndian

// HeaderSize is the fixed per-block header skipped before record payload
// bytes begin (spec.md §3.1).
const HeaderSize = 16

// FirstBlock is the first block number carrying record payload; blocks 0-1
// are the file header (spec.md §3.1).
const FirstBlock = 2

// RetStatus mirrors reader.get_ret() (spec.md §6.1).
type RetStatus int

const (
	RedoFinished RetStatus = iota
	RedoStopped
	RedoOverwritten
	RedoShutdown
)

// ErrNoMoreData is returned by Reader.Block when buffer_end <= the
// requested block and the reader has not reached a terminal RetStatus yet;
// the caller (RecordAssembler) must wait and retry (spec.md §5).
var ErrNoMoreData = errors.New("block: no more data buffered yet")

// Reader is the external collaborator contract from spec.md §6.1.
type Reader interface {
	BlockSize() int
	FirstSCN() uint64
	NextSCN() uint64

	// Block returns the raw bytes of block number n, or ErrNoMoreData if
	// the reader's ring buffer does not yet extend that far.
	Block(n uint64) ([]byte, error)

	// ConfirmReadData releases ring-buffer memory up to byteOffset; the
	// assembler calls this once it no longer needs bytes before that point.
	ConfirmReadData(byteOffset uint64) error

	// CheckFinished reports whether the reader has nothing more to deliver
	// past byteOffset for now.
	CheckFinished(byteOffset uint64) bool

	// GetRet returns the terminal status once the stream has ended.
	GetRet() (RetStatus, bool)
}

// FileReader is a minimal Reader over a flat redo file on disk. It is not
// the production BlockReader (out of scope per spec.md §1) but is complete
// enough to replay a file end to end in tests and the reference CLI.
type FileReader struct {
	f         *os.File
	blockSize int
	firstSCN  uint64
	nextSCN   uint64
	size      int64
}

// NewFileReader opens path and advises the kernel for sequential access,
// mirroring how a streaming log tailer would hint the OS page cache.
func NewFileReader(path string, blockSize int, firstSCN, nextSCN uint64) (*FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("block: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("block: stat %s: %w", path, err)
	}
	if err := unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL); err != nil {
		// Advisory only; some filesystems/platforms don't support it.
		_ = err
	}
	return &FileReader{f: f, blockSize: blockSize, firstSCN: firstSCN, nextSCN: nextSCN, size: info.Size()}, nil
}

func (r *FileReader) Close() error { return r.f.Close() }

func (r *FileReader) BlockSize() int   { return r.blockSize }
func (r *FileReader) FirstSCN() uint64 { return r.firstSCN }
func (r *FileReader) NextSCN() uint64  { return r.nextSCN }

func (r *FileReader) Block(n uint64) ([]byte, error) {
	off := int64(n) * int64(r.blockSize)
	if off+int64(r.blockSize) > r.size {
		return nil, ErrNoMoreData
	}
	buf := make([]byte, r.blockSize)
	if _, err := r.f.ReadAt(buf, off); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoMoreData
		}
		return nil, fmt.Errorf("block: read block %d: %w", n, err)
	}
	return buf, nil
}

func (r *FileReader) ConfirmReadData(byteOffset uint64) error { return nil }

func (r *FileReader) CheckFinished(byteOffset uint64) bool {
	return int64(byteOffset) >= r.size
}

func (r *FileReader) GetRet() (RetStatus, bool) {
	return RedoFinished, true
}
