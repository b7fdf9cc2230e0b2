package xid

import (
	"testing"

	"github.com/go-logr/logr"
	"gotest.tools/v3/assert"
)

func TestNewAndAccessors(t *testing.T) {
	x := New(0x1234, 0x5678, 0x9abcdef0)
	assert.Equal(t, x.USN(), uint16(0x1234))
	assert.Equal(t, x.SLT(), uint16(0x5678))
	assert.Equal(t, x.SQN(), uint32(0x9abcdef0))
}

func TestParent(t *testing.T) {
	x := New(1, 2, 99)
	p := x.Parent()
	assert.Equal(t, p.USN(), uint16(1))
	assert.Equal(t, p.SLT(), uint16(2))
	assert.Equal(t, p.SQN(), uint32(0))
	assert.Assert(t, p.IsZero())
	assert.Assert(t, !x.IsZero())
}

func TestString(t *testing.T) {
	x := New(1, 2, 3)
	assert.Equal(t, x.String(), "0x0001.0002.00000003")
}

func TestParseParentXidTruncated(t *testing.T) {
	got := ParseParentXidTruncated(logr.Discard(), 0x1111, 0x2222, 0x00010002)
	assert.Equal(t, got.USN(), uint16(0))
	assert.Equal(t, got.SLT(), uint16(0))
	assert.Equal(t, got.SQN(), uint32(0x0002))
}
