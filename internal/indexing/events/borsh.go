package events

import (
	"encoding/binary"
	"errors"

	"github.com/mr-tron/base58"
)

var errShortBuffer = errors.New("borsh: unexpected end of data")

// reader decodes little-endian borsh fields. The first error sticks.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf) < n {
		r.err = errShortBuffer
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) i64() int64 {
	return int64(r.u64())
}

// pubkey reads 32 bytes and renders them as base58.
func (r *reader) pubkey() string {
	b := r.take(32)
	if b == nil {
		return ""
	}
	return base58.Encode(b)
}

// string reads a u32 length prefix followed by UTF-8 bytes.
func (r *reader) string() string {
	n := r.u32()
	if r.err != nil {
		return ""
	}
	if int64(n) > int64(len(r.buf)) {
		r.err = errShortBuffer
		return ""
	}
	return string(r.take(int(n)))
}
