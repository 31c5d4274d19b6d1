// Package testutil holds helpers shared by the fuzz tests.
package testutil

import "encoding/binary"

// ByteStream reads bytes sequentially from a fuzz input.
//
// An exhausted stream keeps returning zero values, so the same input always
// decodes to the same sequence of operations.
type ByteStream struct {
	bytes []byte
	pos   int
}

// NewByteStream creates a stream over the given bytes.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{bytes: b}
}

// HasMore reports whether unread bytes remain.
func (s *ByteStream) HasMore() bool {
	return s.pos < len(s.bytes)
}

// NextByte returns the next byte, or 0 if exhausted.
func (s *ByteStream) NextByte() byte {
	if s.pos >= len(s.bytes) {
		return 0
	}

	v := s.bytes[s.pos]
	s.pos++

	return v
}

// NextUint32 reads four bytes little-endian, zero-padded when exhausted.
func (s *ByteStream) NextUint32() uint32 {
	var buf [4]byte
	for i := range buf {
		buf[i] = s.NextByte()
	}

	return binary.LittleEndian.Uint32(buf[:])
}

// NextInt returns an int in [0, maxVal) derived from the next byte.
func (s *ByteStream) NextInt(maxVal int) int {
	if maxVal <= 0 {
		return 0
	}

	return int(s.NextByte()) % maxVal
}

// NextIndex returns an int in [0, n) derived from the next two bytes, for
// ranges wider than a byte such as region offsets.
func (s *ByteStream) NextIndex(n int) int {
	if n <= 0 {
		return 0
	}

	v := int(s.NextByte()) | int(s.NextByte())<<8

	return v % n
}

// NextBool returns a boolean derived from the next byte.
func (s *ByteStream) NextBool() bool {
	return s.NextByte()&1 == 1
}

// NextWeighted picks an index into weights with probability proportional to
// its weight. All-zero weights pick 0.
func (s *ByteStream) NextWeighted(weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}

	if total <= 0 {
		return 0
	}

	n := int(s.NextByte()) % total

	for i, w := range weights {
		n -= w
		if n < 0 {
			return i
		}
	}

	return 0
}
