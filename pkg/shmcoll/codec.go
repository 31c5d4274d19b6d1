package shmcoll

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/calvinalkan/shmtable/pkg/ordhash"
)

// Codec converts T to and from a fixed number of bytes.
//
// Encode writes exactly Size bytes into dst, which has length Size. Decode
// must not retain src: it aliases shared memory.
type Codec[T any] interface {
	Size() int
	Encode(dst []byte, v T) error
	Decode(src []byte) T
}

// Uint64 encodes big-endian, so byte order matches numeric order.
func Uint64() Codec[uint64] { return uint64Codec{} }

// Uint32 encodes big-endian.
func Uint32() Codec[uint32] { return uint32Codec{} }

// Int64 encodes big-endian with the sign bit flipped, so byte order matches
// numeric order.
func Int64() Codec[int64] { return int64Codec{} }

// String stores strings of up to n bytes after NFC normalization, padded with
// zero bytes. Canonically equivalent strings therefore map to the same key.
// Strings containing NUL are rejected.
func String(n int) Codec[string] { return stringCodec{n: n} }

// Bytes stores byte slices of exactly n bytes. Decode returns a copy.
func Bytes(n int) Codec[[]byte] { return bytesCodec{n: n} }

// Empty is a zero-width codec for set members.
func Empty() Codec[struct{}] { return emptyCodec{} }

type uint64Codec struct{}

func (uint64Codec) Size() int { return 8 }

func (uint64Codec) Encode(dst []byte, v uint64) error {
	binary.BigEndian.PutUint64(dst, v)
	return nil
}

func (uint64Codec) Decode(src []byte) uint64 { return binary.BigEndian.Uint64(src) }

type uint32Codec struct{}

func (uint32Codec) Size() int { return 4 }

func (uint32Codec) Encode(dst []byte, v uint32) error {
	binary.BigEndian.PutUint32(dst, v)
	return nil
}

func (uint32Codec) Decode(src []byte) uint32 { return binary.BigEndian.Uint32(src) }

type int64Codec struct{}

const signBit = 1 << 63

func (int64Codec) Size() int { return 8 }

func (int64Codec) Encode(dst []byte, v int64) error {
	binary.BigEndian.PutUint64(dst, uint64(v)^signBit)
	return nil
}

func (int64Codec) Decode(src []byte) int64 {
	return int64(binary.BigEndian.Uint64(src) ^ signBit)
}

type stringCodec struct{ n int }

func (c stringCodec) Size() int { return c.n }

func (c stringCodec) Encode(dst []byte, v string) error {
	s := norm.NFC.String(v)

	if len(s) > c.n {
		return fmt.Errorf("string of %d bytes exceeds width %d: %w", len(s), c.n, ordhash.ErrInvalidInput)
	}

	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("string contains NUL: %w", ordhash.ErrInvalidInput)
	}

	clear(dst[copy(dst, s):])

	return nil
}

func (c stringCodec) Decode(src []byte) string {
	if i := bytes.IndexByte(src, 0); i >= 0 {
		src = src[:i]
	}

	return string(src)
}

type bytesCodec struct{ n int }

func (c bytesCodec) Size() int { return c.n }

func (c bytesCodec) Encode(dst []byte, v []byte) error {
	if len(v) != c.n {
		return fmt.Errorf("got %d bytes, want exactly %d: %w", len(v), c.n, ordhash.ErrInvalidInput)
	}

	copy(dst, v)

	return nil
}

func (c bytesCodec) Decode(src []byte) []byte { return bytes.Clone(src) }

type emptyCodec struct{}

func (emptyCodec) Size() int { return 0 }

func (emptyCodec) Encode([]byte, struct{}) error { return nil }

func (emptyCodec) Decode([]byte) struct{} { return struct{}{} }
