// Package bitbuf implements the fixed-width bit buffer that the telemetry
// frame encoders build on.
//
// Bit i lives in byte i/8 at bit position i%8, so bit 0 of every byte is
// its least significant bit. Multi-bit fields are written least significant
// bit first.
package bitbuf

import (
	"errors"
	"fmt"
	"strings"
)

// ErrOutOfRange is returned when a bit index or field span falls outside
// the buffer.
var ErrOutOfRange = errors.New("bit index out of range")

// maxField is the widest field WriteField and Field accept.
const maxField = 32

// Buffer is a fixed-width, bit-addressable buffer.
// It is not safe for concurrent mutation.
type Buffer struct {
	width  int
	octets []byte
}

// New creates a zeroed buffer of width bits.
func New(width int) *Buffer {
	if width < 0 {
		panic(fmt.Sprintf("bitbuf: negative width %d", width))
	}
	return &Buffer{
		width:  width,
		octets: make([]byte, (width+7)/8),
	}
}

// FromBytes wraps a copy of data as a buffer of width bits, for decoding
// received frames. Bytes past width are ignored.
func FromBytes(width int, data []byte) (*Buffer, error) {
	b := New(width)
	if len(data) < len(b.octets) {
		return nil, fmt.Errorf("%w: need %d bytes for %d bits, have %d",
			ErrOutOfRange, len(b.octets), width, len(data))
	}
	copy(b.octets, data)
	return b, nil
}

// Width returns the number of addressable bits.
func (b *Buffer) Width() int {
	return b.width
}

func (b *Buffer) check(first, count int) error {
	if first < 0 || count < 0 || first+count > b.width {
		return fmt.Errorf("%w: bits [%d,%d) of %d", ErrOutOfRange, first, first+count, b.width)
	}
	return nil
}

// Get returns bit i as 0 or 1.
func (b *Buffer) Get(i int) (uint8, error) {
	if err := b.check(i, 1); err != nil {
		return 0, err
	}
	return (b.octets[i/8] >> (i % 8)) & 0x01, nil
}

// Set sets bit i to 1 if v is non-zero, else clears it.
func (b *Buffer) Set(i int, v uint8) error {
	if err := b.check(i, 1); err != nil {
		return err
	}
	mask := byte(1) << (i % 8)
	if v != 0 {
		b.octets[i/8] |= mask
	} else {
		b.octets[i/8] &^= mask
	}
	return nil
}

// WriteField writes the low count bits of value starting at bit first,
// least significant bit first. Nothing is written if the span is invalid.
func (b *Buffer) WriteField(first, count int, value uint32) error {
	if count > maxField {
		return fmt.Errorf("%w: field of %d bits", ErrOutOfRange, count)
	}
	if err := b.check(first, count); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		// span already checked
		_ = b.Set(first+i, uint8((value>>i)&0x01))
	}
	return nil
}

// Field reads count bits starting at bit first, least significant bit first.
func (b *Buffer) Field(first, count int) (uint32, error) {
	if count > maxField {
		return 0, fmt.Errorf("%w: field of %d bits", ErrOutOfRange, count)
	}
	if err := b.check(first, count); err != nil {
		return 0, err
	}
	var v uint32
	for i := 0; i < count; i++ {
		bit, _ := b.Get(first + i)
		v |= uint32(bit) << i
	}
	return v, nil
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.octets))
	copy(out, b.octets)
	return out
}

// String renders the bits in index order, e.g. "[0,1,1]".
func (b *Buffer) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < b.width; i++ {
		if i > 0 {
			sb.WriteByte(',')
		}
		bit, _ := b.Get(i)
		sb.WriteByte('0' + bit)
	}
	sb.WriteByte(']')
	return sb.String()
}
