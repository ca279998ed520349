package decoder

import (
	"encoding/binary"
	"fmt"
)

// bitReader reads little-endian bit fields, least significant bit first,
// the layout Victron uses for its readout records.
type bitReader struct {
	data []byte
	pos  int // in bits
}

func newBitReader(data []byte) *bitReader {
	return &bitReader{data: data}
}

// unsigned reads an n-bit unsigned field, 1 <= n <= 64.
func (r *bitReader) unsigned(n int) (uint64, error) {
	if n < 1 || n > 64 {
		return 0, fmt.Errorf("bit field width %d out of range", n)
	}
	if r.pos+n > len(r.data)*8 {
		return 0, fmt.Errorf("%w: need bit %d, have %d", ErrPayloadTooShort, r.pos+n, len(r.data)*8)
	}

	var v uint64
	for i := 0; i < n; i++ {
		bit := r.pos + i
		if r.data[bit/8]&(1<<(bit%8)) != 0 {
			v |= 1 << i
		}
	}
	r.pos += n
	return v, nil
}

// signed reads an n-bit two's complement field.
func (r *bitReader) signed(n int) (int64, error) {
	v, err := r.unsigned(n)
	if err != nil {
		return 0, err
	}
	if n < 64 && v&(1<<(n-1)) != 0 {
		v |= ^uint64(0) << n
	}
	return int64(v), nil
}

// fieldReader reads fixed-width fields sequentially at byte granularity.
// Every read is checked against len(data).
type fieldReader struct {
	data  []byte
	off   int
	order binary.ByteOrder
}

func newFieldReader(data []byte, order binary.ByteOrder) *fieldReader {
	return &fieldReader{data: data, order: order}
}

func (r *fieldReader) take(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrPayloadTooShort, n, r.off, len(r.data))
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *fieldReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *fieldReader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *fieldReader) i16() (int16, error) {
	v, err := r.u16()
	return int16(v), err
}

func (r *fieldReader) i32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(r.order.Uint32(b)), nil
}

func (r *fieldReader) bytes(n int) ([]byte, error) {
	return r.take(n)
}
