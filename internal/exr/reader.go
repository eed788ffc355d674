package exr

import (
	"encoding/binary"
	"fmt"
	"math"
)

// byteReader walks a little-endian buffer and reports truncation as ErrCorrupt.
type byteReader struct {
	buf []byte
	off int
}

func (r *byteReader) need(n int) error {
	if n < 0 || r.off+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrCorrupt, n, r.off, len(r.buf)-r.off)
	}
	return nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *byteReader) u8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) i32() (int32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *byteReader) u64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *byteReader) f32() (float32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// cstring reads a NUL-terminated string of at most maxLen bytes.
func (r *byteReader) cstring(maxLen int) (string, error) {
	for i := r.off; i < len(r.buf); i++ {
		if r.buf[i] != 0 {
			continue
		}
		if i-r.off > maxLen {
			return "", fmt.Errorf("%w: name longer than %d bytes", ErrCorrupt, maxLen)
		}
		s := string(r.buf[r.off:i])
		r.off = i + 1
		return s, nil
	}
	return "", fmt.Errorf("%w: unterminated string at offset %d", ErrCorrupt, r.off)
}

func (r *byteReader) box2i() (Box2i, error) {
	var v [4]int32
	for i := range v {
		x, err := r.i32()
		if err != nil {
			return Box2i{}, err
		}
		v[i] = x
	}
	return Box2i{XMin: v[0], YMin: v[1], XMax: v[2], YMax: v[3]}, nil
}
