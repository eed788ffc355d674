package exr

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

const (
	rleMinRun = 3
	rleMaxRun = 127
)

// decompress expands one chunk to exactly rawSize bytes. A chunk whose packed
// size equals rawSize was stored uncompressed by the writer.
func decompress(c Compression, src []byte, rawSize int) ([]byte, error) {
	if c == CompressionNone || len(src) == rawSize {
		if len(src) != rawSize {
			return nil, fmt.Errorf("%w: chunk holds %d bytes, want %d", ErrCorrupt, len(src), rawSize)
		}
		return src, nil
	}

	var (
		tmp []byte
		err error
	)
	switch c {
	case CompressionZIP, CompressionZIPS:
		tmp, err = zipDecompress(src, rawSize)
	case CompressionRLE:
		tmp, err = rleDecompress(src, rawSize)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
	}
	if err != nil {
		return nil, err
	}
	undoPredictor(tmp)
	return deinterleave(tmp), nil
}

// compress is the inverse of decompress. It falls back to the raw bytes
// when compression would not shrink the chunk.
func compress(c Compression, raw []byte) ([]byte, error) {
	if c == CompressionNone {
		return raw, nil
	}
	tmp := interleave(raw)
	applyPredictor(tmp)

	var (
		out []byte
		err error
	)
	switch c {
	case CompressionZIP, CompressionZIPS:
		out, err = zipCompress(tmp)
	case CompressionRLE:
		out = rleCompress(tmp)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
	}
	if err != nil {
		return nil, err
	}
	if len(out) >= len(raw) {
		return raw, nil
	}
	return out, nil
}

func zipDecompress(src []byte, rawSize int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()
	out := make([]byte, rawSize)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("%w: inflate: %v", ErrCorrupt, err)
	}
	return out, nil
}

func zipCompress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rleDecompress: a negative count byte -n is followed by n literal bytes,
// a non-negative count n by one byte repeated n+1 times.
func rleDecompress(src []byte, rawSize int) ([]byte, error) {
	out := make([]byte, 0, rawSize)
	for i := 0; i < len(src); {
		count := int(int8(src[i]))
		i++
		if count < 0 {
			n := -count
			if i+n > len(src) || len(out)+n > rawSize {
				return nil, fmt.Errorf("%w: rle literal overflows", ErrCorrupt)
			}
			out = append(out, src[i:i+n]...)
			i += n
			continue
		}
		if i >= len(src) || len(out)+count+1 > rawSize {
			return nil, fmt.Errorf("%w: rle run overflows", ErrCorrupt)
		}
		for range count + 1 {
			out = append(out, src[i])
		}
		i++
	}
	if len(out) != rawSize {
		return nil, fmt.Errorf("%w: rle produced %d bytes, want %d", ErrCorrupt, len(out), rawSize)
	}
	return out, nil
}

func rleCompress(src []byte) []byte {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && src[i+run] == src[i] && run < rleMaxRun+1 {
			run++
		}
		if run >= rleMinRun {
			out = append(out, byte(run-1), src[i])
			i += run
			continue
		}
		// литералы до начала следующего повтора
		j := i
		for j < len(src) && j-i < rleMaxRun {
			if j+2 < len(src) && src[j] == src[j+1] && src[j+1] == src[j+2] {
				break
			}
			j++
		}
		out = append(out, byte(-(j - i)))
		out = append(out, src[i:j]...)
		i = j
	}
	return out
}

// undoPredictor reverses the byte delta predictor applied before ZIP and RLE.
func undoPredictor(b []byte) {
	for i := 1; i < len(b); i++ {
		b[i] = b[i-1] + b[i] - 128
	}
}

func applyPredictor(b []byte) {
	if len(b) == 0 {
		return
	}
	prev := b[0]
	for i := 1; i < len(b); i++ {
		cur := b[i]
		b[i] = cur - prev + 128
		prev = cur
	}
}

// deinterleave merges the two halves of b back into alternating order:
// out[0]=b[0], out[1]=b[(n+1)/2], out[2]=b[1], ...
func deinterleave(b []byte) []byte {
	out := make([]byte, len(b))
	half := (len(b) + 1) / 2
	for i := range out {
		if i%2 == 0 {
			out[i] = b[i/2]
		} else {
			out[i] = b[half+i/2]
		}
	}
	return out
}

func interleave(b []byte) []byte {
	out := make([]byte, len(b))
	half := (len(b) + 1) / 2
	for i, v := range b {
		if i%2 == 0 {
			out[i/2] = v
		} else {
			out[half+i/2] = v
		}
	}
	return out
}
