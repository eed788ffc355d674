package exr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"fortio.org/safecast"
	"github.com/x448/float16"
)

// Image is an in-memory scanline image for Encode.
type Image struct {
	Width    int
	Height   int
	Channels []ImageChannel
}

// ImageChannel holds one channel's samples in row-major order.
type ImageChannel struct {
	Name string
	Type PixelType
	Data []float32
}

// EncodeOptions configures Encode.
type EncodeOptions struct {
	Compression Compression
}

// WriteFile encodes img to path.
func WriteFile(path string, img *Image, opt EncodeOptions) error {
	var buf bytes.Buffer
	if err := Encode(&buf, img, opt); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Encode writes img as a single-part scanline file with increasing line order.
func Encode(w io.Writer, img *Image, opt EncodeOptions) error {
	if img == nil || img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("exr: encode: empty image")
	}
	if !opt.Compression.supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedCompression, opt.Compression)
	}
	xMax, err := safecast.Conv[int32](img.Width - 1)
	if err != nil {
		return fmt.Errorf("exr: encode: width: %w", err)
	}
	yMax, err := safecast.Conv[int32](img.Height - 1)
	if err != nil {
		return fmt.Errorf("exr: encode: height: %w", err)
	}

	channels := slices.Clone(img.Channels)
	slices.SortFunc(channels, func(a, b ImageChannel) int { return strings.Compare(a.Name, b.Name) })
	version := uint32(versionNumber)
	for _, ch := range channels {
		if len(ch.Data) != img.Width*img.Height {
			return fmt.Errorf("exr: encode: channel %q has %d samples, want %d", ch.Name, len(ch.Data), img.Width*img.Height)
		}
		if ch.Type.Size() == 0 {
			return fmt.Errorf("%w: channel %q has %s", ErrUnsupported, ch.Name, ch.Type)
		}
		if len(ch.Name) > 31 {
			version |= flagLongNames
		}
	}

	window := Box2i{XMax: xMax, YMax: yMax}
	var hdr bytes.Buffer
	le := binary.LittleEndian
	hdr.Write(le.AppendUint32(nil, Magic))
	hdr.Write(le.AppendUint32(nil, version))
	writeAttr(&hdr, "channels", "chlist", encodeChannels(channels))
	writeAttr(&hdr, "compression", "compression", []byte{byte(opt.Compression)})
	writeAttr(&hdr, "dataWindow", "box2i", encodeBox(window))
	writeAttr(&hdr, "displayWindow", "box2i", encodeBox(window))
	writeAttr(&hdr, "lineOrder", "lineOrder", []byte{byte(IncreasingY)})
	writeAttr(&hdr, "pixelAspectRatio", "float", le.AppendUint32(nil, math.Float32bits(1)))
	writeAttr(&hdr, "screenWindowCenter", "v2f", make([]byte, 8))
	writeAttr(&hdr, "screenWindowWidth", "float", le.AppendUint32(nil, math.Float32bits(1)))
	hdr.WriteByte(0)

	lpc := opt.Compression.LinesPerChunk()
	count := (img.Height + lpc - 1) / lpc
	chunks := make([][]byte, 0, count)
	for start := 0; start < img.Height; start += lpc {
		lines := min(lpc, img.Height-start)
		raw := packLines(channels, img.Width, start, lines)
		data, err := compress(opt.Compression, raw)
		if err != nil {
			return err
		}
		y, err := safecast.Conv[int32](start)
		if err != nil {
			return err
		}
		size, err := safecast.Conv[int32](len(data))
		if err != nil {
			return err
		}
		chunk := le.AppendUint32(nil, uint32(y))
		chunk = le.AppendUint32(chunk, uint32(size))
		chunks = append(chunks, append(chunk, data...))
	}

	offset := hdr.Len() + 8*len(chunks)
	for _, chunk := range chunks {
		pos, err := safecast.Conv[uint64](offset)
		if err != nil {
			return err
		}
		hdr.Write(le.AppendUint64(nil, pos))
		offset += len(chunk)
	}
	if _, err := w.Write(hdr.Bytes()); err != nil {
		return err
	}
	for _, chunk := range chunks {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

func writeAttr(buf *bytes.Buffer, name, typ string, value []byte) {
	buf.WriteString(name)
	buf.WriteByte(0)
	buf.WriteString(typ)
	buf.WriteByte(0)
	buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(value))))
	buf.Write(value)
}

func encodeChannels(channels []ImageChannel) []byte {
	le := binary.LittleEndian
	var out []byte
	for _, ch := range channels {
		out = append(out, ch.Name...)
		out = append(out, 0)
		out = le.AppendUint32(out, uint32(ch.Type))
		out = append(out, 0, 0, 0, 0)
		out = le.AppendUint32(out, 1)
		out = le.AppendUint32(out, 1)
	}
	return append(out, 0)
}

func encodeBox(b Box2i) []byte {
	le := binary.LittleEndian
	out := le.AppendUint32(nil, uint32(b.XMin))
	out = le.AppendUint32(out, uint32(b.YMin))
	out = le.AppendUint32(out, uint32(b.XMax))
	return le.AppendUint32(out, uint32(b.YMax))
}

// packLines lays out scanlines [start, start+lines) channel by channel.
func packLines(channels []ImageChannel, width, start, lines int) []byte {
	le := binary.LittleEndian
	var out []byte
	for l := range lines {
		row := (start + l) * width
		for _, ch := range channels {
			for _, v := range ch.Data[row : row+width] {
				switch ch.Type {
				case PixelHalf:
					out = le.AppendUint16(out, float16.Fromfloat32(v).Bits())
				case PixelFloat:
					out = le.AppendUint32(out, math.Float32bits(v))
				case PixelUint:
					out = le.AppendUint32(out, uint32(max(v, 0)))
				}
			}
		}
	}
	return out
}
