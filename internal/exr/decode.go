package exr

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"fortio.org/safecast"
	"github.com/x448/float16"
)

// File is a decoded header plus the chunk data it indexes.
type File struct {
	Header  Header
	data    []byte
	offsets []int
}

// Open reads the whole file at path and decodes its header.
func Open(path string) (*File, error) {
	// #nosec G304 -- path is provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode parses the magic number, version field, header and offset table.
// Pixel data is decoded lazily by Channel.
func Decode(data []byte) (*File, error) {
	r := &byteReader{buf: data}
	magic, err := r.i32()
	if err != nil || magic != Magic {
		return nil, ErrNotEXR
	}
	version, err := r.i32()
	if err != nil {
		return nil, err
	}
	if version&0xff != versionNumber {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupported, version&0xff)
	}
	switch {
	case version&flagMultiPart != 0:
		return nil, fmt.Errorf("%w: multi-part", ErrUnsupported)
	case version&flagNonImage != 0:
		return nil, fmt.Errorf("%w: deep data", ErrUnsupported)
	case version&flagTiled != 0:
		return nil, fmt.Errorf("%w: tiled", ErrUnsupported)
	}
	maxName := 31
	if version&flagLongNames != 0 {
		maxName = 255
	}

	h, err := readHeader(r, maxName)
	if err != nil {
		return nil, err
	}
	if err := h.validate(); err != nil {
		return nil, err
	}

	lpc := h.Compression.LinesPerChunk()
	count := (h.Height() + lpc - 1) / lpc
	// каждая запись таблицы смещений занимает 8 байт
	if count > (len(data)-r.off)/8 {
		return nil, fmt.Errorf("%w: offset table of %d chunks exceeds file size", ErrCorrupt, count)
	}
	offsets := make([]int, count)
	for i := range offsets {
		raw, err := r.u64()
		if err != nil {
			return nil, fmt.Errorf("offset table: %w", err)
		}
		off, err := safecast.Conv[int](raw)
		if err != nil || off < r.off || off >= len(data) {
			return nil, fmt.Errorf("%w: chunk %d offset %d out of range", ErrCorrupt, i, raw)
		}
		offsets[i] = off
	}
	return &File{Header: *h, data: data, offsets: offsets}, nil
}

func readHeader(r *byteReader, maxName int) (*Header, error) {
	h := &Header{PixelAspectRatio: 1, ScreenWindowWidth: 1}
	var haveChannels, haveCompression, haveDataWindow bool
	for {
		name, err := r.cstring(maxName)
		if err != nil {
			return nil, err
		}
		if name == "" {
			break
		}
		typ, err := r.cstring(maxName)
		if err != nil {
			return nil, err
		}
		size32, err := r.i32()
		if err != nil {
			return nil, err
		}
		size, err := safecast.Conv[int](size32)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("%w: attribute %q has size %d", ErrCorrupt, name, size32)
		}
		value, err := r.bytes(size)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		vr := &byteReader{buf: value}

		switch {
		case name == "channels" && typ == "chlist":
			h.Channels, err = readChannels(vr, maxName)
			haveChannels = true
		case name == "compression" && typ == "compression":
			var c uint8
			c, err = vr.u8()
			h.Compression = Compression(c)
			haveCompression = true
		case name == "dataWindow" && typ == "box2i":
			h.DataWindow, err = vr.box2i()
			haveDataWindow = true
		case name == "displayWindow" && typ == "box2i":
			h.DisplayWindow, err = vr.box2i()
		case name == "lineOrder" && typ == "lineOrder":
			var lo uint8
			lo, err = vr.u8()
			h.LineOrder = LineOrder(lo)
		case name == "pixelAspectRatio" && typ == "float":
			h.PixelAspectRatio, err = vr.f32()
		case name == "screenWindowCenter" && typ == "v2f":
			if h.ScreenWindowCenter[0], err = vr.f32(); err == nil {
				h.ScreenWindowCenter[1], err = vr.f32()
			}
		case name == "screenWindowWidth" && typ == "float":
			h.ScreenWindowWidth, err = vr.f32()
		default:
			h.Extra = append(h.Extra, Attribute{Name: name, Type: typ, Value: value})
		}
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
	}

	switch {
	case !haveChannels:
		return nil, fmt.Errorf("%w: missing channels attribute", ErrCorrupt)
	case !haveCompression:
		return nil, fmt.Errorf("%w: missing compression attribute", ErrCorrupt)
	case !haveDataWindow:
		return nil, fmt.Errorf("%w: missing dataWindow attribute", ErrCorrupt)
	}
	return h, nil
}

func readChannels(r *byteReader, maxName int) ([]Channel, error) {
	var out []Channel
	for {
		name, err := r.cstring(maxName)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return out, nil
		}
		pt, err := r.i32()
		if err != nil {
			return nil, err
		}
		flags, err := r.bytes(4) // pLinear + 3 reserved
		if err != nil {
			return nil, err
		}
		xs, err := r.i32()
		if err != nil {
			return nil, err
		}
		ys, err := r.i32()
		if err != nil {
			return nil, err
		}
		out = append(out, Channel{
			Name:      name,
			Type:      PixelType(pt),
			PLinear:   flags[0] != 0,
			XSampling: xs,
			YSampling: ys,
		})
	}
}

func (h *Header) validate() error {
	if h.Width() <= 0 || h.Height() <= 0 {
		return fmt.Errorf("%w: empty data window %+v", ErrCorrupt, h.DataWindow)
	}
	if !h.Compression.supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedCompression, h.Compression)
	}
	if len(h.Channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrCorrupt)
	}
	for _, ch := range h.Channels {
		if ch.Type.Size() == 0 {
			return fmt.Errorf("%w: channel %q has %s", ErrUnsupported, ch.Name, ch.Type)
		}
		if ch.XSampling != 1 || ch.YSampling != 1 {
			return fmt.Errorf("%w: channel %q is subsampled (%d,%d)", ErrUnsupported, ch.Name, ch.XSampling, ch.YSampling)
		}
	}
	return nil
}

// ChannelNames lists channels in file order.
func (f *File) ChannelNames() []string {
	names := make([]string, len(f.Header.Channels))
	for i, ch := range f.Header.Channels {
		names[i] = ch.Name
	}
	return names
}

// Channel decodes the named channel into a row-major slice of
// Width*Height float32 values. HALF and UINT samples are converted.
func (f *File) Channel(name string) ([]float32, error) {
	h := &f.Header
	ch, idx, ok := h.Channel(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrChannelNotFound, name, f.ChannelNames())
	}

	w, height := h.Width(), h.Height()
	sampleSize := ch.Type.Size()
	chOff := 0
	for _, c := range h.Channels[:idx] {
		chOff += c.Type.Size() * w
	}
	lineSize, ok := h.lineSize()
	if !ok {
		return nil, fmt.Errorf("%w: scanline size overflows", ErrCorrupt)
	}
	total, ok := mulInt(lineSize, height)
	if !ok || total/h.Compression.maxExpansion() > len(f.data) {
		return nil, fmt.Errorf("%w: %dx%d image cannot fit in %d bytes", ErrCorrupt, w, height, len(f.data))
	}
	lpc := h.Compression.LinesPerChunk()

	out := make([]float32, w*height)
	for i, off := range f.offsets {
		r := &byteReader{buf: f.data, off: off}
		y, err := r.i32()
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		packed, err := r.i32()
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		start := int(int64(y) - int64(h.DataWindow.YMin))
		if start < 0 || start >= height {
			return nil, fmt.Errorf("%w: chunk %d starts at line %d", ErrCorrupt, i, y)
		}
		lines := min(lpc, height-start)

		packedSize, err := safecast.Conv[int](packed)
		if err != nil || packedSize < 0 {
			return nil, fmt.Errorf("%w: chunk %d size %d", ErrCorrupt, i, packed)
		}
		src, err := r.bytes(packedSize)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		raw, err := decompress(h.Compression, src, lines*lineSize)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}

		for l := range lines {
			base := l*lineSize + chOff
			row := out[(start+l)*w : (start+l+1)*w]
			convertRow(row, raw[base:base+w*sampleSize], ch.Type)
		}
	}
	return out, nil
}

func convertRow(dst []float32, src []byte, pt PixelType) {
	switch pt {
	case PixelHalf:
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(src[i*2:])).Float32()
		}
	case PixelFloat:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
		}
	case PixelUint:
		for i := range dst {
			dst[i] = float32(binary.LittleEndian.Uint32(src[i*4:]))
		}
	}
}
