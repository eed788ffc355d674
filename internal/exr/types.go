package exr

import (
	"errors"
	"fmt"
	"math"
)

// Magic is the little-endian int32 every OpenEXR file starts with.
const Magic = 20000630

const (
	versionNumber = 2

	flagTiled     = 0x200
	flagLongNames = 0x400
	flagNonImage  = 0x800
	flagMultiPart = 0x1000
)

var (
	// ErrNotEXR is returned when the magic number does not match.
	ErrNotEXR = errors.New("exr: not an OpenEXR file")
	// ErrUnsupported is returned for valid files this package cannot decode.
	ErrUnsupported = errors.New("exr: unsupported file")
	// ErrUnsupportedCompression is returned for compression methods other than NONE/RLE/ZIPS/ZIP.
	ErrUnsupportedCompression = errors.New("exr: unsupported compression")
	// ErrChannelNotFound is returned when the requested channel is absent.
	ErrChannelNotFound = errors.New("exr: channel not found")
	// ErrCorrupt is returned for truncated or inconsistent data.
	ErrCorrupt = errors.New("exr: corrupt data")
)

// PixelType is the storage type of a channel.
type PixelType int32

const (
	PixelUint  PixelType = 0
	PixelHalf  PixelType = 1
	PixelFloat PixelType = 2
)

// Size returns the number of bytes one sample occupies.
func (p PixelType) Size() int {
	switch p {
	case PixelHalf:
		return 2
	case PixelUint, PixelFloat:
		return 4
	}
	return 0
}

func (p PixelType) String() string {
	switch p {
	case PixelUint:
		return "UINT"
	case PixelHalf:
		return "HALF"
	case PixelFloat:
		return "FLOAT"
	}
	return fmt.Sprintf("PixelType(%d)", int32(p))
}

// Compression identifies the chunk compression method.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionRLE
	CompressionZIPS
	CompressionZIP
	CompressionPIZ
	CompressionPXR24
	CompressionB44
	CompressionB44A
	CompressionDWAA
	CompressionDWAB
)

var compressionNames = [...]string{"NONE", "RLE", "ZIPS", "ZIP", "PIZ", "PXR24", "B44", "B44A", "DWAA", "DWAB"}

func (c Compression) String() string {
	if int(c) < len(compressionNames) {
		return compressionNames[c]
	}
	return fmt.Sprintf("Compression(%d)", uint8(c))
}

// LinesPerChunk returns how many scanlines one chunk holds.
func (c Compression) LinesPerChunk() int {
	switch c {
	case CompressionZIP, CompressionPXR24:
		return 16
	case CompressionPIZ, CompressionB44, CompressionB44A, CompressionDWAA:
		return 32
	case CompressionDWAB:
		return 256
	default:
		return 1
	}
}

// maxExpansion bounds how many raw bytes one packed byte can turn into:
// deflate tops out near 1032:1, an RLE run is 2 bytes for 128.
func (c Compression) maxExpansion() int {
	switch c {
	case CompressionZIP, CompressionZIPS:
		return 1032
	case CompressionRLE:
		return 64
	default:
		return 1
	}
}

func (c Compression) supported() bool {
	switch c {
	case CompressionNone, CompressionRLE, CompressionZIPS, CompressionZIP:
		return true
	}
	return false
}

// LineOrder is the order chunks were written in.
type LineOrder uint8

const (
	IncreasingY LineOrder = iota
	DecreasingY
	RandomY
)

// Box2i is an inclusive integer rectangle.
type Box2i struct {
	XMin, YMin, XMax, YMax int32
}

// Width returns XMax-XMin+1.
func (b Box2i) Width() int { return int(int64(b.XMax) - int64(b.XMin) + 1) }

// Height returns YMax-YMin+1.
func (b Box2i) Height() int { return int(int64(b.YMax) - int64(b.YMin) + 1) }

// Channel describes one entry of the channel list.
type Channel struct {
	Name      string
	Type      PixelType
	PLinear   bool
	XSampling int32
	YSampling int32
}

// Attribute keeps a header attribute this package does not interpret.
type Attribute struct {
	Name  string
	Type  string
	Value []byte
}

// Header holds the decoded required attributes and everything else raw.
type Header struct {
	Channels           []Channel
	Compression        Compression
	DataWindow         Box2i
	DisplayWindow      Box2i
	LineOrder          LineOrder
	PixelAspectRatio   float32
	ScreenWindowCenter [2]float32
	ScreenWindowWidth  float32
	Extra              []Attribute
}

// Width returns the data window width.
func (h *Header) Width() int { return h.DataWindow.Width() }

// Height returns the data window height.
func (h *Header) Height() int { return h.DataWindow.Height() }

// Channel finds a channel by name.
func (h *Header) Channel(name string) (Channel, int, bool) {
	for i, ch := range h.Channels {
		if ch.Name == name {
			return ch, i, true
		}
	}
	return Channel{}, -1, false
}

// lineSize is the number of bytes one scanline occupies across all channels.
// ok is false when the product does not fit in an int.
func (h *Header) lineSize() (n int, ok bool) {
	for _, ch := range h.Channels {
		n += ch.Type.Size()
	}
	return mulInt(n, h.Width())
}

func mulInt(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a != 0 && b > math.MaxInt/a {
		return 0, false
	}
	return a * b, true
}
