package protocol

import "encoding/binary"

// parseU16 decodes a little-endian uint16. The caller guarantees len(data) == 2.
func parseU16(data []byte) uint16 {
	return binary.LittleEndian.Uint16(data)
}

// parseU32 decodes a little-endian uint32. The caller guarantees len(data) == 4.
func parseU32(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data)
}

// renderU16 returns byte idx (0 or 1) of v, least significant first.
func renderU16(v uint16, idx int) byte {
	return byte(v >> (8 * uint(idx)))
}

// renderU32 returns byte idx (0..3) of v, least significant first.
func renderU32(v uint32, idx int) byte {
	return byte(v >> (8 * uint(idx)))
}

// field is one element of a payload layout, rendered one byte at a time.
type field interface {
	width() int
	byteAt(idx int) byte
}

type u8Field byte

func (f u8Field) width() int { return 1 }
func (f u8Field) byteAt(int) byte { return byte(f) }

type u16Field uint16

func (f u16Field) width() int { return 2 }
func (f u16Field) byteAt(idx int) byte { return renderU16(uint16(f), idx) }

type u32Field uint32

func (f u32Field) width() int { return 4 }
func (f u32Field) byteAt(idx int) byte { return renderU32(uint32(f), idx) }

// bufField renders data into a field of a fixed width. Data longer than the
// width is truncated and shorter data is padded with pad.
type bufField struct {
	data []byte
	size int
	pad  byte
}

// rawField renders data as-is.
func rawField(data []byte) bufField {
	return bufField{data: data, size: len(data)}
}

// fixedField renders data into exactly size bytes.
func fixedField(data []byte, size int, pad byte) bufField {
	return bufField{data: data, size: size, pad: pad}
}

func (f bufField) width() int { return f.size }

func (f bufField) byteAt(idx int) byte {
	if idx < len(f.data) {
		return f.data[idx]
	}
	return f.pad
}

// clip returns data truncated to at most n bytes.
func clip(data []byte, n int) []byte {
	if len(data) > n {
		return data[:n]
	}
	return data
}
