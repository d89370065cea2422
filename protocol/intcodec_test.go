package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntegers(t *testing.T) {
	assert.Equal(t, uint16(0xBEEF), parseU16([]byte{0xEF, 0xBE}))
	assert.Equal(t, uint32(0xDEADBEEF), parseU32([]byte{0xEF, 0xBE, 0xAD, 0xDE}))
	assert.Equal(t, uint32(0), parseU32([]byte{0, 0, 0, 0}))
}

func TestRenderIntegers(t *testing.T) {
	var got []byte
	for i := 0; i < 4; i++ {
		got = append(got, renderU32(0xDEADBEEF, i))
	}
	assert.Equal(t, []byte{0xEF, 0xBE, 0xAD, 0xDE}, got)

	assert.Equal(t, byte(0x34), renderU16(0x1234, 0))
	assert.Equal(t, byte(0x12), renderU16(0x1234, 1))
}

func TestBufferCapacity(t *testing.T) {
	var b buffer
	for i := 0; i < BufferCapacity+5; i++ {
		b.append(byte(i))
	}
	assert.Equal(t, BufferCapacity, b.len())
	assert.Equal(t, 5, b.dropped)
	last := BufferCapacity - 1
	assert.Equal(t, byte(last), b.bytes()[last])

	b.reset()
	assert.Zero(t, b.len())
	assert.Zero(t, b.dropped)
}

func TestCRC32(t *testing.T) {
	assert.Equal(t, uint32(0xCBF43926), CRC32([]byte("123456789")))
}
