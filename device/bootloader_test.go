package device

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-tockboot/protocol"
)

func TestHandleIdentity(t *testing.T) {
	b := New(WithInfo("hail"), WithID([8]byte{1, 2, 3, 4, 5, 6, 7, 8}))

	assert.Equal(t, protocol.PongResponse{}, b.Handle(protocol.PingCommand{}))

	info, ok := b.Handle(protocol.InfoCommand{}).(protocol.InfoResponse)
	require.True(t, ok)
	require.Len(t, info.Info, protocol.InfoSize)
	assert.Equal(t, byte(4), info.Info[0])
	assert.Equal(t, "hail", string(info.Info[1:5]))
	assert.Equal(t, make([]byte, protocol.InfoSize-5), info.Info[5:])

	assert.Equal(t,
		protocol.ReadRangeResponse{Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		b.Handle(protocol.IDCommand{}))
}

func TestHandleInternalFlash(t *testing.T) {
	b := New(WithFlashSize(4 * protocol.PageSize))
	page := bytes.Repeat([]byte{0xA5}, protocol.PageSize)

	tests := []struct {
		name string
		cmd  protocol.Command
		want protocol.Response
	}{
		{"write aligned", protocol.WritePageCommand{Address: 0x200, Data: page}, protocol.OKResponse{}},
		{"write misaligned", protocol.WritePageCommand{Address: 0x201, Data: page}, protocol.BadAddressResponse{}},
		{"write past end", protocol.WritePageCommand{Address: 0x800, Data: page}, protocol.BadAddressResponse{}},
		{"erase misaligned", protocol.ErasePageCommand{Address: 0x10}, protocol.BadAddressResponse{}},
		{"read too long", protocol.ReadRangeCommand{Address: 0, Length: protocol.PageSize + 1}, protocol.BadArgumentsResponse{}},
		{"read past end", protocol.ReadRangeCommand{Address: 0x7FF, Length: 2}, protocol.BadAddressResponse{}},
		{"crc past end", protocol.CrcIntFlashCommand{Address: 0, Length: 0x801}, protocol.BadAddressResponse{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Handle(tt.cmd))
		})
	}

	assert.Equal(t,
		protocol.ReadRangeResponse{Data: []byte{0xFF, 0xA5}},
		b.Handle(protocol.ReadRangeCommand{Address: 0x1FF, Length: 2}))

	want := protocol.CRC32(page)
	assert.Equal(t,
		protocol.CrcIntFlashResponse{CRC: want},
		b.Handle(protocol.CrcIntFlashCommand{Address: 0x200, Length: protocol.PageSize}))

	rx, ok := b.Handle(protocol.CrcRxBufferCommand{}).(protocol.CrcRxBufferResponse)
	require.True(t, ok)
	assert.Equal(t, uint16(4+protocol.PageSize), rx.Length)
	assert.Equal(t, protocol.CRC32(append([]byte{0x00, 0x02, 0x00, 0x00}, page...)), rx.CRC)

	assert.Equal(t, protocol.OKResponse{}, b.Handle(protocol.ErasePageCommand{Address: 0x200}))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 4*protocol.PageSize), b.Flash())
}

func TestHandleExternalFlash(t *testing.T) {
	b := New(WithExFlashSize(2 * protocol.ExBlockSize))
	page := bytes.Repeat([]byte{0x3C}, protocol.ExPageSize)

	assert.Equal(t, protocol.ExFlashTimeoutResponse{},
		b.Handle(protocol.WriteExPageCommand{Address: 0, Data: page}), "flash not initialised")

	require.Equal(t, protocol.OKResponse{}, b.Handle(protocol.ExFlashInitCommand{}))
	assert.Equal(t, protocol.OKResponse{}, b.Handle(protocol.WriteExPageCommand{Address: 0x100, Data: page}))
	assert.Equal(t, protocol.ExFlashPageErrorResponse{},
		b.Handle(protocol.WriteExPageCommand{Address: 0x180, Data: page}))

	assert.Equal(t,
		protocol.ExReadRangeResponse{Data: []byte{0x3C, 0x3C}},
		b.Handle(protocol.ExReadRangeCommand{Address: 0x100, Length: 2}))
	assert.Equal(t,
		protocol.CrcExFlashResponse{CRC: protocol.CRC32(page)},
		b.Handle(protocol.CrcExFlashCommand{Address: 0x100, Length: protocol.ExPageSize}))

	assert.Equal(t, protocol.BadAddressResponse{}, b.Handle(protocol.EraseExBlockCommand{Address: 0x100}))
	assert.Equal(t, protocol.OKResponse{}, b.Handle(protocol.EraseExBlockCommand{Address: 0}))
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, 2*protocol.ExBlockSize), b.ExFlash())

	assert.Equal(t, protocol.OKResponse{}, b.Handle(protocol.WriteExPageCommand{Address: 0, Data: page}))
	assert.Equal(t, protocol.OKResponse{}, b.Handle(protocol.EraseExPageCommand{Address: 0}))
	assert.Equal(t, byte(0xFF), b.ExFlash()[0])
}

func TestHandleAttributes(t *testing.T) {
	b := New()

	set := protocol.SetAttrCommand{Index: 3, Key: []byte("board"), Value: []byte("hail")}
	require.Equal(t, protocol.OKResponse{}, b.Handle(set))

	key, value := b.Attribute(3)
	assert.Equal(t, "board", key)
	assert.Equal(t, []byte("hail"), value)

	got := b.Handle(protocol.GetAttrCommand{Index: 3})
	assert.Equal(t, protocol.GetAttrResponse{
		Key:   []byte{'b', 'o', 'a', 'r', 'd', 0, 0, 0},
		Value: []byte("hail"),
	}, got)

	empty, ok := b.Handle(protocol.GetAttrCommand{Index: 0}).(protocol.GetAttrResponse)
	require.True(t, ok)
	assert.Equal(t, make([]byte, protocol.AttrKeySize), empty.Key)
	assert.Empty(t, empty.Value)

	assert.Equal(t, protocol.BadArgumentsResponse{}, b.Handle(protocol.GetAttrCommand{Index: protocol.AttrCount}))
	assert.Equal(t, protocol.BadArgumentsResponse{}, b.Handle(protocol.SetAttrCommand{Index: 0xFF}))

	for _, i := range []int{-1, protocol.AttrCount, 0xFF} {
		key, value := b.Attribute(i)
		assert.Empty(t, key, "slot %d", i)
		assert.Nil(t, value, "slot %d", i)
	}
}

func TestHandleChangeBaud(t *testing.T) {
	b := New()

	assert.Equal(t, protocol.ChangeBaudFailResponse{},
		b.Handle(protocol.ChangeBaudCommand{Mode: protocol.BaudModeVerify, Baud: 921600}), "verify without set")

	assert.Equal(t, protocol.OKResponse{}, b.Handle(protocol.ChangeBaudCommand{Mode: protocol.BaudModeSet, Baud: 921600}))
	assert.Equal(t, uint32(921600), b.takeBaudSwitch())
	assert.Zero(t, b.takeBaudSwitch())

	assert.Equal(t, protocol.OKResponse{}, b.Handle(protocol.ChangeBaudCommand{Mode: protocol.BaudModeVerify, Baud: 921600}))
	assert.Equal(t, uint32(921600), b.Baud())

	b.Handle(protocol.ChangeBaudCommand{Mode: protocol.BaudModeSet, Baud: 57600})
	b.takeBaudSwitch()
	assert.Equal(t, protocol.ChangeBaudFailResponse{},
		b.Handle(protocol.ChangeBaudCommand{Mode: protocol.BaudModeVerify, Baud: 9600}))
	assert.Equal(t, uint32(921600), b.takeBaudSwitch(), "reverts to the previous rate")
	assert.Equal(t, uint32(921600), b.Baud())
}
