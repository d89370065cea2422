package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feedCommand pushes all bytes into d, requiring every byte but the last to
// be pending, and returns the outcome of the last byte.
func feedCommand(t *testing.T, d *CommandDecoder, data []byte) (Command, error) {
	t.Helper()
	require.NotEmpty(t, data)
	for i, b := range data[:len(data)-1] {
		cmd, err := d.Receive(b)
		require.NoError(t, err, "byte %d", i)
		require.Nil(t, cmd, "byte %d", i)
	}
	return d.Receive(data[len(data)-1])
}

func feedResponse(t *testing.T, d *ResponseDecoder, data []byte) (Response, error) {
	t.Helper()
	require.NotEmpty(t, data)
	for i, b := range data[:len(data)-1] {
		rsp, err := d.Receive(b)
		require.NoError(t, err, "byte %d", i)
		require.Nil(t, rsp, "byte %d", i)
	}
	return d.Receive(data[len(data)-1])
}

func TestCommandDecoderErasePageScenario(t *testing.T) {
	d := NewCommandDecoder()
	input := []byte{0xEF, 0xBE, 0xAD, 0xDE, 0xFC, 0x06}

	for _, b := range input[:5] {
		cmd, err := d.Receive(b)
		require.NoError(t, err)
		assert.Nil(t, cmd)
	}

	cmd, err := d.Receive(input[5])
	require.NoError(t, err)
	assert.Equal(t, ErasePageCommand{Address: 0xDEADBEEF}, cmd)
	assert.Zero(t, d.Buffered())
}

func TestCommandDecoderEscapedByteBeforePing(t *testing.T) {
	d := NewCommandDecoder()

	_, err := d.Receive(0xFC)
	require.NoError(t, err)
	_, err = d.Receive(0xFC)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Buffered(), "doubled escape buffers one literal byte")

	cmd, err := feedCommand(t, d, []byte{0xFC, 0x01})
	require.NoError(t, err)
	assert.Equal(t, PingCommand{}, cmd)
	assert.Zero(t, d.Buffered())
}

func TestCommandDecoderZeroFieldIgnoresPayload(t *testing.T) {
	tests := []struct {
		name   string
		opcode byte
		want   Command
	}{
		{name: "ping", opcode: CmdPing, want: PingCommand{}},
		{name: "info", opcode: CmdInfo, want: InfoCommand{}},
		{name: "id", opcode: CmdID, want: IDCommand{}},
		{name: "reset", opcode: CmdReset, want: ResetCommand{}},
		{name: "crc rx buffer", opcode: CmdCrcRxBuffer, want: CrcRxBufferCommand{}},
		{name: "ex flash init", opcode: CmdExFlashInit, want: ExFlashInitCommand{}},
		{name: "clock out", opcode: CmdClockOut, want: ClockOutCommand{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewCommandDecoder()
			cmd, err := feedCommand(t, d, []byte{0x01, 0x02, 0x03, EscapeChar, tt.opcode})
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
			assert.Zero(t, d.Buffered())
		})
	}
}

func TestCommandDecoderLengthMismatch(t *testing.T) {
	tests := []struct {
		name    string
		payload int
		opcode  byte
	}{
		{name: "erase page short", payload: 3, opcode: CmdErasePage},
		{name: "erase page long", payload: 5, opcode: CmdErasePage},
		{name: "write page short", payload: 4 + PageSize - 1, opcode: CmdWritePage},
		{name: "write page long", payload: 4 + PageSize + 1, opcode: CmdWritePage},
		{name: "write ex page as internal page", payload: 4 + PageSize, opcode: CmdWriteExPage},
		{name: "erase ex block empty", payload: 0, opcode: CmdEraseExBlock},
		{name: "read range short", payload: 5, opcode: CmdReadRange},
		{name: "ex read range long", payload: 7, opcode: CmdExReadRange},
		{name: "get attribute empty", payload: 0, opcode: CmdGetAttr},
		{name: "crc internal flash short", payload: 4, opcode: CmdCrcIntFlash},
		{name: "crc external flash long", payload: 9, opcode: CmdCrcExFlash},
		{name: "erase ex page short", payload: 2, opcode: CmdEraseExPage},
		{name: "user pages short", payload: 7, opcode: CmdWriteFlashUserPages},
		{name: "change baud short", payload: 4, opcode: CmdChangeBaud},
		{name: "set attribute short", payload: 9, opcode: CmdSetAttr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewCommandDecoder()
			frame := append(bytes.Repeat([]byte{0x01}, tt.payload), EscapeChar, tt.opcode)

			cmd, err := feedCommand(t, d, frame)
			assert.Nil(t, cmd)
			require.ErrorIs(t, err, ErrBadArguments)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.opcode, de.Opcode)
			assert.Equal(t, tt.payload, de.Length)
			assert.Zero(t, d.Buffered())

			// The next frame starts clean.
			cmd, err = feedCommand(t, d, []byte{0x10, 0x00, 0x00, 0x00, EscapeChar, CmdErasePage})
			require.NoError(t, err)
			assert.Equal(t, ErasePageCommand{Address: 0x10}, cmd)
		})
	}
}

func TestCommandDecoderSetAttr(t *testing.T) {
	key := []byte{'k', 'e', 'y', 0, 0, 0, 0, 0}

	t.Run("value with one trailing byte", func(t *testing.T) {
		frame := append([]byte{0x02}, key...)
		frame = append(frame, 0x03, 'a', 'b', 'c', 0x00, EscapeChar, CmdSetAttr)

		cmd, err := feedCommand(t, NewCommandDecoder(), frame)
		require.NoError(t, err)
		assert.Equal(t, SetAttrCommand{Index: 2, Key: key, Value: []byte("abc")}, cmd)
	})

	t.Run("nothing after value", func(t *testing.T) {
		frame := append([]byte{0x02}, key...)
		frame = append(frame, 0x03, 'a', 'b', 'c', EscapeChar, CmdSetAttr)

		cmd, err := feedCommand(t, NewCommandDecoder(), frame)
		assert.Nil(t, cmd)
		require.ErrorIs(t, err, ErrBadArguments)

		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, 13, de.Length)
	})

	t.Run("trailing bytes ignored", func(t *testing.T) {
		frame := append([]byte{0x02}, key...)
		frame = append(frame, 0x01, 'a', 'z', 'z', EscapeChar, CmdSetAttr)

		cmd, err := feedCommand(t, NewCommandDecoder(), frame)
		require.NoError(t, err)
		assert.Equal(t, SetAttrCommand{Index: 2, Key: key, Value: []byte("a")}, cmd)
	})

	t.Run("empty value", func(t *testing.T) {
		frame := append([]byte{0x00}, key...)
		frame = append(frame, 0x00, 0x00, EscapeChar, CmdSetAttr)

		cmd, err := feedCommand(t, NewCommandDecoder(), frame)
		require.NoError(t, err)
		assert.Equal(t, SetAttrCommand{Index: 0, Key: key, Value: []byte{}}, cmd)
	})

	t.Run("declared length exceeds payload", func(t *testing.T) {
		frame := append([]byte{0x02}, key...)
		frame = append(frame, 0x04, 'a', 'b', 'c', EscapeChar, CmdSetAttr)

		_, err := feedCommand(t, NewCommandDecoder(), frame)
		assert.ErrorIs(t, err, ErrBadArguments)
	})

	t.Run("declared length above maximum", func(t *testing.T) {
		frame := append([]byte{0x02}, key...)
		frame = append(frame, AttrMaxValueSize+1)
		frame = append(frame, bytes.Repeat([]byte{'v'}, AttrMaxValueSize+1)...)
		frame = append(frame, EscapeChar, CmdSetAttr)

		_, err := feedCommand(t, NewCommandDecoder(), frame)
		assert.ErrorIs(t, err, ErrBadArguments)
	})
}

func TestCommandDecoderChangeBaudMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    byte
		want    Command
		wantErr bool
	}{
		{name: "set", mode: 0x01, want: ChangeBaudCommand{Mode: BaudModeSet, Baud: 115200}},
		{name: "verify", mode: 0x02, want: ChangeBaudCommand{Mode: BaudModeVerify, Baud: 115200}},
		{name: "invalid", mode: 0x03, wantErr: true},
		{name: "zero", mode: 0x00, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := []byte{tt.mode, 0x00, 0xC2, 0x01, 0x00, EscapeChar, CmdChangeBaud}
			cmd, err := feedCommand(t, NewCommandDecoder(), frame)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadArguments)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestCommandDecoderUnknownOpcode(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		d := NewCommandDecoder()
		cmd, err := feedCommand(t, d, []byte{0xAA, 0xBB, EscapeChar, 0x7E})
		assert.Nil(t, cmd)
		require.ErrorIs(t, err, ErrUnknownCommand)

		var de *DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, byte(0x7E), de.Opcode)
		assert.Zero(t, d.Buffered())
	})

	t.Run("ignored", func(t *testing.T) {
		d := NewCommandDecoder(WithIgnoreUnknown())
		cmd, err := feedCommand(t, d, []byte{0xAA, 0xBB, EscapeChar, 0x7E})
		assert.Nil(t, cmd)
		assert.NoError(t, err)
		assert.Zero(t, d.Buffered())

		cmd, err = feedCommand(t, d, []byte{EscapeChar, CmdPing})
		require.NoError(t, err)
		assert.Equal(t, PingCommand{}, cmd)
	})

	t.Run("response opcode is unknown to command decoder", func(t *testing.T) {
		_, err := feedCommand(t, NewCommandDecoder(), []byte{EscapeChar, ResGetAttr})
		assert.ErrorIs(t, err, ErrUnknownCommand)
	})
}

func TestCommandDecoderOverflow(t *testing.T) {
	d := NewCommandDecoder()

	frame := bytes.Repeat([]byte{0x00}, BufferCapacity+80)
	frame = append(frame, EscapeChar, CmdWritePage)

	assert.NotPanics(t, func() {
		_, err := feedCommand(t, d, frame)
		// 520 retained bytes do not match the 516-byte WritePage layout.
		assert.ErrorIs(t, err, ErrBadArguments)
	})
	assert.Equal(t, 80, d.Dropped())
	assert.Zero(t, d.Buffered())

	cmd, err := feedCommand(t, d, []byte{EscapeChar, CmdPing})
	require.NoError(t, err)
	assert.Equal(t, PingCommand{}, cmd)
	assert.Zero(t, d.Dropped())
}

func TestResponseDecoderOverflowKeepsPrefix(t *testing.T) {
	d := NewResponseDecoder()

	payload := make([]byte, BufferCapacity+10)
	for i := range payload {
		payload[i] = byte(i % 0x80)
	}
	frame := append(append([]byte{}, payload...), EscapeChar, ResReadRange)

	rsp, err := feedResponse(t, d, frame)
	require.NoError(t, err)
	assert.Equal(t, ReadRangeResponse{Data: payload[:BufferCapacity]}, rsp)
	assert.Equal(t, 10, d.Dropped())
}

func TestCommandDecoderOverflowKeepsPrefix(t *testing.T) {
	d := NewCommandDecoder()
	key := []byte{'k', 0, 0, 0, 0, 0, 0, 0}

	frame := append([]byte{0x05}, key...)
	frame = append(frame, 0x02, 'o', 'k')
	frame = append(frame, bytes.Repeat([]byte{0x00}, BufferCapacity)...)
	frame = append(frame, EscapeChar, CmdSetAttr)

	cmd, err := feedCommand(t, d, frame)
	require.NoError(t, err)
	assert.Equal(t, SetAttrCommand{Index: 5, Key: key, Value: []byte("ok")}, cmd)
	assert.Equal(t, 12, d.Dropped())
}

func TestCommandDecoderReset(t *testing.T) {
	d := NewCommandDecoder()

	for _, b := range []byte{0x01, 0x02, 0x03} {
		_, err := d.Receive(b)
		require.NoError(t, err)
	}
	_, err := d.Receive(EscapeChar)
	require.NoError(t, err)
	require.Equal(t, 3, d.Buffered())

	d.Reset()
	assert.Zero(t, d.Buffered())

	// The pending escape was discarded: 0x06 is payload, not an opcode.
	cmd, err := d.Receive(CmdErasePage)
	require.NoError(t, err)
	assert.Nil(t, cmd)
	assert.Equal(t, 1, d.Buffered())

	d.Reset()
	cmd, err = feedCommand(t, d, []byte{0x00, 0x02, 0x00, 0x00, EscapeChar, CmdErasePage})
	require.NoError(t, err)
	assert.Equal(t, ErasePageCommand{Address: 0x200}, cmd)
}

func TestCommandDecoderDataDoesNotAliasBuffer(t *testing.T) {
	d := NewCommandDecoder()
	page := bytes.Repeat([]byte{0x5A}, PageSize)

	cmd, err := feedCommand(t, d, EncodeCommand(WritePageCommand{Address: 0, Data: page}))
	require.NoError(t, err)

	other := bytes.Repeat([]byte{0x11}, PageSize)
	_, err = feedCommand(t, d, EncodeCommand(WritePageCommand{Address: 0x200, Data: other}))
	require.NoError(t, err)

	assert.Equal(t, page, cmd.(WritePageCommand).Data)
}

func TestResponseDecoder(t *testing.T) {
	key := []byte("version\x00")

	tests := []struct {
		name    string
		frame   []byte
		want    Response
		wantErr error
	}{
		{
			name:  "pong",
			frame: []byte{EscapeChar, ResPong},
			want:  PongResponse{},
		},
		{
			name:  "ok ignores payload",
			frame: []byte{0x33, EscapeChar, ResOK},
			want:  OKResponse{},
		},
		{
			name:  "crc rx buffer",
			frame: []byte{0x04, 0x02, 0x44, 0x33, 0x22, 0x11, EscapeChar, ResCrcRxBuffer},
			want:  CrcRxBufferResponse{Length: 0x0204, CRC: 0x11223344},
		},
		{
			name:    "crc rx buffer short",
			frame:   []byte{0x04, 0x02, 0x44, EscapeChar, ResCrcRxBuffer},
			wantErr: ErrBadArguments,
		},
		{
			name:  "crc internal flash",
			frame: []byte{0x78, 0x56, 0x34, 0x12, EscapeChar, ResCrcIntFlash},
			want:  CrcIntFlashResponse{CRC: 0x12345678},
		},
		{
			name:    "crc external flash long",
			frame:   []byte{0x78, 0x56, 0x34, 0x12, 0x00, EscapeChar, ResCrcExFlash},
			wantErr: ErrBadArguments,
		},
		{
			name:  "read range with escaped byte",
			frame: []byte{0x01, 0xFC, 0xFC, 0x02, EscapeChar, ResReadRange},
			want:  ReadRangeResponse{Data: []byte{0x01, 0xFC, 0x02}},
		},
		{
			name:  "get attribute",
			frame: append(append([]byte{}, key...), '1', '.', '2', EscapeChar, ResGetAttr),
			want:  GetAttrResponse{Key: key, Value: []byte("1.2")},
		},
		{
			name:    "get attribute without key",
			frame:   []byte{'a', 'b', EscapeChar, ResGetAttr},
			wantErr: ErrBadArguments,
		},
		{
			name:  "info",
			frame: []byte{0x04, 't', 'o', 'c', 'k', EscapeChar, ResInfo},
			want:  InfoResponse{Info: []byte{0x04, 't', 'o', 'c', 'k'}},
		},
		{
			name:    "unknown",
			frame:   []byte{EscapeChar, 0x01},
			wantErr: ErrUnknownCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewResponseDecoder()
			rsp, err := feedResponse(t, d, tt.frame)
			if tt.wantErr != nil {
				assert.Nil(t, rsp)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, rsp)
			}
			assert.Zero(t, d.Buffered())
		})
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	err := &DecodeError{Kind: ErrBadArguments, Opcode: CmdErasePage, Length: 3}
	assert.Equal(t, "decode opcode 0x06: bad arguments (3 payload bytes)", err.Error())
}

func TestProtocolError(t *testing.T) {
	err := &ProtocolError{Operation: "erase page", Response: ResBadAddress}
	assert.Equal(t, "erase page failed: bad address (0x12)", err.Error())
	assert.True(t, IsProtocolError(err))
	assert.False(t, IsProtocolError(ErrBadArguments))
}
