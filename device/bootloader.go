package device

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-tockboot/protocol"
)

type attribute struct {
	key   [protocol.AttrKeySize]byte
	value []byte
}

// Bootloader is an in-memory Tock bootloader. Handle dispatches decoded
// commands against emulated internal flash, external flash and the
// attribute table.
type Bootloader struct {
	mu sync.Mutex

	flash    []byte
	exFlash  []byte
	exReady  bool
	attrs    [protocol.AttrCount]attribute
	rx       []byte
	info     []byte
	id       [8]byte
	baud     uint32
	pending  uint32
	switchTo uint32
	log      zerolog.Logger
	switchFn func(uint32) error
}

// New creates an emulator with erased flash.
func New(opts ...Option) *Bootloader {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bootloader{
		flash:    erased(cfg.flashSize / protocol.PageSize * protocol.PageSize),
		exFlash:  erased(cfg.exFlashSize / protocol.ExBlockSize * protocol.ExBlockSize),
		info:     renderInfo(cfg.info),
		id:       cfg.id,
		baud:     115200,
		log:      cfg.logger,
		switchFn: cfg.baudSwitch,
	}
	return b
}

func erased(n int) []byte {
	return bytes.Repeat([]byte{protocol.PadByte}, n)
}

// renderInfo lays out the info block: one length byte, the text, zero padding.
func renderInfo(text string) []byte {
	info := make([]byte, protocol.InfoSize)
	n := copy(info[1:], text)
	info[0] = byte(n)
	return info
}

// Flash returns a copy of internal flash.
func (b *Bootloader) Flash() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.flash)
}

// ExFlash returns a copy of external flash.
func (b *Bootloader) ExFlash() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.exFlash)
}

// Attribute returns the key (without trailing zeros) and value of slot i.
// Slots outside 0..AttrCount-1 read as empty.
func (b *Bootloader) Attribute(i int) (string, []byte) {
	if i < 0 || i >= protocol.AttrCount {
		return "", nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.attrs[i]
	return string(bytes.TrimRight(a.key[:], "\x00")), bytes.Clone(a.value)
}

// Baud returns the line speed the emulator believes it is running at.
func (b *Bootloader) Baud() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.baud
}

// Handle executes one command and returns the response to send back.
func (b *Bootloader) Handle(cmd protocol.Command) protocol.Response {
	b.mu.Lock()
	defer b.mu.Unlock()

	rsp := b.dispatch(cmd)
	b.log.Debug().
		Str("command", fmt.Sprintf("%T", cmd)).
		Str("response", protocol.ResponseName(rsp.Opcode())).
		Msg("handled command")
	return rsp
}

func (b *Bootloader) dispatch(cmd protocol.Command) protocol.Response {
	switch c := cmd.(type) {
	case protocol.PingCommand:
		return protocol.PongResponse{}
	case protocol.InfoCommand:
		return protocol.InfoResponse{Info: bytes.Clone(b.info)}
	case protocol.IDCommand:
		return protocol.ReadRangeResponse{Data: bytes.Clone(b.id[:])}
	case protocol.ResetCommand:
		b.rx = nil
		return protocol.OKResponse{}
	case protocol.ClockOutCommand, protocol.WriteFlashUserPagesCommand:
		return protocol.OKResponse{}

	case protocol.ErasePageCommand:
		page, ok := pageAt(b.flash, c.Address, protocol.PageSize)
		if !ok {
			return protocol.BadAddressResponse{}
		}
		fill(page)
		return protocol.OKResponse{}
	case protocol.WritePageCommand:
		page, ok := pageAt(b.flash, c.Address, protocol.PageSize)
		if !ok {
			return protocol.BadAddressResponse{}
		}
		copy(page, c.Data)
		b.rx = rxPayload(c.Address, c.Data)
		return protocol.OKResponse{}
	case protocol.ReadRangeCommand:
		data, rsp := readRange(b.flash, c.Address, c.Length)
		if rsp != nil {
			return rsp
		}
		return protocol.ReadRangeResponse{Data: data}
	case protocol.CrcIntFlashCommand:
		data, ok := span(b.flash, c.Address, c.Length)
		if !ok {
			return protocol.BadAddressResponse{}
		}
		return protocol.CrcIntFlashResponse{CRC: protocol.CRC32(data)}
	case protocol.CrcRxBufferCommand:
		return protocol.CrcRxBufferResponse{Length: uint16(len(b.rx)), CRC: protocol.CRC32(b.rx)}

	case protocol.ExFlashInitCommand:
		b.exReady = true
		return protocol.OKResponse{}
	case protocol.EraseExBlockCommand:
		return b.exAccess(func() protocol.Response {
			block, ok := pageAt(b.exFlash, c.Address, protocol.ExBlockSize)
			if !ok {
				return protocol.BadAddressResponse{}
			}
			fill(block)
			return protocol.OKResponse{}
		})
	case protocol.EraseExPageCommand:
		return b.exAccess(func() protocol.Response {
			page, ok := pageAt(b.exFlash, c.Address, protocol.ExPageSize)
			if !ok {
				return protocol.BadAddressResponse{}
			}
			fill(page)
			return protocol.OKResponse{}
		})
	case protocol.WriteExPageCommand:
		return b.exAccess(func() protocol.Response {
			page, ok := pageAt(b.exFlash, c.Address, protocol.ExPageSize)
			if !ok {
				return protocol.ExFlashPageErrorResponse{}
			}
			copy(page, c.Data)
			b.rx = rxPayload(c.Address, c.Data)
			return protocol.OKResponse{}
		})
	case protocol.ExReadRangeCommand:
		return b.exAccess(func() protocol.Response {
			data, rsp := readRange(b.exFlash, c.Address, c.Length)
			if rsp != nil {
				return rsp
			}
			return protocol.ExReadRangeResponse{Data: data}
		})
	case protocol.CrcExFlashCommand:
		return b.exAccess(func() protocol.Response {
			data, ok := span(b.exFlash, c.Address, c.Length)
			if !ok {
				return protocol.BadAddressResponse{}
			}
			return protocol.CrcExFlashResponse{CRC: protocol.CRC32(data)}
		})

	case protocol.SetAttrCommand:
		if int(c.Index) >= protocol.AttrCount {
			return protocol.BadArgumentsResponse{}
		}
		var a attribute
		copy(a.key[:], c.Key)
		a.value = bytes.Clone(c.Value)
		b.attrs[c.Index] = a
		return protocol.OKResponse{}
	case protocol.GetAttrCommand:
		if int(c.Index) >= protocol.AttrCount {
			return protocol.BadArgumentsResponse{}
		}
		a := b.attrs[c.Index]
		return protocol.GetAttrResponse{Key: bytes.Clone(a.key[:]), Value: bytes.Clone(a.value)}

	case protocol.ChangeBaudCommand:
		return b.changeBaud(c)
	}

	return protocol.UnknownResponse{}
}

// changeBaud answers Set at the old rate and then switches. Verify must
// carry the pending rate; anything else reverts to the old rate.
func (b *Bootloader) changeBaud(c protocol.ChangeBaudCommand) protocol.Response {
	switch c.Mode {
	case protocol.BaudModeSet:
		if c.Baud == 0 {
			return protocol.BadArgumentsResponse{}
		}
		b.pending = c.Baud
		b.switchTo = c.Baud
		return protocol.OKResponse{}
	default:
		if b.pending != 0 && c.Baud == b.pending {
			b.baud = b.pending
			b.pending = 0
			return protocol.OKResponse{}
		}
		if b.pending != 0 {
			b.switchTo = b.baud
		}
		b.pending = 0
		return protocol.ChangeBaudFailResponse{}
	}
}

// takeBaudSwitch returns the rate the port must move to after the last
// response was sent, if any.
func (b *Bootloader) takeBaudSwitch() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	rate := b.switchTo
	b.switchTo = 0
	return rate
}

func (b *Bootloader) exAccess(fn func() protocol.Response) protocol.Response {
	if !b.exReady {
		return protocol.ExFlashTimeoutResponse{}
	}
	return fn()
}

// pageAt returns the size-aligned window of mem at address.
func pageAt(mem []byte, address uint32, size int) ([]byte, bool) {
	if int(address)%size != 0 {
		return nil, false
	}
	return span(mem, address, uint32(size))
}

func span(mem []byte, address, length uint32) ([]byte, bool) {
	end := uint64(address) + uint64(length)
	if end > uint64(len(mem)) {
		return nil, false
	}
	return mem[address:end], true
}

func readRange(mem []byte, address uint32, length uint16) ([]byte, protocol.Response) {
	if int(length) > protocol.PageSize {
		return nil, protocol.BadArgumentsResponse{}
	}
	data, ok := span(mem, address, uint32(length))
	if !ok {
		return nil, protocol.BadAddressResponse{}
	}
	return bytes.Clone(data), nil
}

func fill(mem []byte) {
	for i := range mem {
		mem[i] = protocol.PadByte
	}
}

// rxPayload rebuilds the received write payload: address then page data.
func rxPayload(address uint32, data []byte) []byte {
	rx := make([]byte, 4, 4+len(data))
	rx[0] = byte(address)
	rx[1] = byte(address >> 8)
	rx[2] = byte(address >> 16)
	rx[3] = byte(address >> 24)
	return append(rx, data...)
}
