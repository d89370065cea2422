package bootloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/moffa90/go-tockboot/image"
	"github.com/moffa90/go-tockboot/protocol"
)

// readChunkSize is the size of a single device read.
const readChunkSize = 64

// Programmer talks to a bootloader over a byte transport and orchestrates
// firmware programming.
//
// Programmer is safe for concurrent use after initialization; exchanges are
// serialized.
type Programmer struct {
	device  io.ReadWriter
	config  Config
	decoder *protocol.ResponseDecoder
	mu      sync.Mutex
}

// deadliner is implemented by transports that support read deadlines,
// such as net.Conn.
type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// New creates a new Programmer with the given device and options.
// The device must implement io.ReadWriter for communication with the bootloader.
//
// Example:
//
//	port, _ := transport.Open("/dev/ttyUSB0", 115200, time.Second)
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithReadTimeout(2*time.Second),
//	)
func New(device io.ReadWriter, opts ...Option) *Programmer {
	if device == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		device:  device,
		config:  cfg,
		decoder: protocol.NewResponseDecoder(),
	}
}

// Program writes an image to internal flash:
//  1. Ping the bootloader
//  2. Write every page of the image
//  3. Verify the CRC of the written range (if enabled)
//
// The operation can be cancelled via context.
//
// Example:
//
//	img, _ := image.Load("app.hex", 0)
//	err := prog.Program(context.Background(), img)
func (p *Programmer) Program(ctx context.Context, img *image.Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}
	if len(img.Data) == 0 {
		return fmt.Errorf("image is empty")
	}

	startTime := time.Now()
	pages := img.Pages(protocol.PageSize)

	// Phase 1: Make sure the bootloader is listening
	p.reportProgress(Progress{
		Phase:      PhaseConnecting,
		Percentage: 0,
		TotalPages: len(pages),
	})

	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	p.logDebug("writing image",
		"address", fmt.Sprintf("0x%08X", img.Address),
		"bytes", len(img.Data),
		"pages", len(pages),
	)

	// Phase 2: Write pages
	bytesWritten := 0
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		if err := p.WritePage(ctx, page.Address, page.Data); err != nil {
			return fmt.Errorf("write page %d (address=0x%08X): %w", i, page.Address, err)
		}

		bytesWritten += len(page.Data)

		// Report progress (2% to 95%)
		percentage := 2 + (float64(i+1)/float64(len(pages)))*93
		p.reportProgress(Progress{
			Phase:        PhaseWriting,
			CurrentPage:  i + 1,
			TotalPages:   len(pages),
			Percentage:   percentage,
			BytesWritten: bytesWritten,
			ElapsedTime:  time.Since(startTime),
		})
	}

	// Phase 3: Verify the written range
	if p.config.VerifyAfterWrite {
		p.reportProgress(Progress{
			Phase:        PhaseVerifying,
			CurrentPage:  len(pages),
			TotalPages:   len(pages),
			Percentage:   96,
			BytesWritten: bytesWritten,
			ElapsedTime:  time.Since(startTime),
		})

		if err := p.verify(ctx, img); err != nil {
			return fmt.Errorf("verify image: %w", err)
		}
	}

	// Complete
	p.reportProgress(Progress{
		Phase:        PhaseComplete,
		CurrentPage:  len(pages),
		TotalPages:   len(pages),
		Percentage:   100,
		BytesWritten: bytesWritten,
		ElapsedTime:  time.Since(startTime),
	})

	p.logInfo("programming complete",
		"pages", len(pages),
		"bytes", bytesWritten,
		"elapsed", time.Since(startTime).String(),
	)

	return nil
}

// verify compares the bootloader's CRC of the image range with the local one.
func (p *Programmer) verify(ctx context.Context, img *image.Image) error {
	actual, err := p.CrcIntFlash(ctx, img.Address, uint32(len(img.Data)))
	if err != nil {
		return err
	}

	expected := protocol.CRC32(img.Data)
	if actual != expected {
		return &VerifyError{
			Address:  img.Address,
			Length:   uint32(len(img.Data)),
			Expected: expected,
			Actual:   actual,
		}
	}

	p.logDebug("image verified", "crc", fmt.Sprintf("0x%08X", actual))
	return nil
}

// Ping checks that the bootloader is responding.
func (p *Programmer) Ping(ctx context.Context) error {
	rsp, err := p.Exchange(ctx, protocol.PingCommand{})
	if err != nil {
		return err
	}
	if _, ok := rsp.(protocol.PongResponse); !ok {
		return unexpected("ping", rsp)
	}
	return nil
}

// Info returns the bootloader info string.
//
// The bootloader answers with one length byte followed by the text and
// zero padding.
func (p *Programmer) Info(ctx context.Context) (string, error) {
	rsp, err := p.Exchange(ctx, protocol.InfoCommand{})
	if err != nil {
		return "", err
	}
	info, ok := rsp.(protocol.InfoResponse)
	if !ok {
		return "", unexpected("info", rsp)
	}
	if len(info.Info) == 0 {
		return "", nil
	}

	n := int(info.Info[0])
	if n > len(info.Info)-1 {
		n = len(info.Info) - 1
	}
	return string(info.Info[1 : 1+n]), nil
}

// ID returns the bootloader's unique ID, delivered as a read range payload.
func (p *Programmer) ID(ctx context.Context) ([]byte, error) {
	rsp, err := p.Exchange(ctx, protocol.IDCommand{})
	if err != nil {
		return nil, err
	}
	data, ok := rsp.(protocol.ReadRangeResponse)
	if !ok {
		return nil, unexpected("id", rsp)
	}
	return data.Data, nil
}

// Reset asks the bootloader to drop its TX and RX buffers.
// The bootloader does not answer a reset.
func (p *Programmer) Reset(ctx context.Context) error {
	return p.Send(ctx, protocol.ResetCommand{})
}

// ClockOut puts the bootloader into clock calibration output. The
// bootloader stops answering until it is power cycled.
func (p *Programmer) ClockOut(ctx context.Context) error {
	return p.Send(ctx, protocol.ClockOutCommand{})
}

// ErasePage erases the internal flash page at address.
func (p *Programmer) ErasePage(ctx context.Context, address uint32) error {
	return p.expectOK(ctx, "erase page", protocol.ErasePageCommand{Address: address})
}

// WritePage writes one internal flash page. Short data is padded with 0xFF.
func (p *Programmer) WritePage(ctx context.Context, address uint32, data []byte) error {
	if len(data) > protocol.PageSize {
		return fmt.Errorf("page data length %d exceeds maximum %d bytes", len(data), protocol.PageSize)
	}
	return p.expectOK(ctx, "write page", protocol.WritePageCommand{Address: address, Data: data})
}

// ExFlashInit initialises the external flash chip.
func (p *Programmer) ExFlashInit(ctx context.Context) error {
	return p.expectOK(ctx, "external flash init", protocol.ExFlashInitCommand{})
}

// EraseExBlock erases the external flash block at address.
func (p *Programmer) EraseExBlock(ctx context.Context, address uint32) error {
	return p.expectOK(ctx, "erase external block", protocol.EraseExBlockCommand{Address: address})
}

// EraseExPage erases the external flash page at address.
func (p *Programmer) EraseExPage(ctx context.Context, address uint32) error {
	return p.expectOK(ctx, "erase external page", protocol.EraseExPageCommand{Address: address})
}

// WriteExPage writes one external flash page. Short data is padded with 0xFF.
func (p *Programmer) WriteExPage(ctx context.Context, address uint32, data []byte) error {
	if len(data) > protocol.ExPageSize {
		return fmt.Errorf("page data length %d exceeds maximum %d bytes", len(data), protocol.ExPageSize)
	}
	return p.expectOK(ctx, "write external page", protocol.WriteExPageCommand{Address: address, Data: data})
}

// WriteFlashUserPages writes the two flash user pages.
func (p *Programmer) WriteFlashUserPages(ctx context.Context, page1, page2 uint32) error {
	return p.expectOK(ctx, "write user pages", protocol.WriteFlashUserPagesCommand{Page1: page1, Page2: page2})
}

// ReadRange reads length bytes of internal flash, one page per exchange.
func (p *Programmer) ReadRange(ctx context.Context, address uint32, length int) ([]byte, error) {
	return p.readChunked(ctx, "read range", address, length, func(addr uint32, n uint16) protocol.Command {
		return protocol.ReadRangeCommand{Address: addr, Length: n}
	})
}

// ExReadRange reads length bytes of external flash, one page per exchange.
func (p *Programmer) ExReadRange(ctx context.Context, address uint32, length int) ([]byte, error) {
	return p.readChunked(ctx, "external read range", address, length, func(addr uint32, n uint16) protocol.Command {
		return protocol.ExReadRangeCommand{Address: addr, Length: n}
	})
}

func (p *Programmer) readChunked(ctx context.Context, op string, address uint32, length int, build func(uint32, uint16) protocol.Command) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("length cannot be negative")
	}

	out := make([]byte, 0, length)
	for len(out) < length {
		n := length - len(out)
		if n > protocol.PageSize {
			n = protocol.PageSize
		}

		rsp, err := p.Exchange(ctx, build(address+uint32(len(out)), uint16(n)))
		if err != nil {
			return nil, err
		}

		var data []byte
		switch r := rsp.(type) {
		case protocol.ReadRangeResponse:
			data = r.Data
		case protocol.ExReadRangeResponse:
			data = r.Data
		default:
			return nil, unexpected(op, rsp)
		}
		if len(data) != n {
			return nil, fmt.Errorf("%s: got %d bytes, expected %d", op, len(data), n)
		}
		out = append(out, data...)
	}
	return out, nil
}

// CrcRxBuffer returns the length and CRC-32 of the bootloader RX buffer.
func (p *Programmer) CrcRxBuffer(ctx context.Context) (uint16, uint32, error) {
	rsp, err := p.Exchange(ctx, protocol.CrcRxBufferCommand{})
	if err != nil {
		return 0, 0, err
	}
	r, ok := rsp.(protocol.CrcRxBufferResponse)
	if !ok {
		return 0, 0, unexpected("crc rx buffer", rsp)
	}
	return r.Length, r.CRC, nil
}

// CrcIntFlash returns the CRC-32 of an internal flash range.
func (p *Programmer) CrcIntFlash(ctx context.Context, address, length uint32) (uint32, error) {
	rsp, err := p.Exchange(ctx, protocol.CrcIntFlashCommand{Address: address, Length: length})
	if err != nil {
		return 0, err
	}
	r, ok := rsp.(protocol.CrcIntFlashResponse)
	if !ok {
		return 0, unexpected("crc internal flash", rsp)
	}
	return r.CRC, nil
}

// CrcExFlash returns the CRC-32 of an external flash range.
func (p *Programmer) CrcExFlash(ctx context.Context, address, length uint32) (uint32, error) {
	rsp, err := p.Exchange(ctx, protocol.CrcExFlashCommand{Address: address, Length: length})
	if err != nil {
		return 0, err
	}
	r, ok := rsp.(protocol.CrcExFlashResponse)
	if !ok {
		return 0, unexpected("crc external flash", rsp)
	}
	return r.CRC, nil
}

// SetAttribute writes attribute slot index.
func (p *Programmer) SetAttribute(ctx context.Context, index byte, key string, value []byte) error {
	if index >= protocol.AttrCount {
		return fmt.Errorf("attribute index %d out of range (max %d)", index, protocol.AttrCount-1)
	}
	if len(key) > protocol.AttrKeySize {
		return fmt.Errorf("attribute key %q exceeds %d bytes", key, protocol.AttrKeySize)
	}
	if len(value) > protocol.AttrMaxValueSize {
		return fmt.Errorf("attribute value length %d exceeds maximum %d bytes", len(value), protocol.AttrMaxValueSize)
	}

	return p.expectOK(ctx, "set attribute", protocol.SetAttrCommand{
		Index: index,
		Key:   []byte(key),
		Value: value,
	})
}

// GetAttribute reads attribute slot index. An empty slot has an empty key.
func (p *Programmer) GetAttribute(ctx context.Context, index byte) (*Attribute, error) {
	if index >= protocol.AttrCount {
		return nil, fmt.Errorf("attribute index %d out of range (max %d)", index, protocol.AttrCount-1)
	}

	rsp, err := p.Exchange(ctx, protocol.GetAttrCommand{Index: index})
	if err != nil {
		return nil, err
	}
	r, ok := rsp.(protocol.GetAttrResponse)
	if !ok {
		return nil, unexpected("get attribute", rsp)
	}

	return &Attribute{
		Index: index,
		Key:   string(bytes.TrimRight(r.Key, "\x00")),
		Value: r.Value,
	}, nil
}

// ChangeBaud moves the link to a new baud rate.
//
// The bootloader is asked to switch, switchFn switches the local port, and
// the new rate is then confirmed. If confirmation fails the bootloader
// falls back to its old rate; switchFn is not called again.
func (p *Programmer) ChangeBaud(ctx context.Context, baud uint32, switchFn func(uint32) error) error {
	err := p.expectOK(ctx, "change baud", protocol.ChangeBaudCommand{Mode: protocol.BaudModeSet, Baud: baud})
	if err != nil {
		return err
	}

	if switchFn != nil {
		if err := switchFn(baud); err != nil {
			return fmt.Errorf("switch local baud rate: %w", err)
		}
	}

	rsp, err := p.Exchange(ctx, protocol.ChangeBaudCommand{Mode: protocol.BaudModeVerify, Baud: baud})
	if err != nil {
		return err
	}
	switch rsp.(type) {
	case protocol.OKResponse:
		p.logInfo("baud rate changed", "baud", baud)
		return nil
	case protocol.ChangeBaudFailResponse:
		return &BaudChangeError{Baud: baud}
	default:
		return unexpected("verify baud", rsp)
	}
}

// expectOK sends cmd and requires an OK response.
func (p *Programmer) expectOK(ctx context.Context, op string, cmd protocol.Command) error {
	rsp, err := p.Exchange(ctx, cmd)
	if err != nil {
		return err
	}
	if _, ok := rsp.(protocol.OKResponse); !ok {
		return unexpected(op, rsp)
	}
	return nil
}

func unexpected(op string, rsp protocol.Response) error {
	return &protocol.ProtocolError{Operation: op, Response: rsp.Opcode()}
}

// Send writes a command without waiting for a response.
func (p *Programmer) Send(ctx context.Context, cmd protocol.Command) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.decoder.Reset()
	return p.write(cmd)
}

// Exchange sends a command and waits for the bootloader's response.
//
// Timeouts and undecodable responses are retried up to the configured
// number of retries; transport write errors are returned immediately.
func (p *Programmer) Exchange(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= p.config.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}

		if attempt > 0 {
			p.logDebug("retrying command",
				"opcode", fmt.Sprintf("0x%02X", cmd.Opcode()),
				"attempt", attempt,
				"error", lastErr.Error(),
			)
		}

		rsp, err := p.exchangeOnce(ctx, cmd)
		if err == nil {
			return rsp, nil
		}
		if !isRetryable(err) {
			p.logError("command failed", "opcode", fmt.Sprintf("0x%02X", cmd.Opcode()), "error", err.Error())
			return nil, err
		}
		lastErr = err
	}

	p.logError("command failed after retries",
		"opcode", fmt.Sprintf("0x%02X", cmd.Opcode()),
		"retries", p.config.Retries,
		"error", lastErr.Error(),
	)
	return nil, lastErr
}

func isRetryable(err error) bool {
	var de *protocol.DecodeError
	return errors.Is(err, ErrTimeout) || errors.As(err, &de)
}

func (p *Programmer) exchangeOnce(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	p.decoder.Reset()
	if err := p.write(cmd); err != nil {
		return nil, err
	}
	return p.readResponse(ctx)
}

// write encodes cmd straight onto the device.
func (p *Programmer) write(cmd protocol.Command) error {
	if _, err := io.Copy(p.device, protocol.NewCommandEncoder(cmd)); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// readResponse feeds device bytes into the response decoder until a
// response completes. Bytes after the response in the same read are stale
// and dropped.
func (p *Programmer) readResponse(ctx context.Context) (protocol.Response, error) {
	deadline := time.Now().Add(p.config.ReadTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if d, ok := p.device.(deadliner); ok {
		_ = d.SetReadDeadline(deadline)
		defer func() { _ = d.SetReadDeadline(time.Time{}) }()
	}

	buf := make([]byte, readChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("cancelled: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}

		n, err := p.device.Read(buf)
		for _, b := range buf[:n] {
			rsp, derr := p.decoder.Receive(b)
			if derr != nil {
				return nil, fmt.Errorf("decode response: %w", derr)
			}
			if rsp != nil {
				return rsp, nil
			}
		}

		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, ErrTimeout
			}
			return nil, fmt.Errorf("read response: %w", err)
		}
	}
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
