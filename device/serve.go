package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/moffa90/go-tockboot/protocol"
)

// pollInterval bounds how long Serve blocks in Read on transports with
// read deadlines, so cancellation is noticed.
const pollInterval = 50 * time.Millisecond

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Serve runs the bootloader loop on rw until ctx is cancelled or the peer
// closes the stream.
//
// Malformed frames are answered with Unknown or BadArguments, frames that
// overflowed the receive buffer with Overflow. Reset and ClockOut are not
// answered.
func (b *Bootloader) Serve(ctx context.Context, rw io.ReadWriter) error {
	dec := protocol.NewCommandDecoder()
	buf := make([]byte, 256)

	b.log.Info().Msg("bootloader emulator serving")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d, ok := rw.(deadliner); ok {
			_ = d.SetReadDeadline(time.Now().Add(pollInterval))
		}

		n, err := rw.Read(buf)
		for _, c := range buf[:n] {
			rsp, reply := b.receive(dec, c)
			if !reply {
				continue
			}
			if _, werr := io.Copy(rw, protocol.NewResponseEncoder(rsp)); werr != nil {
				return fmt.Errorf("write response: %w", werr)
			}
			if rate := b.takeBaudSwitch(); rate != 0 && b.switchFn != nil {
				if serr := b.switchFn(rate); serr != nil {
					return fmt.Errorf("switch baud rate to %d: %w", rate, serr)
				}
				b.log.Info().Uint32("baud", rate).Msg("switched baud rate")
			}
		}

		if err != nil {
			switch {
			case errors.Is(err, os.ErrDeadlineExceeded):
				continue
			case errors.Is(err, io.EOF):
				b.log.Info().Msg("peer closed connection")
				return nil
			default:
				return fmt.Errorf("read command: %w", err)
			}
		}
	}
}

// receive feeds one byte and reports the response to send, if any.
func (b *Bootloader) receive(dec *protocol.CommandDecoder, c byte) (protocol.Response, bool) {
	cmd, err := dec.Receive(c)
	if cmd == nil && err == nil {
		return nil, false
	}

	if dec.Dropped() > 0 {
		b.log.Warn().Int("dropped", dec.Dropped()).Msg("receive buffer overflow")
		return protocol.OverflowResponse{}, true
	}
	if err != nil {
		b.log.Warn().Err(err).Msg("malformed command")
		if errors.Is(err, protocol.ErrUnknownCommand) {
			return protocol.UnknownResponse{}, true
		}
		return protocol.BadArgumentsResponse{}, true
	}

	switch cmd.(type) {
	case protocol.ResetCommand:
		b.Handle(cmd)
		dec.Reset()
		return nil, false
	case protocol.ClockOutCommand:
		b.Handle(cmd)
		return nil, false
	}
	return b.Handle(cmd), true
}
