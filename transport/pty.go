//go:build !windows

package transport

import (
	"errors"
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// PTY is a raw-mode pseudo terminal pair. The emulator serves on the
// embedded controlling side; a flash tool opens Path like a serial port.
type PTY struct {
	*os.File
	tty *os.File
}

// OpenPTY allocates a pseudo terminal and puts its terminal side in raw
// mode so 0xFC, CR and control bytes pass through untouched.
func OpenPTY() (*PTY, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}
	if _, err := term.MakeRaw(int(tty.Fd())); err != nil {
		_ = tty.Close()
		_ = ptmx.Close()
		return nil, fmt.Errorf("set raw mode on %s: %w", tty.Name(), err)
	}
	return &PTY{File: ptmx, tty: tty}, nil
}

// Path returns the terminal device a flash tool should open.
func (p *PTY) Path() string {
	return p.tty.Name()
}

// Terminal returns the terminal side of the pair.
func (p *PTY) Terminal() *os.File {
	return p.tty
}

// Close closes both sides.
func (p *PTY) Close() error {
	return errors.Join(p.File.Close(), p.tty.Close())
}
