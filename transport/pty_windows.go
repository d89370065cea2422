package transport

import (
	"errors"
	"os"
)

// PTY is not available on Windows.
type PTY struct {
	*os.File
}

// OpenPTY always fails on Windows.
func OpenPTY() (*PTY, error) {
	return nil, errors.New("pseudo terminals are not supported on windows")
}

// Path returns an empty string.
func (p *PTY) Path() string { return "" }

// Terminal returns nil.
func (p *PTY) Terminal() *os.File { return nil }
