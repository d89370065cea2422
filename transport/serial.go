// Package transport opens serial ports for talking to a bootloader.
package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Port is an open serial line. Read returns (0, nil) when the read
// timeout passes without data.
type Port struct {
	serial.Port
	path string
}

// Open opens path at baud 8N1, sets the read timeout and discards any bytes
// already waiting in the input buffer.
func Open(path string, baud int, readTimeout time.Duration) (*Port, error) {
	port, err := serial.Open(path, mode(baud))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("reset input buffer on %s: %w", path, err)
	}
	return &Port{Port: port, path: path}, nil
}

// SetBaud switches the line speed. Its signature matches the switch
// function taken by Programmer.ChangeBaud.
func (p *Port) SetBaud(baud uint32) error {
	if err := p.SetMode(mode(int(baud))); err != nil {
		return fmt.Errorf("set baud %d on %s: %w", baud, p.path, err)
	}
	return nil
}

// Path returns the device path the port was opened on.
func (p *Port) Path() string {
	return p.path
}

// List returns the serial ports present on the system.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

func mode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}
