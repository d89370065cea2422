package device

import "github.com/rs/zerolog"

// config holds the emulator configuration.
type config struct {
	flashSize   int
	exFlashSize int
	info        string
	id          [8]byte
	logger      zerolog.Logger
	baudSwitch  func(uint32) error
}

func defaultConfig() config {
	return config{
		flashSize:   512 << 10,
		exFlashSize: 1 << 20,
		info:        "tock-bootloader emulator",
		id:          [8]byte{0x54, 0x4F, 0x43, 0x4B, 0x00, 0x00, 0x00, 0x01},
		logger:      zerolog.Nop(),
	}
}

// Option configures a Bootloader.
type Option func(*config)

// WithFlashSize sets the internal flash size. It is rounded down to whole pages.
func WithFlashSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.flashSize = size
		}
	}
}

// WithExFlashSize sets the external flash size. It is rounded down to whole blocks.
func WithExFlashSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.exFlashSize = size
		}
	}
}

// WithInfo sets the text returned by the info command.
func WithInfo(info string) Option {
	return func(c *config) {
		c.info = info
	}
}

// WithID sets the 8-byte board ID.
func WithID(id [8]byte) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithBaudSwitch sets the function that changes the line speed of the
// port the emulator is served on. Without it baud changes only update
// the emulator's bookkeeping.
func WithBaudSwitch(fn func(uint32) error) Option {
	return func(c *config) {
		c.baudSwitch = fn
	}
}
