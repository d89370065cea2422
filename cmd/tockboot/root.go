package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-tockboot/bootloader"
	"github.com/moffa90/go-tockboot/internal/config"
	"github.com/moffa90/go-tockboot/internal/logging"
	"github.com/moffa90/go-tockboot/transport"
)

var (
	// Global flags
	cfgFile     string
	portFlag    string
	baudFlag    int
	timeoutFlag time.Duration
	retriesFlag int
	logLevel    string

	// Shared state set during PersistentPreRun
	cfg    config.Config
	logger zerolog.Logger
)

// openPort opens the link to the bootloader. Tests replace it.
var openPort = func(c config.Config) (io.ReadWriteCloser, error) {
	port, err := transport.Open(c.Port, c.Baud, 100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// rootCmd is the base command for tockboot.
var rootCmd = &cobra.Command{
	Use:   "tockboot",
	Short: "Flash and inspect boards running the Tock serial bootloader",
	Long: `tockboot speaks the Tock bootloader serial protocol. It writes images to
internal flash, reads and checksums flash ranges, manages the attribute
table, and can emulate a bootloader on a serial port for testing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Override config with flags
		flags := cmd.Flags()
		if flags.Changed("port") {
			cfg.Port = portFlag
		}
		if flags.Changed("baud") {
			cfg.Baud = baudFlag
		}
		if flags.Changed("timeout") {
			cfg.ReadTimeout = timeoutFlag
		}
		if flags.Changed("retries") {
			cfg.Retries = retriesFlag
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = logLevel
		}

		logger, err = logging.InitLogger("tockboot", cfg.LogLevel)
		return err
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// connect opens the port and wraps it in a Programmer.
func connect(opts ...bootloader.Option) (*bootloader.Programmer, func(), error) {
	port, err := openPort(cfg)
	if err != nil {
		return nil, nil, err
	}
	return newProgrammer(port, opts...), func() { _ = port.Close() }, nil
}

func newProgrammer(port io.ReadWriter, opts ...bootloader.Option) *bootloader.Programmer {
	base := []bootloader.Option{
		bootloader.WithLogger(logging.Adapter{Logger: logger}),
		bootloader.WithReadTimeout(cfg.ReadTimeout),
		bootloader.WithRetries(cfg.Retries),
		bootloader.WithVerifyAfterWrite(cfg.Verify),
	}
	return bootloader.New(port, append(base, opts...)...)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "TOML config file")
	flags.StringVarP(&portFlag, "port", "p", "", "serial port (default \"/dev/ttyUSB0\")")
	flags.IntVarP(&baudFlag, "baud", "b", 0, "baud rate (default 115200)")
	flags.DurationVar(&timeoutFlag, "timeout", 0, "response timeout (default 1s)")
	flags.IntVar(&retriesFlag, "retries", 0, "retries per command (default 3)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default \"info\")")
}
