package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-tockboot/device"
	"github.com/moffa90/go-tockboot/transport"
)

var (
	emulateInfo  string
	emulateFlash int
	emulatePTY   bool
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Serve an in-memory bootloader",
	Long: `Run a bootloader emulator until interrupted. By default it serves on
--port, for use with a null-modem cable. With --pty it allocates a pseudo
terminal and prints the path a flash tool should open.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []device.Option{
			device.WithLogger(logger),
			device.WithInfo(emulateInfo),
			device.WithFlashSize(emulateFlash),
		}

		var port io.ReadWriteCloser
		if emulatePTY {
			p, err := transport.OpenPTY()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "serving on %s\n", p.Path())
			port = p
		} else {
			p, err := openPort(cfg)
			if err != nil {
				return err
			}
			if sp, ok := p.(*transport.Port); ok {
				opts = append(opts, device.WithBaudSwitch(sp.SetBaud))
			}
			logger.Info().Str("port", cfg.Port).Int("baud", cfg.Baud).Msg("emulating bootloader")
			port = p
		}
		defer port.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Unblock a Read on transports without deadlines.
		go func() {
			<-ctx.Done()
			_ = port.Close()
		}()

		err := device.New(opts...).Serve(ctx, port)
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("emulator stopped: %w", err)
		}
		logger.Info().Msg("emulator stopped")
		return nil
	},
}

func init() {
	emulateCmd.Flags().StringVar(&emulateInfo, "info", "tock-bootloader emulator", "info string to report")
	emulateCmd.Flags().IntVar(&emulateFlash, "flash-size", 1<<20, "internal flash size in bytes")
	emulateCmd.Flags().BoolVar(&emulatePTY, "pty", false, "serve on a new pseudo terminal instead of --port")
	rootCmd.AddCommand(emulateCmd)
}
