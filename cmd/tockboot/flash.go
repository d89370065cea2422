package main

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-tockboot/bootloader"
	"github.com/moffa90/go-tockboot/image"
	"github.com/moffa90/go-tockboot/protocol"
)

var addressFlag string

var flashCmd = &cobra.Command{
	Use:   "flash <image>",
	Short: "Write an image to internal flash",
	Long: `Write a raw binary or Intel HEX image to internal flash. Binaries are
placed at --address (default from config, 0x30000); HEX files carry their
own addresses.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address := cfg.Address
		if cmd.Flags().Changed("address") {
			v, err := parseU32(addressFlag)
			if err != nil {
				return err
			}
			address = v
		}

		img, err := image.Load(args[0], address)
		if err != nil {
			return err
		}

		bar, err := pterm.DefaultProgressbar.
			WithTotal(len(img.Pages(protocol.PageSize))).
			WithTitle("Flashing").
			WithWriter(cmd.ErrOrStderr()).
			Start()
		if err != nil {
			return err
		}
		defer func() { _, _ = bar.Stop() }()

		prog, done, err := connect(bootloader.WithProgressCallback(func(p bootloader.Progress) {
			switch p.Phase {
			case bootloader.PhaseWriting:
				bar.Increment()
			case bootloader.PhaseVerifying:
				bar.UpdateTitle("Verifying")
			}
		}))
		if err != nil {
			return err
		}
		defer done()

		if err := prog.Program(cmd.Context(), img); err != nil {
			return fmt.Errorf("flash failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes at 0x%08X\n", len(img.Data), img.Address)
		return nil
	},
}

func init() {
	flashCmd.Flags().StringVarP(&addressFlag, "address", "a", "", "load address for binary images")
	rootCmd.AddCommand(flashCmd)
}
