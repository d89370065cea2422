package main

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-tockboot/protocol"
	"github.com/moffa90/go-tockboot/transport"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the bootloader is responding",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		if err := prog.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "pong")
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the bootloader info string and board ID",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		info, err := prog.Info(cmd.Context())
		if err != nil {
			return fmt.Errorf("info failed: %w", err)
		}
		id, err := prog.ID(cmd.Context())
		if err != nil {
			return fmt.Errorf("id failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "info: %s\n", info)
		fmt.Fprintf(out, "id:   %s\n", hex.EncodeToString(id))
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <address> <length>",
	Short: "Hex dump a range of internal flash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseU32(args[0])
		if err != nil {
			return err
		}
		length, err := parseU32(args[1])
		if err != nil {
			return err
		}

		prog, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		data, err := prog.ReadRange(cmd.Context(), address, int(length))
		if err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), hex.Dump(data))
		return nil
	},
}

var eraseCmd = &cobra.Command{
	Use:   "erase <address>",
	Short: "Erase one internal flash page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseU32(args[0])
		if err != nil {
			return err
		}

		prog, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		if err := prog.ErasePage(cmd.Context(), address); err != nil {
			return fmt.Errorf("erase failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "erased page 0x%08X\n", address)
		return nil
	},
}

var crcCmd = &cobra.Command{
	Use:   "crc <address> <length>",
	Short: "Print the CRC-32 of an internal flash range",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := parseU32(args[0])
		if err != nil {
			return err
		}
		length, err := parseU32(args[1])
		if err != nil {
			return err
		}

		prog, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		crc, err := prog.CrcIntFlash(cmd.Context(), address, length)
		if err != nil {
			return fmt.Errorf("crc failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "0x%08X\n", crc)
		return nil
	},
}

var attrCmd = &cobra.Command{
	Use:   "attr",
	Short: "Manage bootloader attributes",
}

var attrListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all attribute slots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prog, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		rows := pterm.TableData{{"Index", "Key", "Value"}}
		for i := byte(0); i < protocol.AttrCount; i++ {
			attr, err := prog.GetAttribute(cmd.Context(), i)
			if err != nil {
				return fmt.Errorf("get attribute %d: %w", i, err)
			}
			if attr.Key == "" {
				continue
			}
			rows = append(rows, []string{strconv.Itoa(int(i)), attr.Key, string(attr.Value)})
		}

		table, err := pterm.DefaultTable.WithHasHeader(true).WithData(rows).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	},
}

var attrGetCmd = &cobra.Command{
	Use:   "get <index>",
	Short: "Show one attribute slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}

		prog, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		attr, err := prog.GetAttribute(cmd.Context(), index)
		if err != nil {
			return fmt.Errorf("get attribute failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", attr.Key, attr.Value)
		return nil
	},
}

var attrSetCmd = &cobra.Command{
	Use:   "set <index> <key> <value>",
	Short: "Write one attribute slot",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[0])
		if err != nil {
			return err
		}

		prog, done, err := connect()
		if err != nil {
			return err
		}
		defer done()

		if err := prog.SetAttribute(cmd.Context(), index, args[1], []byte(args[2])); err != nil {
			return fmt.Errorf("set attribute failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "attribute %d set\n", index)
		return nil
	},
}

var baudCmd = &cobra.Command{
	Use:   "baud <rate>",
	Short: "Switch the link to a new baud rate and confirm it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := parseU32(args[0])
		if err != nil {
			return err
		}

		port, err := openPort(cfg)
		if err != nil {
			return err
		}
		defer port.Close()

		var switchFn func(uint32) error
		if p, ok := port.(*transport.Port); ok {
			switchFn = p.SetBaud
		}

		prog := newProgrammer(port)
		if err := prog.ChangeBaud(cmd.Context(), rate, switchFn); err != nil {
			return fmt.Errorf("baud change failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "running at %d baud\n", rate)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List serial ports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := transport.List()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

// parseU32 accepts decimal or 0x-prefixed hex.
func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseIndex(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil || v >= protocol.AttrCount {
		return 0, fmt.Errorf("invalid attribute index %q: must be 0-%d", s, protocol.AttrCount-1)
	}
	return byte(v), nil
}

func init() {
	attrCmd.AddCommand(attrListCmd)
	attrCmd.AddCommand(attrGetCmd)
	attrCmd.AddCommand(attrSetCmd)

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(eraseCmd)
	rootCmd.AddCommand(crcCmd)
	rootCmd.AddCommand(attrCmd)
	rootCmd.AddCommand(baudCmd)
	rootCmd.AddCommand(listCmd)
}
