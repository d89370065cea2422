// Package device emulates a Tock serial bootloader in memory.
//
// It is the bootloader side of the protocol package: commands are decoded
// with a CommandDecoder and answered through a ResponseEncoder. Serve it on
// one end of a net.Pipe to test a flash tool, or on a pseudo terminal to
// stand in for a real board.
package device
