// Package bootloader provides a high-level API for programming boards that
// run the Tock serial bootloader.
//
// # Overview
//
// A Programmer wraps any io.ReadWriter connected to the bootloader. Each
// operation encodes one command frame, writes it, and decodes the response
// frame that comes back:
//   - Ping, Info and ID identify the bootloader
//   - ErasePage, WritePage and ReadRange access internal flash
//   - the Ex* family accesses external flash
//   - SetAttribute and GetAttribute manage the attribute table
//   - ChangeBaud renegotiates the line speed
//
// # Basic Usage
//
//	port, err := transport.Open("/dev/ttyUSB0", 115200, 100*time.Millisecond)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	img, err := image.Load("kernel.bin", 0x10000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prog := bootloader.New(port)
//	if err := prog.Program(context.Background(), img); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - Page %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentPage, p.TotalPages)
//	    }),
//	)
//
// # Timeouts and Retries
//
// Every exchange waits at most ReadTimeout for a response. Transports that
// implement SetReadDeadline (net.Conn) get a deadline; serial ports should
// be opened with a short read timeout so Read returns periodically. Timed
// out or undecodable exchanges are retried; the bootloader treats every
// command as idempotent.
//
// # Error Handling
//
//   - ErrTimeout: no response arrived in time
//   - protocol.ProtocolError: the bootloader answered with an unexpected response
//   - VerifyError: flash CRC does not match the image
//   - BaudChangeError: the bootloader could not confirm a new baud rate
package bootloader
