// Package image loads firmware images for flashing.
//
// # Intel HEX Format
//
// Each line is one record, hex-encoded after a leading colon:
//
//	:[ByteCount(2)][Address(4)][RecordType(2)][Data(2*ByteCount)][Checksum(2)]
//
// Supported record types:
//   - 00 = Data
//   - 01 = End of file
//   - 02 = Extended segment address (base = value << 4)
//   - 04 = Extended linear address (base = value << 16)
//   - 03 / 05 = Start address (accepted and ignored)
//
// The checksum is the two's complement of the sum of all other record bytes.
// Gaps between data records are filled with 0xFF (erased flash).
//
// Example record:
//
//	:0400000001020304F2
//	  04 = Byte count
//	  0000 = Address (big-endian)
//	  00 = Data record
//	  01020304 = Data
//	  F2 = Checksum
//
// # Usage
//
// Load a file from disk; files ending in .hex or .ihex are parsed as Intel
// HEX, anything else as a raw binary placed at the given address:
//
//	img, err := image.Load("app.hex", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, page := range img.Pages(512) {
//	    fmt.Printf("page 0x%08X\n", page.Address)
//	}
//
// Parse from an io.Reader:
//
//	img, err := image.ParseHex(strings.NewReader(hexContent))
//	img, err := image.ParseBinary(bytes.NewReader(raw), 0x30000)
package image
