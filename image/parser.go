package image

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Constants for Intel HEX parsing.
const (
	// MinimumRecordBytes is the size of a record without data:
	// count(1) + address(2) + type(1) + checksum(1)
	MinimumRecordBytes = 5

	// RecordHeaderSize is the size of count + address + type
	RecordHeaderSize = 4

	// MaxImageSize bounds the span between the lowest and highest address
	MaxImageSize = 16 << 20

	addressSpace = 1 << 32
	fillByte     = 0xFF
)

// Intel HEX record types.
const (
	RecordData                   = 0x00
	RecordEOF                    = 0x01
	RecordExtendedSegmentAddress = 0x02
	RecordStartSegmentAddress    = 0x03
	RecordExtendedLinearAddress  = 0x04
	RecordStartLinearAddress     = 0x05
)

// Load reads an image from the given file path. Files with a .hex or .ihex
// extension are parsed as Intel HEX; anything else is read as a raw binary
// placed at address.
//
// Example:
//
//	img, err := image.Load("kernel.bin", 0x10000)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d bytes at 0x%08X\n", len(img.Data), img.Address)
func Load(path string, address uint32) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex":
		return ParseHex(f)
	default:
		return ParseBinary(f, address)
	}
}

// ParseBinary reads a raw binary image that starts at address.
func ParseBinary(r io.Reader, address uint32) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("image exceeds %d bytes", MaxImageSize)
	}
	if end := uint64(address) + uint64(len(data)); end > addressSpace {
		return nil, fmt.Errorf("image ends at 0x%X, past the 32-bit address space", end)
	}
	return &Image{Address: address, Data: data}, nil
}

// ParseHex parses Intel HEX records from any io.Reader.
// This is useful for testing and reading from non-file sources.
//
// Example:
//
//	data := strings.NewReader(":0400000001020304F2\n:00000001FF\n")
//	img, err := image.ParseHex(data)
func ParseHex(r io.Reader) (*Image, error) {
	scanner := bufio.NewScanner(r)

	chunks := make(map[uint32][]byte)
	var base uint32
	sawEOF := false

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines
		if line == "" {
			continue
		}
		if sawEOF {
			return nil, fmt.Errorf("line %d: record after end of file", lineNum)
		}

		rec, err := parseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		switch rec.kind {
		case RecordData:
			if len(rec.data) > 0 {
				chunks[base+uint32(rec.address)] = rec.data
			}
		case RecordEOF:
			sawEOF = true
		case RecordExtendedSegmentAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: extended segment address needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 4
		case RecordExtendedLinearAddress:
			if len(rec.data) != 2 {
				return nil, fmt.Errorf("line %d: extended linear address needs 2 bytes, got %d", lineNum, len(rec.data))
			}
			base = (uint32(rec.data[0])<<8 | uint32(rec.data[1])) << 16
		case RecordStartSegmentAddress, RecordStartLinearAddress:
			// Entry point; not needed for flashing.
		default:
			return nil, fmt.Errorf("line %d: unsupported record type 0x%02X", lineNum, rec.kind)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("no data records found in file")
	}

	return assemble(chunks)
}

// record is one decoded Intel HEX line.
type record struct {
	kind    byte
	address uint16
	data    []byte
}

// parseRecord parses a single Intel HEX record.
//
// Record format:
//
//	:[Count(1 byte)][Address(2 bytes)][Type(1 byte)][Data(Count bytes)][Checksum(1 byte)]
//
// Address is big-endian.
func parseRecord(line string) (*record, error) {
	if line[0] != ':' {
		return nil, fmt.Errorf("record must start with ':'")
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}

	if len(raw) < MinimumRecordBytes {
		return nil, fmt.Errorf("record too short: got %d bytes, minimum is %d", len(raw), MinimumRecordBytes)
	}

	count := int(raw[0])
	expectedLen := MinimumRecordBytes + count
	if len(raw) != expectedLen {
		return nil, fmt.Errorf("data length mismatch: got %d bytes, expected %d (header=%d + data=%d + checksum=1)",
			len(raw), expectedLen, RecordHeaderSize, count)
	}

	// Verify checksum
	checksum := raw[len(raw)-1]
	calculated := calculateRecordChecksum(raw[:len(raw)-1])
	if checksum != calculated {
		return nil, fmt.Errorf("checksum mismatch: got 0x%02X, expected 0x%02X", checksum, calculated)
	}

	rec := &record{
		kind:    raw[3],
		address: uint16(raw[1])<<8 | uint16(raw[2]),
		data:    make([]byte, count),
	}
	copy(rec.data, raw[RecordHeaderSize:RecordHeaderSize+count])

	return rec, nil
}

// assemble places data chunks into one contiguous image, filling gaps with
// erased flash.
func assemble(chunks map[uint32][]byte) (*Image, error) {
	addrs := make([]uint32, 0, len(chunks))
	for addr := range chunks {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	start := uint64(addrs[0])
	end := start
	for _, addr := range addrs {
		if e := uint64(addr) + uint64(len(chunks[addr])); e > end {
			end = e
		}
	}
	if end > addressSpace {
		return nil, fmt.Errorf("image ends at 0x%X, past the 32-bit address space", end)
	}
	if end-start > MaxImageSize {
		return nil, fmt.Errorf("image spans %d bytes, maximum is %d", end-start, MaxImageSize)
	}

	data := make([]byte, end-start)
	for i := range data {
		data[i] = fillByte
	}
	for _, addr := range addrs {
		copy(data[uint64(addr)-start:], chunks[addr])
	}

	return &Image{Address: uint32(start), Data: data}, nil
}

// calculateRecordChecksum computes the 8-bit checksum for a record.
// Uses basic summation with 2's complement.
func calculateRecordChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1 // 2's complement
}
