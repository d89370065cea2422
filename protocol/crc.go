package protocol

import "hash/crc32"

// CRC32 computes the checksum reported by the CrcRxBuffer, CrcIntFlash and
// CrcExFlash responses (CRC-32, IEEE polynomial).
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
