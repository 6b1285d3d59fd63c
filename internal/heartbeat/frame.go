package heartbeat

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// FrameHeaderSize is the length of the big-endian checksum prefix.
const FrameHeaderSize = 4

// Checksum is the CRC32 (IEEE) of payload, the same checksum the backend
// computes for every packet it receives.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// Frame prefixes payload with its checksum.
func Frame(payload []byte) []byte {
	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, Checksum(payload))
	copy(buf[FrameHeaderSize:], payload)
	return buf
}

// Unframe splits a framed datagram into its checksum field and payload. The
// checksum is returned as received, verification is up to the caller.
func Unframe(data []byte) (uint32, []byte, error) {
	if len(data) < FrameHeaderSize {
		return 0, nil, fmt.Errorf("frame too short: %d bytes, need at least %d", len(data), FrameHeaderSize)
	}
	return binary.BigEndian.Uint32(data), data[FrameHeaderSize:], nil
}
