// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"analyser/internal/transport"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Per-analyser counter    |
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Name Length       | uint8          | 1            | Length of name (L)      |
| Analyser Name     | []byte         | L            | UTF-8 analyser name     |
| Bin Count         | uint16         | 2            | Number of bins (N)      |
| Bins              | []byte         | N            | Byte frequency data     |
+-----------------------------------------------------------------------------+
*/

const headerSize = 4 + 8 + 1 + 2

// ErrShortPacket is returned when a datagram ends before its declared payload.
var ErrShortPacket = errors.New("udp: short packet")

// EncodePacket appends the binary encoding of frame to buf.
func EncodePacket(buf *bytes.Buffer, frame transport.Frame) error {
	if len(frame.Analyser) > math.MaxUint8 {
		return fmt.Errorf("udp: analyser name too long (%d bytes)", len(frame.Analyser))
	}
	if len(frame.Bytes) > math.MaxUint16 {
		return fmt.Errorf("udp: too many bins (%d)", len(frame.Bytes))
	}

	var hdr [12]byte
	binary.BigEndian.PutUint32(hdr[0:4], frame.Sequence)
	binary.BigEndian.PutUint64(hdr[4:12], uint64(frame.Timestamp))
	buf.Write(hdr[:])
	buf.WriteByte(uint8(len(frame.Analyser)))
	buf.WriteString(frame.Analyser)

	var count [2]byte
	binary.BigEndian.PutUint16(count[:], uint16(len(frame.Bytes)))
	buf.Write(count[:])
	buf.Write(frame.Bytes)
	return nil
}

// DecodePacket parses a datagram produced by EncodePacket.
func DecodePacket(p []byte) (transport.Frame, error) {
	var f transport.Frame
	if len(p) < headerSize {
		return f, ErrShortPacket
	}
	f.Sequence = binary.BigEndian.Uint32(p[0:4])
	f.Timestamp = int64(binary.BigEndian.Uint64(p[4:12]))
	nameLen := int(p[12])
	p = p[13:]
	if len(p) < nameLen+2 {
		return f, ErrShortPacket
	}
	f.Analyser = string(p[:nameLen])
	p = p[nameLen:]
	count := int(binary.BigEndian.Uint16(p[:2]))
	p = p[2:]
	if len(p) < count {
		return f, ErrShortPacket
	}
	f.Bytes = append([]byte(nil), p[:count]...)
	return f, nil
}
