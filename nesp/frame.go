package nesp

import (
	"encoding/binary"
	"fmt"

	"github.com/fluidlab/go-nesp/internal/util"
)

// Framing bytes shared by requests and replies.
const (
	// STX marks the start of a framed request or reply.
	STX byte = 0x02
	// ETX marks the end of a framed request or reply.
	ETX byte = 0x03
	// CR terminates a basic-mode request.
	CR byte = 0x0D
)

// safeFrameOverhead is the number of bytes the length byte of a safe-mode
// frame covers beyond the payload: the length byte itself, the 2-byte
// checksum, and the ETX.
const safeFrameOverhead = 4

// crcPolynomial is the CRC-16-CCITT generator polynomial.
const crcPolynomial uint16 = 0x1021

// Port is the byte transport a pump is attached to.
//
// Receive must block until exactly n bytes are available. Pending reports the
// number of bytes already buffered and unread; it is used only to batch-drain
// a basic-mode reply of unknown length.
type Port interface {
	Send(data []byte) error
	Receive(n int) ([]byte, error)
	Pending() (int, error)
}

// Checksum computes the 16-bit CRC-CCITT (XMODEM variant, initial value
// 0x0000) over the given data. It is computed over the raw payload bytes
// only, never over framing bytes.
func Checksum(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// encodeBasicRequest frames a request in basic mode:
//
//	<payload> CR
func encodeBasicRequest(text string) []byte {
	return append([]byte(text), CR)
}

// encodeSafeRequest frames a request in safe (checksummed) mode:
//
//	STX <length> <payload> <checksum_hi> <checksum_lo> ETX
//
// where length = len(payload) + 4 and the checksum is big-endian.
func encodeSafeRequest(text string) []byte {
	payload := []byte(text)
	buf := make([]byte, 0, len(payload)+5)
	buf = append(buf, STX, byte(len(payload)+safeFrameOverhead))
	buf = append(buf, payload...)
	cs := Checksum(payload)
	buf = append(buf, byte(cs>>8), byte(cs), ETX)
	return buf
}

// receiveBasicReply reads a basic-mode reply:
//
//	STX <payload> ETX
//
// There is no declared length, so after the start marker it repeatedly drains
// all bytes currently buffered until the end marker is observed.
func receiveBasicReply(p Port) (string, error) {
	head, err := p.Receive(1)
	if err != nil {
		return "", err
	}
	if head[0] != STX {
		return "", fmt.Errorf("%w: basic reply does not start with STX (got 0x%02X)", ErrProtocol, head[0])
	}

	var data []byte
	for {
		n, err := p.Pending()
		if err != nil {
			return "", err
		}
		if n < 1 {
			n = 1
		}
		chunk, err := p.Receive(n)
		if err != nil {
			return "", err
		}
		data = append(data, chunk...)
		if data[len(data)-1] == ETX {
			return string(data[:len(data)-1]), nil
		}
	}
}

// receiveSafeReply reads a safe-mode reply:
//
//	STX <length> <payload> <checksum_hi> <checksum_lo> ETX
//
// and verifies the trailing checksum against a fresh computation over the
// stripped payload.
func receiveSafeReply(p Port) (string, error) {
	header, err := p.Receive(2)
	if err != nil {
		return "", err
	}
	if header[0] != STX {
		return "", fmt.Errorf("%w: safe reply does not start with STX (got 0x%02X)", ErrProtocol, header[0])
	}
	// The length byte covers the checksum, the ETX, and itself, so anything
	// below the overhead of an empty payload cannot be a whole frame.
	length := int(header[1])
	if length < safeFrameOverhead {
		return "", fmt.Errorf("%w: safe reply length byte %d too small", ErrProtocol, length)
	}

	data, err := p.Receive(length - 1)
	if err != nil {
		return "", err
	}
	if data[len(data)-1] != ETX {
		return "", fmt.Errorf("%w: safe reply does not end with ETX (got 0x%02X)", ErrProtocol, data[len(data)-1])
	}

	wire := binary.BigEndian.Uint16(data[len(data)-3 : len(data)-1])
	payload := util.CloneSlice(data[:len(data)-3], 0)
	if calc := Checksum(payload); calc != wire {
		return "", fmt.Errorf("%w: wire=0x%04X, computed=0x%04X", ErrReplyChecksum, wire, calc)
	}

	return string(payload), nil
}
