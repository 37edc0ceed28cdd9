package nesp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum_KnownVectors(t *testing.T) {
	assert.Equal(t, uint16(0x0000), Checksum(nil))
	assert.Equal(t, uint16(0x0000), Checksum([]byte{}))
	assert.Equal(t, uint16(0x58E5), Checksum([]byte("A")))
	assert.Equal(t, uint16(0x31C3), Checksum([]byte("123456789")))
}

func TestEncodeBasicRequest(t *testing.T) {
	frame := encodeBasicRequest("00RUN")
	assert.Equal(t, []byte("00RUN\r"), frame)
}

func TestEncodeSafeRequest(t *testing.T) {
	frame := encodeSafeRequest("00RUN")

	require.Len(t, frame, 10)
	assert.Equal(t, STX, frame[0])
	assert.Equal(t, byte(len("00RUN")+4), frame[1], "length byte covers payload plus 4 bytes of overhead")
	assert.Equal(t, []byte("00RUN"), frame[2:7])

	cs := Checksum([]byte("00RUN"))
	assert.Equal(t, byte(cs>>8), frame[7], "checksum is big-endian")
	assert.Equal(t, byte(cs), frame[8])
	assert.Equal(t, ETX, frame[9])
}

func TestSafeFrame_RoundTrip(t *testing.T) {
	// A safe-mode reply uses the same envelope as a safe-mode request, so an
	// encoded frame must decode back to the original payload and validate.
	q := &byteQueuePort{}
	q.buf.Write(encodeSafeRequest("00S12.34"))

	payload, err := receiveSafeReply(q)
	require.NoError(t, err)
	assert.Equal(t, "00S12.34", payload)
}

func TestReceiveBasicReply(t *testing.T) {
	q := &byteQueuePort{}
	q.buf.WriteByte(STX)
	q.buf.WriteString("00S26.59")
	q.buf.WriteByte(ETX)

	payload, err := receiveBasicReply(q)
	require.NoError(t, err)
	assert.Equal(t, "00S26.59", payload)
	assert.Zero(t, q.buf.Len(), "reply fully drained")
}

func TestReceiveBasicReply_ByteAtATime(t *testing.T) {
	// With nothing reported as buffered, the drain loop must still make
	// progress one byte per round.
	q := &byteQueuePort{pendingZero: true}
	q.buf.WriteByte(STX)
	q.buf.WriteString("00S")
	q.buf.WriteByte(ETX)

	payload, err := receiveBasicReply(q)
	require.NoError(t, err)
	assert.Equal(t, "00S", payload)
}

func TestReceiveBasicReply_MissingSTX(t *testing.T) {
	q := &byteQueuePort{}
	q.buf.WriteString("00S")
	q.buf.WriteByte(ETX)

	_, err := receiveBasicReply(q)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestReceiveSafeReply_ChecksumMismatch(t *testing.T) {
	frame := encodeSafeRequest("00S")
	frame[len(frame)-2] ^= 0xFF // mangle the checksum low byte

	q := &byteQueuePort{}
	q.buf.Write(frame)

	_, err := receiveSafeReply(q)
	assert.ErrorIs(t, err, ErrReplyChecksum)
}

func TestReceiveSafeReply_FramingFaults(t *testing.T) {
	t.Run("missing STX", func(t *testing.T) {
		q := &byteQueuePort{}
		frame := encodeSafeRequest("00S")
		frame[0] = 0x00
		q.buf.Write(frame)

		_, err := receiveSafeReply(q)
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("length too small", func(t *testing.T) {
		q := &byteQueuePort{}
		q.buf.Write([]byte{STX, 2})

		_, err := receiveSafeReply(q)
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("length below frame overhead", func(t *testing.T) {
		// A corrupted length byte of 3 leaves no room for the checksum; the
		// decoder must reject it instead of slicing past the frame start.
		q := &byteQueuePort{}
		q.buf.Write([]byte{STX, 3, 'x', ETX})

		_, err := receiveSafeReply(q)
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("missing ETX", func(t *testing.T) {
		q := &byteQueuePort{}
		frame := encodeSafeRequest("00S")
		frame[len(frame)-1] = 0x00
		q.buf.Write(frame)

		_, err := receiveSafeReply(q)
		assert.ErrorIs(t, err, ErrProtocol)
	})
}
