package nesp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
)

// byteQueuePort is a minimal Port backed by a byte buffer, for codec tests.
type byteQueuePort struct {
	buf  bytes.Buffer
	sent [][]byte

	// pendingZero forces Pending to report 0 so the basic-mode drain loop
	// falls back to one byte per round.
	pendingZero bool
}

func (q *byteQueuePort) Send(data []byte) error {
	q.sent = append(q.sent, data)
	return nil
}

func (q *byteQueuePort) Receive(n int) ([]byte, error) {
	if q.buf.Len() < n {
		return nil, fmt.Errorf("byteQueuePort: starved: want %d bytes, have %d", n, q.buf.Len())
	}
	out := make([]byte, n)
	_, _ = q.buf.Read(out)
	return out, nil
}

func (q *byteQueuePort) Pending() (int, error) {
	if q.pendingZero {
		return 0, nil
	}
	return q.buf.Len(), nil
}

// simPort is a scripted transport that plays the device side of the protocol.
// Send decodes the request frame, passes the request text to the handler, and
// queues the handler's reply payload framed per replySafe. Receive and Pending
// serve the queued reply bytes.
type simPort struct {
	mu      sync.Mutex
	handler func(text string) string

	// replySafe selects the framing of queued replies. A simDevice flips it
	// when it acknowledges a SAF mode switch, before the reply is framed.
	replySafe bool

	// corruptReplyChecksum mangles the checksum of the next safe-mode reply.
	corruptReplyChecksum bool

	rx       bytes.Buffer
	requests []string
	raw      [][]byte

	// interleaved records that a request arrived while the previous reply
	// was not yet fully drained, i.e. two exchanges overlapped on the wire.
	interleaved bool

	// badRequestChecksum records that a safe-mode request carried a wrong
	// checksum or a broken envelope.
	badRequestChecksum bool
}

func newSimPort() *simPort {
	return &simPort{}
}

func (s *simPort) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rx.Len() > 0 {
		s.interleaved = true
	}
	s.raw = append(s.raw, append([]byte(nil), data...))

	var text string
	if len(data) > 0 && data[0] == STX {
		length := int(data[1])
		payload := data[2 : 2+length-safeFrameOverhead]
		wire := binary.BigEndian.Uint16(data[len(data)-3 : len(data)-1])
		if wire != Checksum(payload) || data[len(data)-1] != ETX {
			s.badRequestChecksum = true
		}
		text = string(payload)
	} else {
		text = string(data[:len(data)-1]) // strip CR
	}
	s.requests = append(s.requests, text)

	if reply := s.handler(text); reply != "" {
		s.queueReply(reply)
	}
	return nil
}

func (s *simPort) queueReply(payload string) {
	data := []byte(payload)
	if s.replySafe {
		cs := Checksum(data)
		if s.corruptReplyChecksum {
			cs ^= 0xFFFF
			s.corruptReplyChecksum = false
		}
		s.rx.WriteByte(STX)
		s.rx.WriteByte(byte(len(data) + safeFrameOverhead))
		s.rx.Write(data)
		s.rx.WriteByte(byte(cs >> 8))
		s.rx.WriteByte(byte(cs))
		s.rx.WriteByte(ETX)
	} else {
		s.rx.WriteByte(STX)
		s.rx.Write(data)
		s.rx.WriteByte(ETX)
	}
}

func (s *simPort) Receive(n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rx.Len() < n {
		return nil, fmt.Errorf("simPort: starved: want %d bytes, have %d", n, s.rx.Len())
	}
	out := make([]byte, n)
	_, _ = s.rx.Read(out)
	return out, nil
}

func (s *simPort) Pending() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rx.Len(), nil
}

func (s *simPort) requestTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.requests...)
}

func (s *simPort) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

func (s *simPort) wasInterleaved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.interleaved
}

// rawFrame returns a copy of the i-th raw request frame observed.
func (s *simPort) rawFrame(i int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]byte(nil), s.raw[i]...)
}

// simDevice models one pump's protocol state behind a simPort. Its reply
// method returns the reply payload for a request text, or "" when the request
// is addressed to another device.
type simDevice struct {
	port   *simPort
	prefix string

	model      string // VER reply, e.g. "NE1000V3.928"
	safTimeout string
	diameter   string
	direction  string
	volume     string // e.g. "1.500UL"
	rate       string // e.g. "5.000MM"
	dispensed  string // e.g. "I1.200W0.500ML"

	// runFor is how many status queries report a running pump after RUN.
	runFor   int
	runPolls int

	// alarmNext makes the device answer the next request (every request if
	// alarmSticky) with an alarm reply carrying this code.
	alarmNext   byte
	alarmSticky bool

	// errNext appends a device error code, e.g. "NA", to the next reply.
	errNext string
}

func newSimDevice(port *simPort, address int) *simDevice {
	return &simDevice{
		port:       port,
		prefix:     fmt.Sprintf("%02d", address),
		model:      "NE1000V3.928",
		safTimeout: "0",
		diameter:   "26.59",
		direction:  "INF",
		volume:     "1.500UL",
		rate:       "5.000MM",
		dispensed:  "I1.200W0.500ML",
		runFor:     2,
	}
}

// newSimPump wires a single device to a fresh port.
func newSimPump(address int) (*simPort, *simDevice) {
	port := newSimPort()
	dev := newSimDevice(port, address)
	port.handler = dev.reply
	return port, dev
}

func (d *simDevice) reply(text string) string {
	if !strings.HasPrefix(text, d.prefix) {
		return ""
	}
	cmd := text[2:]

	if d.alarmNext != 0 {
		code := d.alarmNext
		if !d.alarmSticky {
			d.alarmNext = 0
		}
		return d.prefix + "A?" + string(code)
	}

	status := "S"
	if cmd == "" && d.runPolls > 0 {
		status = "I"
		d.runPolls--
	}

	result := ""
	switch {
	case cmd == "":
	case cmd == "SAF":
		result = d.safTimeout
	case strings.HasPrefix(cmd, "SAF"):
		d.safTimeout = cmd[3:]
		d.port.replySafe = d.safTimeout != "0"
	case cmd == "VER":
		result = d.model
	case cmd == "DIA":
		result = d.diameter
	case strings.HasPrefix(cmd, "DIA"):
		d.diameter = cmd[3:]
	case cmd == "DIR":
		result = d.direction
	case strings.HasPrefix(cmd, "DIR"):
		d.direction = cmd[3:]
	case cmd == "VOL":
		result = d.volume
	case strings.HasPrefix(cmd, "VOL"):
		// Units and value arrive as two separate commands; both acknowledged.
	case cmd == "RAT":
		result = d.rate
	case strings.HasPrefix(cmd, "RAT"):
	case cmd == "DIS":
		result = d.dispensed
	case strings.HasPrefix(cmd, "CLD"):
	case cmd == "RUN":
		d.runPolls = d.runFor
	case cmd == "PUR":
		d.runPolls = d.runFor
	case cmd == "STP":
		d.runPolls = 0
	default:
		result = "?NA"
	}

	if d.errNext != "" {
		result = "?" + d.errNext
		d.errNext = ""
	}

	return d.prefix + status + result
}
