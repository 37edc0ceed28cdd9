package nesp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fluidlab/go-nesp/logger"
)

// exchange carries one command plus its per-call dispatch flags.
//
// txSafe overrides the transmit framing (nil = current session mode).
// rxSafe overrides the receive framing (nil = same as transmit).
// setMode, when non-nil, commits a new session mode after a successful
// exchange, atomically with respect to other commands.
// ignoreAlarm arms the one-shot stale-alarm swallow: the first alarm reply
// causes a single retransmission instead of an error.
type exchange struct {
	cmd         Command
	txSafe      *bool
	rxSafe      *bool
	setMode     *bool
	ignoreAlarm bool
}

// replyData is the outcome of a successful exchange.
type replyData struct {
	status Status
	result string
	// match holds the submatches of the command's result grammar, when one
	// was supplied. match[0] is the full result text.
	match []string
}

// transceiver drives single commands to completion against the transport:
// encode, send, receive, decode, parse, retry-on-stale-alarm, and error
// translation. All exchanges for one transport are serialized by mu, which a
// Bus shares across every pump on the line.
type transceiver struct {
	port    Port
	address int
	mu      *sync.Mutex
	logger  logger.Logger
	metrics *PumpMetrics
	hb      *heartbeat

	// safeMode is the session mode: whether requests and replies use the
	// checksummed envelope. Guarded by mu; mutated only through a successful
	// exchange carrying setMode.
	safeMode bool
}

func (t *transceiver) transceive(x exchange) (replyData, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	txSafe := t.safeMode
	if x.txSafe != nil {
		txSafe = *x.txSafe
	}
	rxSafe := txSafe
	if x.rxSafe != nil {
		rxSafe = *x.rxSafe
	}

	text := formatRequest(t.address, x.cmd)
	ignore := x.ignoreAlarm

	var rep reply
	for {
		var frame []byte
		if txSafe {
			frame = encodeSafeRequest(text)
		} else {
			frame = encodeBasicRequest(text)
		}
		if err := t.port.Send(frame); err != nil {
			return replyData{}, fmt.Errorf("nesp: send %q: %w", x.cmd.Code, err)
		}
		t.metrics.incCommandSendCount()

		var payload string
		var err error
		if rxSafe {
			payload, err = receiveSafeReply(t.port)
		} else {
			payload, err = receiveBasicReply(t.port)
		}
		if err != nil {
			if errors.Is(err, ErrReplyChecksum) {
				t.metrics.incReplyChecksumErrCount()
			}
			return replyData{}, err
		}

		rep, err = parseReply(t.address, payload)
		if err != nil {
			return replyData{}, err
		}
		t.metrics.incReplyRecvCount()

		if rep.alarm != nil && ignore {
			// Stale alarm left over from a prior power cycle; swallow it
			// once and retransmit.
			ignore = false
			t.metrics.incAlarmRetryCount()
			t.logger.Debug("stale alarm swallowed, retransmitting",
				"command", x.cmd.Code, "alarm", rep.alarm.String())
			continue
		}
		break
	}

	if rep.alarm != nil {
		return replyData{}, &StatusAlarmError{Alarm: *rep.alarm}
	}

	out := replyData{status: rep.status, result: rep.result}
	if x.cmd.Result != nil {
		m := x.cmd.Result.FindStringSubmatch(rep.result)
		if m == nil {
			return replyData{}, fmt.Errorf("%w: result %q does not match grammar for %q",
				ErrProtocol, rep.result, x.cmd.Code)
		}
		out.match = m
	}

	if x.setMode != nil {
		t.safeMode = *x.setMode
	}

	t.hb.markActivity()

	return out, nil
}
