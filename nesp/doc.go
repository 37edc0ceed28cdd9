// Package nesp implements the command/response protocol of New Era (NE-series)
// syringe pumps over a byte-stream transport.
//
// The package drives one logical command at a time to completion: it formats
// the request text, frames it, exchanges it with the pump, verifies and parses
// the reply, and translates device-reported conditions into typed errors. A
// background heartbeat keeps checksummed sessions alive without racing
// user-issued commands.
//
// # Framing Modes
//
// The protocol has two framing modes, negotiated with the SAF command:
//
//   - Basic mode: the request is plain ASCII terminated by a carriage return;
//     there is no checksum.
//   - Safe (checksummed) mode: the request is wrapped in an
//     STX/length/checksum/ETX envelope. The checksum is a 16-bit CRC-CCITT
//     (XMODEM variant) over the payload bytes. Safe mode requires periodic
//     activity, or the pump raises its own inactivity alarm; the heartbeat
//     issues a status query whenever half the configured timeout elapses with
//     no real command.
//
// Replies in both modes are delimited by STX and ETX; only safe-mode replies
// carry the trailing checksum.
//
// # Addressing
//
// Up to 100 pumps can be daisy-chained on one RS-232 line, addressed 0-99.
// Every request names its target address and every reply echoes it; a reply
// with an unexpected address means the stream is desynchronized and surfaces
// as ErrAddressMismatch. Use a [Bus] to share one transport between several
// pumps; pumps on a bus share a single transport lock.
//
// # Errors
//
// Faults surface as distinct sentinel errors (see errors.go) plus the
// structured [StatusAlarmError] carrying the pump's alarm code. The only
// built-in retry is a single alarm swallow during initial mode negotiation,
// which absorbs the stale reset alarm a pump reports after a power cycle.
package nesp
