package nesp

import (
	"fmt"
	"strconv"
	"strings"
)

// reply is the interpreted form of one decoded reply payload.
//
// A pump reply carries either a normal run status or an alarm, never both.
// When an alarm is present the status is reported as StatusStopped and the
// result text is empty.
type reply struct {
	status Status
	alarm  *AlarmStatus
	result string
}

// parseReply interprets a decoded ASCII reply payload.
//
// The first two characters are the decimal pump address and must equal the
// configured address. The third character is either a normal status code or
// the alarm marker; an alarm reply continues with "?" and a one-character
// alarm code. The remainder is the result text; a result starting with "?"
// carries a device-reported error code instead.
func parseReply(address int, payload string) (reply, error) {
	if len(payload) < 3 {
		return reply{}, fmt.Errorf("%w: reply %q too short", ErrProtocol, payload)
	}

	addr, err := strconv.Atoi(payload[0:2])
	if err != nil {
		return reply{}, fmt.Errorf("%w: reply address field %q is not numeric", ErrProtocol, payload[0:2])
	}
	if addr != address {
		return reply{}, fmt.Errorf("%w: got %d, want %d", ErrAddressMismatch, addr, address)
	}

	if payload[2] == statusAlarm {
		if len(payload) < 5 || payload[3] != '?' {
			return reply{}, fmt.Errorf("%w: malformed alarm reply %q", ErrProtocol, payload)
		}
		alarm, ok := alarmCodes[payload[4]]
		if !ok {
			return reply{}, fmt.Errorf("%w: unknown alarm code %q", ErrProtocol, payload[4])
		}
		return reply{status: StatusStopped, alarm: &alarm}, nil
	}

	status, ok := statusCodes[payload[2]]
	if !ok {
		return reply{}, fmt.Errorf("%w: unknown status code %q", ErrProtocol, payload[2])
	}

	result := payload[3:]
	if strings.HasPrefix(result, "?") {
		switch code := result[1:]; code {
		case "NA":
			return reply{}, ErrStateInvalid
		case "OOR":
			return reply{}, ErrOutOfRange
		case "COM":
			return reply{}, ErrRequestChecksum
		case "IGN":
			// No-op reported by the pump; swallowed silently.
		default:
			return reply{}, fmt.Errorf("%w: unknown error code %q", ErrProtocol, code)
		}
	}

	return reply{status: status, result: result}, nil
}
