package nesp

import "errors"

var (
	// ErrArgumentInvalid indicates a local pre-flight range or format check
	// failed; the command was never sent to the pump.
	ErrArgumentInvalid = errors.New("nesp: argument invalid")

	// ErrAddressMismatch indicates the address field of a reply differs from
	// the configured pump address. The protocol stream is desynchronized.
	ErrAddressMismatch = errors.New("nesp: reply address mismatch")

	// ErrProtocol indicates a reply failed to parse or failed its expected
	// result grammar. It is non-recoverable and implies a framing or table bug.
	ErrProtocol = errors.New("nesp: internal protocol fault")

	// ErrRequestChecksum indicates the pump reported a communication error,
	// signaling host-to-pump corruption. The caller must retry the whole
	// operation.
	ErrRequestChecksum = errors.New("nesp: request checksum rejected by pump")

	// ErrReplyChecksum indicates the locally recomputed checksum over a
	// checksummed reply disagrees with the transmitted one, signaling
	// pump-to-host corruption.
	ErrReplyChecksum = errors.New("nesp: reply checksum mismatch")

	// ErrStateInvalid indicates the pump reported the command is not
	// applicable in its current run state.
	ErrStateInvalid = errors.New("nesp: command not applicable in current state")

	// ErrOutOfRange indicates the pump rejected a command argument as out of
	// range.
	ErrOutOfRange = errors.New("nesp: argument rejected by pump as out of range")

	// ErrModelMismatch indicates the construction-time identity check failed.
	ErrModelMismatch = errors.New("nesp: pump model mismatch")

	// ErrDuplicateAddress indicates a pump with the same address is already
	// registered on the bus.
	ErrDuplicateAddress = errors.New("nesp: address already registered on bus")
)

// StatusAlarmError reports that the pump surfaced an alarm code instead of a
// normal status.
type StatusAlarmError struct {
	Alarm AlarmStatus
}

func (e *StatusAlarmError) Error() string {
	return "nesp: pump alarm: " + e.Alarm.String()
}
