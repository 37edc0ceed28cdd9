package nesp

// Status represents the run state a pump reports in a normal reply.
type Status uint8

const (
	// StatusInfusing indicates the pump is infusing.
	StatusInfusing Status = iota
	// StatusWithdrawing indicates the pump is withdrawing.
	StatusWithdrawing
	// StatusPurging indicates the pump is purging.
	StatusPurging
	// StatusStopped indicates pumping is stopped.
	StatusStopped
	// StatusPaused indicates pumping is paused.
	StatusPaused
	// StatusSleeping indicates the pumping program is sleeping (pause phase).
	StatusSleeping
	// StatusWaiting indicates the pumping program is waiting for a user input.
	StatusWaiting
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusInfusing:
		return "infusing"
	case StatusWithdrawing:
		return "withdrawing"
	case StatusPurging:
		return "purging"
	case StatusStopped:
		return "stopped"
	case StatusPaused:
		return "paused"
	case StatusSleeping:
		return "sleeping"
	case StatusWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// AlarmStatus represents an alarm condition a pump reports in place of the
// normal run state.
type AlarmStatus uint8

const (
	// AlarmReset indicates the pump was reset (power was interrupted).
	AlarmReset AlarmStatus = iota
	// AlarmStalled indicates the pump motor stalled.
	AlarmStalled
	// AlarmTimeout indicates a safe mode communication timeout occurred.
	AlarmTimeout
	// AlarmError indicates a pumping program error occurred.
	AlarmError
	// AlarmRange indicates a pumping program phase is out of range.
	AlarmRange
)

// String returns the string representation of the alarm status.
func (a AlarmStatus) String() string {
	switch a {
	case AlarmReset:
		return "reset"
	case AlarmStalled:
		return "stalled"
	case AlarmTimeout:
		return "timeout"
	case AlarmError:
		return "error"
	case AlarmRange:
		return "range"
	default:
		return "unknown"
	}
}

// PumpingDirection represents the pumping direction of a pump.
type PumpingDirection uint8

const (
	// Infuse pushes the syringe contents out.
	Infuse PumpingDirection = iota
	// Withdraw pulls into the syringe.
	Withdraw
)

// String returns the string representation of the pumping direction.
func (d PumpingDirection) String() string {
	switch d {
	case Infuse:
		return "infuse"
	case Withdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// statusCodes maps the single-character status field of a reply to a Status.
var statusCodes = map[byte]Status{
	'I': StatusInfusing,
	'W': StatusWithdrawing,
	'X': StatusPurging,
	'S': StatusStopped,
	'P': StatusPaused,
	'T': StatusSleeping,
	'U': StatusWaiting,
}

// statusAlarm is the status field value that marks an alarm reply.
const statusAlarm = 'A'

// alarmCodes maps the alarm code character of an alarm reply to an AlarmStatus.
var alarmCodes = map[byte]AlarmStatus{
	'R': AlarmReset,
	'S': AlarmStalled,
	'T': AlarmTimeout,
	'E': AlarmError,
	'O': AlarmRange,
}

// directionCodes maps the DIR reply text to a PumpingDirection.
var directionCodes = map[string]PumpingDirection{
	"INF": Infuse,
	"WDR": Withdraw,
}

// directionArgs maps a PumpingDirection to its DIR argument text.
var directionArgs = map[PumpingDirection]string{
	Infuse:   "INF",
	Withdraw: "WDR",
}
