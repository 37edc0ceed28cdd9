package nesp

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// maxDecimalLen is the maximum length of a formatted decimal argument.
// The pump accepts at most 4 digits plus 1 decimal point, with at most
// 3 digits to the right of the decimal point.
const maxDecimalLen = 5

type argKind uint8

const (
	argString argKind = iota
	argInt
	argDecimal
)

// Arg is one typed command argument. Construct values with String, Int,
// or Decimal; each variant has its own wire formatting.
type Arg struct {
	kind argKind
	str  string
	num  int
	dec  float64
}

// String returns a verbatim string argument.
func String(v string) Arg {
	return Arg{kind: argString, str: v}
}

// Int returns an integer argument formatted as decimal text.
func Int(v int) Arg {
	return Arg{kind: argInt, num: v}
}

// Decimal returns a decimal argument. Integral values are formatted as bare
// integers; other values are truncated to the 4 most significant digits.
func Decimal(v float64) Arg {
	return Arg{kind: argDecimal, dec: v}
}

func (a Arg) format() string {
	switch a.kind {
	case argString:
		return a.str
	case argInt:
		return strconv.Itoa(a.num)
	case argDecimal:
		return formatDecimal(a.dec)
	default:
		return ""
	}
}

func formatDecimal(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if len(s) > maxDecimalLen {
		s = s[:maxDecimalLen]
	}
	return s
}

// Command is an immutable descriptor of one protocol exchange: a short
// command code, zero or more typed arguments, and an optional grammar the
// reply's result text must match exactly.
//
// An empty Code is the plain status query.
type Command struct {
	Code   string
	Args   []Arg
	Result *regexp.Regexp
}

// formatRequest builds the request text: the two-digit zero-padded address,
// the command code, and the formatted arguments, with no separators.
func formatRequest(address int, cmd Command) string {
	var b strings.Builder
	b.WriteByte('0' + byte(address/10))
	b.WriteByte('0' + byte(address%10))
	b.WriteString(cmd.Code)
	for _, arg := range cmd.Args {
		b.WriteString(arg.format())
	}
	return b.String()
}

// Reply result grammars, anchored so a match is always a full match.
var (
	// Format: "NE" <model> ["X" <variant>] "V" <major> "." <minor>
	reFirmware = regexp.MustCompile(`^NE(\d+)(?:X(\d+))?V(\d+)\.(\d+)$`)

	reInteger = regexp.MustCompile(`^(\d+)$`)
	reDecimal = regexp.MustCompile(`^(\d+\.\d*)$`)

	// Format: <value> <units>
	reValueUnits = regexp.MustCompile(`^(\d+\.\d*)([A-Z]+)$`)

	// Format: "I" <volume infused> "W" <volume withdrawn> <units>
	reDispensation = regexp.MustCompile(`^I(\d+\.\d*)W(\d+\.\d*)([A-Z]+)$`)
)
