package azmount

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dlowndes/azmount_interface/angle"
)

// The mount speaks a fixed ASCII command language. Every command starts with
// ':' and ends with '#'; numeric payloads are zero-padded to a width that is
// part of the protocol, and signed fields always carry an explicit '+' or
// '-'. Replies are either a fixed number of bytes or a variable-length string
// terminated by '#'.

// reply declares how a command's reply is framed on the wire.
type reply struct {
	// fixed is the exact byte count to read when > 0.
	fixed int
	// delim terminates a variable-length reply when fixed == 0.
	delim byte
}

var (
	replyNone = reply{}
	replyAck  = reply{fixed: 1}
	replyHash = reply{delim: '#'}
)

func replyFixed(n int) reply {
	return reply{fixed: n}
}

// command is an immutable wire exchange: the full command text and the
// framing of its reply.
type command struct {
	text  string
	reply reply
}

// Wire resolution is 0.01 arcsecond.
const (
	wireCircle = 129600000 // 360 degrees
	altWireMax = 32400000  // 90 degrees
	latWireMax = 32400000  // 90 degrees, exclusive
	lonWireMax = 64800000  // 180 degrees, exclusive
)

// wireUnits converts an angle to the protocol's hundredths of an arcsecond.
func wireUnits(a angle.Angle) int64 {
	return int64(math.Round(a.Arcseconds() * 100))
}

// encodeSigned formats v as a sign character followed by exactly width
// zero-padded decimal digits.
func encodeSigned(v int64, width int) string {
	sign := "+"
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%0*d", sign, width, v)
}

func encodeUnsigned(v int64, width int) string {
	return fmt.Sprintf("%0*d", width, v)
}

func setAltitudeCmd(alt angle.Angle) (command, error) {
	v := wireUnits(alt)
	if v < -altWireMax || v > altWireMax {
		return command{}, &ValidationError{Field: "altitude", Value: alt.Degrees(), Range: "[-90, +90] degrees"}
	}
	return command{":Sa" + encodeSigned(v, 8) + "#", replyAck}, nil
}

func setAzimuthCmd(az angle.Angle) (command, error) {
	v := wireUnits(az)
	if v < 0 || v >= wireCircle {
		return command{}, &ValidationError{Field: "azimuth", Value: az.Degrees(), Range: "[0, 360) degrees"}
	}
	return command{":Sz" + encodeUnsigned(v, 9) + "#", replyAck}, nil
}

func setAltLimitCmd(limit angle.Angle) (command, error) {
	// The limit's resolution is one whole degree.
	v := int64(math.Round(limit.Degrees()))
	if v < -89 || v > 89 {
		return command{}, &ValidationError{Field: "altitude limit", Value: limit.Degrees(), Range: "[-89, +89] degrees"}
	}
	return command{":SAL" + encodeSigned(v, 2) + "#", replyAck}, nil
}

func setLatitudeCmd(lat angle.Angle) (command, error) {
	// North is positive.
	v := wireUnits(lat)
	if v <= -latWireMax || v >= latWireMax {
		return command{}, &ValidationError{Field: "latitude", Value: lat.Degrees(), Range: "(-90, +90) degrees"}
	}
	return command{":SLA" + encodeSigned(v, 8) + "#", replyAck}, nil
}

func setLongitudeCmd(lon angle.Angle) (command, error) {
	// East is positive.
	v := wireUnits(lon)
	if v <= -lonWireMax || v >= lonWireMax {
		return command{}, &ValidationError{Field: "longitude", Value: lon.Degrees(), Range: "(-180, +180) degrees"}
	}
	return command{":SLO" + encodeSigned(v, 8) + "#", replyAck}, nil
}

func setTimeOffsetCmd(minutes int) (command, error) {
	if minutes < -720 || minutes > 780 {
		return command{}, &ValidationError{Field: "time offset", Value: minutes, Range: "[-720, +780] minutes"}
	}
	return command{":SG" + encodeSigned(int64(minutes), 3) + "#", replyAck}, nil
}

// parseWireInt validates the character class and width of a numeric reply
// payload and returns its value. Signed payloads are a mandatory sign
// followed by exactly digits digits; unsigned payloads are digits alone.
func parseWireInt(cmdName, payload string, signed bool, digits int) (int64, error) {
	body := payload
	if signed {
		if len(payload) != digits+1 || (payload[0] != '+' && payload[0] != '-') {
			return 0, &ProtocolError{Command: cmdName, Reply: payload, Reason: fmt.Sprintf("want sign and %d digits", digits)}
		}
		body = payload[1:]
	} else if len(payload) != digits {
		return 0, &ProtocolError{Command: cmdName, Reply: payload, Reason: fmt.Sprintf("want %d digits", digits)}
	}
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return 0, &ProtocolError{Command: cmdName, Reply: payload, Reason: "non-digit payload"}
		}
	}
	v, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return 0, &ProtocolError{Command: cmdName, Reply: payload, Reason: err.Error()}
	}
	if signed && payload[0] == '-' {
		v = -v
	}
	return v, nil
}

// parseAck interprets a one-byte 0/1 acknowledgment.
func parseAck(cmdName, payload string) (bool, error) {
	switch payload {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, &ProtocolError{Command: cmdName, Reply: payload, Reason: "want 0 or 1"}
}
