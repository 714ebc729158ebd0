package azmount

import "fmt"

// The :GAS# reply packs six single-digit fields. Each digit must map to a
// known enumeration member; an unmapped digit is a protocol error rather
// than a silent default, since these values gate the blocking move loops.

type GPSState int

const (
	GPSOff GPSState = iota
	GPSOn
	GPSWorking
)

func (g GPSState) String() string {
	switch g {
	case GPSOff:
		return "GPS off"
	case GPSOn:
		return "GPS on"
	case GPSWorking:
		return "GPS working"
	}
	return fmt.Sprintf("GPSState(%d)", int(g))
}

type SystemState int

const (
	StateStoppedNotZeroed SystemState = iota
	StateTracking
	StateSlewing
	StateGuiding
	StateMeridianFlipping
	StateTrackingPEC
	StateParked
	StateStoppedAtHome
)

func (s SystemState) String() string {
	switch s {
	case StateStoppedNotZeroed:
		return "stopped (not zeroed)"
	case StateTracking:
		return "tracking (PEC disabled)"
	case StateSlewing:
		return "slewing"
	case StateGuiding:
		return "guiding"
	case StateMeridianFlipping:
		return "meridian flipping"
	case StateTrackingPEC:
		return "tracking (PEC enabled)"
	case StateParked:
		return "parked"
	case StateStoppedAtHome:
		return "stopped at home"
	}
	return fmt.Sprintf("SystemState(%d)", int(s))
}

type TrackRate int

const (
	TrackSidereal TrackRate = iota
	TrackLunar
	TrackSolar
	TrackKing
	TrackCustom
)

func (t TrackRate) String() string {
	switch t {
	case TrackSidereal:
		return "sidereal"
	case TrackLunar:
		return "lunar"
	case TrackSolar:
		return "solar"
	case TrackKing:
		return "king"
	case TrackCustom:
		return "custom"
	}
	return fmt.Sprintf("TrackRate(%d)", int(t))
}

// SlewSpeed is the arrow-key move rate as a multiple of sidereal, encoded
// 1-9 on the wire.
type SlewSpeed int

const (
	Speed1x SlewSpeed = iota + 1
	Speed2x
	Speed8x
	Speed16x
	Speed64x
	Speed128x
	Speed256x
	Speed512x
	SpeedMax
)

func (s SlewSpeed) String() string {
	switch s {
	case Speed1x:
		return "1x"
	case Speed2x:
		return "2x"
	case Speed8x:
		return "8x"
	case Speed16x:
		return "16x"
	case Speed64x:
		return "64x"
	case Speed128x:
		return "128x"
	case Speed256x:
		return "256x"
	case Speed512x:
		return "512x"
	case SpeedMax:
		return "max"
	}
	return fmt.Sprintf("SlewSpeed(%d)", int(s))
}

type TimeSource int

const (
	TimeSourceUnknown TimeSource = iota
	TimeSourceRS232
	TimeSourceHandController
	TimeSourceGPS
)

func (t TimeSource) String() string {
	switch t {
	case TimeSourceUnknown:
		return "unknown"
	case TimeSourceRS232:
		return "RS232"
	case TimeSourceHandController:
		return "hand controller"
	case TimeSourceGPS:
		return "GPS"
	}
	return fmt.Sprintf("TimeSource(%d)", int(t))
}

type Hemisphere int

const (
	Southern Hemisphere = iota
	Northern
)

func (h Hemisphere) String() string {
	switch h {
	case Southern:
		return "southern"
	case Northern:
		return "northern"
	}
	return fmt.Sprintf("Hemisphere(%d)", int(h))
}

// Status is a decoded :GAS# snapshot.
type Status struct {
	GPS        GPSState
	System     SystemState
	TrackRate  TrackRate
	SlewSpeed  SlewSpeed
	TimeSource TimeSource
	Hemisphere Hemisphere
}

// Stopped reports whether the mount is stationary: stopped (not zeroed),
// parked, or stopped at the home position.
func (s Status) Stopped() bool {
	switch s.System {
	case StateStoppedNotZeroed, StateParked, StateStoppedAtHome:
		return true
	}
	return false
}

func (s Status) Slewing() bool {
	return s.System == StateSlewing
}

func (s Status) Tracking() bool {
	return s.System == StateTracking || s.System == StateTrackingPEC
}

func (s Status) Homed() bool {
	return s.System == StateStoppedAtHome
}

// statusDigit checks one field digit against its highest legal value.
func statusDigit(payload string, index int, min, max byte) (int, error) {
	d := payload[index]
	if d < min || d > max {
		return 0, &ProtocolError{Command: ":GAS#", Reply: payload, Reason: fmt.Sprintf("field %d digit %q out of range", index, d)}
	}
	return int(d - '0'), nil
}

// parseStatus decodes the six packed digits of a :GAS# reply.
func parseStatus(payload string) (Status, error) {
	if len(payload) != 6 {
		return Status{}, &ProtocolError{Command: ":GAS#", Reply: payload, Reason: "want 6 digits"}
	}
	var s Status
	for _, field := range []struct {
		index    int
		min, max byte
		dest     func(int)
	}{
		{0, '0', '2', func(v int) { s.GPS = GPSState(v) }},
		{1, '0', '7', func(v int) { s.System = SystemState(v) }},
		{2, '0', '4', func(v int) { s.TrackRate = TrackRate(v) }},
		{3, '1', '9', func(v int) { s.SlewSpeed = SlewSpeed(v) }},
		{4, '0', '3', func(v int) { s.TimeSource = TimeSource(v) }},
		{5, '0', '1', func(v int) { s.Hemisphere = Hemisphere(v) }},
	} {
		v, err := statusDigit(payload, field.index, field.min, field.max)
		if err != nil {
			return Status{}, err
		}
		field.dest(v)
	}
	return s, nil
}
