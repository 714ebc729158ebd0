// Package angle provides angular values convertible between arcseconds,
// degrees and radians. The mount protocol works in hundredths of an
// arcsecond, so Angle counts arcseconds and the other units are derived.
package angle

import "math"

// Angle is an angular value stored in arcseconds.
type Angle float64

const (
	Arcsecond Angle = 1
	Degree    Angle = 3600 * Arcsecond
	Radian    Angle = (180 / math.Pi) * Degree
)

func Arcseconds(v float64) Angle {
	return Angle(v)
}

func Degrees(v float64) Angle {
	return Angle(v) * Degree
}

func Radians(v float64) Angle {
	return Angle(v) * Radian
}

func (a Angle) Arcseconds() float64 {
	return float64(a)
}

func (a Angle) Degrees() float64 {
	return float64(a / Degree)
}

func (a Angle) Radians() float64 {
	return float64(a / Radian)
}

// Abs returns the magnitude of a.
func (a Angle) Abs() Angle {
	return Angle(math.Abs(float64(a)))
}
