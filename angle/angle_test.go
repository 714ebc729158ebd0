package angle

import (
	"math"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	// Converting through any other unit and back must reproduce the
	// original to within 1e-6 degree.
	const epsilon = 1e-6
	for _, deg := range []float64{-89, -12.34, -0.01, 0, 0.01, 12.34, 80, 190, 359.99} {
		a := Degrees(deg)
		for name, trip := range map[string]Angle{
			"arcsec": Arcseconds(a.Arcseconds()),
			"radian": Radians(a.Radians()),
			"degree": Degrees(a.Degrees()),
		} {
			if got := trip.Degrees(); math.Abs(got-deg) > epsilon {
				t.Errorf("%v deg via %s: got %v", deg, name, got)
			}
		}
	}
}

func TestKnownValues(t *testing.T) {
	for _, test := range []struct {
		in   Angle
		want float64
	}{
		{Degrees(1), 3600},
		{Degrees(-1), -3600},
		{Radians(math.Pi), 180 * 3600},
	} {
		if got := test.in.Arcseconds(); math.Abs(got-test.want) > 1e-9 {
			t.Errorf("%v: got %v arcsec, want %v", test.in, got, test.want)
		}
	}
	if got := Degrees(180).Radians(); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("180 deg: got %v rad, want pi", got)
	}
}
