package azmount

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseStatus(t *testing.T) {
	for _, test := range []struct {
		payload string
		status  Status
	}{
		{"000910", Status{GPS: GPSOff, System: StateStoppedNotZeroed, TrackRate: TrackSidereal, SlewSpeed: SpeedMax, TimeSource: TimeSourceRS232, Hemisphere: Southern}},
		{"070911", Status{System: StateStoppedAtHome, SlewSpeed: SpeedMax, TimeSource: TimeSourceRS232, Hemisphere: Northern}},
		{"224531", Status{GPS: GPSWorking, System: StateSlewing, TrackRate: TrackCustom, SlewSpeed: Speed64x, TimeSource: TimeSourceGPS, Hemisphere: Northern}},
		{"111111", Status{GPS: GPSOn, System: StateTracking, TrackRate: TrackLunar, SlewSpeed: Speed1x, TimeSource: TimeSourceRS232, Hemisphere: Northern}},
		{"052901", Status{System: StateTrackingPEC, TrackRate: TrackSolar, SlewSpeed: SpeedMax, TimeSource: TimeSourceUnknown, Hemisphere: Northern}},
		{"063921", Status{System: StateParked, TrackRate: TrackKing, SlewSpeed: SpeedMax, TimeSource: TimeSourceHandController, Hemisphere: Northern}},
	} {
		t.Run(test.payload, func(t *testing.T) {
			status, err := parseStatus(test.payload)
			if err != nil {
				t.Fatalf("parseStatus: %v", err)
			}
			if diff := cmp.Diff(test.status, status); diff != "" {
				t.Errorf("unexpected status (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStatusErrors(t *testing.T) {
	for _, payload := range []string{
		"",
		"07091",    // short
		"0709111",  // long
		"370911",   // GPS digit out of range
		"080911",   // system digit out of range
		"050911x", // trailing junk
		"07591x",  // non-digit hemisphere
		"070011", // slew speed 0 is not assigned
		"070941", // time source out of range
		"070912", // hemisphere out of range
	} {
		if _, err := parseStatus(payload); err == nil {
			t.Errorf("%q: expected error", payload)
		} else {
			var perr *ProtocolError
			if !errors.As(err, &perr) {
				t.Errorf("%q: got %T, want ProtocolError", payload, err)
			}
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, test := range []struct {
		system   SystemState
		stopped  bool
		slewing  bool
		tracking bool
		homed    bool
	}{
		{StateStoppedNotZeroed, true, false, false, false},
		{StateTracking, false, false, true, false},
		{StateSlewing, false, true, false, false},
		{StateGuiding, false, false, false, false},
		{StateMeridianFlipping, false, false, false, false},
		{StateTrackingPEC, false, false, true, false},
		{StateParked, true, false, false, false},
		{StateStoppedAtHome, true, false, false, true},
	} {
		s := Status{System: test.system, SlewSpeed: Speed1x}
		if got := s.Stopped(); got != test.stopped {
			t.Errorf("%v: Stopped() = %v, want %v", test.system, got, test.stopped)
		}
		if got := s.Slewing(); got != test.slewing {
			t.Errorf("%v: Slewing() = %v, want %v", test.system, got, test.slewing)
		}
		if got := s.Tracking(); got != test.tracking {
			t.Errorf("%v: Tracking() = %v, want %v", test.system, got, test.tracking)
		}
		if got := s.Homed(); got != test.homed {
			t.Errorf("%v: Homed() = %v, want %v", test.system, got, test.homed)
		}
	}
}
