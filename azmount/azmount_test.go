package azmount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dlowndes/azmount_interface/angle"
	"github.com/dlowndes/azmount_interface/azmount/simulator"
)

// startSim wires a Mount to a running simulated mount. The returned Mount
// has not been initialized.
func startSim(t *testing.T) (*Mount, *simulator.Simulator) {
	t.Helper()
	sim, conn := simulator.New()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sim.Run(ctx)
	m := New(conn)
	m.PollInterval = 10 * time.Millisecond
	t.Cleanup(func() { m.Close() })
	return m, sim
}

func initialize(t *testing.T, m *Mount) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
}

func TestInitialize(t *testing.T) {
	m, _ := startSim(t)
	initialize(t, m)
	if m.Version() != "V1.00" || m.Model() != "5035" {
		t.Errorf("handshake captured %q/%q", m.Version(), m.Model())
	}
	status, err := m.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Homed() || !status.Stopped() {
		t.Errorf("after Initialize: %+v, want homed and stopped", status)
	}
	limit, err := m.AltitudeLimit()
	if err != nil {
		t.Fatalf("AltitudeLimit: %v", err)
	}
	if limit.Degrees() != -89 {
		t.Errorf("altitude limit %v, want -89", limit.Degrees())
	}
}

func TestHandshakeModelMismatch(t *testing.T) {
	m, sim := startSim(t)
	sim.Model = "0030"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.Initialize(ctx)
	var herr *HandshakeError
	if !errors.As(err, &herr) {
		t.Fatalf("Initialize: got %v, want HandshakeError", err)
	}
	if herr.Field != "model" {
		t.Errorf("mismatched field %q, want model", herr.Field)
	}
	// Nothing beyond the two handshake queries may have been sent.
	if got := sim.CommandsSeen(); got != 2 {
		t.Errorf("mount saw %d commands, want 2", got)
	}
}

func TestGoBlocking(t *testing.T) {
	m, _ := startSim(t)
	initialize(t, m)

	tol := angle.Degrees(0.1)
	target := Position{Alt: angle.Degrees(80), Az: angle.Degrees(190)}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.GoBlocking(ctx, target, tol); err != nil {
		t.Fatalf("GoBlocking: %v", err)
	}
	pos, err := m.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if (pos.Alt - target.Alt).Abs() > tol || (pos.Az - target.Az).Abs() > tol {
		t.Errorf("arrived at alt %.4f az %.4f, want within %.2f of alt 80 az 190",
			pos.Alt.Degrees(), pos.Az.Degrees(), tol.Degrees())
	}
	status, err := m.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Stopped() {
		t.Errorf("status after arrival: %+v, want stopped", status)
	}
}

func TestGoBlockingTimeout(t *testing.T) {
	m, _ := startSim(t)
	initialize(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	target := Position{Alt: angle.Degrees(80), Az: angle.Degrees(350)}
	err := m.GoBlocking(ctx, target, angle.Degrees(0.1))
	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("GoBlocking: got %v, want TimeoutError", err)
	}
	// The deadline cancels the wait, not the move: the slew must still be
	// in progress.
	status, err := m.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Slewing() {
		t.Errorf("status after timeout: %+v, want still slewing", status)
	}
}

func TestGoRelative(t *testing.T) {
	m, _ := startSim(t)
	initialize(t, m)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.GoBlocking(ctx, Position{Alt: angle.Degrees(10), Az: angle.Degrees(20)}, angle.Degrees(0.1)); err != nil {
		t.Fatalf("GoBlocking: %v", err)
	}
	if err := m.GoRelative(angle.Degrees(5), angle.Degrees(-5)); err != nil {
		t.Fatalf("GoRelative: %v", err)
	}
	deadline := time.Now().Add(10 * time.Second)
	for {
		status, err := m.Status()
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.Stopped() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("relative move did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	pos, err := m.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if (pos.Alt - angle.Degrees(15)).Abs() > angle.Degrees(0.1) || (pos.Az - angle.Degrees(15)).Abs() > angle.Degrees(0.1) {
		t.Errorf("arrived at alt %.4f az %.4f, want alt 15 az 15", pos.Alt.Degrees(), pos.Az.Degrees())
	}
}

func TestRejectedMove(t *testing.T) {
	m, _ := startSim(t)
	initialize(t, m)

	if err := m.SetAltitudeLimit(angle.Degrees(0)); err != nil {
		t.Fatalf("SetAltitudeLimit: %v", err)
	}
	err := m.GoAbsolute(Position{Alt: angle.Degrees(-5), Az: angle.Degrees(100)})
	var rerr *RejectedMoveError
	if !errors.As(err, &rerr) {
		t.Fatalf("GoAbsolute below limit: got %v, want RejectedMoveError", err)
	}
	// Staged values are single-use: rejection cleared the latch.
	if m.latch.altStaged || m.latch.azStaged {
		t.Errorf("latch still staged after rejected move: %+v", m.latch)
	}
	status, err := m.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Slewing() {
		t.Error("mount slewing after rejected move")
	}
}

func TestCommitWithoutStaging(t *testing.T) {
	m, _ := startSim(t)
	initialize(t, m)

	err := m.commitMove(Position{})
	var serr *StateError
	if !errors.As(err, &serr) {
		t.Fatalf("commitMove: got %v, want StateError", err)
	}

	// A single staged axis is not enough either.
	if err := m.stageAltitude(angle.Degrees(10)); err != nil {
		t.Fatalf("stageAltitude: %v", err)
	}
	err = m.commitMove(Position{})
	if !errors.As(err, &serr) {
		t.Fatalf("commitMove with one axis: got %v, want StateError", err)
	}
	if m.latch.altStaged || m.latch.azStaged {
		t.Errorf("latch not cleared by failed commit: %+v", m.latch)
	}
}

func TestValidationWritesNothing(t *testing.T) {
	rec := &recordConn{}
	m := New(rec)
	err := m.stageAzimuth(angle.Degrees(360))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("stageAzimuth(360): got %v, want ValidationError", err)
	}
	err = m.stageAltitude(angle.Degrees(91))
	if !errors.As(err, &verr) {
		t.Fatalf("stageAltitude(91): got %v, want ValidationError", err)
	}
	if err := m.SetTimeOffset(800); !errors.As(err, &verr) {
		t.Fatalf("SetTimeOffset(800): got %v, want ValidationError", err)
	}
	if rec.writes != 0 {
		t.Errorf("%d bytes written to transport on invalid input", rec.writes)
	}
}

func TestKeypad(t *testing.T) {
	m, _ := startSim(t)
	initialize(t, m)

	if err := m.Keypad(Right); err != nil {
		t.Fatalf("Keypad: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := m.StopKeypad(); err != nil {
		t.Fatalf("StopKeypad: %v", err)
	}
	p1, err := m.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if p1.Az == 0 {
		t.Error("keypad motion did not move the mount")
	}
	// Motion must not resume on its own.
	time.Sleep(100 * time.Millisecond)
	p2, err := m.Position()
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if p2 != p1 {
		t.Errorf("mount moved after StopKeypad: %+v -> %+v", p1, p2)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	m, _ := startSim(t)
	var uerr *UnsupportedOperationError
	if err := m.SetMeridianBehavior(true, angle.Degrees(5)); !errors.As(err, &uerr) {
		t.Errorf("SetMeridianBehavior: got %v, want UnsupportedOperationError", err)
	}
	if err := m.SetUTCTime(time.Now()); !errors.As(err, &uerr) {
		t.Errorf("SetUTCTime: got %v, want UnsupportedOperationError", err)
	}
}

func TestRefusedTarget(t *testing.T) {
	for _, test := range []struct {
		axis    string
		replies []string
	}{
		{"altitude", []string{"0"}},
		{"azimuth", []string{"1", "0"}},
	} {
		conn := &scriptConn{replies: test.replies}
		m := New(conn)
		err := m.GoAbsolute(Position{Alt: angle.Degrees(10), Az: angle.Degrees(20)})
		var rerr *RefusedTargetError
		if !errors.As(err, &rerr) {
			t.Fatalf("%s: GoAbsolute: got %v, want RefusedTargetError", test.axis, err)
		}
		if rerr.Axis != test.axis {
			t.Errorf("refused axis %q, want %q", rerr.Axis, test.axis)
		}
		if m.latch.altStaged != (test.axis == "azimuth") || m.latch.azStaged {
			t.Errorf("%s: latch %+v after refused target", test.axis, m.latch)
		}
	}
}

func TestSetHemisphere(t *testing.T) {
	m, _ := startSim(t)
	initialize(t, m)
	for _, test := range []struct {
		north bool
		want  Hemisphere
	}{
		{false, Southern},
		{true, Northern},
	} {
		if err := m.SetHemisphere(test.north); err != nil {
			t.Fatalf("SetHemisphere(%v): %v", test.north, err)
		}
		status, err := m.Status()
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.Hemisphere != test.want {
			t.Errorf("SetHemisphere(%v): status reports %v, want %v", test.north, status.Hemisphere, test.want)
		}
	}
}

// scriptConn answers each read with the next canned reply; it backs tests
// that need replies the simulator never produces.
type scriptConn struct {
	replies []string
}

func (c *scriptConn) Write(p []byte) (int, error) {
	return len(p), nil
}

func (c *scriptConn) Read(p []byte) (int, error) {
	if len(c.replies) == 0 {
		return 0, errors.New("unexpected read")
	}
	n := copy(p, c.replies[0])
	if n == len(c.replies[0]) {
		c.replies = c.replies[1:]
	} else {
		c.replies[0] = c.replies[0][n:]
	}
	return n, nil
}

func (c *scriptConn) Close() error {
	return nil
}

// recordConn counts writes and fails reads; it backs tests that assert
// nothing reaches the transport.
type recordConn struct {
	writes int
}

func (r *recordConn) Write(p []byte) (int, error) {
	r.writes += len(p)
	return len(p), nil
}

func (r *recordConn) Read(p []byte) (int, error) {
	return 0, errors.New("unexpected read")
}

func (r *recordConn) Close() error {
	return nil
}
