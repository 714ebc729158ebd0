// Package azmount drives an iOptron AZ Mount Pro over its RS232 command
// language. The protocol is strictly half-duplex: one command at a time, and
// the reply is consumed in full before the next command is sent. A Mount
// takes exclusive ownership of its transport at construction; sharing a
// serial line between two Mounts is not supported by the protocol and not
// arbitrated here.
package azmount

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/dlowndes/azmount_interface/angle"
)

// Handshake values for the AZ Mount Pro. A wrong model must not be sent
// motion commands.
const (
	expectVersion = "V1.00"
	expectModel   = "5035"
)

// DefaultPollInterval is the status poll period used by GoHome and
// GoBlocking.
const DefaultPollInterval = 500 * time.Millisecond

var errReadTimeout = errors.New("read timed out")

// Position is an altitude/azimuth pair.
type Position struct {
	Alt angle.Angle
	Az  angle.Angle
}

// FirmwareDates holds the four YYMMDD firmware build dates reported by
// :FW1# and :FW2#.
type FirmwareDates struct {
	Mainboard      string
	HandController string
	RAMotor        string
	DecMotor       string
}

// TimeInfo is the mount's idea of local time, from :GLT#. It is diagnostic
// only: the mount's time zone and DST bookkeeping are not reliable enough to
// base any control decision on.
type TimeInfo struct {
	UTCOffsetMinutes int
	DST              bool
	Local            time.Time
}

type Mount struct {
	conn io.ReadWriteCloser

	// PollInterval overrides DefaultPollInterval for the blocking
	// operations when set before use.
	PollInterval time.Duration

	mu    sync.Mutex
	latch targetLatch

	version string
	model   string
}

// New wraps an already-open transport, typically a serial port or a
// simulator pipe. The caller should run Initialize before issuing motion
// commands.
func New(conn io.ReadWriteCloser) *Mount {
	return &Mount{conn: conn}
}

// Connect opens the named serial port with the mount's fixed settings
// (9600 8N1, 2 second read timeout) and runs the initialization sequence,
// including homing. ctx bounds the homing wait.
func Connect(ctx context.Context, port string) (*Mount, error) {
	c := &serial.Config{
		Name:        port,
		Baud:        9600,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 2 * time.Second,
	}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, &TransportError{Op: fmt.Sprintf("opening %q", port), Err: err}
	}
	log.Printf("opened %q", port)
	m := New(s)
	if err := m.Initialize(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return m, nil
}

func (m *Mount) Close() error {
	return m.conn.Close()
}

// Version and Model return the handshake strings captured by Initialize.
func (m *Mount) Version() string { return m.version }
func (m *Mount) Model() string   { return m.model }

// exchange writes one command and consumes its reply per the command's
// declared framing. The delimiter, when present, is stripped from the
// returned payload.
func (m *Mount) exchange(c command) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.conn.Write([]byte(c.text)); err != nil {
		return "", &TransportError{Op: "sending " + c.text, Err: err}
	}
	var payload string
	switch {
	case c.reply.fixed > 0:
		buf := make([]byte, c.reply.fixed)
		got := 0
		for got < len(buf) {
			n, err := m.conn.Read(buf[got:])
			if err != nil {
				return "", &TransportError{Op: "reading " + c.text + " reply", Err: err}
			}
			if n == 0 {
				// tarm/serial signals a read timeout as an
				// empty successful read.
				return "", &TransportError{Op: "reading " + c.text + " reply", Err: errReadTimeout}
			}
			got += n
		}
		payload = string(buf)
	case c.reply.delim != 0:
		var buf []byte
		b := make([]byte, 1)
		for {
			n, err := m.conn.Read(b)
			if err != nil {
				return "", &TransportError{Op: "reading " + c.text + " reply", Err: err}
			}
			if n == 0 {
				return "", &TransportError{Op: "reading " + c.text + " reply", Err: errReadTimeout}
			}
			if b[0] == c.reply.delim {
				break
			}
			buf = append(buf, b[0])
		}
		payload = string(buf)
	}
	log.Printf("%s -> %q", c.text, payload)
	return payload, nil
}

// ack runs a command whose reply is a one-byte 0/1 acknowledgment.
func (m *Mount) ack(c command) (bool, error) {
	payload, err := m.exchange(c)
	if err != nil {
		return false, err
	}
	return parseAck(c.text, payload)
}

var (
	cmdVersion       = command{":V#", replyHash}
	cmdModel         = command{":MountInfo#", replyFixed(4)}
	cmdGetAltAz      = command{":GAC#", replyHash}
	cmdGetAltLimit   = command{":GAL#", replyHash}
	cmdFW1           = command{":FW1#", replyHash}
	cmdFW2           = command{":FW2#", replyHash}
	cmdGetLatitude   = command{":Gt#", replyHash}
	cmdGetLongitude  = command{":Gg#", replyHash}
	cmdGetStatus     = command{":GAS#", replyHash}
	cmdGetLocalTime  = command{":GLT#", replyHash}
	cmdMove          = command{":MS#", replyAck}
	cmdHome          = command{":MH#", replyAck}
	cmdCalibrate     = command{":CM#", replyAck}
	cmdReset         = command{":RAS#", replyAck}
	cmdStop          = command{":Q#", replyAck}
	cmdStopKeypad    = command{":q#", replyAck}
	cmdStopLeftRight = command{":qR#", replyAck}
	cmdStopUpDown    = command{":qD#", replyAck}
)

// Initialize performs the session handshake and puts the mount into a known
// baseline state: tracking off, slew speed at maximum, altitude limit at
// -89 degrees, then homed. Moves issued before this sequence completes would
// run against undefined mount configuration.
func (m *Mount) Initialize(ctx context.Context) error {
	version, err := m.exchange(cmdVersion)
	if err != nil {
		return err
	}
	if version != expectVersion {
		return &HandshakeError{Field: "version", Got: version, Want: expectVersion}
	}
	model, err := m.exchange(cmdModel)
	if err != nil {
		return err
	}
	if model != expectModel {
		return &HandshakeError{Field: "model", Got: model, Want: expectModel}
	}
	m.version = version
	m.model = model
	log.Printf("connected: version %s, model %s", version, model)

	fw, err := m.FirmwareDates()
	if err != nil {
		return err
	}
	log.Printf("firmware: mainboard %s, hand controller %s, RA motor %s, Dec motor %s",
		fw.Mainboard, fw.HandController, fw.RAMotor, fw.DecMotor)

	if err := m.Track(false); err != nil {
		return err
	}
	if err := m.SetSlewSpeed(SpeedMax); err != nil {
		return err
	}
	if err := m.SetAltitudeLimit(angle.Degrees(-89)); err != nil {
		return err
	}

	// Diagnostic snapshot. The mount's clock is logged but never trusted.
	if status, err := m.Status(); err != nil {
		return err
	} else {
		log.Printf("status: %v / %v / track %v / speed %v / time source %v / %v hemisphere",
			status.GPS, status.System, status.TrackRate, status.SlewSpeed, status.TimeSource, status.Hemisphere)
	}
	if ti, err := m.LocalTime(); err != nil {
		log.Printf("local time: %v", err)
	} else {
		log.Printf("local time: %v (DST %v)", ti.Local, ti.DST)
	}
	if lat, lon, err := m.Location(); err != nil {
		return err
	} else {
		log.Printf("location: lat %.4f, long %.4f", lat.Degrees(), lon.Degrees())
	}

	return m.GoHome(ctx)
}

// stageAltitude sends :Sa and records the acknowledgment in the latch.
func (m *Mount) stageAltitude(alt angle.Angle) error {
	c, err := setAltitudeCmd(alt)
	if err != nil {
		return err
	}
	ok, err := m.ack(c)
	if err != nil {
		return err
	}
	m.latch.stageAlt(ok)
	if !ok {
		return &RefusedTargetError{Axis: "altitude", Degrees: alt.Degrees()}
	}
	return nil
}

// stageAzimuth sends :Sz and records the acknowledgment in the latch.
func (m *Mount) stageAzimuth(az angle.Angle) error {
	c, err := setAzimuthCmd(az)
	if err != nil {
		return err
	}
	ok, err := m.ack(c)
	if err != nil {
		return err
	}
	m.latch.stageAz(ok)
	if !ok {
		return &RefusedTargetError{Axis: "azimuth", Degrees: az.Degrees()}
	}
	return nil
}

// commitMove issues :MS# against the staged target. The latch is cleared
// before the reply is interpreted, so a rejected or failed move leaves no
// stale staged state. A '0' reply means the mount declined the move (target
// below the altitude limit) and no slew occurs.
func (m *Mount) commitMove(pos Position) error {
	if err := m.latch.commit(); err != nil {
		return err
	}
	ok, err := m.ack(cmdMove)
	if err != nil {
		return err
	}
	if !ok {
		return &RejectedMoveError{Alt: pos.Alt.Degrees(), Az: pos.Az.Degrees()}
	}
	return nil
}

// GoAbsolute stages both axes and commits the move. It returns once the
// mount has accepted the slew; it does not wait for arrival.
func (m *Mount) GoAbsolute(pos Position) error {
	if err := m.stageAltitude(pos.Alt); err != nil {
		return err
	}
	if err := m.stageAzimuth(pos.Az); err != nil {
		return err
	}
	return m.commitMove(pos)
}

// GoRelative reads the current position, applies the deltas and slews there.
// The deltas are relative to the position at read time: if the mount is
// tracking, the target will lag the position at commit time.
func (m *Mount) GoRelative(dAlt, dAz angle.Angle) error {
	cur, err := m.Position()
	if err != nil {
		return err
	}
	target := Position{Alt: cur.Alt + dAlt, Az: cur.Az + dAz}
	log.Printf("relative move: alt %.4f -> %.4f, az %.4f -> %.4f",
		cur.Alt.Degrees(), target.Alt.Degrees(), cur.Az.Degrees(), target.Az.Degrees())
	return m.GoAbsolute(target)
}

// GoHome slews to the zero position and polls until the mount reports
// stopped at home. The wait is unbounded unless ctx carries a deadline;
// expiry returns a TimeoutError and leaves the slew running.
func (m *Mount) GoHome(ctx context.Context) error {
	if _, err := m.ack(cmdHome); err != nil {
		return err
	}
	return pollUntil(ctx, "go home", m.pollInterval(), func() (bool, error) {
		status, err := m.Status()
		if err != nil {
			return false, err
		}
		return status.Homed(), nil
	})
}

// GoBlocking slews to pos and polls until the mount is within tol of it on
// both axes and reports stopped. Deadline semantics are those of GoHome;
// in particular no implicit Stop is issued on timeout.
func (m *Mount) GoBlocking(ctx context.Context, pos Position, tol angle.Angle) error {
	if err := m.GoAbsolute(pos); err != nil {
		return err
	}
	return pollUntil(ctx, "go blocking", m.pollInterval(), func() (bool, error) {
		cur, err := m.Position()
		if err != nil {
			return false, err
		}
		status, err := m.Status()
		if err != nil {
			return false, err
		}
		arrived := (cur.Alt-pos.Alt).Abs() <= tol && (cur.Az-pos.Az).Abs() <= tol
		return arrived && status.Stopped(), nil
	})
}

func (m *Mount) pollInterval() time.Duration {
	if m.PollInterval > 0 {
		return m.PollInterval
	}
	return DefaultPollInterval
}

// Stop halts slewing only; tracking and keypad motion are unaffected.
func (m *Mount) Stop() error {
	_, err := m.ack(cmdStop)
	return err
}

// StopKeypad halts arrow-key motion; slewing and tracking are unaffected.
func (m *Mount) StopKeypad() error {
	_, err := m.ack(cmdStopKeypad)
	return err
}

func (m *Mount) StopLeftRight() error {
	_, err := m.ack(cmdStopLeftRight)
	return err
}

func (m *Mount) StopUpDown() error {
	_, err := m.ack(cmdStopUpDown)
	return err
}

// Track switches sidereal-style tracking on or off.
func (m *Mount) Track(enable bool) error {
	c := command{":ST0#", replyAck}
	if enable {
		c = command{":ST1#", replyAck}
	}
	_, err := m.ack(c)
	return err
}

// SetSlewSpeed sets the arrow-key move rate. The mount reverts to 64x at
// the next power up.
func (m *Mount) SetSlewSpeed(speed SlewSpeed) error {
	if speed < Speed1x || speed > SpeedMax {
		return &ValidationError{Field: "slew speed", Value: int(speed), Range: "[1, 9]"}
	}
	_, err := m.ack(command{fmt.Sprintf(":SR%d#", int(speed)), replyAck})
	return err
}

// SetTrackRate selects the tracking rate. The mount reverts to sidereal at
// the next power up.
func (m *Mount) SetTrackRate(rate TrackRate) error {
	if rate < TrackSidereal || rate > TrackCustom {
		return &ValidationError{Field: "track rate", Value: int(rate), Range: "[0, 4]"}
	}
	_, err := m.ack(command{fmt.Sprintf(":RT%d#", int(rate)), replyAck})
	return err
}

// SetAltitudeLimit sets the minimum altitude for both tracking and slewing,
// to whole-degree resolution. Arrow-key motion is not limited by it.
func (m *Mount) SetAltitudeLimit(limit angle.Angle) error {
	c, err := setAltLimitCmd(limit)
	if err != nil {
		return err
	}
	_, err = m.ack(c)
	return err
}

// SetHemisphere selects the observing hemisphere; true is northern.
func (m *Mount) SetHemisphere(north bool) error {
	c := command{":SHE0#", replyAck}
	if north {
		c = command{":SHE1#", replyAck}
	}
	_, err := m.ack(c)
	return err
}

// SetDST tells the mount whether daylight saving time is observed.
func (m *Mount) SetDST(observed bool) error {
	c := command{":SDS0#", replyAck}
	if observed {
		c = command{":SDS1#", replyAck}
	}
	_, err := m.ack(c)
	return err
}

// SetLatitude sets the site latitude; north is positive.
func (m *Mount) SetLatitude(lat angle.Angle) error {
	c, err := setLatitudeCmd(lat)
	if err != nil {
		return err
	}
	_, err = m.ack(c)
	return err
}

// SetLongitude sets the site longitude; east is positive.
func (m *Mount) SetLongitude(lon angle.Angle) error {
	c, err := setLongitudeCmd(lon)
	if err != nil {
		return err
	}
	_, err = m.ack(c)
	return err
}

// SetTimeOffset sets the UTC offset in whole minutes, range [-720, +780].
// DST does not affect this value.
func (m *Mount) SetTimeOffset(minutes int) error {
	c, err := setTimeOffsetCmd(minutes)
	if err != nil {
		return err
	}
	_, err = m.ack(c)
	return err
}

// SetMeridianBehavior would configure meridian flip handling, but the
// command's encoding differs between V2 and V3 of the command set and the
// mount's response is undocumented for the other version.
func (m *Mount) SetMeridianBehavior(flip bool, limit angle.Angle) error {
	return &UnsupportedOperationError{Op: "SetMeridianBehavior"}
}

// SetUTCTime would set the mount clock, but V2 (YYMMDD + HHMMSS) and V3
// (milliseconds since J2000) encodings are mutually exclusive and it is
// unclear which this mount accepts.
func (m *Mount) SetUTCTime(t time.Time) error {
	return &UnsupportedOperationError{Op: "SetUTCTime"}
}

// Direction is an arrow-key direction for Keypad moves.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

var keypadCommands = map[Direction]command{
	Up:    {":mn#", replyNone},
	Down:  {":ms#", replyNone},
	Left:  {":mw#", replyNone},
	Right: {":me#", replyNone},
}

// Keypad starts continuous motion in the given direction at the configured
// slew speed, exactly as the hand controller's arrow keys do. There is no
// automatic stop: motion continues until StopKeypad, StopLeftRight or
// StopUpDown is sent.
func (m *Mount) Keypad(d Direction) error {
	c, ok := keypadCommands[d]
	if !ok {
		return &ValidationError{Field: "direction", Value: int(d), Range: "Up, Down, Left, Right"}
	}
	_, err := m.exchange(c)
	return err
}

// Calibrate syncs the most recently staged altitude and azimuth as the
// mount's actual position. The mount ignores this while slewing, so a
// successful acknowledgment does not guarantee the state changed.
func (m *Mount) Calibrate() (bool, error) {
	return m.ack(cmdCalibrate)
}

// ResetSettings restores all settings to defaults. Time zone and date/time
// survive the reset.
func (m *Mount) ResetSettings() error {
	_, err := m.ack(cmdReset)
	return err
}

// Position reports the current altitude and azimuth.
func (m *Mount) Position() (Position, error) {
	payload, err := m.exchange(cmdGetAltAz)
	if err != nil {
		return Position{}, err
	}
	if len(payload) != 18 {
		return Position{}, &ProtocolError{Command: cmdGetAltAz.text, Reply: payload, Reason: "want sign and 17 digits"}
	}
	alt, err := parseWireInt(cmdGetAltAz.text, payload[:9], true, 8)
	if err != nil {
		return Position{}, err
	}
	az, err := parseWireInt(cmdGetAltAz.text, payload[9:], false, 9)
	if err != nil {
		return Position{}, err
	}
	return Position{
		Alt: angle.Arcseconds(float64(alt) / 100),
		Az:  angle.Arcseconds(float64(az) / 100),
	}, nil
}

// AltitudeLimit reports the configured altitude limit.
func (m *Mount) AltitudeLimit() (angle.Angle, error) {
	payload, err := m.exchange(cmdGetAltLimit)
	if err != nil {
		return 0, err
	}
	v, err := parseWireInt(cmdGetAltLimit.text, payload, true, 2)
	if err != nil {
		return 0, err
	}
	return angle.Degrees(float64(v)), nil
}

// FirmwareDates reports the build dates of the four firmware images.
func (m *Mount) FirmwareDates() (FirmwareDates, error) {
	fw1, err := m.exchange(cmdFW1)
	if err != nil {
		return FirmwareDates{}, err
	}
	if len(fw1) != 12 {
		return FirmwareDates{}, &ProtocolError{Command: cmdFW1.text, Reply: fw1, Reason: "want two 6-digit dates"}
	}
	fw2, err := m.exchange(cmdFW2)
	if err != nil {
		return FirmwareDates{}, err
	}
	if len(fw2) != 12 {
		return FirmwareDates{}, &ProtocolError{Command: cmdFW2.text, Reply: fw2, Reason: "want two 6-digit dates"}
	}
	return FirmwareDates{
		Mainboard:      fw1[:6],
		HandController: fw1[6:],
		RAMotor:        fw2[:6],
		DecMotor:       fw2[6:],
	}, nil
}

// Location reports the stored site latitude and longitude. North and east
// are positive.
func (m *Mount) Location() (lat, lon angle.Angle, err error) {
	latPayload, err := m.exchange(cmdGetLatitude)
	if err != nil {
		return 0, 0, err
	}
	latV, err := parseWireInt(cmdGetLatitude.text, latPayload, true, 8)
	if err != nil {
		return 0, 0, err
	}
	lonPayload, err := m.exchange(cmdGetLongitude)
	if err != nil {
		return 0, 0, err
	}
	lonV, err := parseWireInt(cmdGetLongitude.text, lonPayload, true, 8)
	if err != nil {
		return 0, 0, err
	}
	return angle.Arcseconds(float64(latV) / 100), angle.Arcseconds(float64(lonV) / 100), nil
}

// Status reports a decoded mount status snapshot.
func (m *Mount) Status() (Status, error) {
	payload, err := m.exchange(cmdGetStatus)
	if err != nil {
		return Status{}, err
	}
	return parseStatus(payload)
}

// LocalTime reports the mount's local time, UTC offset and DST flag.
// Diagnostic only; see TimeInfo.
func (m *Mount) LocalTime() (TimeInfo, error) {
	payload, err := m.exchange(cmdGetLocalTime)
	if err != nil {
		return TimeInfo{}, err
	}
	if len(payload) != 17 {
		return TimeInfo{}, &ProtocolError{Command: cmdGetLocalTime.text, Reply: payload, Reason: "want sign and 16 digits"}
	}
	offset, err := parseWireInt(cmdGetLocalTime.text, payload[:4], true, 3)
	if err != nil {
		return TimeInfo{}, err
	}
	dst := payload[4]
	if dst != '0' && dst != '1' {
		return TimeInfo{}, &ProtocolError{Command: cmdGetLocalTime.text, Reply: payload, Reason: "bad DST digit"}
	}
	zone := time.FixedZone("mount", int(offset)*60)
	local, err := time.ParseInLocation("060102150405", payload[5:], zone)
	if err != nil {
		return TimeInfo{}, &ProtocolError{Command: cmdGetLocalTime.text, Reply: payload, Reason: err.Error()}
	}
	return TimeInfo{
		UTCOffsetMinutes: int(offset),
		DST:              dst == '1',
		Local:            local,
	}, nil
}
