// Package simulator implements a software AZ Mount Pro that speaks the
// RS232 command language over an in-memory pipe. It backs the azmount tests
// and mountd's -sim mode.
package simulator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type axis struct {
	pos    float64 // degrees
	target float64
	vel    float64 // keypad velocity, degrees per step
}

type Simulator struct {
	conn io.ReadWriteCloser

	// Handshake strings reported to the driver. Overriding Model lets
	// tests exercise the wrong-mount path.
	Version string
	Model   string

	mu sync.Mutex

	alt axis
	az  axis

	stagedAlt, stagedAz   float64 // degrees
	altValid, azValid     bool
	slewing               bool
	homing                bool
	tracking              bool
	altLimit              float64 // degrees
	trackRate             int
	slewSpeed             int
	hemisphere            int
	latArcsec, lonArcsec  float64 // hundredths of arcsec
	timeOffsetMin         int
	dst                   bool
	systemOverride        int // -1 when position/motion decide the digit
	commandsSeen          int
}

const (
	// Degrees of travel per simulation step. Far faster than the real
	// drive so blocking tests finish quickly.
	slewStep = 5.0
	stepSize = 25 * time.Millisecond
)

// New returns a simulator and the driver's end of the pipe.
func New() (*Simulator, net.Conn) {
	a, b := net.Pipe()
	return &Simulator{
		conn:           a,
		Version:        "V1.00",
		Model:          "5035",
		altLimit:       -89,
		trackRate:      0,
		slewSpeed:      5,
		hemisphere:     1,
		timeOffsetMin:  0,
		systemOverride: -1,
	}, b
}

// CommandsSeen reports how many commands the simulator has received.
func (s *Simulator) CommandsSeen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commandsSeen
}

func (s *Simulator) Run(ctx context.Context) error {
	defer s.conn.Close()
	t := time.NewTicker(stepSize)
	defer t.Stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
			s.step()
		}
	})
	g.Go(s.reader)
	g.Go(func() error {
		<-ctx.Done()
		return s.conn.Close()
	})
	return g.Wait()
}

func (s *Simulator) reader() error {
	br := bufio.NewReader(s.conn)
	for {
		cmd, err := br.ReadString('#')
		if err != nil {
			if err == io.EOF || err == io.ErrClosedPipe {
				return nil
			}
			return fmt.Errorf("reading pipe: %w", err)
		}
		s.mu.Lock()
		s.commandsSeen++
		err = s.handle(cmd)
		s.mu.Unlock()
		if err != nil {
			log.Printf("sim: %q: %v", cmd, err)
		}
	}
}

// servo moves a toward its target by at most slewStep and reports whether it
// arrived.
func (a *axis) servo() bool {
	delta := a.target - a.pos
	if math.Abs(delta) <= slewStep {
		a.pos = a.target
		return true
	}
	if delta < 0 {
		a.pos -= slewStep
	} else {
		a.pos += slewStep
	}
	return false
}

func (s *Simulator) step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slewing {
		altDone := s.alt.servo()
		azDone := s.az.servo()
		if altDone && azDone {
			s.slewing = false
			if s.homing {
				s.homing = false
				s.systemOverride = 7
			} else {
				s.systemOverride = -1
			}
		}
		return
	}
	// Keypad motion continues until explicitly stopped.
	s.alt.pos += s.alt.vel
	s.az.pos = math.Mod(s.az.pos+s.az.vel+360, 360)
}

// systemDigit derives the :GAS# system-state field.
func (s *Simulator) systemDigit() int {
	switch {
	case s.slewing:
		return 2
	case s.systemOverride >= 0:
		return s.systemOverride
	case s.tracking:
		return 1
	}
	return 0
}

func (s *Simulator) handle(cmd string) error {
	body := cmd[:len(cmd)-1] // strip '#'
	switch {
	case body == ":V":
		return s.send(s.Version + "#")
	case body == ":MountInfo":
		return s.send(s.Model)
	case body == ":FW1":
		return s.send("150324150101#")
	case body == ":FW2":
		return s.send("150324150324#")
	case body == ":GAC":
		alt := int64(math.Round(s.alt.pos * 360000))
		az := int64(math.Round(s.az.pos * 360000))
		return s.send(fmt.Sprintf("%s%09d#", signed8(alt), az))
	case body == ":GAL":
		return s.send(fmt.Sprintf("%+03d#", int(s.altLimit)))
	case body == ":Gt":
		return s.send(signed8(int64(s.latArcsec)) + "#")
	case body == ":Gg":
		return s.send(signed8(int64(s.lonArcsec)) + "#")
	case body == ":GAS":
		return s.send(fmt.Sprintf("0%d%d%d1%d#", s.systemDigit(), s.trackRate, s.slewSpeed, s.hemisphere))
	case body == ":GLT":
		dst := "0"
		if s.dst {
			dst = "1"
		}
		now := time.Now().UTC().Add(time.Duration(s.timeOffsetMin) * time.Minute)
		return s.send(fmt.Sprintf("%+04d%s%s#", s.timeOffsetMin, dst, now.Format("060102150405")))
	case body == ":MS":
		if !s.altValid || !s.azValid {
			return s.sendAck(false)
		}
		s.altValid, s.azValid = false, false
		if s.stagedAlt < s.altLimit {
			return s.sendAck(false)
		}
		s.alt.target = s.stagedAlt
		s.az.target = s.stagedAz
		s.alt.vel, s.az.vel = 0, 0
		s.slewing = true
		s.homing = false
		return s.sendAck(true)
	case body == ":MH":
		s.alt.target = 0
		s.az.target = 0
		s.alt.vel, s.az.vel = 0, 0
		s.slewing = true
		s.homing = true
		return s.sendAck(true)
	case body == ":Q":
		s.slewing = false
		s.homing = false
		s.systemOverride = -1
		return s.sendAck(true)
	case body == ":q":
		s.alt.vel, s.az.vel = 0, 0
		return s.sendAck(true)
	case body == ":qR":
		s.az.vel = 0
		return s.sendAck(true)
	case body == ":qD":
		s.alt.vel = 0
		return s.sendAck(true)
	case body == ":CM":
		if s.slewing {
			return s.sendAck(true) // acknowledged but ignored mid-slew
		}
		s.alt.pos = s.stagedAlt
		s.az.pos = s.stagedAz
		return s.sendAck(true)
	case body == ":RAS":
		s.altLimit = -89
		s.trackRate = 0
		s.slewSpeed = 5
		return s.sendAck(true)
	case body == ":ST0":
		s.tracking = false
		s.systemOverride = -1
		return s.sendAck(true)
	case body == ":ST1":
		s.tracking = true
		return s.sendAck(true)
	case body == ":mn", body == ":ms", body == ":mw", body == ":me":
		// No reply. Keypad motion at a nominal rate per step.
		switch body {
		case ":mn":
			s.alt.vel = 0.1
		case ":ms":
			s.alt.vel = -0.1
		case ":mw":
			s.az.vel = -0.1
		case ":me":
			s.az.vel = 0.1
		}
		return nil
	}
	switch {
	case hasPrefix(body, ":Sa"):
		v, err := parseSigned(body[3:], 8)
		if err != nil {
			return err
		}
		s.stagedAlt = float64(v) / 360000
		s.altValid = true
		return s.sendAck(true)
	case hasPrefix(body, ":Sz"):
		v, err := strconv.ParseInt(body[3:], 10, 64)
		if err != nil {
			return err
		}
		s.stagedAz = float64(v) / 360000
		s.azValid = true
		return s.sendAck(true)
	case hasPrefix(body, ":SAL"):
		v, err := parseSigned(body[4:], 2)
		if err != nil {
			return err
		}
		s.altLimit = float64(v)
		return s.sendAck(true)
	case hasPrefix(body, ":SLA"):
		v, err := parseSigned(body[4:], 8)
		if err != nil {
			return err
		}
		s.latArcsec = float64(v)
		return s.sendAck(true)
	case hasPrefix(body, ":SLO"):
		v, err := parseSigned(body[4:], 8)
		if err != nil {
			return err
		}
		s.lonArcsec = float64(v)
		return s.sendAck(true)
	case hasPrefix(body, ":SR"):
		v, err := strconv.Atoi(body[3:])
		if err != nil || v < 1 || v > 9 {
			return s.sendAck(false)
		}
		s.slewSpeed = v
		return s.sendAck(true)
	case hasPrefix(body, ":RT"):
		v, err := strconv.Atoi(body[3:])
		if err != nil || v < 0 || v > 4 {
			return s.sendAck(false)
		}
		s.trackRate = v
		return s.sendAck(true)
	case hasPrefix(body, ":SHE"):
		s.hemisphere = int(body[4] - '0')
		return s.sendAck(true)
	case hasPrefix(body, ":SDS"):
		s.dst = body[4] == '1'
		return s.sendAck(true)
	case hasPrefix(body, ":SG"):
		v, err := parseSigned(body[3:], 3)
		if err != nil {
			return err
		}
		s.timeOffsetMin = int(v)
		return s.sendAck(true)
	}
	return fmt.Errorf("unrecognized command %q", cmd)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// parseSigned reads a mandatory sign followed by digits zero-padded digits.
func parseSigned(s string, digits int) (int64, error) {
	if len(s) != digits+1 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("want sign and %d digits, got %q", digits, s)
	}
	v, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil {
		return 0, err
	}
	if s[0] == '-' {
		v = -v
	}
	return v, nil
}

func signed8(v int64) string {
	sign := "+"
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%08d", sign, v)
}

func (s *Simulator) sendAck(ok bool) error {
	if ok {
		return s.send("1")
	}
	return s.send("0")
}

func (s *Simulator) send(reply string) error {
	_, err := s.conn.Write([]byte(reply))
	return err
}
