package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dlowndes/azmount_interface/angle"
	"github.com/dlowndes/azmount_interface/azmount"
)

// MountStatus is the JSON snapshot pushed to clients.
type MountStatus struct {
	AltDeg     float64 `json:"alt"`
	AzDeg      float64 `json:"az"`
	System     string  `json:"system"`
	GPS        string  `json:"gps"`
	TrackRate  string  `json:"track_rate"`
	SlewSpeed  string  `json:"slew_speed"`
	TimeSource string  `json:"time_source"`
	Hemisphere string  `json:"hemisphere"`
	Stopped    bool    `json:"stopped"`
	Slewing    bool    `json:"slewing"`
	Tracking   bool    `json:"tracking"`
	Homed      bool    `json:"homed"`
}

type Server struct {
	mu sync.Mutex
	m  *azmount.Mount

	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     MountStatus
}

func NewServer(m *azmount.Mount) *Server {
	s := &Server{m: m}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

// pollLoop refreshes the published status once a second. The mount link is
// half-duplex, so this is the only goroutine that polls; command handlers
// share the same mutex.
func (s *Server) pollLoop(ctx context.Context) {
	t := time.NewTicker(1 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if err := s.pollOnce(); err != nil {
			log.Printf("polling mount: %v", err)
		}
	}
}

func (s *Server) pollOnce() error {
	s.mu.Lock()
	pos, err := s.m.Position()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	status, err := s.m.Status()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(MountStatus{
		AltDeg:     pos.Alt.Degrees(),
		AzDeg:      pos.Az.Degrees(),
		System:     status.System.String(),
		GPS:        status.GPS.String(),
		TrackRate:  status.TrackRate.String(),
		SlewSpeed:  status.SlewSpeed.String(),
		TimeSource: status.TimeSource.String(),
		Hemisphere: status.Hemisphere.String(),
		Stopped:    status.Stopped(),
		Slewing:    status.Slewing(),
		Tracking:   status.Tracking(),
		Homed:      status.Homed(),
	})
	return nil
}

func (s *Server) publish(status MountStatus) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = status
	s.statusCond.Broadcast()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		log.Print(err)
		return
	}
	w.Write(data)
}

// Command is a client request received over the websocket.
type Command struct {
	Command   string  `json:"command"`
	Alt       float64 `json:"alt"`
	Az        float64 `json:"az"`
	Enable    bool    `json:"enable"`
	Direction string  `json:"direction"`
}

var keypadDirections = map[string]azmount.Direction{
	"up":    azmount.Up,
	"down":  azmount.Down,
	"left":  azmount.Left,
	"right": azmount.Right,
}

func (s *Server) handleCommand(msg Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	switch msg.Command {
	case "goto":
		err = s.m.GoAbsolute(azmount.Position{
			Alt: angle.Degrees(msg.Alt),
			Az:  angle.Degrees(msg.Az),
		})
	case "go_home":
		// Homing blocks until arrival, so let the poll loop observe it
		// rather than stalling the command reader.
		go func() {
			if err := s.m.GoHome(context.Background()); err != nil {
				log.Printf("go_home: %v", err)
			}
		}()
	case "stop":
		err = s.m.Stop()
	case "stop_keypad":
		err = s.m.StopKeypad()
	case "track":
		err = s.m.Track(msg.Enable)
	case "keypad":
		dir, ok := keypadDirections[msg.Direction]
		if !ok {
			log.Printf("unknown keypad direction %q", msg.Direction)
			return
		}
		err = s.m.Keypad(dir)
	default:
		log.Printf("unknown command %q", msg.Command)
	}
	if err != nil {
		log.Printf("%s: %v", msg.Command, err)
	}
}

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	// Read and process incoming messages
	go func() {
		for {
			var msg Command
			if err := conn.ReadJSON(&msg); err != nil {
				cancel()
				conn.Close()
				break
			}
			s.handleCommand(msg)
		}
	}()

	send := func(status MountStatus) error {
		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	if err := send(status); err != nil {
		log.Print(err)
		return
	}

	for ctx.Err() == nil {
		s.statusMu.RLock()
		s.statusCond.Wait()
		status := s.status
		s.statusMu.RUnlock()
		if err := send(status); err != nil {
			log.Print(err)
			return
		}
	}
}
