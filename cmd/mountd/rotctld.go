package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/dlowndes/azmount_interface/angle"
	"github.com/dlowndes/azmount_interface/azmount"
)

// ListenRotctld serves hamlib's rotctld protocol, which maps directly onto
// an alt-az mount: azimuth is azimuth and elevation is altitude.
func (s *Server) ListenRotctld(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		log.Print("shutdown; closing rotctld socket")
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				log.Printf("failed to accept: %v", err)
				continue
			}
			go s.handleRotctld(conn)
		}
	}()
	return nil
}

func (s *Server) handleRotctld(conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted connection from %v", conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		// Two forms of command: single character, or "+\" followed by command name.
		cmd := scanner.Text()
		var args []string
		var extended bool
		if len(cmd) == 0 {
			continue
		} else if len(cmd) > 2 && cmd[0:2] == `+\` {
			extended = true
			parts := strings.Split(cmd, " ")
			cmd = parts[0][2:]
			if len(parts) > 1 {
				args = parts[1:]
			}
			fmt.Fprintf(conn, "%s:\n", cmd)
		} else {
			// Space after command is optional.
			if len(cmd) > 1 {
				args = strings.Fields(strings.TrimLeft(cmd[1:], " "))
			}
			cmd = string(cmd[0])
		}
		log.Printf("%v command: %q args: %#v", conn.RemoteAddr(), cmd, args)
		rprt := -1
		switch cmd {
		case "1", "dump_caps":
			fmt.Fprintf(conn, `Model name: AZ Mount Pro
Mfg name: iOptron
Rot type: Az-El
Min Azimuth: 0.00
Max Azimuth: 360.00
Min Elevation: -89.00
Max Elevation: 90.00
Can set Position: Y
Can get Position: Y
Can Stop: Y
Can Park: N
Can Reset: N
Can Move: Y
Can get Info: N
`)
			rprt = 0
		case "S", "stop":
			extended = true // always print RPRT
			s.mu.Lock()
			err := s.m.Stop()
			s.mu.Unlock()
			if err != nil {
				log.Printf("stop: %v", err)
				break
			}
			rprt = 0
		case "P", "set_pos":
			extended = true // always print RPRT
			if len(args) != 2 {
				rprt = -22
				break
			}
			az, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				rprt = -22
				break
			}
			el, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				rprt = -22
				break
			}
			s.mu.Lock()
			err = s.m.GoAbsolute(azmount.Position{
				Alt: angle.Degrees(el),
				Az:  angle.Degrees(az),
			})
			s.mu.Unlock()
			if err != nil {
				log.Printf("set_pos: %v", err)
				break
			}
			rprt = 0
		case "M", "move":
			extended = true // always print RPRT
			if len(args) < 1 {
				rprt = -22
				break
			}
			dir, err := strconv.Atoi(args[0])
			if err != nil {
				rprt = -22
				break
			}
			// rotctld speed is ignored; the mount moves at its
			// configured slew speed.
			var d azmount.Direction
			switch dir {
			case 2:
				d = azmount.Up
			case 4:
				d = azmount.Down
			case 8:
				d = azmount.Left
			case 16:
				d = azmount.Right
			default:
				rprt = -22
			}
			if rprt == -22 {
				break
			}
			s.mu.Lock()
			err = s.m.Keypad(d)
			s.mu.Unlock()
			if err != nil {
				log.Printf("move: %v", err)
				break
			}
			rprt = 0
		case "p", "get_pos":
			s.statusMu.RLock()
			status := s.status
			s.statusMu.RUnlock()
			if extended {
				fmt.Fprintf(conn, "Azimuth: %.6f\nElevation: %.6f\n", status.AzDeg, status.AltDeg)
			} else {
				fmt.Fprintf(conn, "%.6f\n%.6f\n", status.AzDeg, status.AltDeg)
			}
			rprt = 0
		}
		if extended || rprt != 0 {
			fmt.Fprintf(conn, "RPRT %d\n", rprt)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}
