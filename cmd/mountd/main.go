package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dlowndes/azmount_interface/azmount"
	"github.com/dlowndes/azmount_interface/azmount/simulator"
)

var (
	addr        = flag.String("addr", "127.0.0.1:8502", "address to listen on")
	serialPort  = flag.String("serial", "", "serial port name")
	useSim      = flag.Bool("sim", false, "drive a simulated mount instead of -serial")
	rotctldAddr = flag.String("rotctld_addr", "", "optional rotctld listen address")
)

func main() {
	flag.Parse()
	ctx := context.Background()

	var m *azmount.Mount
	var err error
	if *useSim {
		sim, conn := simulator.New()
		go func() {
			if err := sim.Run(ctx); err != nil {
				log.Printf("simulator: %v", err)
			}
		}()
		m = azmount.New(conn)
		err = m.Initialize(ctx)
	} else {
		m, err = azmount.Connect(ctx, *serialPort)
	}
	if err != nil {
		log.Fatal(err)
	}

	srv := NewServer(m)
	go srv.pollLoop(ctx)

	if *rotctldAddr != "" {
		if err := srv.ListenRotctld(ctx, *rotctldAddr); err != nil {
			log.Fatal(err)
		}
	}

	r := mux.NewRouter()
	r.Handle("/api/status", http.HandlerFunc(srv.StatusHandler))
	r.Handle("/api/ws", http.HandlerFunc(srv.StatusSocketHandler))
	httpSrv := &http.Server{
		Handler:      r,
		Addr:         *addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	log.Printf("listening on %v", *addr)
	log.Fatal(httpSrv.ListenAndServe())
}
