// mount_logger subscribes to a mountd status websocket and writes each
// snapshot to InfluxDB.
package main

import (
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
)

// mountStatus mirrors the snapshot schema mountd pushes on /api/ws.
type mountStatus struct {
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

// statusFields shapes one snapshot into Influx fields: position as floats
// for graphing, the decoded enum strings and predicate booleans alongside
// for filtering.
func statusFields(s mountStatus) map[string]interface{} {
	return map[string]interface{}{
		"alt":         s.AltDeg,
		"az":          s.AzDeg,
		"system":      s.System,
		"gps":         s.GPS,
		"track_rate":  s.TrackRate,
		"slew_speed":  s.SlewSpeed,
		"time_source": s.TimeSource,
		"hemisphere":  s.Hemisphere,
		"stopped":     s.Stopped,
		"slewing":     s.Slewing,
		"tracking":    s.Tracking,
		"homed":       s.Homed,
	}
}

func main() {
	server := os.Getenv("INFLUX_SERVER")
	if server == "" {
		server = "http://localhost:9999"
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	writeApi := client.WriteApi("observatory", "mount.raw")
	defer writeApi.Close()
	go func() {
		for err := range writeApi.Errors() {
			log.Printf("influx write: %v", err)
		}
	}()
	for {
		if err := logData(writeApi); err != nil {
			log.Printf("mountd stream: %v", err)
		}
		time.Sleep(1 * time.Second)
	}
}

// logData holds one websocket session open and writes a point per snapshot.
// It returns when the socket drops; the caller redials.
func logData(writeApi api.WriteApi) error {
	url := os.Getenv("MOUNTD_ADDRESS")
	if url == "" {
		url = "ws://localhost:8502/api/ws"
	}
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status mountStatus
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		writeApi.WritePoint(influxdb2.NewPoint("mount.status",
			nil,
			statusFields(status),
			time.Now(),
		))
	}
}
