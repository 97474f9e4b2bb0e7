// Watch - tails the live status stream of a running quadwalk console.
//
// Connects to the dashboard websocket and prints one line per status
// frame, for keeping an eye on a trial from a second terminal.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/walklab/go-quadwalk/internal/config"
	"github.com/walklab/go-quadwalk/pkg/motion"
)

func main() {
	host := flag.String("host", "localhost", "quadwalk console host")
	port := flag.String("port", config.WebPort(), "dashboard API port")
	raw := flag.Bool("raw", false, "print raw JSON frames")
	flag.Parse()

	url := fmt.Sprintf("ws://%s:%s/ws/status", *host, *port)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", url, err)
		os.Exit(1)
	}
	defer ws.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		ws.Close()
		os.Exit(0)
	}()

	fmt.Printf("watching %s\n", url)
	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "stream closed: %v\n", err)
			os.Exit(1)
		}

		if *raw {
			fmt.Println(string(frame))
			continue
		}

		var st motion.Status
		if err := json.Unmarshal(frame, &st); err != nil {
			fmt.Fprintf(os.Stderr, "bad frame: %v\n", err)
			continue
		}
		fmt.Printf("%-8s pos=(%6.2f,%6.2f) heading=%5.2f dist=%5.2f/%4.1fm mode=%s policy=%s gaze=%v\n",
			st.State, st.Position.X, st.Position.Y, st.Heading,
			st.Distance, st.PathLength, st.TravelMode, st.SpeedPolicy, st.GazeEnabled)
	}
}
