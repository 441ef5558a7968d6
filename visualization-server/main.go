package main

import (
	"flag"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"speakcity/control"

	log "github.com/sirupsen/logrus"
)

func main() {
	addr := flag.String("http", ":8081", "HTTP listen address for visualization server")
	simGRPC := flag.String("grpc", "localhost:9090", "Simulation server gRPC address")
	staticDir := flag.String("static", "./static", "Directory with static web assets")
	pollMs := flag.Int("poll_ms", 100, "Polling interval in milliseconds for city updates")
	flag.Parse()

	log.Printf("Connecting to simulation gRPC at %s", *simGRPC)
	client, err := control.Dial(*simGRPC)
	if err != nil {
		log.Fatalf("Failed to connect to simulation server: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing gRPC connection: %v", err)
		}
	}()

	absStaticDir, _ := filepath.Abs(*staticDir)
	log.Printf("Serving static files from %s", absStaticDir)
	mux := newMux(client, time.Duration(*pollMs)*time.Millisecond, absStaticDir)

	// Support automatic free port selection with -http :0
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("Failed to bind %s: %v", *addr, err)
	}
	log.Printf("Visualization server listening on %s", ln.Addr().String())
	if err := http.Serve(ln, mux); err != nil {
		log.Fatalf("HTTP server stopped: %v", err)
	}
}
