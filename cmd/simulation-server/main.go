package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"speakcity/control"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", GetDefaultConfigPath(), "Path to the JSON config file")
	httpAddr := flag.String("http", "", "HTTP listen address (overrides config)")
	grpcAddr := flag.String("grpc", "", "gRPC listen address (overrides config)")
	seed := flag.Int64("seed", 0, "Random seed, 0 uses the clock (overrides config)")
	density := flag.String("density", "", "Initial density: low, medium or high (overrides config)")
	mqttBroker := flag.String("mqtt", "", "MQTT broker URL for metrics, e.g. tcp://localhost:1883")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		log.SetLevel(log.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := SaveDefaultConfig(*configPath); err != nil {
		log.Printf("Warning: Could not create default config file: %v", err)
	}
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *grpcAddr != "" {
		cfg.GRPCAddr = *grpcAddr
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *density != "" {
		cfg.Density = *density
	}
	if *mqttBroker != "" {
		cfg.MQTTBroker = *mqttBroker
	}

	opts, err := cfg.Options()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	log.WithField("seed", cfg.Seed).Info("Starting SpeakCity simulation server")

	core, err := NewSimulationCore(opts, cfg.TickRate(), rand.New(rand.NewSource(cfg.Seed)), cfg.StateFile)
	if err != nil {
		log.Fatalf("Failed to start simulation: %v", err)
	}
	defer core.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws := NewWebSocketServer(core)
	defer ws.Stop()

	// gRPC control plane
	grpcServer := grpc.NewServer()
	control.RegisterTrafficControlServer(grpcServer, NewGRPCControlServer(core))
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.GRPCAddr, err)
	}
	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("gRPC server stopped: %v", err)
		}
	}()

	// HTTP API and viewers
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: NewRouter(core, ws)}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	if cfg.MQTTBroker != "" {
		pub, client, err := ConnectMetricsPublisher(cfg.MQTTBroker, cfg.MQTTTopic)
		if err != nil {
			log.Warnf("MQTT disabled: %v", err)
		} else {
			defer client.Disconnect(250)
			go pub.Run(ctx, cfg.MetricsInterval(), core.Metrics)
		}
	}

	core.Run(ctx, cfg.BroadcastEvery, ws.BroadcastSnapshot)

	log.Println("Shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	grpcServer.GracefulStop()
}
