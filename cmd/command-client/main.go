package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"speakcity/control"

	log "github.com/sirupsen/logrus"
)

func main() {
	devModePtr := flag.Bool("dev", true, "Use the offline keyword parser instead of Gemini")
	serverURLPtr := flag.String("server", "localhost:9090", "Simulation server URL (gRPC)")
	oncePtr := flag.String("once", "", "Translate and send a single message, then exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var translator Translator = KeywordTranslator{}
	if *devModePtr {
		log.Println("Running in development mode")
	} else {
		configPath := GetDefaultConfigPath()
		if err := SaveDefaultConfig(configPath); err != nil {
			log.Printf("Warning: Failed to create default config file: %v", err)
		}
		config := LoadConfig(configPath)
		gemini, err := NewGeminiTranslator(ctx, config.GeminiAPIKey, config.Model)
		if err != nil {
			log.Fatalf("FATAL: %v. Set GEMINI_API_KEY or add it to config.json", err)
		}
		translator = gemini
	}

	client, err := control.Dial(*serverURLPtr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if h, err := client.Health(ctx); err != nil {
		log.Fatalf("Health check failed: %v", err)
	} else {
		log.Printf("Connected to %s (%s)", *serverURLPtr, h)
	}

	console := NewCommandClient(client, translator)
	if *oncePtr != "" {
		if !handleLine(ctx, console, *oncePtr) {
			os.Exit(1)
		}
		return
	}

	fmt.Println("Type a traffic instruction, e.g. \"cierra H21 por 30 segundos\". Ctrl+D exits.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		handleLine(ctx, console, line)
		if ctx.Err() != nil {
			break
		}
	}
}

func handleLine(ctx context.Context, console *CommandClient, line string) bool {
	batch, resp, err := console.Handle(ctx, line)
	if errors.Is(err, ErrNotACommand) {
		fmt.Println("That message was not understood as a traffic command.")
		return false
	}
	if err != nil {
		log.Errorf("Command failed: %v", err)
		return false
	}
	printResponse(os.Stdout, batch, resp)
	return true
}
