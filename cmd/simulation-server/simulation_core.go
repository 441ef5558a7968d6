package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"speakcity/shared"
	"speakcity/traffic"

	log "github.com/sirupsen/logrus"
)

// cellSize is the canvas span of one character in the state dump.
const cellSize = 10.0

// SimulationCore owns the traffic engine and serializes every access to it.
// Ticks, commands and snapshot reads all go through its mutex.
type SimulationCore struct {
	sim        *traffic.Simulation
	TickRate   time.Duration
	mu         sync.RWMutex
	outputFile *os.File

	sinkMu sync.RWMutex
	sink   func(shared.EventState)
}

// NewSimulationCore creates the engine from opts. stateFile may be empty to
// disable the text dump.
func NewSimulationCore(opts traffic.Options, tickRate time.Duration, rng *rand.Rand, stateFile string) (*SimulationCore, error) {
	sim, err := traffic.New(opts, rng)
	if err != nil {
		return nil, fmt.Errorf("build simulation: %w", err)
	}
	core := &SimulationCore{
		sim:      sim,
		TickRate: tickRate,
	}
	sim.SetEventHandler(core.forward)

	if stateFile != "" {
		file, err := os.OpenFile(stateFile, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open state file %s: %w", stateFile, err)
		}
		core.outputFile = file
		log.Printf("City state will be written to %s", stateFile)
	}

	log.WithFields(log.Fields{
		"tick_rate": tickRate,
		"density":   opts.Density,
	}).Info("Simulation core initialized")
	return core, nil
}

// SetEventSink installs fn to receive engine events. fn runs while the core
// lock is held and must not block.
func (s *SimulationCore) SetEventSink(fn func(shared.EventState)) {
	s.sinkMu.Lock()
	s.sink = fn
	s.sinkMu.Unlock()
}

func (s *SimulationCore) forward(e traffic.Event) {
	s.sinkMu.RLock()
	fn := s.sink
	s.sinkMu.RUnlock()
	if fn == nil {
		return
	}
	fn(shared.EventState{
		Tick:    e.Tick,
		Type:    e.Type.String(),
		Subject: e.Subject,
		Detail:  e.Detail,
	})
}

// Tick advances the simulation by one fixed step
func (s *SimulationCore) Tick() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sim.Step(s.TickRate)
	return s.sim.TickCount()
}

// GetTickCount returns the current tick count
func (s *SimulationCore) GetTickCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim.TickCount()
}

// Snapshot returns a copy of the current frame.
func (s *SimulationCore) Snapshot() shared.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim.Snapshot()
}

// Metrics returns the dashboard counters.
func (s *SimulationCore) Metrics() shared.Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sim.Metrics()
}

// ExecuteBatch runs every command of batch in order under one lock, so no
// tick interleaves with the batch.
func (s *SimulationCore) ExecuteBatch(batch shared.CommandBatch) shared.CommandResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := s.sim.ExecuteBatch(batch)
	failed := 0
	for _, r := range resp.Results {
		if !r.OK {
			failed++
		}
	}
	log.WithFields(log.Fields{
		"request_id": batch.RequestID,
		"commands":   len(batch.Commands),
		"failed":     failed,
	}).Info("Command batch executed")
	return resp
}

// Apply runs a single command and returns the engine error unchanged.
func (s *SimulationCore) Apply(cmd shared.Command) (shared.CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, affected, err := s.sim.Apply(cmd)
	if err != nil {
		log.WithField("action", cmd.Action).Warnf("Command rejected: %v", err)
		return shared.CommandResult{Command: cmd, Error: err.Error()}, err
	}
	return shared.CommandResult{Command: cmd, OK: true, Changed: changed, Affected: affected}, nil
}

// Run drives the fixed-timestep loop until ctx is cancelled. Every
// broadcastEvery ticks the latest snapshot is handed to frame.
func (s *SimulationCore) Run(ctx context.Context, broadcastEvery int, frame func(shared.Snapshot)) {
	if broadcastEvery < 1 {
		broadcastEvery = 1
	}
	ticker := time.NewTicker(s.TickRate)
	defer ticker.Stop()

	stateEvery := int64(time.Second / s.TickRate)
	if stateEvery < 1 {
		stateEvery = 1
	}

	s.PrintState()
	for {
		select {
		case <-ctx.Done():
			log.Println("Simulation loop stopped")
			return
		case <-ticker.C:
			tick := s.Tick()
			if frame != nil && tick%int64(broadcastEvery) == 0 {
				frame(s.Snapshot())
			}
			if tick%stateEvery == 0 {
				s.PrintState()
			}
		}
	}
}

// createMapRepresentation draws streets, intersections and cars onto a
// character grid, one character per cellSize square.
func createMapRepresentation(snap shared.Snapshot) [][]byte {
	cols := int(math.Ceil(snap.Width / cellSize))
	rows := int(math.Ceil(snap.Height / cellSize))
	grid := make([][]byte, rows)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(" ", cols))
	}

	fill := func(r shared.Rect, ch byte) {
		for y := int(r.Y / cellSize); y < int(math.Ceil((r.Y+r.H)/cellSize)) && y < rows; y++ {
			for x := int(r.X / cellSize); x < int(math.Ceil((r.X+r.W)/cellSize)) && x < cols; x++ {
				grid[y][x] = ch
			}
		}
	}
	for _, st := range snap.Streets {
		ch := byte('.')
		if st.Closed {
			ch = '#'
		}
		fill(st.Rect, ch)
	}
	for _, in := range snap.Intersections {
		fill(in.Rect, '+')
	}
	for _, c := range snap.Cars {
		x, y := int(c.X/cellSize), int(c.Y/cellSize)
		if x >= 0 && x < cols && y >= 0 && y < rows {
			grid[y][x] = carGlyph(c)
		}
	}
	return grid
}

func carGlyph(c shared.CarState) byte {
	if c.State != traffic.Moving.String() && c.State != traffic.Turning.String() {
		return 'o'
	}
	dx, dy := math.Cos(c.Rotation), math.Sin(c.Rotation)
	switch {
	case math.Abs(dx) >= math.Abs(dy) && dx > 0:
		return '>'
	case math.Abs(dx) >= math.Abs(dy):
		return '<'
	case dy > 0:
		return 'v'
	default:
		return '^'
	}
}

// writeState renders snap as plain text: a header, the map, then counters
// and the list of stopped cars.
func writeState(w *strings.Builder, snap shared.Snapshot) {
	fmt.Fprintf(w, "Tick %d (%v sim time) at %s\n", snap.Tick, snap.SimTime(), time.Now().Format(time.RFC3339))
	for _, row := range createMapRepresentation(snap) {
		w.Write(row)
		w.WriteByte('\n')
	}

	m := snap.Metrics
	fmt.Fprintf(w, "\nCars: %d  Streets open/closed: %d/%d  Lights active/off: %d/%d  Boxed in: %d  Density: %s\n",
		m.Cars, m.OpenStreets, m.ClosedStreets, m.ActiveLights, m.DeactivatedLights, m.BoxedInCars, m.Density)

	fmt.Fprintln(w, "\nStopped cars:")
	for _, c := range snap.Cars {
		if c.State == traffic.Moving.String() || c.State == traffic.Turning.String() {
			continue
		}
		boxed := ""
		if c.BoxedIn {
			boxed = " BOXED IN"
		}
		fmt.Fprintf(w, "Car %d on %s: %s%s\n", c.ID, c.Street, c.State, boxed)
	}
}

// PrintState writes the current state of the simulation to the output file
func (s *SimulationCore) PrintState() {
	if s.outputFile == nil {
		return
	}
	var b strings.Builder
	writeState(&b, s.Snapshot())

	if _, err := s.outputFile.Seek(0, 0); err != nil {
		log.Printf("Error seeking in output file: %v", err)
		return
	}
	if err := s.outputFile.Truncate(0); err != nil {
		log.Printf("Error truncating output file: %v", err)
		return
	}
	if _, err := s.outputFile.WriteString(b.String()); err != nil {
		log.Printf("Error writing state: %v", err)
		return
	}
	if err := s.outputFile.Sync(); err != nil {
		log.Printf("Error syncing output file: %v", err)
	}
}

// Stop gracefully shuts down the simulation core
func (s *SimulationCore) Stop() {
	log.Println("Shutting down simulation core...")

	if s.outputFile != nil {
		log.Printf("Closing output file: %s", s.outputFile.Name())
		if err := s.outputFile.Close(); err != nil {
			log.Printf("Error closing output file: %v", err)
		}
	}
}
