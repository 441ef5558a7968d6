package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"speakcity/shared"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// snapshotSource is the part of control.Client the relay polls.
type snapshotSource interface {
	Snapshot(ctx context.Context) (shared.Snapshot, error)
}

// FrameDTO is a lightweight JSON view sent to the browser
type FrameDTO struct {
	Tick    int64          `json:"tick"`
	SimMs   int64          `json:"sim_ms"`
	Width   float64        `json:"width"`
	Height  float64        `json:"height"`
	Streets []StreetDTO    `json:"streets"`
	Lights  []LightDTO     `json:"lights"`
	Cars    []CarDTO       `json:"cars"`
	Metrics shared.Metrics `json:"metrics"`
	At      time.Time      `json:"at"`
}

type StreetDTO struct {
	ID     string      `json:"id"`
	Rect   shared.Rect `json:"rect"`
	Closed bool        `json:"closed"`
}

type LightDTO struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

type CarDTO struct {
	ID       int     `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Stopped  bool    `json:"stopped"`
}

func toFrame(snap shared.Snapshot, at time.Time) FrameDTO {
	return FrameDTO{
		Tick:   snap.Tick,
		SimMs:  snap.SimMs,
		Width:  snap.Width,
		Height: snap.Height,
		Streets: lo.Map(snap.Streets, func(s shared.StreetState, _ int) StreetDTO {
			return StreetDTO{ID: s.ID, Rect: s.Rect, Closed: s.Closed}
		}),
		Lights: lo.FlatMap(snap.Intersections, func(in shared.IntersectionState, _ int) []LightDTO {
			return lo.Map(in.Lights, func(l shared.LightState, _ int) LightDTO {
				return LightDTO{ID: in.ID + " " + l.Direction, Color: l.Color}
			})
		}),
		Cars: lo.Map(snap.Cars, func(c shared.CarState, _ int) CarDTO {
			return CarDTO{ID: c.ID, X: c.X, Y: c.Y, Rotation: c.Rotation, Stopped: c.State != "moving" && c.State != "turning"}
		}),
		Metrics: snap.Metrics,
		At:      at,
	}
}

// newMux serves the SSE relay at /events and static assets at /.
func newMux(source snapshotSource, poll time.Duration, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		streamFrames(w, r, source, poll)
	})
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

func streamFrames(w http.ResponseWriter, r *http.Request, source snapshotSource, poll time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	// send one immediately
	lastTick := int64(-1)
	if err := sendFrame(r.Context(), source, w, &lastTick); err != nil {
		log.Printf("/events initial send error: %v", err)
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := sendFrame(r.Context(), source, w, &lastTick); err != nil {
				log.Printf("/events send error: %v", err)
				return
			}
			flusher.Flush()
		}
	}
}

// sendFrame writes one SSE event unless the simulation has not advanced
// since lastTick.
func sendFrame(ctx context.Context, source snapshotSource, w io.Writer, lastTick *int64) error {
	snap, err := source.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Tick == *lastTick {
		return nil
	}
	*lastTick = snap.Tick

	b, err := json.Marshal(toFrame(snap, time.Now()))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", snap.Tick, b)
	return err
}
