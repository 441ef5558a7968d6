package traffic

import (
	"io"
	"math/rand"
	"os"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

const frame = 16 * time.Millisecond

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// openOptions is the stock grid with nothing excluded and the smallest
// population.
func openOptions() Options {
	opts := DefaultOptions()
	opts.ExcludedStreets = nil
	opts.ExcludedIntersections = nil
	opts.Density = DensityLow
	return opts
}

// newEmptySim builds a simulation from opts and removes every car so tests
// can place their own.
func newEmptySim(t *testing.T, opts Options) *Simulation {
	t.Helper()
	s, err := New(opts, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.cars = nil
	return s
}

func spawn(t *testing.T, s *Simulation, street string, dir int, along, speed float64) *Car {
	t.Helper()
	h, ok := s.streetIndex[street]
	if !ok {
		t.Fatalf("street %s not built", street)
	}
	return s.placeCar(h, dir, along, speed)
}

func intersection(t *testing.T, s *Simulation, id string) *Intersection {
	t.Helper()
	h, ok := s.intersectionIndex[id]
	if !ok {
		t.Fatalf("intersection %s not built", id)
	}
	return s.intersections[h]
}

// mustChange returns a checker for a (changed, err) pair so a control call
// can be passed straight through: mustChange(t)(s.CloseStreet("H10")).
func mustChange(t *testing.T) func(bool, error) {
	return func(changed bool, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !changed {
			t.Fatalf("Expected a state change")
		}
	}
}

func deactivateAll(t *testing.T, s *Simulation, id string) {
	t.Helper()
	for _, d := range Directions {
		if _, err := s.DeactivateLight(id, d); err != nil {
			t.Fatalf("DeactivateLight(%s, %v): %v", id, d, err)
		}
	}
}
