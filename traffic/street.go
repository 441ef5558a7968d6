package traffic

import "time"

// StreetID is a handle into Simulation.streets.
type StreetID int

const noStreet StreetID = -1

// Orientation is the travel axis of a street.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Street is a two-lane segment between two intersections.
type Street struct {
	ID          string
	Orientation Orientation
	Rect        Rect
	Closed      bool
	Perimeter   bool

	// reopenAt is the simulation time of a scheduled reopen, zero when none.
	reopenAt time.Duration
}

// laneCoord returns the cross-axis coordinate of the lane used by cars
// travelling in dir along the street.
func (s *Street) laneCoord(dir int, hw float64) float64 {
	base := s.Rect.Y
	if s.Orientation == Vertical {
		base = s.Rect.X
	}
	if dir > 0 {
		return base + hw/2
	}
	return base + hw/2 + hw
}

// entryZone is the strip just outside the street's entry edge for a car
// travelling in dir. Cars must not enter it while the street is closed.
func entryZone(r Rect, o Orientation, dir int, margin float64) Rect {
	switch {
	case o == Horizontal && dir > 0:
		return Rect{X: r.X - margin, Y: r.Y, W: margin, H: r.H}
	case o == Horizontal:
		return Rect{X: r.X + r.W, Y: r.Y, W: margin, H: r.H}
	case dir > 0:
		return Rect{X: r.X, Y: r.Y - margin, W: r.W, H: margin}
	default:
		return Rect{X: r.X, Y: r.Y + r.H, W: r.W, H: margin}
	}
}

// barrier is the geometry of a street id that was excluded at build time.
type barrier struct {
	id          string
	orientation Orientation
	rect        Rect
}
