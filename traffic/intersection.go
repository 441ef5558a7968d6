package traffic

// IntersectionID is a handle into Simulation.intersections.
type IntersectionID int

// Intersection is a square crossing with up to four connected streets and
// four lights sharing one phase clock.
type Intersection struct {
	ID        string
	Row, Col  int
	Rect      Rect
	Connected [4]StreetID // indexed by Direction, noStreet when absent
	Lights    [4]*TrafficLight
	Clock     PhaseClock
}

// connections returns the connected street handles in direction order.
func (in *Intersection) connections() []StreetID {
	out := make([]StreetID, 0, 4)
	for _, d := range Directions {
		if in.Connected[d] != noStreet {
			out = append(out, in.Connected[d])
		}
	}
	return out
}

// anyCycling reports whether a light other than skip follows the clock.
func (in *Intersection) anyCycling(skip Direction) bool {
	for _, d := range Directions {
		if d != skip && in.Lights[d].Cycling() {
			return true
		}
	}
	return false
}

// stopZone is the strip in front of the side d faces.
func (in *Intersection) stopZone(d Direction, margin float64) Rect {
	r := in.Rect
	switch d {
	case Top:
		return Rect{X: r.X, Y: r.Y - margin, W: r.W, H: margin}
	case Bottom:
		return Rect{X: r.X, Y: r.Y + r.H, W: r.W, H: margin}
	case Left:
		return Rect{X: r.X - margin, Y: r.Y, W: margin, H: r.H}
	default:
		return Rect{X: r.X + r.W, Y: r.Y, W: margin, H: r.H}
	}
}
