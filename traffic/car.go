package traffic

import (
	"math"
	"time"
)

// MotionState is the tagged state of a car. Exactly one applies at a time.
type MotionState int

const (
	Moving MotionState = iota
	StoppedManual
	StoppedByLight
	StoppedByClosure
	StoppedByTraffic
	Turning
)

func (m MotionState) String() string {
	switch m {
	case Moving:
		return "moving"
	case StoppedManual:
		return "stopped_manual"
	case StoppedByLight:
		return "stopped_light"
	case StoppedByClosure:
		return "stopped_closure"
	case StoppedByTraffic:
		return "stopped_traffic"
	case Turning:
		return "turning"
	}
	return "unknown"
}

// trafficCause refines StoppedByTraffic for the intersection tiebreak.
type trafficCause int

const (
	causeNone trafficCause = iota
	causeOccupied
	causeYield
	causeFollowing
	causeBoxedIn
	causeUTurnCooldown
	causeExitBlocked
)

// uTurn is an in-progress reversal along a quadratic curve.
type uTurn struct {
	path    Bezier
	elapsed time.Duration
}

// Car is an autonomous vehicle. Streets are referenced by handle; other cars
// are never referenced and are found by scanning each tick.
type Car struct {
	ID       int
	Pos      Point // center
	Vertical bool
	Dir      int // +1 right/down, -1 left/up
	Speed    float64
	Rotation float64

	Current StreetID
	Next    StreetID

	motion MotionState
	cause  trafficCause
	manual bool
	turn   *uTurn

	hasChangedDirection bool
	routingAt           IntersectionID

	// planned is the exit picked on reaching the buffer of plannedAt.
	planned   StreetID
	plannedAt IntersectionID

	hasUTurned  bool
	lastUTurnAt time.Duration
	// consecutiveUTurns counts reversals since the car last committed to a
	// different street.
	consecutiveUTurns int
	boxedIn           bool
	boxedEpoch        int
}

// Motion returns the car's current motion state.
func (c *Car) Motion() MotionState {
	if c.manual {
		return StoppedManual
	}
	if c.turn != nil {
		return Turning
	}
	return c.motion
}

// BoxedIn reports whether the car is held because it cannot legally reverse.
func (c *Car) BoxedIn() bool { return c.boxedIn }

// TrafficStopped reports whether the car is held by the traffic arbitration.
func (c *Car) TrafficStopped() bool {
	return c.Motion() == StoppedByTraffic
}

func (c *Car) stopped() bool {
	m := c.Motion()
	return m != Moving && m != Turning
}

func (c *Car) forward() Point {
	if c.Vertical {
		return Point{Y: float64(c.Dir)}
	}
	return Point{X: float64(c.Dir)}
}

// side points from the car's lane towards the opposite-direction lane.
func (c *Car) side() Point {
	if c.Vertical {
		return Point{X: float64(c.Dir)}
	}
	return Point{Y: float64(c.Dir)}
}

func headingOf(vertical bool, dir int) float64 {
	switch {
	case vertical && dir > 0:
		return math.Pi / 2
	case vertical:
		return -math.Pi / 2
	case dir > 0:
		return 0
	default:
		return math.Pi
	}
}

func (c *Car) bounds(p Params) Rect {
	if c.Vertical {
		return Rect{X: c.Pos.X - p.CarWidth/2, Y: c.Pos.Y - p.CarLength/2, W: p.CarWidth, H: p.CarLength}
	}
	return Rect{X: c.Pos.X - p.CarLength/2, Y: c.Pos.Y - p.CarWidth/2, W: p.CarLength, H: p.CarWidth}
}

// front returns the axis coordinate of the front bumper.
func (c *Car) front(p Params) float64 {
	return c.axis(c.Pos) + float64(c.Dir)*p.CarLength/2
}

// back returns the axis coordinate of the rear bumper.
func (c *Car) back(p Params) float64 {
	return c.axis(c.Pos) - float64(c.Dir)*p.CarLength/2
}

func (c *Car) axis(pt Point) float64 {
	if c.Vertical {
		return pt.Y
	}
	return pt.X
}

func (c *Car) cross(pt Point) float64 {
	if c.Vertical {
		return pt.X
	}
	return pt.Y
}

// sensor is a rectangle ahead of the front bumper, at least a quarter car
// long and covering reach.
func (c *Car) sensor(p Params, reach float64) Rect {
	depth := math.Max(p.CarLength/4, reach)
	f := c.front(p)
	start := f
	if c.Dir < 0 {
		start = f - depth
	}
	if c.Vertical {
		return Rect{X: c.Pos.X - p.CarWidth/2, Y: start, W: p.CarWidth, H: depth}
	}
	return Rect{X: start, Y: c.Pos.Y - p.CarWidth/2, W: depth, H: p.CarWidth}
}

// notPast reports whether the front bumper has not crossed edge, an axis
// coordinate ahead of the car.
func (c *Car) notPast(p Params, edge float64) bool {
	return float64(c.Dir)*(edge-c.front(p)) >= 0
}

// advance moves the car along its axis by dist.
func (c *Car) advance(dist float64) {
	c.Pos = c.Pos.Add(c.forward().Scale(dist))
}

// beginUTurn builds the reversal curve into the opposite lane.
func (c *Car) beginUTurn(hw float64) {
	fwd := c.forward()
	side := c.side()
	reach := hw * 4 / 3
	p1 := c.Pos.Add(fwd.Scale(reach)).Add(side.Scale(hw * 8 / 3))
	p2 := c.Pos.Add(fwd.Scale(-reach)).Add(side.Scale(hw))
	c.turn = &uTurn{path: Bezier{P0: c.Pos, P1: p1, P2: p2}}
}

// stepTurn progresses an active U-turn. It returns true once the car has
// settled in the opposite lane.
func (c *Car) stepTurn(dt, duration time.Duration) bool {
	c.turn.elapsed += dt
	t := float64(c.turn.elapsed) / float64(duration)
	c.Pos = c.turn.path.At(t)
	c.Rotation = c.turn.path.Heading(t)
	if t < 1 {
		return false
	}
	c.Pos = c.turn.path.P2
	c.Dir = -c.Dir
	c.Rotation = headingOf(c.Vertical, c.Dir)
	c.turn = nil
	return true
}
