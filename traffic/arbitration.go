package traffic

import "math"

type verdict struct {
	state MotionState
	cause trafficCause
}

var resume = verdict{state: Moving}

// arbitrate decides whether c may move this tick. It reads only pre-move
// state so the outcome does not depend on the order cars are visited.
// Rules are evaluated in precedence order and the first hit wins.
func (s *Simulation) arbitrate(c *Car, step float64) verdict {
	if c.boxedIn && c.boxedEpoch == s.topologyEpoch {
		return verdict{state: StoppedByTraffic, cause: causeBoxedIn}
	}
	if s.redLightAhead(c, step) {
		return verdict{state: StoppedByLight}
	}
	if s.closureAhead(c, step) {
		return verdict{state: StoppedByClosure}
	}
	if cause := s.intersectionBlocked(c, step); cause != causeNone {
		return verdict{state: StoppedByTraffic, cause: cause}
	}
	if s.tooClose(c, step) {
		return verdict{state: StoppedByTraffic, cause: causeFollowing}
	}
	return resume
}

// redLightAhead checks the light governing the car's approach at every
// intersection whose stop zone the car occupies or will reach this tick.
func (s *Simulation) redLightAhead(c *Car, step float64) bool {
	p := s.params
	region := c.bounds(p).Union(c.sensor(p, step))
	want := approachFor(c.Vertical, c.Dir)
	for _, in := range s.intersections {
		l := in.Lights[want]
		if l.color(&in.Clock) != Red {
			continue
		}
		if !region.Intersects(in.stopZone(want, p.StopMargin)) {
			continue
		}
		if c.notPast(p, s.nearEdge(c, in)) {
			return true
		}
	}
	return false
}

// closureAhead checks closed streets and excluded barriers on the car's axis.
func (s *Simulation) closureAhead(c *Car, step float64) bool {
	p := s.params
	sensor := c.sensor(p, step)
	axis := Horizontal
	if c.Vertical {
		axis = Vertical
	}
	blocked := func(r Rect) bool {
		if !sensor.Intersects(entryZone(r, axis, c.Dir, p.StopMargin)) {
			return false
		}
		return c.notPast(p, entryEdge(r, axis, c.Dir))
	}
	for _, st := range s.streets {
		if st.Closed && st.Orientation == axis && blocked(st.Rect) {
			return true
		}
	}
	for _, b := range s.barriers {
		if b.orientation == axis && blocked(b.rect) {
			return true
		}
	}
	return false
}

// entryEdge is the axis coordinate where a car moving in dir enters r.
func entryEdge(r Rect, o Orientation, dir int) float64 {
	switch {
	case o == Horizontal && dir > 0:
		return r.X
	case o == Horizontal:
		return r.X + r.W
	case dir > 0:
		return r.Y
	default:
		return r.Y + r.H
	}
}

// approaching reports whether c is outside in, heading into it, and within
// its buffer.
func (s *Simulation) approaching(c *Car, in *Intersection, reach float64) bool {
	p := s.params
	if c.turn != nil || c.bounds(p).Intersects(in.Rect) {
		return false
	}
	if !c.sensor(p, reach).Intersects(in.Rect.Grow(p.IntersectionBuffer)) {
		return false
	}
	return c.notPast(p, s.nearEdge(c, in))
}

// queued reports whether c competes for an intersection: still rolling
// towards it or held only by the crossing itself.
func queued(c *Car) bool {
	switch c.Motion() {
	case Moving:
		return true
	case StoppedByTraffic:
		return c.cause == causeOccupied || c.cause == causeYield
	}
	return false
}

// intersectionBlocked applies the occupancy rule. A car already inside has
// right of way. An approaching car waits while any other car is inside,
// whatever that car's own state, and while its exit lane has no room for it.
// It also yields to a lower-id car queued at the same buffer from a
// different approach.
func (s *Simulation) intersectionBlocked(c *Car, step float64) trafficCause {
	p := s.params
	mine := approachFor(c.Vertical, c.Dir)
	for i, in := range s.intersections {
		if !s.approaching(c, in, step) {
			continue
		}
		for _, o := range s.cars {
			if o != c && o.bounds(p).Intersects(in.Rect) {
				return causeOccupied
			}
		}
		if !s.exitClear(c, in, IntersectionID(i)) {
			return causeExitBlocked
		}
		for _, o := range s.cars {
			if o.ID >= c.ID || approachFor(o.Vertical, o.Dir) == mine {
				continue
			}
			if queued(o) && s.approaching(o, in, 0) {
				return causeYield
			}
		}
	}
	return causeNone
}

// tooClose applies car following against the nearest car ahead in the same
// lane.
func (s *Simulation) tooClose(c *Car, step float64) bool {
	p := s.params
	gap := math.Inf(1)
	var leader *Car
	for _, o := range s.cars {
		if o == c || o.Vertical != c.Vertical || o.Dir != c.Dir {
			continue
		}
		if math.Abs(c.cross(o.Pos)-c.cross(c.Pos)) >= p.CarWidth {
			continue
		}
		if float64(c.Dir)*(c.axis(o.Pos)-c.axis(c.Pos)) <= 0 {
			continue
		}
		if g := float64(c.Dir) * (o.back(p) - c.front(p)); g < gap {
			gap, leader = g, o
		}
	}
	if leader == nil {
		return false
	}
	if gap < p.MinFollowingGap+step {
		return true
	}
	halted := leader.stopped() || leader.turn != nil
	return halted && gap < p.QueueGap+step
}
