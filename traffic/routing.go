package traffic

import (
	"github.com/samber/lo"
)

const noIntersection IntersectionID = -1

// routingCandidates lists the streets a car arriving from current may take
// at in: connected, open, and not the street it came from.
func (s *Simulation) routingCandidates(in *Intersection, current StreetID) []StreetID {
	return lo.Filter(in.connections(), func(h StreetID, _ int) bool {
		return h != current && !s.streets[h].Closed
	})
}

// chooseNext picks the next street uniformly among the candidates. With no
// candidate the car stays on its current street, which forces a U-turn.
func (s *Simulation) chooseNext(in *Intersection, current StreetID) StreetID {
	candidates := s.routingCandidates(in, current)
	if len(candidates) == 0 {
		return current
	}
	return candidates[s.rng.Intn(len(candidates))]
}

// exitFor returns the street a car entering in at handle i leaves through:
// its planned exit while that is still open, otherwise a fresh choice.
func (s *Simulation) exitFor(c *Car, in *Intersection, i IntersectionID) StreetID {
	planned, at := c.planned, c.plannedAt
	c.planned, c.plannedAt = noStreet, noIntersection
	if at == i && planned != c.Current && !s.streets[planned].Closed {
		return planned
	}
	return s.chooseNext(in, c.Current)
}

// exitClear plans the car's exit from in and reports whether the exit lane
// has room for it. A planned exit that has filled up is swapped for another
// open street with room, if there is one. Reversing at a dead end needs no
// room.
func (s *Simulation) exitClear(c *Car, in *Intersection, i IntersectionID) bool {
	if c.hasChangedDirection && c.routingAt == i {
		return c.Next == c.Current || s.exitRoom(in, c.Next, c)
	}
	if c.plannedAt != i || s.streets[c.planned].Closed {
		c.planned, c.plannedAt = s.chooseNext(in, c.Current), i
	}
	if c.planned == c.Current || s.exitRoom(in, c.planned, c) {
		return true
	}
	free := lo.Filter(s.routingCandidates(in, c.Current), func(h StreetID, _ int) bool {
		return s.exitRoom(in, h, c)
	})
	if len(free) == 0 {
		return false
	}
	c.planned = free[s.rng.Intn(len(free))]
	return true
}

// exitRoom reports whether the lane leaving in through street h is empty for
// a whole car plus the gap kept behind a halted leader.
func (s *Simulation) exitRoom(in *Intersection, h StreetID, self *Car) bool {
	side, ok := sideOf(in, h)
	if !ok {
		return false
	}
	p := s.params
	room := p.CarLength + p.QueueGap + p.MinFollowingGap
	lane := s.streets[h].laneCoord(exitDir(side), s.grid.hw()) - p.CarWidth/2
	r := in.Rect
	var zone Rect
	switch side {
	case Top:
		zone = Rect{X: lane, Y: r.Y - room, W: p.CarWidth, H: room}
	case Bottom:
		zone = Rect{X: lane, Y: r.Y + r.H, W: p.CarWidth, H: room}
	case Left:
		zone = Rect{X: r.X - room, Y: lane, W: room, H: p.CarWidth}
	default:
		zone = Rect{X: r.X + r.W, Y: lane, W: room, H: p.CarWidth}
	}
	for _, o := range s.cars {
		if o != self && o.bounds(p).Intersects(zone) {
			return false
		}
	}
	return true
}

// exitDir is the travel sign of a car leaving an intersection through side.
// Vertical streets below and horizontal streets to the right are travelled
// with +1.
func exitDir(side Direction) int {
	if side == Top || side == Left {
		return -1
	}
	return 1
}

// sideOf returns the side of in that street h is connected to.
func sideOf(in *Intersection, h StreetID) (Direction, bool) {
	for _, d := range Directions {
		if in.Connected[d] == h {
			return d, true
		}
	}
	return 0, false
}

// enterStreet re-derives axis, direction and lane for a car leaving in
// through street h.
func (s *Simulation) enterStreet(c *Car, in *Intersection, h StreetID) {
	side, ok := sideOf(in, h)
	if !ok {
		return
	}
	st := s.streets[h]
	dir := exitDir(side)
	// Turning snaps the cross-axis coordinate onto the new lane; going
	// straight keeps the lane unless the direction changed.
	lane := st.laneCoord(dir, s.grid.hw())
	if st.Orientation == Vertical {
		c.Pos.X = lane
	} else {
		c.Pos.Y = lane
	}
	c.Vertical = st.Orientation == Vertical
	c.Dir = dir
	c.Rotation = headingOf(c.Vertical, c.Dir)
}

// nearEdge is the axis coordinate of the first edge of in the car meets.
func (s *Simulation) nearEdge(c *Car, in *Intersection) float64 {
	if c.Vertical {
		if c.Dir > 0 {
			return in.Rect.Y
		}
		return in.Rect.Y + in.Rect.H
	}
	if c.Dir > 0 {
		return in.Rect.X
	}
	return in.Rect.X + in.Rect.W
}
