// Package traffic implements the city traffic engine: the street grid,
// synchronized traffic lights, autonomous cars and the per-tick right-of-way
// arbitration between them. A Simulation is not safe for concurrent use;
// callers serialize Step and the control methods themselves.
package traffic

import (
	"fmt"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// Simulation owns every street, intersection, light and car.
type Simulation struct {
	grid   GridConfig
	params Params
	rng    *rand.Rand
	log    *log.Entry

	onEvent EventHandler

	streets           []*Street
	streetIndex       map[string]StreetID
	intersections     []*Intersection
	intersectionIndex map[string]IntersectionID
	barriers          []barrier

	cars      []*Car
	nextCarID int
	density   Density

	now           time.Duration
	tick          int64
	topologyEpoch int
}

// New builds the grid described by opts and populates it at opts.Density.
// All randomness is drawn from rng.
func New(opts Options, rng *rand.Rand) (*Simulation, error) {
	if err := opts.Grid.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("traffic: nil random source")
	}
	if opts.Params.LightInterval <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInterval, opts.Params.LightInterval)
	}
	density := opts.Density
	if density == "" {
		density = DensityMedium
	}
	if _, err := density.CarsPerStreet(); err != nil {
		return nil, err
	}

	s := &Simulation{
		grid:   opts.Grid,
		params: opts.Params,
		rng:    rng,
		log:    log.WithField("component", "traffic"),
	}
	s.buildGrid(opts.ExcludedStreets, opts.ExcludedIntersections)
	s.populate(density)

	s.log.WithFields(log.Fields{
		"streets":       len(s.streets),
		"intersections": len(s.intersections),
		"cars":          len(s.cars),
	}).Info("Traffic simulation initialized")
	return s, nil
}

// SetLogger replaces the engine's log entry.
func (s *Simulation) SetLogger(entry *log.Entry) { s.log = entry }

// SetEventHandler installs h to receive engine events. Pass nil to detach.
func (s *Simulation) SetEventHandler(h EventHandler) { s.onEvent = h }

// Grid returns the layout the simulation was built from.
func (s *Simulation) Grid() GridConfig { return s.grid }

// Params returns the engine tunables.
func (s *Simulation) Params() Params { return s.params }

// Now returns the accumulated simulation time.
func (s *Simulation) Now() time.Duration { return s.now }

// TickCount returns the number of completed steps.
func (s *Simulation) TickCount() int64 { return s.tick }

// Step advances the world by dt: light clocks, timed reopenings, then
// arbitration for every car followed by motion and routing.
func (s *Simulation) Step(dt time.Duration) {
	if dt <= 0 {
		return
	}
	s.now += dt

	for _, in := range s.intersections {
		before := in.Clock.Phase
		in.Clock.advance(dt)
		if in.Clock.Phase != before {
			s.log.WithField("intersection", in.ID).Debug("Light phase flipped")
		}
	}
	s.expireClosures()

	p := s.params
	secs := dt.Seconds()

	verdicts := make([]verdict, len(s.cars))
	for i, c := range s.cars {
		if c.manual || c.turn != nil {
			continue
		}
		verdicts[i] = s.arbitrate(c, c.Speed*secs)
	}
	for i, c := range s.cars {
		if c.manual || c.turn != nil {
			continue
		}
		if c.boxedIn && c.boxedEpoch != s.topologyEpoch {
			s.release(c)
		}
		c.motion, c.cause = verdicts[i].state, verdicts[i].cause
	}

	for _, c := range s.cars {
		switch {
		case c.manual:
			continue
		case c.turn != nil:
			if c.stepTurn(dt, p.TurnDuration) {
				c.motion, c.cause = Moving, causeNone
			}
			continue
		case c.motion != Moving:
			continue
		}
		s.move(c, c.Speed*secs)
	}

	s.tick++
}

// move advances one moving car by step, handling world edges and
// intersection entry before the car actually moves.
func (s *Simulation) move(c *Car, step float64) {
	p := s.params
	if s.atBoundary(c, step) {
		if s.requestUTurn(c) {
			c.Next = c.Current
			return
		}
		c.motion = StoppedByTraffic
		return
	}
	if !c.hasChangedDirection {
		if in, i, ok := s.enteringIntersection(c, step); ok {
			next := s.exitFor(c, in, i)
			if next == c.Current {
				if !s.requestUTurn(c) {
					c.motion = StoppedByTraffic
					return
				}
				c.Next, c.hasChangedDirection, c.routingAt = next, true, i
				return
			}
			s.enterStreet(c, in, next)
			c.Next, c.hasChangedDirection, c.routingAt = next, true, i
		}
	}
	c.advance(step)
	if c.hasChangedDirection {
		in := s.intersections[c.routingAt]
		if !c.bounds(p).Intersects(in.Rect) && !c.sensor(p, 0).Intersects(in.Rect) {
			if c.Next != c.Current {
				c.consecutiveUTurns = 0
			}
			c.Current = c.Next
			c.hasChangedDirection = false
			c.routingAt = noIntersection
		}
	}
}

// atBoundary reports whether moving by step would carry the front bumper
// within the boundary margin of the world edge.
func (s *Simulation) atBoundary(c *Car, step float64) bool {
	b := s.grid.Bounds()
	m := s.params.BoundaryMargin
	f := c.front(s.params) + float64(c.Dir)*step
	switch {
	case c.Vertical && c.Dir > 0:
		return f > b.Y+b.H-m
	case c.Vertical:
		return f < b.Y+m
	case c.Dir > 0:
		return f > b.X+b.W-m
	default:
		return f < b.X+m
	}
}

// enteringIntersection finds the intersection ahead whose interior the
// car's sensor reaches this tick.
func (s *Simulation) enteringIntersection(c *Car, step float64) (*Intersection, IntersectionID, bool) {
	p := s.params
	sensor := c.sensor(p, step)
	for i, in := range s.intersections {
		if sensor.Intersects(in.Rect) && c.notPast(p, s.nearEdge(c, in)) {
			return in, IntersectionID(i), true
		}
	}
	return nil, noIntersection, false
}

// requestUTurn starts a reversal unless the car reversed too recently or
// too often without reaching another street. In the latter case the car is
// boxed in until the street topology changes.
func (s *Simulation) requestUTurn(c *Car) bool {
	p := s.params
	if c.hasUTurned && s.now-c.lastUTurnAt < p.UTurnCooldown {
		c.cause = causeUTurnCooldown
		return false
	}
	count := c.consecutiveUTurns + 1
	if count > p.MaxConsecutiveTurn {
		if !c.boxedIn {
			c.boxedIn = true
			c.boxedEpoch = s.topologyEpoch
			s.log.WithFields(log.Fields{
				"car":    c.ID,
				"street": s.streets[c.Current].ID,
			}).Warn("Car boxed in, holding until streets change")
			s.emit(Event{Type: EventCarBoxedIn, Subject: fmt.Sprintf("car %d", c.ID), CarID: c.ID})
		}
		c.cause = causeBoxedIn
		return false
	}
	c.consecutiveUTurns = count
	c.hasUTurned = true
	c.lastUTurnAt = s.now
	c.beginUTurn(s.grid.hw())
	s.emit(Event{Type: EventUTurn, Subject: fmt.Sprintf("car %d", c.ID), CarID: c.ID, Detail: s.streets[c.Current].ID})
	return true
}

func (s *Simulation) release(c *Car) {
	c.boxedIn = false
	c.hasUTurned = false
	c.consecutiveUTurns = 0
	s.emit(Event{Type: EventCarReleased, Subject: fmt.Sprintf("car %d", c.ID), CarID: c.ID})
}

// expireClosures reopens streets whose timed closure has run out.
func (s *Simulation) expireClosures() {
	for _, st := range s.streets {
		if st.Closed && st.reopenAt > 0 && s.now >= st.reopenAt {
			s.openStreet(st)
			s.log.WithField("street", st.ID).Info("Timed closure expired")
		}
	}
}

// populate discards every car and spawns perStreet cars on each street,
// evenly spaced with a random direction and speed.
func (s *Simulation) populate(d Density) {
	perStreet, _ := d.CarsPerStreet()
	p := s.params
	s.cars = make([]*Car, 0, perStreet*len(s.streets))
	s.density = d
	for h, st := range s.streets {
		length := st.Rect.W
		if st.Orientation == Vertical {
			length = st.Rect.H
		}
		for k := 0; k < perStreet; k++ {
			dir := 1
			if s.rng.Intn(2) == 0 {
				dir = -1
			}
			speed := p.MinSpeed + s.rng.Float64()*(p.MaxSpeed-p.MinSpeed)
			s.placeCar(StreetID(h), dir, length*float64(k+1)/float64(perStreet+1), speed)
		}
	}
}

// placeCar adds a car in the lane of street h for direction dir, along units
// from the street start.
func (s *Simulation) placeCar(h StreetID, dir int, along, speed float64) *Car {
	st := s.streets[h]
	lane := st.laneCoord(dir, s.grid.hw())
	c := &Car{
		ID:        s.nextCarID,
		Vertical:  st.Orientation == Vertical,
		Dir:       dir,
		Speed:     speed,
		Current:   h,
		Next:      h,
		routingAt: noIntersection,
		planned:   noStreet,
		plannedAt: noIntersection,
	}
	if c.Vertical {
		c.Pos = Point{X: lane, Y: st.Rect.Y + along}
	} else {
		c.Pos = Point{X: st.Rect.X + along, Y: lane}
	}
	c.Rotation = headingOf(c.Vertical, c.Dir)
	s.nextCarID++
	s.cars = append(s.cars, c)
	return c
}
