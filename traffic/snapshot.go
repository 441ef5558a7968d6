package traffic

import (
	"speakcity/shared"

	"github.com/samber/lo"
)

func toRect(r Rect) shared.Rect {
	return shared.Rect{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

func (p Phase) String() string {
	if p == HorizontalGreen {
		return "horizontal_green"
	}
	return "vertical_green"
}

// Snapshot copies the visible state of the current frame. The result shares
// no memory with the simulation.
func (s *Simulation) Snapshot() shared.Snapshot {
	b := s.grid.Bounds()
	snap := shared.Snapshot{
		Tick:    s.tick,
		SimMs:   s.now.Milliseconds(),
		Width:   b.W,
		Height:  b.H,
		Streets: lo.Map(s.streets, func(st *Street, _ int) shared.StreetState {
			return shared.StreetState{
				ID:          st.ID,
				Orientation: st.Orientation.String(),
				Rect:        toRect(st.Rect),
				Closed:      st.Closed,
				Perimeter:   st.Perimeter,
			}
		}),
		Intersections: lo.Map(s.intersections, func(in *Intersection, _ int) shared.IntersectionState {
			lights := make([]shared.LightState, 0, len(in.Lights))
			for _, l := range in.Lights {
				lights = append(lights, shared.LightState{
					Direction: l.Direction.String(),
					Color:     string(l.color(&in.Clock)),
					Active:    l.Active,
					Override:  l.hasOverride,
				})
			}
			return shared.IntersectionState{
				ID:     in.ID,
				Rect:   toRect(in.Rect),
				Phase:  in.Clock.Phase.String(),
				Lights: lights,
			}
		}),
		Cars: lo.Map(s.cars, func(c *Car, _ int) shared.CarState {
			return shared.CarState{
				ID:             c.ID,
				X:              c.Pos.X,
				Y:              c.Pos.Y,
				Rotation:       c.Rotation,
				State:          c.Motion().String(),
				TrafficStopped: c.TrafficStopped(),
				BoxedIn:        c.boxedIn,
				Street:         s.streets[c.Current].ID,
			}
		}),
	}
	snap.Metrics = s.Metrics()
	return snap
}

// Metrics returns the dashboard counters for the current frame.
func (s *Simulation) Metrics() shared.Metrics {
	closed := lo.CountBy(s.streets, func(st *Street) bool { return st.Closed })
	m := shared.Metrics{
		Tick:          s.tick,
		Cars:          len(s.cars),
		ClosedStreets: closed,
		OpenStreets:   len(s.streets) - closed,
		BoxedInCars:   lo.CountBy(s.cars, func(c *Car) bool { return c.boxedIn }),
		Density:       string(s.density),
	}
	for _, in := range s.intersections {
		for _, l := range in.Lights {
			if l.Active {
				m.ActiveLights++
			} else {
				m.DeactivatedLights++
			}
		}
	}
	return m
}

// ActiveLightIDs lists every active light in "I22 TOP" form.
func (s *Simulation) ActiveLightIDs() []string {
	return s.lightIDs(true)
}

// DeactivatedLightIDs lists every switched-off light in "I22 TOP" form.
func (s *Simulation) DeactivatedLightIDs() []string {
	return s.lightIDs(false)
}

func (s *Simulation) lightIDs(active bool) []string {
	var ids []string
	for _, in := range s.intersections {
		for _, l := range in.Lights {
			if l.Active == active {
				ids = append(ids, LightID(in.ID, l.Direction))
			}
		}
	}
	return ids
}

// ClosedStreetIDs lists the currently closed streets.
func (s *Simulation) ClosedStreetIDs() []string {
	return lo.FilterMap(s.streets, func(st *Street, _ int) (string, bool) {
		return st.ID, st.Closed
	})
}

// LightColor returns the displayed color of one light.
func (s *Simulation) LightColor(intersection string, d Direction) (Color, error) {
	in, l, err := s.lookupLight(intersection, d)
	if err != nil {
		return "", err
	}
	return l.color(&in.Clock), nil
}

// StreetClosed reports whether street id is closed.
func (s *Simulation) StreetClosed(id string) (bool, error) {
	st, err := s.lookupStreet(id)
	if err != nil {
		return false, err
	}
	return st.Closed, nil
}
