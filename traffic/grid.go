package traffic

import (
	"github.com/samber/lo"
)

// buildGrid constructs streets, intersections and lights from the layout.
// Excluded streets keep their geometry as barriers; excluded intersections
// are not built at all.
func (s *Simulation) buildGrid(excludedStreets, excludedIntersections []string) {
	g := s.grid
	skipStreet := lo.SliceToMap(excludedStreets, func(id string) (string, bool) { return id, true })
	skipInter := lo.SliceToMap(excludedIntersections, func(id string) (string, bool) { return id, true })
	perimeter := lo.SliceToMap(g.PerimeterStreetIDs(), func(id string) (string, bool) { return id, true })

	s.streetIndex = make(map[string]StreetID)
	s.intersectionIndex = make(map[string]IntersectionID)

	addStreet := func(id string, o Orientation, r Rect) {
		if skipStreet[id] {
			s.barriers = append(s.barriers, barrier{id: id, orientation: o, rect: r})
			return
		}
		s.streetIndex[id] = StreetID(len(s.streets))
		s.streets = append(s.streets, &Street{ID: id, Orientation: o, Rect: r, Perimeter: perimeter[id]})
	}

	for r := 0; r <= g.HortBlocks; r++ {
		for c := 0; c < g.VertBlocks; c++ {
			addStreet(HorizontalStreetID(r, c), Horizontal, g.HorizontalStreetRect(r, c))
		}
	}
	for c := 0; c <= g.VertBlocks; c++ {
		for r := 0; r < g.HortBlocks; r++ {
			addStreet(VerticalStreetID(c, r), Vertical, g.VerticalStreetRect(c, r))
		}
	}

	lookup := func(id string) StreetID {
		if h, ok := s.streetIndex[id]; ok {
			return h
		}
		return noStreet
	}

	for r := 0; r <= g.HortBlocks; r++ {
		for c := 0; c <= g.VertBlocks; c++ {
			id := IntersectionName(r, c)
			if skipInter[id] {
				continue
			}
			handle := IntersectionID(len(s.intersections))
			in := &Intersection{
				ID:    id,
				Row:   r,
				Col:   c,
				Rect:  g.IntersectionRect(r, c),
				Clock: PhaseClock{Phase: VerticalGreen, Interval: s.params.LightInterval},
			}
			// Out-of-range ids are simply absent from the index.
			in.Connected[Top] = lookup(VerticalStreetID(c, r-1))
			in.Connected[Bottom] = lookup(VerticalStreetID(c, r))
			in.Connected[Left] = lookup(HorizontalStreetID(r, c-1))
			in.Connected[Right] = lookup(HorizontalStreetID(r, c))
			if r == 0 {
				in.Connected[Top] = noStreet
			}
			if r == g.HortBlocks {
				in.Connected[Bottom] = noStreet
			}
			if c == 0 {
				in.Connected[Left] = noStreet
			}
			if c == g.VertBlocks {
				in.Connected[Right] = noStreet
			}
			for _, d := range Directions {
				in.Lights[d] = &TrafficLight{
					Intersection: handle,
					Direction:    d,
					Active:       in.Connected[d] != noStreet,
				}
			}
			s.intersectionIndex[id] = handle
			s.intersections = append(s.intersections, in)
		}
	}
}
