package traffic

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Control methods return changed=false with a nil error for policy no-ops,
// such as closing a street that is already closed.

func (s *Simulation) lookupStreet(id string) (*Street, error) {
	h, ok := s.streetIndex[strings.ToUpper(strings.TrimSpace(id))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStreet, id)
	}
	return s.streets[h], nil
}

func (s *Simulation) lookupLight(intersection string, d Direction) (*Intersection, *TrafficLight, error) {
	h, ok := s.intersectionIndex[strings.ToUpper(strings.TrimSpace(intersection))]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownIntersection, intersection)
	}
	if d < Top || d > Right {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidDirection, d)
	}
	in := s.intersections[h]
	return in, in.Lights[d], nil
}

func (s *Simulation) closeStreet(st *Street) {
	st.Closed = true
	s.topologyEpoch++
	s.emit(Event{Type: EventStreetClosed, Subject: st.ID})
}

func (s *Simulation) openStreet(st *Street) {
	st.Closed = false
	st.reopenAt = 0
	s.topologyEpoch++
	s.emit(Event{Type: EventStreetOpened, Subject: st.ID})
}

// CloseStreet marks a street closed until it is reopened.
func (s *Simulation) CloseStreet(id string) (bool, error) {
	st, err := s.lookupStreet(id)
	if err != nil {
		return false, err
	}
	if st.Closed {
		return false, nil
	}
	s.closeStreet(st)
	s.log.WithField("street", st.ID).Info("Street closed")
	return true, nil
}

// CloseStreetFor closes a street and schedules it to reopen after d of
// simulated time. An already closed street is left as it is, keeping any
// existing schedule or lack of one.
func (s *Simulation) CloseStreetFor(id string, d time.Duration) (bool, error) {
	if d <= 0 {
		return s.CloseStreet(id)
	}
	st, err := s.lookupStreet(id)
	if err != nil {
		return false, err
	}
	if st.Closed {
		return false, nil
	}
	s.closeStreet(st)
	st.reopenAt = s.now + d
	s.log.WithFields(log.Fields{"street": st.ID, "duration": d}).Info("Street closed temporarily")
	return true, nil
}

// OpenStreet reopens a closed street.
func (s *Simulation) OpenStreet(id string) (bool, error) {
	st, err := s.lookupStreet(id)
	if err != nil {
		return false, err
	}
	if !st.Closed {
		return false, nil
	}
	s.openStreet(st)
	s.log.WithField("street", st.ID).Info("Street opened")
	return true, nil
}

// OpenAllStreets reopens every closed street and returns their ids.
func (s *Simulation) OpenAllStreets() []string {
	var opened []string
	for _, st := range s.streets {
		if st.Closed {
			s.openStreet(st)
			opened = append(opened, st.ID)
		}
	}
	if len(opened) > 0 {
		s.log.WithField("streets", opened).Info("All streets opened")
	}
	return opened
}

// ClosePeriferico closes every street of the outer ring and returns the ids
// that changed.
func (s *Simulation) ClosePeriferico() []string {
	var closed []string
	for _, st := range s.streets {
		if st.Perimeter && !st.Closed {
			s.closeStreet(st)
			closed = append(closed, st.ID)
		}
	}
	s.log.WithField("streets", len(closed)).Info("Perimeter closed")
	return closed
}

// OpenPeriferico reopens every street of the outer ring and returns the ids
// that changed.
func (s *Simulation) OpenPeriferico() []string {
	var opened []string
	for _, st := range s.streets {
		if st.Perimeter && st.Closed {
			s.openStreet(st)
			opened = append(opened, st.ID)
		}
	}
	s.log.WithField("streets", len(opened)).Info("Perimeter opened")
	return opened
}

// SetLightColor forces a light to c and stops its automatic cycling. A
// deactivated light is left untouched.
func (s *Simulation) SetLightColor(intersection string, d Direction, c Color) (bool, error) {
	if c != Red && c != Green {
		return false, fmt.Errorf("%w: %q", ErrInvalidColor, string(c))
	}
	in, l, err := s.lookupLight(intersection, d)
	if err != nil {
		return false, err
	}
	if !l.Active {
		return false, nil
	}
	if l.hasOverride && l.override == c {
		return false, nil
	}
	l.override, l.hasOverride = c, true
	s.emit(Event{Type: EventLightChanged, Subject: LightID(in.ID, d), Detail: string(c)})
	s.log.WithFields(log.Fields{"light": LightID(in.ID, d), "color": c}).Info("Light forced")
	return true, nil
}

// ResetLight drops a manual override so the light follows its clock again.
func (s *Simulation) ResetLight(intersection string, d Direction) (bool, error) {
	in, l, err := s.lookupLight(intersection, d)
	if err != nil {
		return false, err
	}
	if !l.hasOverride {
		return false, nil
	}
	s.rejoin(in, l)
	return true, nil
}

// DeactivateLight switches a light off and removes it from red-light checks.
func (s *Simulation) DeactivateLight(intersection string, d Direction) (bool, error) {
	in, l, err := s.lookupLight(intersection, d)
	if err != nil {
		return false, err
	}
	if !l.Active {
		return false, nil
	}
	l.Active = false
	l.hasOverride = false
	s.emit(Event{Type: EventLightChanged, Subject: LightID(in.ID, d), Detail: string(Off)})
	s.log.WithField("light", LightID(in.ID, d)).Info("Light deactivated")
	return true, nil
}

// ActivateLight switches a light back on. Lights facing a side with no
// street stay off.
func (s *Simulation) ActivateLight(intersection string, d Direction) (bool, error) {
	in, l, err := s.lookupLight(intersection, d)
	if err != nil {
		return false, err
	}
	if l.Active || in.Connected[d] == noStreet {
		return false, nil
	}
	l.Active = true
	s.rejoin(in, l)
	s.log.WithField("light", LightID(in.ID, d)).Info("Light activated")
	return true, nil
}

// rejoin clears any override and puts l back on the intersection clock. If
// no other light is cycling the clock restarts, giving vertical lights green.
func (s *Simulation) rejoin(in *Intersection, l *TrafficLight) {
	l.hasOverride = false
	if !in.anyCycling(l.Direction) {
		in.Clock.reset()
	}
	s.emit(Event{
		Type:    EventLightChanged,
		Subject: LightID(in.ID, l.Direction),
		Detail:  string(l.color(&in.Clock)),
	})
}

// SetLightInterval changes the cycle length of the light's intersection in
// whole seconds. All four lights share the clock, so the change applies to
// the pair on both axes. The light's manual override, if any, is dropped.
func (s *Simulation) SetLightInterval(intersection string, d Direction, seconds int) (bool, error) {
	if seconds <= 0 {
		return false, fmt.Errorf("%w: %ds", ErrInvalidInterval, seconds)
	}
	in, l, err := s.lookupLight(intersection, d)
	if err != nil {
		return false, err
	}
	interval := time.Duration(seconds) * time.Second
	changed := in.Clock.Interval != interval
	in.Clock.Interval = interval
	if in.Clock.Elapsed >= interval {
		in.Clock.Elapsed = 0
		in.Clock.flip()
	}
	if l.Active && l.hasOverride {
		s.rejoin(in, l)
		changed = true
	}
	if changed {
		s.log.WithFields(log.Fields{"intersection": in.ID, "interval": interval}).Info("Light interval changed")
	}
	return changed, nil
}

// SetDensity replaces the whole car population with perStreet cars on every
// street for the given level.
func (s *Simulation) SetDensity(d Density) (int, error) {
	if _, err := d.CarsPerStreet(); err != nil {
		return 0, err
	}
	s.populate(d)
	s.emit(Event{Type: EventPopulationReset, Subject: string(d), Detail: fmt.Sprintf("%d cars", len(s.cars))})
	s.log.WithFields(log.Fields{"density": d, "cars": len(s.cars)}).Info("Population reset")
	return len(s.cars), nil
}

// ParseDensity accepts low/medium/high in English or Spanish.
func ParseDensity(v string) (Density, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "low", "baja", "bajo":
		return DensityLow, nil
	case "medium", "media", "medio":
		return DensityMedium, nil
	case "high", "alta", "alto":
		return DensityHigh, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDensity, v)
}

// StopCar holds a car in place until ResumeCar is called.
func (s *Simulation) StopCar(id int) (bool, error) {
	c, err := s.lookupCar(id)
	if err != nil {
		return false, err
	}
	if c.manual {
		return false, nil
	}
	c.manual = true
	return true, nil
}

// ResumeCar releases a manual stop. The car rejoins arbitration on the next
// tick.
func (s *Simulation) ResumeCar(id int) (bool, error) {
	c, err := s.lookupCar(id)
	if err != nil {
		return false, err
	}
	if !c.manual {
		return false, nil
	}
	c.manual = false
	return true, nil
}

func (s *Simulation) lookupCar(id int) (*Car, error) {
	for _, c := range s.cars {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownCar, id)
}
