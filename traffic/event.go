package traffic

// EventType defines the type of engine event
type EventType int

const (
	EventStreetClosed EventType = iota
	EventStreetOpened
	EventLightChanged
	EventUTurn
	EventCarBoxedIn
	EventCarReleased
	EventPopulationReset
)

func (t EventType) String() string {
	switch t {
	case EventStreetClosed:
		return "street_closed"
	case EventStreetOpened:
		return "street_opened"
	case EventLightChanged:
		return "light_changed"
	case EventUTurn:
		return "u_turn"
	case EventCarBoxedIn:
		return "car_boxed_in"
	case EventCarReleased:
		return "car_released"
	case EventPopulationReset:
		return "population_reset"
	}
	return "unknown"
}

// Event is emitted synchronously from Step or a Control API call. Subject is
// the street, light or car the event is about.
type Event struct {
	Type    EventType
	Tick    int64
	Subject string
	Detail  string
	CarID   int
}

// EventHandler receives engine events. It runs under the caller's lock and
// must not call back into the Simulation.
type EventHandler func(Event)

func (s *Simulation) emit(e Event) {
	if s.onEvent == nil {
		return
	}
	e.Tick = s.tick
	s.onEvent(e)
}
