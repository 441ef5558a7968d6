package traffic

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the side of an intersection a light faces.
type Direction int

const (
	Top Direction = iota
	Bottom
	Left
	Right
)

// Directions lists every light direction in display order.
var Directions = [4]Direction{Top, Bottom, Left, Right}

func (d Direction) String() string {
	switch d {
	case Top:
		return "TOP"
	case Bottom:
		return "BOTTOM"
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Axis returns the orientation of traffic governed by lights facing d.
func (d Direction) Axis() Orientation {
	if d == Top || d == Bottom {
		return Vertical
	}
	return Horizontal
}

// ParseDirection accepts TOP, BOTTOM, LEFT, RIGHT in any case.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TOP":
		return Top, nil
	case "BOTTOM":
		return Bottom, nil
	case "LEFT":
		return Left, nil
	case "RIGHT":
		return Right, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// approachFor returns the light direction governing a car that moves
// along vertical with sign dir.
func approachFor(vertical bool, dir int) Direction {
	switch {
	case vertical && dir > 0:
		return Top
	case vertical:
		return Bottom
	case dir > 0:
		return Left
	default:
		return Right
	}
}

// Color is the displayed state of a light.
type Color string

const (
	Green Color = "green"
	Red   Color = "red"
	Off   Color = "off"
)

// ParseColor accepts red/green in English or Spanish.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "rojo":
		return Red, nil
	case "green", "verde":
		return Green, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

// Phase is the state of an intersection's shared light clock.
type Phase int

const (
	VerticalGreen Phase = iota
	HorizontalGreen
)

// PhaseClock drives all automatically cycling lights of one intersection so
// opposite axes can never both be green.
type PhaseClock struct {
	Phase    Phase
	Elapsed  time.Duration
	Interval time.Duration
}

func (c *PhaseClock) advance(dt time.Duration) {
	if c.Interval <= 0 {
		return
	}
	c.Elapsed += dt
	for c.Elapsed >= c.Interval {
		c.Elapsed -= c.Interval
		c.flip()
	}
}

func (c *PhaseClock) flip() {
	if c.Phase == VerticalGreen {
		c.Phase = HorizontalGreen
	} else {
		c.Phase = VerticalGreen
	}
}

func (c *PhaseClock) reset() {
	c.Phase = VerticalGreen
	c.Elapsed = 0
}

func (c *PhaseClock) colorFor(axis Orientation) Color {
	if (axis == Vertical) == (c.Phase == VerticalGreen) {
		return Green
	}
	return Red
}

// TrafficLight faces one side of an intersection.
type TrafficLight struct {
	Intersection IntersectionID
	Direction    Direction
	Active       bool

	override    Color
	hasOverride bool
}

// Cycling reports whether the light follows its intersection clock.
func (l *TrafficLight) Cycling() bool { return l.Active && !l.hasOverride }

// color resolves the light against its intersection clock.
func (l *TrafficLight) color(clock *PhaseClock) Color {
	switch {
	case !l.Active:
		return Off
	case l.hasOverride:
		return l.override
	}
	return clock.colorFor(l.Direction.Axis())
}

// LightID renders the "I22 TOP" form used by commands.
func LightID(intersection string, d Direction) string {
	return intersection + " " + d.String()
}

// ParseLightID splits "I22 TOP" into its intersection id and direction.
func ParseLightID(s string) (string, Direction, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", 0, fmt.Errorf("%w: %q", ErrUnknownLight, s)
	}
	d, err := ParseDirection(fields[1])
	if err != nil {
		return "", 0, err
	}
	return strings.ToUpper(fields[0]), d, nil
}
