package traffic

import (
	"fmt"
	"time"
)

// GridConfig describes the city layout. It is immutable once a Simulation is built.
type GridConfig struct {
	CanvasWidth      int `json:"canvas_width"`
	CanvasHeight     int `json:"canvas_height"`
	HortBlocks       int `json:"hort_blocks"`
	VertBlocks       int `json:"vert_blocks"`
	HalfWidthStreets int `json:"half_width_streets"`
}

// DefaultGridConfig returns the stock 4x4 city.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		CanvasWidth:      700,
		CanvasHeight:     500,
		HortBlocks:       4,
		VertBlocks:       4,
		HalfWidthStreets: 15,
	}
}

// Validate checks that the layout produces non-degenerate streets.
func (g GridConfig) Validate() error {
	if g.HortBlocks < 1 || g.VertBlocks < 1 {
		return fmt.Errorf("grid needs at least one block per axis, got %dx%d", g.HortBlocks, g.VertBlocks)
	}
	// Ids concatenate row and column digits.
	if g.HortBlocks > 9 || g.VertBlocks > 9 {
		return fmt.Errorf("grid limited to 9x9 blocks, got %dx%d", g.HortBlocks, g.VertBlocks)
	}
	if g.HalfWidthStreets <= 0 {
		return fmt.Errorf("half street width must be positive, got %d", g.HalfWidthStreets)
	}
	if g.BlockWidth() <= 2*g.HalfWidthStreets || g.BlockHeight() <= 2*g.HalfWidthStreets {
		return fmt.Errorf("blocks %dx%d too small for street width %d",
			g.BlockWidth(), g.BlockHeight(), 2*g.HalfWidthStreets)
	}
	return nil
}

// BlockWidth is the horizontal pitch between vertical streets.
func (g GridConfig) BlockWidth() int { return g.CanvasWidth / g.VertBlocks }

// BlockHeight is the vertical pitch between horizontal streets.
func (g GridConfig) BlockHeight() int { return g.CanvasHeight / g.HortBlocks }

func (g GridConfig) hw() float64 { return float64(g.HalfWidthStreets) }

// Bounds is the drivable world, including the far perimeter streets.
func (g GridConfig) Bounds() Rect {
	return Rect{
		W: float64(g.VertBlocks*g.BlockWidth() + 2*g.HalfWidthStreets),
		H: float64(g.HortBlocks*g.BlockHeight() + 2*g.HalfWidthStreets),
	}
}

// IntersectionName names the crossing at row r, column c.
func IntersectionName(r, c int) string { return fmt.Sprintf("I%d%d", r, c) }

// HorizontalStreetID names the street on row r between columns c and c+1.
func HorizontalStreetID(r, c int) string { return fmt.Sprintf("H%d%d", r, c) }

// VerticalStreetID names the street on column c between rows r and r+1.
func VerticalStreetID(c, r int) string { return fmt.Sprintf("V%d%d", c, r) }

// IntersectionRect returns the footprint of I{r}{c}.
func (g GridConfig) IntersectionRect(r, c int) Rect {
	s := 2 * g.hw()
	return Rect{X: float64(c * g.BlockWidth()), Y: float64(r * g.BlockHeight()), W: s, H: s}
}

// HorizontalStreetRect returns the footprint of H{r}{c}.
func (g GridConfig) HorizontalStreetRect(r, c int) Rect {
	s := 2 * g.hw()
	return Rect{
		X: float64(c*g.BlockWidth()) + s,
		Y: float64(r * g.BlockHeight()),
		W: float64(g.BlockWidth()) - s,
		H: s,
	}
}

// VerticalStreetRect returns the footprint of V{c}{r}.
func (g GridConfig) VerticalStreetRect(c, r int) Rect {
	s := 2 * g.hw()
	return Rect{
		X: float64(c * g.BlockWidth()),
		Y: float64(r*g.BlockHeight()) + s,
		W: s,
		H: float64(g.BlockHeight()) - s,
	}
}

// PerimeterStreetIDs lists the streets forming the outer ring.
func (g GridConfig) PerimeterStreetIDs() []string {
	var ids []string
	for c := 0; c < g.VertBlocks; c++ {
		ids = append(ids, HorizontalStreetID(0, c), HorizontalStreetID(g.HortBlocks, c))
	}
	for r := 0; r < g.HortBlocks; r++ {
		ids = append(ids, VerticalStreetID(0, r), VerticalStreetID(g.VertBlocks, r))
	}
	return ids
}

// Params holds the behavioural tunables of the engine.
type Params struct {
	LightInterval time.Duration

	CarLength float64
	CarWidth  float64
	MinSpeed  float64 // units per second
	MaxSpeed  float64

	StopMargin         float64 // depth of light and closure stop zones
	IntersectionBuffer float64
	MinFollowingGap    float64
	QueueGap           float64 // distance at which a stopped leader halts a follower

	BoundaryMargin     float64
	TurnDuration       time.Duration
	UTurnCooldown      time.Duration
	MaxConsecutiveTurn int
}

// DefaultParams returns the tuning used by the server.
func DefaultParams() Params {
	return Params{
		LightInterval:      6 * time.Second,
		CarLength:          16,
		CarWidth:           8,
		MinSpeed:           60,
		MaxSpeed:           100,
		StopMargin:         20,
		IntersectionBuffer: 20,
		MinFollowingGap:    8,
		QueueGap:           20,
		BoundaryMargin:     10,
		TurnDuration:       500 * time.Millisecond,
		UTurnCooldown:      2 * time.Second,
		MaxConsecutiveTurn: 3,
	}
}

// Density selects how many cars each street receives on population reset.
type Density string

const (
	DensityLow    Density = "low"
	DensityMedium Density = "medium"
	DensityHigh   Density = "high"
)

// CarsPerStreet maps a density level to its per-street count.
func (d Density) CarsPerStreet() (int, error) {
	switch d {
	case DensityLow:
		return 1, nil
	case DensityMedium:
		return 2, nil
	case DensityHigh:
		return 3, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDensity, string(d))
}

// Options configures New.
type Options struct {
	Grid                  GridConfig
	Params                Params
	ExcludedStreets       []string
	ExcludedIntersections []string
	Density               Density
}

// DefaultOptions returns the stock city with its excluded block around I12.
func DefaultOptions() Options {
	return Options{
		Grid:                  DefaultGridConfig(),
		Params:                DefaultParams(),
		ExcludedStreets:       []string{"H11", "H12", "V20", "V21"},
		ExcludedIntersections: []string{"I12"},
		Density:               DensityMedium,
	}
}
