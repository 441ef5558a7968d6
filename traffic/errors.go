package traffic

import "errors"

var (
	ErrUnknownStreet       = errors.New("unknown street")
	ErrUnknownIntersection = errors.New("unknown intersection")
	ErrUnknownLight        = errors.New("unknown traffic light")
	ErrUnknownCar          = errors.New("unknown car")
	ErrInvalidDirection    = errors.New("invalid light direction")
	ErrInvalidColor        = errors.New("invalid light color")
	ErrInvalidDensity      = errors.New("invalid density")
	ErrInvalidInterval     = errors.New("invalid light interval")
	ErrUnknownAction       = errors.New("unknown command action")
)
