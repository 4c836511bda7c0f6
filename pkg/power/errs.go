package power

import "errors"

var (
	// ErrDeviceNotFound is returned by Manager lookups of an unknown id.
	ErrDeviceNotFound = errors.New("power: device not found")

	ErrClockNotFound   = errors.New("power: clock not found")
	ErrClockValidation = errors.New("power: invalid clock")

	ErrFabricLENotFound   = errors.New("power: fabric logic element not found")
	ErrFabricLEValidation = errors.New("power: invalid fabric logic element")

	ErrDSPNotFound   = errors.New("power: dsp not found")
	ErrDSPValidation = errors.New("power: invalid dsp")

	ErrBRAMNotFound   = errors.New("power: block ram not found")
	ErrBRAMValidation = errors.New("power: invalid block ram")

	ErrIONotFound   = errors.New("power: io not found")
	ErrIOValidation = errors.New("power: invalid io")

	ErrPeripheralNotFound   = errors.New("power: peripheral not found")
	ErrPeripheralValidation = errors.New("power: invalid peripheral")

	// ErrInvalidSpecification rejects thermal/power inputs that cannot be
	// evaluated.
	ErrInvalidSpecification = errors.New("power: invalid specification")
)
