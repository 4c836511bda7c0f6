package resources

import "errors"

var (
	// ErrDescriptor indicates an unreadable or malformed device descriptor.
	ErrDescriptor = errors.New("resources: descriptor")

	// ErrInvalidRegistry indicates capacities that cannot describe a device.
	ErrInvalidRegistry = errors.New("resources: invalid registry")
)
