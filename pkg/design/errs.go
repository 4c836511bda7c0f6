package design

import "errors"

var (
	// ErrDesign is returned for unreadable or malformed design files.
	ErrDesign = errors.New("design: invalid design file")
	// ErrApply wraps the first instance a device rejected.
	ErrApply = errors.New("design: apply failed")
)
