package power

import "github.com/ja7ad/powerest/pkg/resources"

// Resources is the device registry bound to the device's clock list, so
// submodules can resolve clocks by port name.
type Resources struct {
	*resources.Registry
	clocks *ClockModule
}

// FindClock returns the clock whose port is name.
func (r *Resources) FindClock(name string) (Clock, bool) {
	if r.clocks == nil || name == "" {
		return Clock{}, false
	}
	for _, c := range r.clocks.items.items {
		if c.Port == name {
			return *c, true
		}
	}
	return Clock{}, false
}

// fanOutCounter is implemented by every submodule whose instances hang off a
// fabric clock.
type fanOutCounter interface {
	clockFanOut(port string) int
}
