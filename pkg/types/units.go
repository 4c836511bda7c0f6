package types

import "fmt"

// Hertz is a float64 wrapper representing a frequency in Hz.
type Hertz float64

// Humanized returns a human-readable string with automatic unit (Hz, kHz, MHz, GHz).
func (h Hertz) Humanized() string {
	v := float64(h)
	switch {
	case h >= 1e9:
		return fmt.Sprintf("%.2f GHz", v/1e9)
	case h >= 1e6:
		return fmt.Sprintf("%.2f MHz", v/1e6)
	case h >= 1e3:
		return fmt.Sprintf("%.2f kHz", v/1e3)
	default:
		return fmt.Sprintf("%.0f Hz", v)
	}
}

// MHz returns the frequency in megahertz. Every dynamic-power formula is
// expressed against this value.
func (h Hertz) MHz() float64 { return float64(h) / 1e6 }

// Float returns the raw value in Hz.
func (h Hertz) Float() float64 { return float64(h) }

// Watts is a float64 wrapper representing a power in W.
type Watts float64

// Humanized returns a human-readable string with automatic unit (µW, mW, W).
func (w Watts) Humanized() string {
	v := float64(w)
	switch {
	case v == 0:
		return "0 W"
	case v >= 1 || v <= -1:
		return fmt.Sprintf("%.3f W", v)
	case v >= 1e-3 || v <= -1e-3:
		return fmt.Sprintf("%.3f mW", v*1e3)
	default:
		return fmt.Sprintf("%.3f µW", v*1e6)
	}
}

// MilliWatts returns the power in mW.
func (w Watts) MilliWatts() float64 { return float64(w) * 1e3 }

// Float returns the raw value in W.
func (w Watts) Float() float64 { return float64(w) }

// Celsius is a temperature in °C.
type Celsius float64

// Humanized returns the temperature with one decimal.
func (c Celsius) Humanized() string { return fmt.Sprintf("%.1f °C", float64(c)) }

// Float returns the raw value in °C.
func (c Celsius) Float() float64 { return float64(c) }
