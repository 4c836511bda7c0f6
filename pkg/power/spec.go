package power

import (
	"fmt"
	"math"

	"github.com/ja7ad/powerest/pkg/types"
)

// Specification holds the thermal and power inputs of a device estimate.
// Units:
//   - AmbientTypical/AmbientWorst/MaxJunction: °C
//   - ThetaJA: °C/W, junction-to-ambient thermal resistance
//   - PowerBudget: W, 0 disables the budget check
//   - TypicalDynamicScaling/WorstDynamicScaling: % added to dynamic power
type Specification struct {
	AmbientTypical        types.Celsius `json:"ambient_typical" yaml:"ambient_typical"`
	AmbientWorst          types.Celsius `json:"ambient_worst" yaml:"ambient_worst"`
	ThetaJA               float64       `json:"theta_ja" yaml:"theta_ja"`
	PowerBudget           float64       `json:"power_budget" yaml:"power_budget"`
	TypicalDynamicScaling float64       `json:"typical_dynamic_scaling" yaml:"typical_dynamic_scaling"`
	WorstDynamicScaling   float64       `json:"worst_dynamic_scaling" yaml:"worst_dynamic_scaling"`
	MaxJunction           types.Celsius `json:"max_junction" yaml:"max_junction"`
}

// DefaultSpecification returns commercial-grade defaults.
func DefaultSpecification() Specification {
	return Specification{
		AmbientTypical:        25,  // °C
		AmbientWorst:          85,  // °C
		ThetaJA:               10,  // °C/W, no heatsink
		PowerBudget:           0,   // no budget
		TypicalDynamicScaling: 0,   // %
		WorstDynamicScaling:   25,  // %
		MaxJunction:           125, // °C
	}
}

// Validate rejects inputs that cannot be evaluated.
func (s Specification) Validate() error {
	for _, v := range []float64{
		float64(s.AmbientTypical), float64(s.AmbientWorst), s.ThetaJA, s.PowerBudget,
		s.TypicalDynamicScaling, s.WorstDynamicScaling, float64(s.MaxJunction),
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidSpecification)
		}
	}
	switch {
	case s.ThetaJA < 0:
		return fmt.Errorf("%w: theta_ja must be >= 0", ErrInvalidSpecification)
	case s.PowerBudget < 0:
		return fmt.Errorf("%w: power budget must be >= 0", ErrInvalidSpecification)
	case s.TypicalDynamicScaling < -100 || s.WorstDynamicScaling < -100:
		return fmt.Errorf("%w: dynamic scaling below -100%%", ErrInvalidSpecification)
	case s.AmbientWorst < s.AmbientTypical:
		return fmt.Errorf("%w: worst ambient below typical ambient", ErrInvalidSpecification)
	}
	return nil
}
