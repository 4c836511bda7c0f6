package coeff

import "github.com/ja7ad/powerest/pkg/util"

// Category groups coefficients by resource kind, e.g. "clocking" or "io/LVDS_HP".
type Category string

// Scenario selects a coefficient set for an operating condition.
type Scenario string

const (
	Typical Scenario = "typical"
	Worst   Scenario = "worst"
)

// Scenarios lists every scenario a static category must declare.
var Scenarios = []Scenario{Typical, Worst}

// Polynomial is a temperature polynomial. Coefficients are ordered from the
// highest degree down to the constant term.
type Polynomial struct {
	Coefficients []float64
	Factor       float64
}

// Eval returns the polynomial at x multiplied by its scaling factor.
func (p Polynomial) Eval(x float64) float64 {
	return util.Horner(p.Coefficients, x) * p.Factor
}

// RailSpec is the set of polynomials declared for one power rail.
type RailSpec struct {
	Rail        string
	Polynomials []Polynomial
}

// Eval sums every declared polynomial of the rail at x.
func (r RailSpec) Eval(x float64) float64 {
	var sum float64
	for _, p := range r.Polynomials {
		sum += p.Eval(x)
	}
	return sum
}

// Document is the validated, in-memory form of a coefficient file.
type Document struct {
	Name    string
	Static  map[Category]map[Scenario][]RailSpec
	Dynamic map[Category]map[string]float64
}
