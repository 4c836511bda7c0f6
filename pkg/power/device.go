// Package power models the dynamic and static power of one FPGA device:
// per-resource submodules, the device aggregator and a device manager.
package power

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/diag"
	"github.com/ja7ad/powerest/pkg/resources"
	"github.com/ja7ad/powerest/pkg/types"
	"github.com/ja7ad/powerest/pkg/util"
)

// ScenarioPower is the device estimate for one coefficient scenario.
type ScenarioPower struct {
	Ambient  types.Celsius `json:"ambient"`
	Junction types.Celsius `json:"junction"`
	Dynamic  float64       `json:"dynamic"`
	Static   float64       `json:"static"`
	Total    float64       `json:"total"`
	Rails    []RailPower   `json:"rails"`
}

// SubmoduleShare is one submodule's part of unscaled dynamic power.
type SubmoduleShare struct {
	Name       string  `json:"name"`
	Power      float64 `json:"power"`
	Percentage float64 `json:"percentage"`
}

// DeviceOutput is rebuilt on every Recompute.
type DeviceOutput struct {
	Typical    ScenarioPower    `json:"typical"`
	Worst      ScenarioPower    `json:"worst"`
	Dynamic    []SubmoduleShare `json:"dynamic"`
	OverBudget bool             `json:"over_budget"`
	Messages   []diag.Message   `json:"messages"`
}

// Device is one FPGA estimate: a registry, a coefficient store and the six
// resource submodules. All methods are safe for concurrent use; submodule
// accessors are not, and must only be used inside Mutate or View.
type Device struct {
	mu     sync.Mutex
	name   string
	coeffs *coeff.Store
	res    *Resources
	spec   Specification
	logger *slog.Logger

	clocks *ClockModule
	fle    *FabricLEModule
	dsp    *DSPModule
	bram   *BRAMModule
	io     *IOModule
	periph *PeripheralModule

	output DeviceOutput
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger Recompute reports to.
func WithLogger(l *slog.Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithSpecification replaces DefaultSpecification. Invalid values are
// rejected later by Recompute.
func WithSpecification(s Specification) Option {
	return func(d *Device) { d.spec = s }
}

// NewDevice builds an empty device. reg is cloned.
func NewDevice(name string, coeffs *coeff.Store, reg *resources.Registry, opts ...Option) *Device {
	res := &Resources{Registry: reg.Clone()}
	d := &Device{
		name:   name,
		coeffs: coeffs,
		res:    res,
		spec:   DefaultSpecification(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.clocks = newClockModule(coeffs, res)
	d.fle = newFabricLEModule(coeffs, res)
	d.dsp = newDSPModule(coeffs, res)
	d.bram = newBRAMModule(coeffs, res)
	d.io = newIOModule(coeffs, res)
	d.periph = newPeripheralModule(coeffs, res)

	res.clocks = d.clocks
	d.clocks.counters = []fanOutCounter{d.fle, d.dsp, d.bram, d.io, d.periph}
	return d
}

func (d *Device) Name() string { return d.name }

// Registry returns a copy of the device's resource registry.
func (d *Device) Registry() *resources.Registry { return d.res.Registry.Clone() }

func (d *Device) Clocks() *ClockModule { return d.clocks }
func (d *Device) FabricLE() *FabricLEModule { return d.fle }
func (d *Device) DSP() *DSPModule { return d.dsp }
func (d *Device) BRAM() *BRAMModule { return d.bram }
func (d *Device) IO() *IOModule { return d.io }
func (d *Device) Peripherals() *PeripheralModule { return d.periph }

// Specification returns the thermal and power inputs.
func (d *Device) Specification() Specification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.spec
}

// SetSpecification validates and installs s. The output is stale until the
// next Recompute.
func (d *Device) SetSpecification(s Specification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.StageSpecification(s)
}

// StageSpecification is SetSpecification for use inside Mutate, where the
// lock is already held.
func (d *Device) StageSpecification(s Specification) error {
	if err := s.Validate(); err != nil {
		return err
	}
	d.spec = s
	return nil
}

// Mutate runs fn under the device lock and recomputes when fn succeeds. A
// specification staged by a failing fn is rolled back.
func (d *Device) Mutate(fn func(*Device) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	spec := d.spec
	if err := fn(d); err != nil {
		d.spec = spec
		return err
	}
	return d.recompute()
}

// View runs fn under the device lock without recomputing.
func (d *Device) View(fn func(*Device)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d)
}

// Recompute rebuilds every submodule output and the device output.
func (d *Device) Recompute() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recompute()
}

// Output returns the result of the last successful Recompute.
func (d *Device) Output() DeviceOutput {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.output
	out.Typical.Rails = append([]RailPower(nil), d.output.Typical.Rails...)
	out.Worst.Rails = append([]RailPower(nil), d.output.Worst.Rails...)
	out.Dynamic = append([]SubmoduleShare(nil), d.output.Dynamic...)
	out.Messages = append([]diag.Message(nil), d.output.Messages...)
	return out
}

func (d *Device) recompute() error {
	if err := d.spec.Validate(); err != nil {
		return err
	}

	// clocks last: fan-out reads the configuration of every other submodule
	steps := []struct {
		name    string
		compute func() error
		power   func() float64
	}{
		{"fabric_le", d.fle.Compute, func() float64 { return d.fle.Totals().Power() }},
		{"dsp", d.dsp.Compute, func() float64 { return d.dsp.Totals().Power() }},
		{"bram", d.bram.Compute, func() float64 { return d.bram.Totals().Power() }},
		{"io", d.io.Compute, func() float64 { return d.io.totals.Power() }},
		{"peripheral", d.periph.Compute, func() float64 { return d.periph.Totals().Power() }},
		{"clock", d.clocks.Compute, func() float64 { return d.clocks.Totals().Power() }},
	}
	for _, s := range steps {
		if err := s.compute(); err != nil {
			return fmt.Errorf("device %s: %w", d.name, err)
		}
	}

	var out DeviceOutput
	dynamic := 0.0
	out.Dynamic = make([]SubmoduleShare, len(steps))
	for i, s := range steps {
		p := s.power()
		out.Dynamic[i] = SubmoduleShare{Name: s.name, Power: p}
		dynamic += p
	}
	for i := range out.Dynamic {
		out.Dynamic[i].Percentage = util.Percent(out.Dynamic[i].Power, dynamic)
	}

	var err error
	out.Typical, err = d.scenario(coeff.Typical, d.spec.AmbientTypical, dynamic*(1+d.spec.TypicalDynamicScaling/100))
	if err != nil {
		return fmt.Errorf("device %s: %w", d.name, err)
	}
	out.Worst, err = d.scenario(coeff.Worst, d.spec.AmbientWorst, dynamic*(1+d.spec.WorstDynamicScaling/100))
	if err != nil {
		return fmt.Errorf("device %s: %w", d.name, err)
	}

	for _, sc := range []struct {
		name string
		p    ScenarioPower
	}{{string(coeff.Typical), out.Typical}, {string(coeff.Worst), out.Worst}} {
		if d.spec.PowerBudget > 0 && sc.p.Total > d.spec.PowerBudget {
			out.OverBudget = true
			out.Messages = append(out.Messages, diag.New(diag.DeviceOverBudget, diag.Args{
				"scenario": sc.name,
				"power":    types.Watts(sc.p.Total).Humanized(),
				"budget":   types.Watts(d.spec.PowerBudget).Humanized(),
			}))
		}
		if sc.p.Junction > d.spec.MaxJunction {
			out.Messages = append(out.Messages, diag.New(diag.DeviceJunctionHot, diag.Args{
				"scenario": sc.name,
				"temp":     sc.p.Junction.Humanized(),
				"max":      d.spec.MaxJunction.Humanized(),
			}))
		}
	}
	d.output = out

	d.logger.Debug("device recomputed",
		"device", d.name,
		"dynamic", types.Watts(dynamic).Humanized(),
		"typical", types.Watts(out.Typical.Total).Humanized(),
		"worst", types.Watts(out.Worst.Total).Humanized(),
		"junction_worst", out.Worst.Junction.Humanized(),
		"messages", len(out.Messages),
	)
	return nil
}

func (d *Device) scenario(sc coeff.Scenario, ambient types.Celsius, dynamic float64) (ScenarioPower, error) {
	rails, static, err := d.staticPower(sc, ambient)
	if err != nil {
		return ScenarioPower{}, err
	}
	total := dynamic + static
	return ScenarioPower{
		Ambient:  ambient,
		Junction: ambient + types.Celsius(d.spec.ThetaJA*total),
		Dynamic:  dynamic,
		Static:   static,
		Total:    total,
		Rails:    rails,
	}, nil
}
