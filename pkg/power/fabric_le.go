package power

import (
	"fmt"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/diag"
	"github.com/ja7ad/powerest/pkg/types"
	"github.com/ja7ad/powerest/pkg/util"
)

// GlitchFactor scales LUT switching for glitchy logic.
type GlitchFactor string

const (
	GlitchTypical  GlitchFactor = "typical"
	GlitchHigh     GlitchFactor = "high"
	GlitchVeryHigh GlitchFactor = "very_high"
)

// Factor returns the LUT activity multiplier, 0 for unknown values.
func (g GlitchFactor) Factor() float64 {
	switch g {
	case GlitchTypical:
		return 1
	case GlitchHigh:
		return 2
	case GlitchVeryHigh:
		return 4
	}
	return 0
}

// FabricLEConfig holds the editable fields of a block of fabric logic.
type FabricLEConfig struct {
	Enable          bool         `json:"enable" yaml:"enable"`
	Name            string       `json:"name" yaml:"name"`
	LUT6            int          `json:"lut6" yaml:"lut6"`
	FlipFlop        int          `json:"flip_flop" yaml:"flip_flop"`
	Clock           string       `json:"clock" yaml:"clock"`
	ToggleRate      float64      `json:"toggle_rate" yaml:"toggle_rate"`
	GlitchFactor    GlitchFactor `json:"glitch_factor" yaml:"glitch_factor"`
	ClockEnableRate float64      `json:"clock_enable_rate" yaml:"clock_enable_rate"`
}

// FabricLEOutput is rebuilt on every Compute.
type FabricLEOutput struct {
	ClockFrequency    types.Hertz    `json:"clock_frequency"`
	OutputSignalRate  float64        `json:"output_signal_rate"`
	BlockPower        float64        `json:"block_power"`
	InterconnectPower float64        `json:"interconnect_power"`
	Percentage        float64        `json:"percentage"`
	Messages          []diag.Message `json:"messages"`
}

// FabricLE is a named group of LUTs and flip-flops sharing a clock.
type FabricLE struct {
	FabricLEConfig
	Output FabricLEOutput `json:"output"`
}

// FabricLETotals are derived by Compute.
type FabricLETotals struct {
	BlockPower        float64 `json:"block_power"`
	InterconnectPower float64 `json:"interconnect_power"`
	LUT6              int     `json:"lut6"`
	FlipFlop          int     `json:"flip_flop"`
}

// Power is the fabric contribution to device dynamic power.
func (t FabricLETotals) Power() float64 { return t.BlockPower + t.InterconnectPower }

// FabricLEModule owns the device's fabric logic entries.
type FabricLEModule struct {
	coeffs *coeff.Store
	res    *Resources
	items  collection[FabricLE]
	totals FabricLETotals
}

func newFabricLEModule(coeffs *coeff.Store, res *Resources) *FabricLEModule {
	return &FabricLEModule{
		coeffs: coeffs,
		res:    res,
		items:  newCollection[FabricLE](ErrFabricLENotFound),
	}
}

// List returns a copy of every fabric LE group in insertion order.
func (m *FabricLEModule) List() []FabricLE { return m.items.snapshot() }
// Len returns the number of fabric LE groups.
func (m *FabricLEModule) Len() int { return m.items.len() }

// Get returns the fabric LE group at index i.
func (m *FabricLEModule) Get(i int) (FabricLE, error) {
	it, err := m.items.at(i)
	if err != nil {
		return FabricLE{}, err
	}
	return *it, nil
}

// Add validates cfg and appends it, returning its index.
func (m *FabricLEModule) Add(cfg FabricLEConfig) (int, error) {
	cfg = cfg.normalized()
	if err := m.validate(cfg, -1); err != nil {
		return -1, err
	}
	return m.items.append(FabricLE{FabricLEConfig: cfg}), nil
}

// Update replaces the editable fields of the fabric LE group at index i.
func (m *FabricLEModule) Update(i int, cfg FabricLEConfig) error {
	it, err := m.items.at(i)
	if err != nil {
		return err
	}
	cfg = cfg.normalized()
	if err := m.validate(cfg, i); err != nil {
		return err
	}
	it.FabricLEConfig = cfg
	return nil
}

// Remove deletes the fabric LE group at index i.
func (m *FabricLEModule) Remove(i int) error { return m.items.remove(i) }
// Totals returns the totals of the last Compute.
func (m *FabricLEModule) Totals() FabricLETotals { return m.totals }

func (c FabricLEConfig) normalized() FabricLEConfig {
	if c.GlitchFactor == "" {
		c.GlitchFactor = GlitchTypical
	}
	return c
}

func (m *FabricLEModule) validate(cfg FabricLEConfig, self int) error {
	switch {
	case cfg.Name == "":
		return fmt.Errorf("%w: empty name", ErrFabricLEValidation)
	case cfg.LUT6 < 0 || cfg.FlipFlop < 0:
		return fmt.Errorf("%w: negative LUT or flip-flop count", ErrFabricLEValidation)
	case !util.InRange01(cfg.ToggleRate):
		return fmt.Errorf("%w: toggle rate %v outside [0,1]", ErrFabricLEValidation, cfg.ToggleRate)
	case !util.InRange01(cfg.ClockEnableRate):
		return fmt.Errorf("%w: clock enable rate %v outside [0,1]", ErrFabricLEValidation, cfg.ClockEnableRate)
	case cfg.GlitchFactor.Factor() == 0:
		return fmt.Errorf("%w: unknown glitch factor %q", ErrFabricLEValidation, cfg.GlitchFactor)
	}

	luts, ffs := cfg.LUT6, cfg.FlipFlop
	for _, o := range m.items.others(self) {
		if o.Name == cfg.Name {
			return fmt.Errorf("%w: name %q already defined", ErrFabricLEValidation, cfg.Name)
		}
		luts += o.LUT6
		ffs += o.FlipFlop
	}
	if luts > m.res.LUTs {
		return fmt.Errorf("%w: %d LUTs exceed the %d available", ErrFabricLEValidation, luts, m.res.LUTs)
	}
	if ffs > m.res.FlipFlops {
		return fmt.Errorf("%w: %d flip-flops exceed the %d available", ErrFabricLEValidation, ffs, m.res.FlipFlops)
	}
	return nil
}

func (m *FabricLEModule) clockFanOut(port string) int {
	n := 0
	for _, it := range m.items.items {
		if it.Enable && it.Clock == port {
			n += it.FlipFlop
		}
	}
	return n
}

// SignalRate is the output toggle rate in MHz. The clock-enable term only
// applies when the block has LUTs.
func (c FabricLEConfig) SignalRate(freq types.Hertz) float64 {
	if c.LUT6 > 0 {
		return freq.MHz() * c.ToggleRate * c.ClockEnableRate
	}
	return freq.MHz() * c.ToggleRate
}

// Compute rebuilds every fabric LE group's output and the module totals.
func (m *FabricLEModule) Compute() error {
	r := m.coeffs.Reader("fabric_le")
	lutCap := r.Get("LUT_CAP")
	ffCap := r.Get("FF_CAP")
	ffClkCap := r.Get("FF_CLK_CAP")
	lutIntCap := r.Get("LUT_INT_CAP")
	ffIntCap := r.Get("FF_INT_CAP")
	ffClkIntCap := r.Get("FF_CLK_INT_CAP")
	if err := r.Err(); err != nil {
		return fmt.Errorf("fabric_le: %w", err)
	}
	vcc2 := util.Sq(m.res.Voltages.Core)

	var totals FabricLETotals
	for _, it := range m.items.items {
		out := FabricLEOutput{}
		if !it.Enable {
			out.Messages = append(out.Messages, diag.New(diag.FabricLEDisabled, nil))
			it.Output = out
			continue
		}
		totals.LUT6 += it.LUT6
		totals.FlipFlop += it.FlipFlop

		clk, ok := m.res.FindClock(it.Clock)
		if !ok {
			out.Messages = append(out.Messages, diag.New(diag.FabricLEBadClock, diag.Args{"clock": it.Clock}))
			it.Output = out
			continue
		}

		mhz := clk.Frequency.MHz()
		rate := it.SignalRate(clk.Frequency)
		glitch := it.GlitchFactor.Factor()
		lut, ff := float64(it.LUT6), float64(it.FlipFlop)

		out.ClockFrequency = clk.Frequency
		out.OutputSignalRate = rate
		out.BlockPower = vcc2 * (lutCap*lut*rate*glitch +
			ffCap*ff*rate +
			ffClkCap*ff*mhz*it.ClockEnableRate)
		out.InterconnectPower = vcc2 * (lutIntCap*lut*rate*glitch +
			ffIntCap*ff*rate +
			ffClkIntCap*ff*mhz*it.ClockEnableRate)
		it.Output = out

		totals.BlockPower += out.BlockPower
		totals.InterconnectPower += out.InterconnectPower
	}

	spread(m.items.items,
		func(it *FabricLE) float64 { return it.Output.BlockPower + it.Output.InterconnectPower },
		func(it *FabricLE, p float64) { it.Output.Percentage = p })

	m.totals = totals
	return nil
}
