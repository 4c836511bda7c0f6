package power

import (
	"fmt"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/diag"
	"github.com/ja7ad/powerest/pkg/types"
	"github.com/ja7ad/powerest/pkg/util"
)

// DSPMode is the arithmetic configured in the DSP block.
type DSPMode string

const (
	DSPMultiply           DSPMode = "multiply"
	DSPMultiplyAccumulate DSPMode = "multiply_accumulate"
	DSPMultiplyAddSub     DSPMode = "multiply_add_sub"
)

// Pipelining selects which DSP stages are registered.
type Pipelining string

const (
	PipeInputAndOutput Pipelining = "input_and_output"
	PipeInputOnly      Pipelining = "input_only"
	PipeOutputOnly     Pipelining = "output_only"
	PipeNone           Pipelining = "none"
)

// Factor is the activity multiplier applied to the toggle rate: fewer
// registers let more glitches through.
func (p Pipelining) Factor() float64 {
	switch p {
	case PipeInputAndOutput:
		return 1.0
	case PipeInputOnly, PipeOutputOnly:
		return 1.5
	case PipeNone:
		return 2.0
	}
	return 0
}

func (p Pipelining) inputRegistered() bool {
	return p == PipeInputAndOutput || p == PipeInputOnly
}

const (
	// Operands narrower than these pack two multiplies in one block.
	dspFracWidthA = 10
	dspFracWidthB = 10

	dspMaxWidthA = 20
	dspMaxWidthB = 18

	// Extra activity of accumulate/add-sub paths fed by unregistered inputs.
	dspUnregisteredInputFactor = 1.15
)

// BlocksUsed returns the DSP blocks needed for multipliers of the given
// operand widths.
func BlocksUsed(aWidth, bWidth, multipliers int) float64 {
	if aWidth < dspFracWidthA && bWidth < dspFracWidthB {
		return float64(multipliers) * 0.5
	}
	return float64(multipliers) * 1.0
}

// DSPConfig holds the editable DSP fields.
type DSPConfig struct {
	Enable              bool       `json:"enable" yaml:"enable"`
	Name                string     `json:"name" yaml:"name"`
	NumberOfMultipliers int        `json:"number_of_multipliers" yaml:"number_of_multipliers"`
	Mode                DSPMode    `json:"dsp_mode" yaml:"dsp_mode"`
	AInputWidth         int        `json:"a_input_width" yaml:"a_input_width"`
	BInputWidth         int        `json:"b_input_width" yaml:"b_input_width"`
	Clock               string     `json:"clock" yaml:"clock"`
	Pipelining          Pipelining `json:"pipelining" yaml:"pipelining"`
	ToggleRate          float64    `json:"toggle_rate" yaml:"toggle_rate"`
}

// DSPOutput is rebuilt on every Compute.
type DSPOutput struct {
	ClockFrequency    types.Hertz    `json:"clock_frequency"`
	OutputSignalRate  float64        `json:"output_signal_rate"`
	BlocksUsed        float64        `json:"dsp_blocks_used"`
	BlockPower        float64        `json:"block_power"`
	InterconnectPower float64        `json:"interconnect_power"`
	Percentage        float64        `json:"percentage"`
	Messages          []diag.Message `json:"messages"`
}

// DSP is a group of identical multipliers.
type DSP struct {
	DSPConfig
	Output DSPOutput `json:"output"`
}

// DSPTotals are derived by Compute.
type DSPTotals struct {
	BlockPower        float64 `json:"block_power"`
	InterconnectPower float64 `json:"interconnect_power"`
	BlocksUsed        float64 `json:"dsp_blocks_used"`
	Multipliers       int     `json:"multipliers"`
}

// Power is the DSP contribution to device dynamic power.
func (t DSPTotals) Power() float64 { return t.BlockPower + t.InterconnectPower }

// DSPModule owns the device's DSP entries.
type DSPModule struct {
	coeffs *coeff.Store
	res    *Resources
	items  collection[DSP]
	totals DSPTotals
}

func newDSPModule(coeffs *coeff.Store, res *Resources) *DSPModule {
	return &DSPModule{
		coeffs: coeffs,
		res:    res,
		items:  newCollection[DSP](ErrDSPNotFound),
	}
}

// List returns a copy of every DSP group in insertion order.
func (m *DSPModule) List() []DSP { return m.items.snapshot() }
// Len returns the number of DSP groups.
func (m *DSPModule) Len() int { return m.items.len() }

// Get returns the DSP group at index i.
func (m *DSPModule) Get(i int) (DSP, error) {
	it, err := m.items.at(i)
	if err != nil {
		return DSP{}, err
	}
	return *it, nil
}

// Add validates cfg and appends it, returning its index.
func (m *DSPModule) Add(cfg DSPConfig) (int, error) {
	cfg = cfg.normalized()
	if err := m.validate(cfg, -1); err != nil {
		return -1, err
	}
	return m.items.append(DSP{DSPConfig: cfg}), nil
}

// Update replaces the editable fields of the DSP group at index i.
func (m *DSPModule) Update(i int, cfg DSPConfig) error {
	it, err := m.items.at(i)
	if err != nil {
		return err
	}
	cfg = cfg.normalized()
	if err := m.validate(cfg, i); err != nil {
		return err
	}
	it.DSPConfig = cfg
	return nil
}

// Remove deletes the DSP group at index i.
func (m *DSPModule) Remove(i int) error { return m.items.remove(i) }
// Totals returns the totals of the last Compute.
func (m *DSPModule) Totals() DSPTotals { return m.totals }

func (c DSPConfig) normalized() DSPConfig {
	if c.Mode == "" {
		c.Mode = DSPMultiply
	}
	if c.Pipelining == "" {
		c.Pipelining = PipeInputAndOutput
	}
	return c
}

func (m *DSPModule) validate(cfg DSPConfig, self int) error {
	switch {
	case cfg.NumberOfMultipliers < 0:
		return fmt.Errorf("%w: negative multiplier count", ErrDSPValidation)
	case cfg.AInputWidth < 1 || cfg.AInputWidth > dspMaxWidthA:
		return fmt.Errorf("%w: A width %d outside [1,%d]", ErrDSPValidation, cfg.AInputWidth, dspMaxWidthA)
	case cfg.BInputWidth < 1 || cfg.BInputWidth > dspMaxWidthB:
		return fmt.Errorf("%w: B width %d outside [1,%d]", ErrDSPValidation, cfg.BInputWidth, dspMaxWidthB)
	case !util.InRange01(cfg.ToggleRate):
		return fmt.Errorf("%w: toggle rate %v outside [0,1]", ErrDSPValidation, cfg.ToggleRate)
	case cfg.Pipelining.Factor() == 0:
		return fmt.Errorf("%w: unknown pipelining %q", ErrDSPValidation, cfg.Pipelining)
	}
	switch cfg.Mode {
	case DSPMultiply, DSPMultiplyAccumulate, DSPMultiplyAddSub:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrDSPValidation, cfg.Mode)
	}

	blocks := BlocksUsed(cfg.AInputWidth, cfg.BInputWidth, cfg.NumberOfMultipliers)
	for _, o := range m.items.others(self) {
		blocks += BlocksUsed(o.AInputWidth, o.BInputWidth, o.NumberOfMultipliers)
	}
	if blocks > float64(m.res.DSPs) {
		return fmt.Errorf("%w: %.1f DSP blocks exceed the %d available", ErrDSPValidation, blocks, m.res.DSPs)
	}
	return nil
}

func (m *DSPModule) clockFanOut(port string) int {
	n := 0
	for _, it := range m.items.items {
		if it.Enable && it.Clock == port {
			n += it.NumberOfMultipliers
		}
	}
	return n
}

// Compute rebuilds every DSP group's output and the module totals.
func (m *DSPModule) Compute() error {
	r := m.coeffs.Reader("dsp")
	multCap := r.Get("MULT_CAP")
	accCap := r.Get("ACC_CAP")
	addSubCap := r.Get("ADDSUB_CAP")
	intCap := r.Get("INT_CAP")
	if err := r.Err(); err != nil {
		return fmt.Errorf("dsp: %w", err)
	}
	vcc2 := util.Sq(m.res.Voltages.Core)

	var totals DSPTotals
	for _, it := range m.items.items {
		out := DSPOutput{}
		if !it.Enable {
			out.Messages = append(out.Messages, diag.New(diag.DSPDisabled, nil))
			it.Output = out
			continue
		}
		out.BlocksUsed = BlocksUsed(it.AInputWidth, it.BInputWidth, it.NumberOfMultipliers)
		totals.BlocksUsed += out.BlocksUsed
		totals.Multipliers += it.NumberOfMultipliers

		clk, ok := m.res.FindClock(it.Clock)
		if !ok {
			out.Messages = append(out.Messages, diag.New(diag.DSPBadClock, diag.Args{"clock": it.Clock}))
			it.Output = out
			continue
		}

		mhz := clk.Frequency.MHz()
		rate := mhz * it.ToggleRate * it.Pipelining.Factor()
		out.ClockFrequency = clk.Frequency
		out.OutputSignalRate = rate

		mult := multCap * out.BlocksUsed * rate
		switch it.Mode {
		case DSPMultiply:
			out.BlockPower = vcc2 * mult
		case DSPMultiplyAccumulate, DSPMultiplyAddSub:
			c := accCap
			if it.Mode == DSPMultiplyAddSub {
				c = addSubCap
			}
			blockFactor := 1.0
			if it.AInputWidth < dspFracWidthA && it.BInputWidth < dspFracWidthB {
				blockFactor = 0.5
			}
			pipeFactor := 1.0
			if !it.Pipelining.inputRegistered() {
				pipeFactor = dspUnregisteredInputFactor
			}
			acc := c * float64(it.NumberOfMultipliers) * blockFactor * mhz
			out.BlockPower = vcc2 * (mult + acc) * pipeFactor
		}
		out.InterconnectPower = vcc2 * intCap * out.BlocksUsed * rate
		it.Output = out

		totals.BlockPower += out.BlockPower
		totals.InterconnectPower += out.InterconnectPower
	}

	spread(m.items.items,
		func(it *DSP) float64 { return it.Output.BlockPower + it.Output.InterconnectPower },
		func(it *DSP, p float64) { it.Output.Percentage = p })

	m.totals = totals
	return nil
}
