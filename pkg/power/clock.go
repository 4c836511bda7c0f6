package power

import (
	"fmt"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/diag"
	"github.com/ja7ad/powerest/pkg/types"
	"github.com/ja7ad/powerest/pkg/util"
)

// ClockSource is where a clock is generated.
type ClockSource string

const (
	SourceIO        ClockSource = "io"
	SourcePLLFabric ClockSource = "pll_fabric"
	SourcePLLSoC    ClockSource = "pll_soc"
	SourceRCOsc     ClockSource = "rc_osc"
)

func (s ClockSource) valid() bool {
	switch s {
	case SourceIO, SourcePLLFabric, SourcePLLSoC, SourceRCOsc:
		return true
	}
	return false
}

// ClockState is the runtime state of an enabled clock.
type ClockState string

const (
	ClockActive ClockState = "active"
	ClockGated  ClockState = "gated"
)

// ClockConfig holds the editable clock fields.
type ClockConfig struct {
	Enable      bool        `json:"enable" yaml:"enable"`
	Description string      `json:"description" yaml:"description"`
	Port        string      `json:"port" yaml:"port"`
	Source      ClockSource `json:"source" yaml:"source"`
	Frequency   types.Hertz `json:"frequency" yaml:"frequency"`
	State       ClockState  `json:"state" yaml:"state"`
}

// ClockOutput is rebuilt on every Compute.
type ClockOutput struct {
	FanOut            int            `json:"fan_out"`
	BlockPower        float64        `json:"block_power"`
	InterconnectPower float64        `json:"interconnect_power"`
	Percentage        float64        `json:"percentage"`
	Messages          []diag.Message `json:"messages"`
}

// Clock is one clock network.
type Clock struct {
	ClockConfig
	Output ClockOutput `json:"output"`
}

// ClockTotals are derived by Compute.
type ClockTotals struct {
	BlockPower        float64 `json:"block_power"`
	InterconnectPower float64 `json:"interconnect_power"`
	PLLPower          float64 `json:"pll_power"`
	FabricPLLs        int     `json:"fabric_plls"`
	ActiveClocks      int     `json:"active_clocks"`
}

// Power is the clocking contribution to device dynamic power.
func (t ClockTotals) Power() float64 {
	return t.BlockPower + t.InterconnectPower + t.PLLPower
}

// ClockModule owns the device's clocks.
type ClockModule struct {
	coeffs   *coeff.Store
	res      *Resources
	items    collection[Clock]
	counters []fanOutCounter
	totals   ClockTotals
}

func newClockModule(coeffs *coeff.Store, res *Resources) *ClockModule {
	return &ClockModule{
		coeffs: coeffs,
		res:    res,
		items:  newCollection[Clock](ErrClockNotFound),
	}
}

// List returns a copy of every clock in insertion order.
func (m *ClockModule) List() []Clock { return m.items.snapshot() }

// Len returns the number of clocks.
func (m *ClockModule) Len() int { return m.items.len() }

// Get returns the clock at index i.
func (m *ClockModule) Get(i int) (Clock, error) {
	c, err := m.items.at(i)
	if err != nil {
		return Clock{}, err
	}
	return *c, nil
}

// Add validates cfg and appends it, returning its index.
func (m *ClockModule) Add(cfg ClockConfig) (int, error) {
	cfg = cfg.normalized()
	if err := m.validate(cfg, -1); err != nil {
		return -1, err
	}
	return m.items.append(Clock{ClockConfig: cfg}), nil
}

// Update replaces the editable fields of the clock at index i.
func (m *ClockModule) Update(i int, cfg ClockConfig) error {
	c, err := m.items.at(i)
	if err != nil {
		return err
	}
	cfg = cfg.normalized()
	if err := m.validate(cfg, i); err != nil {
		return err
	}
	c.ClockConfig = cfg
	return nil
}

// Remove deletes the clock at index i.
func (m *ClockModule) Remove(i int) error { return m.items.remove(i) }

// Totals returns the totals of the last Compute.
func (m *ClockModule) Totals() ClockTotals { return m.totals }

func (c ClockConfig) normalized() ClockConfig {
	if c.Source == "" {
		c.Source = SourceIO
	}
	if c.State == "" {
		c.State = ClockActive
	}
	return c
}

func (m *ClockModule) validate(cfg ClockConfig, self int) error {
	if cfg.Port == "" {
		return fmt.Errorf("%w: empty port", ErrClockValidation)
	}
	if !cfg.Source.valid() {
		return fmt.Errorf("%w: unknown source %q", ErrClockValidation, cfg.Source)
	}
	if cfg.State != ClockActive && cfg.State != ClockGated {
		return fmt.Errorf("%w: unknown state %q", ErrClockValidation, cfg.State)
	}
	if cfg.Frequency <= 0 {
		return fmt.Errorf("%w: frequency must be > 0", ErrClockValidation)
	}

	others := m.items.others(self)
	plls := 0
	if cfg.Source == SourcePLLFabric {
		plls++
	}
	for _, o := range others {
		if o.Port == cfg.Port {
			return fmt.Errorf("%w: port %q already defined", ErrClockValidation, cfg.Port)
		}
		if cfg.Description != "" && o.Description == cfg.Description {
			return fmt.Errorf("%w: description %q already defined", ErrClockValidation, cfg.Description)
		}
		if o.Source == SourcePLLFabric {
			plls++
		}
	}
	if len(others)+1 > m.res.GlobalClocks {
		return fmt.Errorf("%w: %d clocks exceed the %d global clocks", ErrClockValidation, len(others)+1, m.res.GlobalClocks)
	}
	if plls > m.res.FabricPLLs {
		return fmt.Errorf("%w: %d fabric PLL clocks exceed the %d PLLs", ErrClockValidation, plls, m.res.FabricPLLs)
	}
	return nil
}

// fanOut sums what every other submodule hangs off port.
func (m *ClockModule) fanOut(port string) int {
	n := 0
	for _, c := range m.counters {
		n += c.clockFanOut(port)
	}
	return n
}

// Compute rebuilds every clock output and the clocking totals. It reads the
// other submodules' configuration for fan-out, so it runs after them.
func (m *ClockModule) Compute() error {
	r := m.coeffs.Reader("clocking")
	clkCap := r.Get("CLK_CAP")
	intCap := r.Get("CLK_INT_CAP")
	pllInt := r.Get("PLL_INT")
	pllAux := r.Get("PLL_AUX")
	if err := r.Err(); err != nil {
		return fmt.Errorf("clock: %w", err)
	}

	var totals ClockTotals
	for _, c := range m.items.items {
		out := ClockOutput{}
		switch {
		case !c.Enable:
			out.Messages = append(out.Messages, diag.New(diag.ClockDisabled, nil))
		case c.State == ClockGated:
			out.Messages = append(out.Messages, diag.New(diag.ClockGated, diag.Args{"clock": c.Port}))
		default:
			mhz := c.Frequency.MHz()
			out.FanOut = m.fanOut(c.Port)
			out.BlockPower = clkCap * mhz
			out.InterconnectPower = float64(out.FanOut) * intCap * mhz
			if out.FanOut == 0 {
				out.Messages = append(out.Messages, diag.New(diag.ClockNoFanOut, diag.Args{"clock": c.Port}))
			}
			if limit := m.res.MaxClockFanOut; limit > 0 && out.FanOut > limit {
				out.Messages = append(out.Messages, diag.New(diag.ClockFanOutLimit,
					diag.Args{"clock": c.Port, "fanout": out.FanOut, "limit": limit}))
			}
			if c.Source == SourcePLLFabric {
				totals.FabricPLLs++
			}
			totals.ActiveClocks++
		}
		c.Output = out
		totals.BlockPower += out.BlockPower
		totals.InterconnectPower += out.InterconnectPower
	}

	v := m.res.Voltages
	totals.PLLPower = float64(totals.FabricPLLs) * (pllInt*util.Sq(v.Core) + pllAux*util.Sq(v.Aux))

	spread(m.items.items,
		func(c *Clock) float64 { return c.Output.BlockPower + c.Output.InterconnectPower },
		func(c *Clock, p float64) { c.Output.Percentage = p })

	m.totals = totals
	return nil
}
