package power

import (
	"fmt"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/diag"
	"github.com/ja7ad/powerest/pkg/types"
	"github.com/ja7ad/powerest/pkg/util"
)

// BRAMType is the size and port configuration of a block RAM.
type BRAMType string

const (
	BRAM18KSDP  BRAMType = "bram_18k_sdp"
	BRAM36KSDP  BRAMType = "bram_36k_sdp"
	BRAM18KTDP  BRAMType = "bram_18k_tdp"
	BRAM36KTDP  BRAMType = "bram_36k_tdp"
	BRAM18KROM  BRAMType = "bram_18k_rom"
	BRAM36KROM  BRAMType = "bram_36k_rom"
	BRAM18KFIFO BRAMType = "bram_18k_fifo"
	BRAM36KFIFO BRAMType = "bram_36k_fifo"
)

type bramKind int

const (
	bramSDP bramKind = iota
	bramTDP
	bramROM
	bramFIFO
)

type bramInfo struct {
	is36K bool
	kind  bramKind
}

var bramTypes = map[BRAMType]bramInfo{
	BRAM18KSDP:  {false, bramSDP},
	BRAM36KSDP:  {true, bramSDP},
	BRAM18KTDP:  {false, bramTDP},
	BRAM36KTDP:  {true, bramTDP},
	BRAM18KROM:  {false, bramROM},
	BRAM36KROM:  {true, bramROM},
	BRAM18KFIFO: {false, bramFIFO},
	BRAM36KFIFO: {true, bramFIFO},
}

func (i bramInfo) suffix() string {
	if i.is36K {
		return "_36K"
	}
	return "_18K"
}

func (i bramInfo) maxWidth() int {
	if i.is36K {
		return 72
	}
	return 36
}

// equivalent36K is the share of a 36K tile one block occupies.
func (i bramInfo) equivalent36K() float64 {
	if i.is36K {
		return 1
	}
	return 0.5
}

// roles reports whether port A / port B write and read.
func (i bramInfo) roles() (aWrite, aRead, bWrite, bRead bool) {
	switch i.kind {
	case bramSDP, bramFIFO:
		return true, false, false, true
	case bramTDP:
		return true, true, true, true
	default:
		return false, true, false, true
	}
}

// Depth returns the number of words of the given width. Widths that are a
// multiple of 9 use the parity bits.
func (t BRAMType) Depth(width int) int {
	info, ok := bramTypes[t]
	if !ok || width <= 0 {
		return 0
	}
	bits := 16384
	if width%9 == 0 {
		bits = 18432
	}
	if info.is36K {
		bits *= 2
	}
	return bits / width
}

// BRAMPortConfig holds the editable fields of one port.
type BRAMPortConfig struct {
	Clock           string  `json:"clock" yaml:"clock"`
	Width           int     `json:"width" yaml:"width"`
	WriteEnableRate float64 `json:"write_enable_rate" yaml:"write_enable_rate"`
	ReadEnableRate  float64 `json:"read_enable_rate" yaml:"read_enable_rate"`
}

// BRAMConfig holds the editable block RAM fields.
type BRAMConfig struct {
	Enable     bool           `json:"enable" yaml:"enable"`
	Name       string         `json:"name" yaml:"name"`
	Type       BRAMType       `json:"type" yaml:"type"`
	BRAMUsed   int            `json:"bram_used" yaml:"bram_used"`
	PortA      BRAMPortConfig `json:"port_a" yaml:"port_a"`
	PortB      BRAMPortConfig `json:"port_b" yaml:"port_b"`
	ToggleRate float64        `json:"toggle_rate" yaml:"toggle_rate"`
}

// BRAMPortOutput is the computed state of one port.
type BRAMPortOutput struct {
	ClockFrequency   types.Hertz `json:"clock_frequency"`
	OutputSignalRate float64     `json:"output_signal_rate"`
	RAMDepth         int         `json:"ram_depth"`
}

// BRAMOutput is rebuilt on every Compute.
type BRAMOutput struct {
	PortA             BRAMPortOutput `json:"port_a"`
	PortB             BRAMPortOutput `json:"port_b"`
	BlockPower        float64        `json:"block_power"`
	InterconnectPower float64        `json:"interconnect_power"`
	Percentage        float64        `json:"percentage"`
	Messages          []diag.Message `json:"messages"`
}

// BRAM is a group of identically configured block RAMs.
type BRAM struct {
	BRAMConfig
	Output BRAMOutput `json:"output"`
}

// BRAMTotals are derived by Compute.
type BRAMTotals struct {
	BlockPower        float64 `json:"block_power"`
	InterconnectPower float64 `json:"interconnect_power"`
	BRAM18K           int     `json:"bram_18k"`
	BRAM36K           int     `json:"bram_36k"`
}

// Power is the block RAM contribution to device dynamic power.
func (t BRAMTotals) Power() float64 { return t.BlockPower + t.InterconnectPower }

// BRAMModule owns the device's block RAM entries.
type BRAMModule struct {
	coeffs *coeff.Store
	res    *Resources
	items  collection[BRAM]
	totals BRAMTotals
}

func newBRAMModule(coeffs *coeff.Store, res *Resources) *BRAMModule {
	return &BRAMModule{
		coeffs: coeffs,
		res:    res,
		items:  newCollection[BRAM](ErrBRAMNotFound),
	}
}

// List returns a copy of every BRAM group in insertion order.
func (m *BRAMModule) List() []BRAM { return m.items.snapshot() }
// Len returns the number of BRAM groups.
func (m *BRAMModule) Len() int { return m.items.len() }

// Get returns the BRAM group at index i.
func (m *BRAMModule) Get(i int) (BRAM, error) {
	it, err := m.items.at(i)
	if err != nil {
		return BRAM{}, err
	}
	return *it, nil
}

// Add validates cfg and appends it, returning its index.
func (m *BRAMModule) Add(cfg BRAMConfig) (int, error) {
	if err := m.validate(cfg, -1); err != nil {
		return -1, err
	}
	return m.items.append(BRAM{BRAMConfig: cfg}), nil
}

// Update replaces the editable fields of the BRAM group at index i.
func (m *BRAMModule) Update(i int, cfg BRAMConfig) error {
	it, err := m.items.at(i)
	if err != nil {
		return err
	}
	if err := m.validate(cfg, i); err != nil {
		return err
	}
	it.BRAMConfig = cfg
	return nil
}

// Remove deletes the BRAM group at index i.
func (m *BRAMModule) Remove(i int) error { return m.items.remove(i) }
// Totals returns the totals of the last Compute.
func (m *BRAMModule) Totals() BRAMTotals { return m.totals }

func (m *BRAMModule) validate(cfg BRAMConfig, self int) error {
	info, ok := bramTypes[cfg.Type]
	if !ok {
		return fmt.Errorf("%w: unknown type %q", ErrBRAMValidation, cfg.Type)
	}
	if cfg.BRAMUsed < 0 {
		return fmt.Errorf("%w: negative bram_used", ErrBRAMValidation)
	}
	if !util.InRange01(cfg.ToggleRate) {
		return fmt.Errorf("%w: toggle rate %v outside [0,1]", ErrBRAMValidation, cfg.ToggleRate)
	}
	for _, port := range []struct {
		name string
		p    BRAMPortConfig
	}{{"A", cfg.PortA}, {"B", cfg.PortB}} {
		name, p := port.name, port.p
		if p.Width < 0 || p.Width > info.maxWidth() {
			return fmt.Errorf("%w: port %s width %d outside [0,%d]", ErrBRAMValidation, name, p.Width, info.maxWidth())
		}
		if !util.InRange01(p.WriteEnableRate) || !util.InRange01(p.ReadEnableRate) {
			return fmt.Errorf("%w: port %s enable rate outside [0,1]", ErrBRAMValidation, name)
		}
	}

	used := info.equivalent36K() * float64(cfg.BRAMUsed)
	for _, o := range m.items.others(self) {
		used += bramTypes[o.Type].equivalent36K() * float64(o.BRAMUsed)
	}
	if used > float64(m.res.BRAM36K) {
		return fmt.Errorf("%w: %.1f 36K blocks exceed the %d available", ErrBRAMValidation, used, m.res.BRAM36K)
	}
	return nil
}

// clockFanOut counts two loads per port bound to the clock.
func (m *BRAMModule) clockFanOut(port string) int {
	n := 0
	for _, it := range m.items.items {
		if !it.Enable {
			continue
		}
		if it.PortA.Clock == port {
			n += 2
		}
		if it.PortB.Clock == port {
			n += 2
		}
	}
	return n
}

type bramCoeffs struct {
	write, read, inter, fifo float64
}

func (m *BRAMModule) coefficients(info bramInfo) (bramCoeffs, error) {
	r := m.coeffs.Reader("bram")
	s := info.suffix()
	c := bramCoeffs{
		write: r.Get("WRITE_CAP" + s),
		read:  r.Get("READ_CAP" + s),
		inter: r.Get("INT_CAP" + s),
		fifo:  r.Get("FIFO_CAP" + s),
	}
	if err := r.Err(); err != nil {
		return bramCoeffs{}, fmt.Errorf("bram: %w", err)
	}
	return c, nil
}

// portPower returns the block and interconnect power of one port and fills
// its output. ok is false when the port's clock does not resolve.
func (m *BRAMModule) portPower(it *BRAM, info bramInfo, c bramCoeffs, p BRAMPortConfig,
	write, read bool, out *BRAMPortOutput) (block, inter float64, ok bool) {
	clk, found := m.res.FindClock(p.Clock)
	if !found {
		return 0, 0, false
	}

	mhz := clk.Frequency.MHz()
	w := float64(p.Width)
	n := float64(it.BRAMUsed)
	t := it.ToggleRate

	out.ClockFrequency = clk.Frequency
	out.RAMDepth = it.Type.Depth(p.Width)

	var enable float64
	if write {
		block += c.write * w * p.WriteEnableRate * t * mhz * n
		enable = p.WriteEnableRate
	}
	if read {
		block += c.read * w * p.ReadEnableRate * t * mhz * n
		inter += c.inter * w * p.ReadEnableRate * t * mhz * n
		enable = p.ReadEnableRate
	}
	if info.kind == bramFIFO {
		block += c.fifo * mhz * n * enable
	}
	out.OutputSignalRate = mhz * t * enable
	return block, inter, true
}

// Compute rebuilds every BRAM group's output and the module totals.
func (m *BRAMModule) Compute() error {
	vcc2 := util.Sq(m.res.Voltages.Core)

	var totals BRAMTotals
	for _, it := range m.items.items {
		out := BRAMOutput{}
		if !it.Enable {
			out.Messages = append(out.Messages, diag.New(diag.BRAMDisabled, nil))
			it.Output = out
			continue
		}
		info := bramTypes[it.Type]
		if info.is36K {
			totals.BRAM36K += it.BRAMUsed
		} else {
			totals.BRAM18K += it.BRAMUsed
		}

		c, err := m.coefficients(info)
		if err != nil {
			return err
		}
		aw, ar, bw, br := info.roles()

		var block, inter float64
		for _, port := range []struct {
			name        string
			cfg         BRAMPortConfig
			write, read bool
			out         *BRAMPortOutput
		}{
			{"A", it.PortA, aw, ar, &out.PortA},
			{"B", it.PortB, bw, br, &out.PortB},
		} {
			if port.cfg.Width == 0 {
				out.Messages = append(out.Messages, diag.New(diag.BRAMPortUnused, diag.Args{"port": port.name}))
				continue
			}
			b, i, ok := m.portPower(it, info, c, port.cfg, port.write, port.read, port.out)
			if !ok {
				out.Messages = append(out.Messages, diag.New(diag.BRAMBadClock,
					diag.Args{"clock": port.cfg.Clock, "port": port.name}))
				continue
			}
			block += b
			inter += i
		}
		out.BlockPower = vcc2 * block
		out.InterconnectPower = vcc2 * inter
		it.Output = out

		totals.BlockPower += out.BlockPower
		totals.InterconnectPower += out.InterconnectPower
	}

	spread(m.items.items,
		func(it *BRAM) float64 { return it.Output.BlockPower + it.Output.InterconnectPower },
		func(it *BRAM, p float64) { it.Output.Percentage = p })

	m.totals = totals
	return nil
}
