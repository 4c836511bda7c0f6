package power

import (
	"fmt"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/diag"
	"github.com/ja7ad/powerest/pkg/types"
	"github.com/ja7ad/powerest/pkg/util"
)

// PeripheralKind is the SoC block a peripheral entry describes.
type PeripheralKind string

const (
	PeriphSPI         PeripheralKind = "spi"
	PeriphJTAG        PeripheralKind = "jtag"
	PeriphI2C         PeripheralKind = "i2c"
	PeriphUART        PeripheralKind = "uart"
	PeriphUSB         PeripheralKind = "usb"
	PeriphGigE        PeripheralKind = "gige"
	PeriphGPIO        PeripheralKind = "gpio"
	PeriphPWM         PeripheralKind = "pwm"
	PeriphMemory      PeripheralKind = "memory"
	PeriphDMA         PeripheralKind = "dma"
	PeriphBCPU        PeripheralKind = "bcpu"
	PeriphACPU        PeripheralKind = "acpu"
	PeriphFPGAComplex PeripheralKind = "fpga_complex"
)

// serial kinds move DataWidth bits per toggling cycle; the rest are
// read/write buses.
var peripheralKinds = map[PeripheralKind]bool{
	PeriphSPI:         true,
	PeriphJTAG:        true,
	PeriphI2C:         true,
	PeriphUART:        true,
	PeriphGPIO:        true,
	PeriphPWM:         true,
	PeriphUSB:         false,
	PeriphGigE:        false,
	PeriphMemory:      false,
	PeriphDMA:         false,
	PeriphBCPU:        false,
	PeriphACPU:        false,
	PeriphFPGAComplex: false,
}

// PeripheralConfig holds the editable fields shared by every peripheral kind.
type PeripheralConfig struct {
	Kind       PeripheralKind `json:"kind" yaml:"kind"`
	Name       string         `json:"name" yaml:"name"`
	Enable     bool           `json:"enable" yaml:"enable"`
	Usage      string         `json:"usage" yaml:"usage"`
	Frequency  types.Hertz    `json:"frequency" yaml:"frequency"`
	DataWidth  int            `json:"data_width" yaml:"data_width"`
	ToggleRate float64        `json:"toggle_rate" yaml:"toggle_rate"`
	ReadRate   float64        `json:"read_rate" yaml:"read_rate"`
	WriteRate  float64        `json:"write_rate" yaml:"write_rate"`
	// Clock is the fabric clock of an fpga_complex interface.
	Clock string `json:"clock,omitempty" yaml:"clock,omitempty"`
}

// PeripheralOutput is rebuilt on every Compute.
type PeripheralOutput struct {
	Bandwidth  float64        `json:"bandwidth"` // MB/s
	BlockPower float64        `json:"block_power"`
	Percentage float64        `json:"percentage"`
	Messages   []diag.Message `json:"messages"`
}

// Peripheral is one hardened SoC block.
type Peripheral struct {
	PeripheralConfig
	Output PeripheralOutput `json:"output"`
}

// PeripheralTotals are derived by Compute.
type PeripheralTotals struct {
	BlockPower float64 `json:"block_power"`
	Bandwidth  float64 `json:"bandwidth"`
}

// Power is the peripheral contribution to device dynamic power.
func (t PeripheralTotals) Power() float64 { return t.BlockPower }

// PeripheralModel returns the block power of an enabled peripheral given
// its bandwidth in MB/s.
type PeripheralModel func(cfg PeripheralConfig, bandwidth float64) (float64, error)

// PeripheralModule owns the device's peripherals.
type PeripheralModule struct {
	coeffs *coeff.Store
	res    *Resources
	items  collection[Peripheral]
	models map[PeripheralKind]PeripheralModel
	totals PeripheralTotals
}

func newPeripheralModule(coeffs *coeff.Store, res *Resources) *PeripheralModule {
	return &PeripheralModule{
		coeffs: coeffs,
		res:    res,
		items:  newCollection[Peripheral](ErrPeripheralNotFound),
		models: map[PeripheralKind]PeripheralModel{},
	}
}

// SetModel installs the power model for kind. A nil model removes it.
func (m *PeripheralModule) SetModel(kind PeripheralKind, model PeripheralModel) {
	if model == nil {
		delete(m.models, kind)
		return
	}
	m.models[kind] = model
}

// List returns a copy of every peripheral in insertion order.
func (m *PeripheralModule) List() []Peripheral { return m.items.snapshot() }
// Len returns the number of peripherals.
func (m *PeripheralModule) Len() int { return m.items.len() }

// Get returns the peripheral at index i.
func (m *PeripheralModule) Get(i int) (Peripheral, error) {
	it, err := m.items.at(i)
	if err != nil {
		return Peripheral{}, err
	}
	return *it, nil
}

// Add validates cfg and appends it, returning its index.
func (m *PeripheralModule) Add(cfg PeripheralConfig) (int, error) {
	if err := m.validate(cfg); err != nil {
		return -1, err
	}
	return m.items.append(Peripheral{PeripheralConfig: cfg}), nil
}

// Update replaces the editable fields of the peripheral at index i.
func (m *PeripheralModule) Update(i int, cfg PeripheralConfig) error {
	it, err := m.items.at(i)
	if err != nil {
		return err
	}
	if err := m.validate(cfg); err != nil {
		return err
	}
	it.PeripheralConfig = cfg
	return nil
}

// Remove deletes the peripheral at index i.
func (m *PeripheralModule) Remove(i int) error { return m.items.remove(i) }
// Totals returns the totals of the last Compute.
func (m *PeripheralModule) Totals() PeripheralTotals { return m.totals }

func (m *PeripheralModule) validate(cfg PeripheralConfig) error {
	if _, ok := peripheralKinds[cfg.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrPeripheralValidation, cfg.Kind)
	}
	if cfg.Frequency < 0 {
		return fmt.Errorf("%w: negative frequency", ErrPeripheralValidation)
	}
	if cfg.DataWidth < 0 {
		return fmt.Errorf("%w: negative data width", ErrPeripheralValidation)
	}
	for _, v := range []float64{cfg.ToggleRate, cfg.ReadRate, cfg.WriteRate} {
		if !util.InRange01(v) {
			return fmt.Errorf("%w: rate %v outside [0,1]", ErrPeripheralValidation, v)
		}
	}
	if cfg.Clock != "" && cfg.Kind != PeriphFPGAComplex {
		return fmt.Errorf("%w: only fpga_complex interfaces take a fabric clock", ErrPeripheralValidation)
	}
	return nil
}

// clockFanOut counts one load per fpga_complex interface on the clock,
// enabled or not. Kept as is until the intended weighting is confirmed; see
// DESIGN.md.
func (m *PeripheralModule) clockFanOut(port string) int {
	n := 0
	for _, it := range m.items.items {
		if it.Kind == PeriphFPGAComplex && it.Clock == port {
			n++
		}
	}
	return n
}

// Bandwidth returns the data rate in MB/s implied by the rate fields.
func (c PeripheralConfig) Bandwidth() float64 {
	bytesPerCycle := float64(c.DataWidth) / 8
	if peripheralKinds[c.Kind] {
		return c.Frequency.MHz() * bytesPerCycle * c.ToggleRate
	}
	return c.Frequency.MHz() * bytesPerCycle * (c.ReadRate + c.WriteRate)
}

// Compute rebuilds every peripheral's output and the module totals.
func (m *PeripheralModule) Compute() error {
	var totals PeripheralTotals
	for _, it := range m.items.items {
		out := PeripheralOutput{}
		if !it.Enable {
			out.Messages = append(out.Messages, diag.New(diag.PeripheralDisabled, nil))
			it.Output = out
			continue
		}
		out.Bandwidth = it.Bandwidth()
		if model, ok := m.models[it.Kind]; ok {
			p, err := model(it.PeripheralConfig, out.Bandwidth)
			if err != nil {
				return fmt.Errorf("peripheral %s: %w", it.Kind, err)
			}
			out.BlockPower = p
		} else {
			out.Messages = append(out.Messages, diag.New(diag.PeripheralPending, diag.Args{"kind": it.Kind}))
		}
		it.Output = out
		totals.BlockPower += out.BlockPower
		totals.Bandwidth += out.Bandwidth
	}

	spread(m.items.items,
		func(it *Peripheral) float64 { return it.Output.BlockPower },
		func(it *Peripheral, p float64) { it.Output.Percentage = p })

	m.totals = totals
	return nil
}

// ScalarModel builds a PeripheralModel from a coefficient of the
// "peripheral" category: block power = VCC_CORE² × coefficient × bandwidth.
// The lookup fails loudly when the coefficient is not declared.
func (m *PeripheralModule) ScalarModel(name string) PeripheralModel {
	return func(_ PeripheralConfig, bandwidth float64) (float64, error) {
		c, err := m.coeffs.Scalar("peripheral", name)
		if err != nil {
			return 0, err
		}
		return util.Sq(m.res.Voltages.Core) * c * bandwidth, nil
	}
}
