// Package design loads a design description, the list of resource instances
// of one FPGA design, and applies it to a power.Device.
package design

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ja7ad/powerest/pkg/power"
)

// Design is the YAML form of a design. Every list maps one-to-one onto the
// device submodule of the same name.
type Design struct {
	Name          string                   `yaml:"name"`
	Specification *power.Specification     `yaml:"specification"`
	Clocks        []power.ClockConfig      `yaml:"clocks"`
	FabricLE      []power.FabricLEConfig   `yaml:"fabric_le"`
	DSP           []power.DSPConfig        `yaml:"dsp"`
	BRAM          []power.BRAMConfig       `yaml:"bram"`
	IO            []power.IOConfig         `yaml:"io"`
	Peripherals   []power.PeripheralConfig `yaml:"peripherals"`

	// PeripheralModels maps a peripheral kind to a coefficient of the
	// "peripheral" category.
	PeripheralModels map[power.PeripheralKind]string `yaml:"peripheral_models"`
}

// Load reads the design at path.
func Load(path string) (*Design, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDesign, err)
	}
	d, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Parse decodes a design document. Unknown fields are rejected. Fields the
// specification block leaves out keep their power.DefaultSpecification value.
func Parse(data []byte) (*Design, error) {
	spec := power.DefaultSpecification()
	d := Design{Specification: &spec}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrDesign, err)
	}

	var keys struct {
		Specification *yaml.Node `yaml:"specification"`
	}
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDesign, err)
	}
	if keys.Specification == nil {
		d.Specification = nil
	}
	return &d, nil
}

// Apply installs the specification, adds every instance to dev in dependency
// order, clocks first, and recomputes once. A rejected design leaves dev as
// it was: the specification is restored and the instances already added are
// removed again.
func (d *Design) Apply(dev *power.Device) error {
	return dev.Mutate(func(dev *power.Device) error {
		marks := markDevice(dev)
		if err := d.add(dev); err != nil {
			marks.rollback(dev)
			return err
		}
		p := dev.Peripherals()
		for kind, name := range d.PeripheralModels {
			p.SetModel(kind, p.ScalarModel(name))
		}
		return nil
	})
}

func (d *Design) add(dev *power.Device) error {
	if d.Specification != nil {
		if err := dev.StageSpecification(*d.Specification); err != nil {
			return fmt.Errorf("%w: %w", ErrApply, err)
		}
	}
	for i, c := range d.Clocks {
		if _, err := dev.Clocks().Add(c); err != nil {
			return fmt.Errorf("%w: clock %d (%s): %w", ErrApply, i, c.Port, err)
		}
	}
	for i, c := range d.FabricLE {
		if _, err := dev.FabricLE().Add(c); err != nil {
			return fmt.Errorf("%w: fabric_le %d (%s): %w", ErrApply, i, c.Name, err)
		}
	}
	for i, c := range d.DSP {
		if _, err := dev.DSP().Add(c); err != nil {
			return fmt.Errorf("%w: dsp %d (%s): %w", ErrApply, i, c.Name, err)
		}
	}
	for i, c := range d.BRAM {
		if _, err := dev.BRAM().Add(c); err != nil {
			return fmt.Errorf("%w: bram %d (%s): %w", ErrApply, i, c.Name, err)
		}
	}
	for i, c := range d.IO {
		if _, err := dev.IO().Add(c); err != nil {
			return fmt.Errorf("%w: io %d (%s): %w", ErrApply, i, c.Name, err)
		}
	}
	for i, c := range d.Peripherals {
		if _, err := dev.Peripherals().Add(c); err != nil {
			return fmt.Errorf("%w: peripheral %d (%s): %w", ErrApply, i, c.Name, err)
		}
	}
	return nil
}

// marks records how many instances each submodule held before Apply.
type marks struct {
	clocks, fle, dsp, bram, io, periph int
}

func markDevice(dev *power.Device) marks {
	return marks{
		clocks: dev.Clocks().Len(),
		fle:    dev.FabricLE().Len(),
		dsp:    dev.DSP().Len(),
		bram:   dev.BRAM().Len(),
		io:     dev.IO().Len(),
		periph: dev.Peripherals().Len(),
	}
}

// rollback removes, newest first, every instance added after m was taken.
// The specification is restored by Mutate.
func (m marks) rollback(dev *power.Device) {
	truncate(m.periph, dev.Peripherals().Len, dev.Peripherals().Remove)
	truncate(m.io, dev.IO().Len, dev.IO().Remove)
	truncate(m.bram, dev.BRAM().Len, dev.BRAM().Remove)
	truncate(m.dsp, dev.DSP().Len, dev.DSP().Remove)
	truncate(m.fle, dev.FabricLE().Len, dev.FabricLE().Remove)
	truncate(m.clocks, dev.Clocks().Len, dev.Clocks().Remove)
}

func truncate(n int, length func() int, remove func(int) error) {
	for i := length() - 1; i >= n; i-- {
		_ = remove(i)
	}
}
