package resources

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Descriptor is the part of a device description the estimator needs:
// capacities, bank layout and where the coefficient document lives.
type Descriptor struct {
	Name         string           `yaml:"name"`
	Series       string           `yaml:"series"`
	Package      string           `yaml:"package"`
	Coefficients string           `yaml:"coefficients"`
	LUTs         int              `yaml:"luts"`
	FlipFlops    int              `yaml:"flip_flops"`
	CLBs         int              `yaml:"clbs"`
	DSPs         int              `yaml:"dsps"`
	BRAM36K      int              `yaml:"bram36k"`
	Banks        map[BankType]int `yaml:"banks"`
	Overrides    Overrides        `yaml:"overrides"`

	path string
}

// LoadDescriptor reads the YAML descriptor at path. A relative coefficients
// path is resolved against the descriptor's own directory.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptor, err)
	}

	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDescriptor, path, err)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("%w: %s: missing name", ErrDescriptor, path)
	}
	if d.Coefficients == "" {
		return nil, fmt.Errorf("%w: %s: missing coefficients path", ErrDescriptor, path)
	}

	d.path = path
	if !filepath.IsAbs(d.Coefficients) {
		d.Coefficients = filepath.Join(filepath.Dir(path), d.Coefficients)
	}
	return &d, nil
}

// Path returns the file the descriptor was loaded from.
func (d *Descriptor) Path() string { return d.path }

// Registry derives the device registry: defaults, then descriptor facts,
// then explicit overrides.
func (d *Descriptor) Registry() (*Registry, error) {
	r := Default()
	r.Device = d.Name
	if d.LUTs > 0 {
		r.LUTs = d.LUTs
		// 8 LUT6 per CLB and 2 flip-flops per LUT unless stated
		r.CLBs = d.LUTs / 8
		r.FlipFlops = 2 * d.LUTs
	}
	if d.FlipFlops > 0 {
		r.FlipFlops = d.FlipFlops
	}
	if d.CLBs > 0 {
		r.CLBs = d.CLBs
	}
	if d.DSPs > 0 {
		r.DSPs = d.DSPs
	}
	if d.BRAM36K > 0 {
		r.BRAM36K = d.BRAM36K
	}
	if len(d.Banks) > 0 {
		r.Banks = make(map[BankType]int, len(d.Banks))
		for t, n := range d.Banks {
			r.Banks[t] = n
		}
	}
	r.Apply(d.Overrides)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
