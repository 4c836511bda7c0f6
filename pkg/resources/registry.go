package resources

import (
	"fmt"
	"strings"
)

// BankType is the IO bank flavour.
type BankType string

const (
	HP BankType = "HP" // high performance, up to 1.8 V
	HR BankType = "HR" // high range, up to 3.3 V
)

// Voltages are the nominal supply levels in volts.
type Voltages struct {
	Core   float64 `yaml:"core"`
	Aux    float64 `yaml:"aux"`
	BootIO float64 `yaml:"boot_io"`
	SoCIO  float64 `yaml:"soc_io"`
	GigEIO float64 `yaml:"gige_io"`
	USBIO  float64 `yaml:"usb_io"`
	DDRIO  float64 `yaml:"ddr_io"`
}

// Registry holds the fixed per-device capacities and supplies used by the
// power models. Read-only once a device is built.
type Registry struct {
	Device string

	LUTs      int
	FlipFlops int
	CLBs      int
	DSPs      int
	BRAM36K   int

	Banks      map[BankType]int
	IOsPerBank int

	// Placeholders until the descriptor carries clocking data.
	GlobalClocks   int
	FabricPLLs     int
	MaxClockFanOut int

	Voltages Voltages
}

// Default returns a registry sized like the smallest Gemini part. Every
// value here can be replaced through Overrides.
func Default() *Registry {
	return &Registry{
		Device:         "gemini",
		LUTs:           40_000,
		FlipFlops:      80_000,
		CLBs:           5_000,
		DSPs:           56,
		BRAM36K:        56,
		Banks:          map[BankType]int{HP: 2, HR: 3},
		IOsPerBank:     40,
		GlobalClocks:   16,
		FabricPLLs:     4,
		MaxClockFanOut: 10_000,
		Voltages: Voltages{
			Core:   0.8,
			Aux:    1.8,
			BootIO: 1.8,
			SoCIO:  1.8,
			GigEIO: 2.5,
			USBIO:  3.3,
			DDRIO:  1.2,
		},
	}
}

// BRAM18K returns the number of 18K halves available.
func (r *Registry) BRAM18K() int { return 2 * r.BRAM36K }

// IOPins returns the number of user IO pins in banks of type t.
func (r *Registry) IOPins(t BankType) int { return r.Banks[t] * r.IOsPerBank }

// Clone returns a deep copy.
func (r *Registry) Clone() *Registry {
	cp := *r
	cp.Banks = make(map[BankType]int, len(r.Banks))
	for k, v := range r.Banks {
		cp.Banks[k] = v
	}
	return &cp
}

// Validate checks that the registry can describe a device.
func (r *Registry) Validate() error {
	var problems []string
	check := func(name string, v int) {
		if v < 0 {
			problems = append(problems, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	check("luts", r.LUTs)
	check("flip_flops", r.FlipFlops)
	check("clbs", r.CLBs)
	check("dsps", r.DSPs)
	check("bram36k", r.BRAM36K)
	check("global_clocks", r.GlobalClocks)
	check("fabric_plls", r.FabricPLLs)
	check("max_clock_fanout", r.MaxClockFanOut)
	for t, n := range r.Banks {
		check("banks."+string(t), n)
	}
	if r.IOsPerBank <= 0 {
		problems = append(problems, "ios_per_bank must be > 0")
	}
	if r.Voltages.Core <= 0 || r.Voltages.Aux <= 0 {
		problems = append(problems, "core and aux voltages must be > 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRegistry, strings.Join(problems, "; "))
	}
	return nil
}

// Overrides replaces registry values field by field. Nil fields keep the
// current value.
type Overrides struct {
	LUTs           *int             `yaml:"luts"`
	FlipFlops      *int             `yaml:"flip_flops"`
	CLBs           *int             `yaml:"clbs"`
	DSPs           *int             `yaml:"dsps"`
	BRAM36K        *int             `yaml:"bram36k"`
	Banks          map[BankType]int `yaml:"banks"`
	IOsPerBank     *int             `yaml:"ios_per_bank"`
	GlobalClocks   *int             `yaml:"global_clocks"`
	FabricPLLs     *int             `yaml:"fabric_plls"`
	MaxClockFanOut *int             `yaml:"max_clock_fanout"`
	Voltages       *Voltages        `yaml:"voltages"`
}

// Apply merges o into r.
func (r *Registry) Apply(o Overrides) {
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&r.LUTs, o.LUTs)
	set(&r.FlipFlops, o.FlipFlops)
	set(&r.CLBs, o.CLBs)
	set(&r.DSPs, o.DSPs)
	set(&r.BRAM36K, o.BRAM36K)
	set(&r.IOsPerBank, o.IOsPerBank)
	set(&r.GlobalClocks, o.GlobalClocks)
	set(&r.FabricPLLs, o.FabricPLLs)
	set(&r.MaxClockFanOut, o.MaxClockFanOut)
	for t, n := range o.Banks {
		if r.Banks == nil {
			r.Banks = map[BankType]int{}
		}
		r.Banks[t] = n
	}
	if o.Voltages != nil {
		v := *o.Voltages
		// zero keeps the current level
		merge := func(dst *float64, src float64) {
			if src > 0 {
				*dst = src
			}
		}
		merge(&r.Voltages.Core, v.Core)
		merge(&r.Voltages.Aux, v.Aux)
		merge(&r.Voltages.BootIO, v.BootIO)
		merge(&r.Voltages.SoCIO, v.SoCIO)
		merge(&r.Voltages.GigEIO, v.GigEIO)
		merge(&r.Voltages.USBIO, v.USBIO)
		merge(&r.Voltages.DDRIO, v.DDRIO)
	}
}
