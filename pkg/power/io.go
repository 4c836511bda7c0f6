package power

import (
	"fmt"
	"math"
	"slices"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/diag"
	"github.com/ja7ad/powerest/pkg/resources"
	"github.com/ja7ad/powerest/pkg/types"
	"github.com/ja7ad/powerest/pkg/util"
)

// IODirection selects which of a bus's pins draw input and output power.
type IODirection string

const (
	IODirInput         IODirection = "input"
	IODirOutput        IODirection = "output"
	IODirBidirectional IODirection = "bidirectional"
)

// IOType is the data rate of an IO bus.
type IOType string

const (
	IOSDR IOType = "sdr"
	IODDR IOType = "ddr"
)

// IOSync names the register stage in front of an IO bus.
type IOSync string

const (
	SyncNone     IOSync = "none"
	SyncRegister IOSync = "register"
	SyncSERDES   IOSync = "serdes"
)

func (s IOSync) coefficient() string {
	switch s {
	case SyncRegister:
		return "SYNC_REGISTER"
	case SyncSERDES:
		return "SYNC_SERDES"
	default:
		return "SYNC_NONE"
	}
}

// IODataType describes what a bus carries.
type IODataType string

const (
	DataClock  IODataType = "clock"
	DataData   IODataType = "data"
	DataReset  IODataType = "reset"
	DataEnable IODataType = "enable"
)

// SlewRate of an output driver.
type SlewRate string

const (
	SlewSlow SlewRate = "slow"
	SlewFast SlewRate = "fast"
)

// PullUpDown selects the pin's weak pull.
type PullUpDown string

const (
	PullNone PullUpDown = "none"
	PullUp   PullUpDown = "pull_up"
	PullDown PullUpDown = "pull_down"
)

var driveStrengths = []int{2, 4, 6, 8, 12, 16}

// auxShareHR is the VCCAUX_IO draw of HR banks relative to their VCCO draw.
const auxShareHR = 0.1

// IOConfig holds the editable fields of a bus of IOs.
type IOConfig struct {
	Enable                  bool        `json:"enable" yaml:"enable"`
	Name                    string      `json:"name" yaml:"name"`
	BusWidth                int         `json:"bus_width" yaml:"bus_width"`
	Direction               IODirection `json:"direction" yaml:"direction"`
	Standard                IOStandard  `json:"io_standard" yaml:"io_standard"`
	DriveStrength           int         `json:"drive_strength" yaml:"drive_strength"`
	SlewRate                SlewRate    `json:"slew_rate" yaml:"slew_rate"`
	DifferentialTermination bool        `json:"differential_termination" yaml:"differential_termination"`
	Type                    IOType      `json:"io_type" yaml:"io_type"`
	Clock                   string      `json:"clock" yaml:"clock"`
	ToggleRate              float64     `json:"toggle_rate" yaml:"toggle_rate"`
	DutyCycle               float64     `json:"duty_cycle" yaml:"duty_cycle"`
	Synchronization         IOSync      `json:"synchronization" yaml:"synchronization"`
	InputEnableRate         float64     `json:"input_enable_rate" yaml:"input_enable_rate"`
	OutputEnableRate        float64     `json:"output_enable_rate" yaml:"output_enable_rate"`
	PullUpDown              PullUpDown  `json:"io_pull_up_down" yaml:"io_pull_up_down"`
	DataType                IODataType  `json:"io_data_type" yaml:"io_data_type"`
}

// IOOutput is rebuilt on every Compute.
type IOOutput struct {
	ClockFrequency    types.Hertz        `json:"clock_frequency"`
	SignalRate        float64            `json:"signal_rate"`
	Bank              resources.BankType `json:"bank_type"`
	VCCO              float64            `json:"vcco"`
	InputIOs          int                `json:"input_ios"`
	OutputIOs         int                `json:"output_ios"`
	VCCOPower         float64            `json:"vcco_power"`
	VCCAuxPower       float64            `json:"vccaux_power"`
	VCCIntPower       float64            `json:"vccint_power"`
	BlockPower        float64            `json:"block_power"`
	InterconnectPower float64            `json:"interconnect_power"`
	Percentage        float64            `json:"percentage"`
	Messages          []diag.Message     `json:"messages"`
}

// IO is a bus of identically configured pins.
type IO struct {
	IOConfig
	Output IOOutput `json:"output"`
}

// IOTotals are derived by Compute.
type IOTotals struct {
	BlockPower        float64             `json:"block_power"`
	InterconnectPower float64             `json:"interconnect_power"`
	Pins              map[BankVoltage]int `json:"-"`
}

// Power is the IO contribution to device dynamic power.
func (t IOTotals) Power() float64 { return t.BlockPower + t.InterconnectPower }

// IOModule owns the device's IO entries.
type IOModule struct {
	coeffs *coeff.Store
	res    *Resources
	items  collection[IO]
	totals IOTotals
}

func newIOModule(coeffs *coeff.Store, res *Resources) *IOModule {
	return &IOModule{
		coeffs: coeffs,
		res:    res,
		items:  newCollection[IO](ErrIONotFound),
	}
}

// List returns a copy of every IO bus in insertion order.
func (m *IOModule) List() []IO { return m.items.snapshot() }
// Len returns the number of IO buses.
func (m *IOModule) Len() int { return m.items.len() }

// Get returns the IO bus at index i.
func (m *IOModule) Get(i int) (IO, error) {
	it, err := m.items.at(i)
	if err != nil {
		return IO{}, err
	}
	return *it, nil
}

// Add validates cfg and appends it, returning its index.
func (m *IOModule) Add(cfg IOConfig) (int, error) {
	cfg = cfg.normalized()
	if err := m.validate(cfg, -1); err != nil {
		return -1, err
	}
	return m.items.append(IO{IOConfig: cfg}), nil
}

// Update replaces the editable fields of the IO bus at index i.
func (m *IOModule) Update(i int, cfg IOConfig) error {
	it, err := m.items.at(i)
	if err != nil {
		return err
	}
	cfg = cfg.normalized()
	if err := m.validate(cfg, i); err != nil {
		return err
	}
	it.IOConfig = cfg
	return nil
}

// Remove deletes the IO bus at index i.
func (m *IOModule) Remove(i int) error { return m.items.remove(i) }

// Totals returns the totals of the last Compute. The pin map is a copy.
func (m *IOModule) Totals() IOTotals {
	t := m.totals
	t.Pins = make(map[BankVoltage]int, len(m.totals.Pins))
	for k, v := range m.totals.Pins {
		t.Pins[k] = v
	}
	return t
}

// BanksUsed returns how many banks of type bank at vcco the enabled IOs
// occupy. vcco <= 0 counts every voltage.
func (m *IOModule) BanksUsed(bank resources.BankType, vcco float64) int {
	per := m.res.IOsPerBank
	if per <= 0 {
		return 0
	}
	n := 0
	for bv, pins := range m.totals.Pins {
		if bv.Bank != bank || (vcco > 0 && math.Abs(bv.VCCO-vcco) > 1e-9) {
			continue
		}
		n += (pins + per - 1) / per
	}
	return n
}

func (c IOConfig) normalized() IOConfig {
	if c.Direction == "" {
		c.Direction = IODirInput
	}
	if c.Type == "" {
		c.Type = IOSDR
	}
	if c.Synchronization == "" {
		c.Synchronization = SyncNone
	}
	if c.DataType == "" {
		c.DataType = DataData
	}
	if c.SlewRate == "" {
		c.SlewRate = SlewSlow
	}
	if c.PullUpDown == "" {
		c.PullUpDown = PullNone
	}
	if c.DriveStrength == 0 {
		c.DriveStrength = 2
	}
	return c
}

// pins is the number of package pins the bus occupies.
func (c IOConfig) pins() int {
	info, _ := c.Standard.Info()
	if info.Differential {
		return 2 * c.BusWidth
	}
	return c.BusWidth
}

func (m *IOModule) validate(cfg IOConfig, self int) error {
	info, ok := cfg.Standard.Info()
	if !ok {
		return fmt.Errorf("%w: unknown standard %q", ErrIOValidation, cfg.Standard)
	}
	switch cfg.Direction {
	case IODirInput, IODirOutput, IODirBidirectional:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrIOValidation, cfg.Direction)
	}
	switch cfg.Type {
	case IOSDR, IODDR:
	default:
		return fmt.Errorf("%w: unknown io type %q", ErrIOValidation, cfg.Type)
	}
	switch cfg.Synchronization {
	case SyncNone, SyncRegister, SyncSERDES:
	default:
		return fmt.Errorf("%w: unknown synchronization %q", ErrIOValidation, cfg.Synchronization)
	}
	switch cfg.DataType {
	case DataClock, DataData, DataReset, DataEnable:
	default:
		return fmt.Errorf("%w: unknown data type %q", ErrIOValidation, cfg.DataType)
	}
	switch cfg.SlewRate {
	case SlewSlow, SlewFast:
	default:
		return fmt.Errorf("%w: unknown slew rate %q", ErrIOValidation, cfg.SlewRate)
	}
	switch cfg.PullUpDown {
	case PullNone, PullUp, PullDown:
	default:
		return fmt.Errorf("%w: unknown pull %q", ErrIOValidation, cfg.PullUpDown)
	}
	if !slices.Contains(driveStrengths, cfg.DriveStrength) {
		return fmt.Errorf("%w: drive strength %d not in %v", ErrIOValidation, cfg.DriveStrength, driveStrengths)
	}
	if cfg.BusWidth < 0 {
		return fmt.Errorf("%w: negative bus width", ErrIOValidation)
	}
	if cfg.DifferentialTermination && !info.Differential {
		return fmt.Errorf("%w: differential termination on single-ended %s", ErrIOValidation, cfg.Standard)
	}
	for _, rate := range []struct {
		name string
		v    float64
	}{
		{"toggle rate", cfg.ToggleRate},
		{"duty cycle", cfg.DutyCycle},
		{"input enable rate", cfg.InputEnableRate},
		{"output enable rate", cfg.OutputEnableRate},
	} {
		if !util.InRange01(rate.v) {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrIOValidation, rate.name, rate.v)
		}
	}

	pins := cfg.pins()
	for _, o := range m.items.others(self) {
		if oi, _ := o.Standard.Info(); oi.Bank == info.Bank {
			pins += o.pins()
		}
	}
	if avail := m.res.IOPins(info.Bank); pins > avail {
		return fmt.Errorf("%w: %d %s pins exceed the %d available", ErrIOValidation, pins, info.Bank, avail)
	}
	return nil
}

// directionCounts splits the pin count over input and output use.
func (c IOConfig) directionCounts() (in, out int) {
	n := c.pins()
	if c.Direction != IODirOutput {
		in = n
	}
	if c.Direction != IODirInput {
		out = n
	}
	return in, out
}

// clockFanOut counts input plus output pins of every enabled IO on the
// clock, so a bidirectional bus is counted twice. Kept as is until the
// intended weighting is confirmed; see DESIGN.md.
func (m *IOModule) clockFanOut(port string) int {
	n := 0
	for _, it := range m.items.items {
		if it.Enable && it.Clock == port {
			in, out := it.directionCounts()
			n += in + out
		}
	}
	return n
}

// SignalRate is the per-pin toggle rate in MHz for the derated frequency.
func (c IOConfig) SignalRate(freq types.Hertz) float64 {
	mhz := freq.MHz()
	switch c.DataType {
	case DataClock:
		return mhz
	case DataReset, DataEnable:
		return mhz * c.ToggleRate * c.DutyCycle
	default:
		return mhz * c.ToggleRate
	}
}

// EffectiveFrequency derates the clock for SERDES and DDR IOs.
func (c IOConfig) EffectiveFrequency(clock types.Hertz) types.Hertz {
	f := clock
	if c.Synchronization == SyncSERDES {
		f *= 0.5
	}
	if c.Type == IODDR {
		f *= 0.5
	}
	return f
}

// Compute rebuilds every IO bus's output and the module totals.
func (m *IOModule) Compute() error {
	r := m.coeffs.Reader("io")
	diffTerm := r.Get("DIFF_TERM")
	sync := map[IOSync]float64{
		SyncNone:     r.Get(SyncNone.coefficient()),
		SyncRegister: r.Get(SyncRegister.coefficient()),
		SyncSERDES:   r.Get(SyncSERDES.coefficient()),
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("io: %w", err)
	}

	totals := IOTotals{Pins: map[BankVoltage]int{}}
	for _, it := range m.items.items {
		out := IOOutput{}
		if !it.Enable {
			out.Messages = append(out.Messages, diag.New(diag.IODisabled, nil))
			it.Output = out
			continue
		}
		info, _ := it.Standard.Info()
		out.Bank = info.Bank
		out.VCCO = info.VCCO
		out.InputIOs, out.OutputIOs = it.directionCounts()
		totals.Pins[BankVoltage{info.Bank, info.VCCO}] += it.pins()

		if it.BusWidth == 0 {
			out.Messages = append(out.Messages, diag.New(diag.IOZeroBusWidth, nil))
		}

		clk, ok := m.res.FindClock(it.Clock)
		if !ok {
			out.Messages = append(out.Messages, diag.New(diag.IOBadClock, diag.Args{"clock": it.Clock}))
			it.Output = out
			continue
		}

		sr := m.coeffs.Reader(coeff.Category("io/" + string(it.Standard)))
		acIn := sr.Get("VCCO_AC_IN")
		acOut := sr.Get("VCCO_AC_OUT")
		dc := sr.Get("VCCO_DC")
		inner := sr.Get("INT_INNER")
		outer := sr.Get("INT_OUTER")
		if err := sr.Err(); err != nil {
			return fmt.Errorf("io: %w", err)
		}

		f := it.EffectiveFrequency(clk.Frequency)
		rate := it.SignalRate(f)
		in, outN := float64(out.InputIOs), float64(out.OutputIOs)
		count := float64(it.pins())

		out.ClockFrequency = f
		out.SignalRate = rate
		out.VCCOPower = util.Sq(info.VCCO)*(acIn*in*rate*it.InputEnableRate+acOut*outN*rate*it.OutputEnableRate) +
			info.VCCO*dc*outN*it.OutputEnableRate
		if info.Bank == resources.HR {
			out.VCCAuxPower = auxShareHR * out.VCCOPower
		}
		out.VCCIntPower = sync[it.Synchronization] * f.MHz() * count

		out.BlockPower = out.VCCOPower + out.VCCAuxPower + out.VCCIntPower
		if it.DifferentialTermination && it.BusWidth > 0 {
			out.BlockPower += diffTerm
		}

		var inter float64
		if it.Direction != IODirOutput {
			inter += inner * rate * it.InputEnableRate
		}
		if it.Direction != IODirInput {
			inter += outer * rate * it.OutputEnableRate
		}
		out.InterconnectPower = inter * count
		it.Output = out

		totals.BlockPower += out.BlockPower
		totals.InterconnectPower += out.InterconnectPower
	}

	spread(m.items.items,
		func(it *IO) float64 { return it.Output.BlockPower + it.Output.InterconnectPower },
		func(it *IO, p float64) { it.Output.Percentage = p })

	m.totals = totals
	return nil
}
