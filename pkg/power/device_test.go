package power

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/diag"
	"github.com/ja7ad/powerest/pkg/resources"
)

// populate adds one instance of every submodule on a 100 MHz clock.
func populate(t *testing.T, d *Device) {
	t.Helper()
	require.NoError(t, d.Mutate(func(d *Device) error {
		if _, err := d.Clocks().Add(ClockConfig{Enable: true, Port: "CLK_100", Source: SourcePLLFabric, Frequency: 100 * mhz}); err != nil {
			return err
		}
		if _, err := d.FabricLE().Add(FabricLEConfig{Enable: true, Name: "core", LUT6: 2000, FlipFlop: 3000, Clock: "CLK_100", ToggleRate: 0.125, ClockEnableRate: 0.5}); err != nil {
			return err
		}
		if _, err := d.DSP().Add(DSPConfig{Enable: true, Name: "fir", NumberOfMultipliers: 8, AInputWidth: 16, BInputWidth: 16, Clock: "CLK_100", ToggleRate: 0.25}); err != nil {
			return err
		}
		if _, err := d.BRAM().Add(BRAMConfig{Enable: true, Name: "buf", Type: BRAM36KTDP, BRAMUsed: 4,
			PortA: BRAMPortConfig{Clock: "CLK_100", Width: 36, WriteEnableRate: 0.5, ReadEnableRate: 0.5},
			PortB: BRAMPortConfig{Clock: "CLK_100", Width: 36, WriteEnableRate: 0.5, ReadEnableRate: 0.5},
			ToggleRate: 0.25}); err != nil {
			return err
		}
		if _, err := d.IO().Add(IOConfig{Enable: true, Name: "gpio", BusWidth: 16, Direction: IODirBidirectional, Standard: LVCMOS33V,
			Clock: "CLK_100", ToggleRate: 0.25, InputEnableRate: 0.5, OutputEnableRate: 0.5}); err != nil {
			return err
		}
		_, err := d.Peripherals().Add(PeripheralConfig{Kind: PeriphUART, Name: "console", Enable: true, Frequency: 100 * mhz, DataWidth: 8, ToggleRate: 0.1})
		return err
	}))
}

func TestDevice_RecomputeIsIdempotent(t *testing.T) {
	d := newDevice(t)
	populate(t, d)
	first := d.Output()
	fle := d.FabricLE().List()
	clocks := d.Clocks().List()

	require.NoError(t, d.Recompute())
	assert.Empty(t, cmp.Diff(first, d.Output()))
	assert.Empty(t, cmp.Diff(fle, d.FabricLE().List()))
	assert.Empty(t, cmp.Diff(clocks, d.Clocks().List()))
}

func TestDevice_DynamicShares(t *testing.T) {
	d := newDevice(t)
	populate(t, d)
	out := d.Output()

	require.Len(t, out.Dynamic, 6)
	var sum, pct float64
	for _, s := range out.Dynamic {
		sum += s.Power
		pct += s.Percentage
		t.Logf("%-10s %.4e W %6.2f%%", s.Name, s.Power, s.Percentage)
	}
	assert.InDelta(t, 100.0, pct, 1e-9)
	assert.InDelta(t, sum, out.Typical.Dynamic, 1e-12, "no typical scaling by default")
	assert.InDelta(t, sum*1.25, out.Worst.Dynamic, 1e-12)

	// each submodule's own percentages sum to 100 as well
	var fle, io float64
	for _, it := range d.FabricLE().List() {
		fle += it.Output.Percentage
	}
	for _, it := range d.IO().List() {
		io += it.Output.Percentage
	}
	assert.InDelta(t, 100.0, fle, 1e-9)
	assert.InDelta(t, 100.0, io, 1e-9)
}

func TestDevice_EmptyDeviceHasOnlyStatic(t *testing.T) {
	d := newDevice(t)
	require.NoError(t, d.Recompute())
	out := d.Output()

	for _, s := range out.Dynamic {
		assert.Zero(t, s.Power, s.Name)
		assert.Zero(t, s.Percentage, s.Name)
	}
	assert.Zero(t, out.Typical.Dynamic)
	assert.Greater(t, out.Typical.Static, 0.0)
	assert.Greater(t, out.Worst.Static, out.Typical.Static)
	assert.InDelta(t, out.Typical.Static, out.Typical.Total, 1e-15)
}

func TestDevice_StaticRailsFollowBanksUsed(t *testing.T) {
	d := newDevice(t)
	require.NoError(t, d.Recompute())
	hr33 := func() (count, power float64) {
		for _, r := range d.Output().Typical.Rails {
			if r.Category == "hr_io_3_3v" {
				count, power = r.Count, power+r.Power
			}
		}
		return
	}
	n, p := hr33()
	assert.Zero(t, n)
	assert.Zero(t, p)

	require.NoError(t, d.Mutate(func(d *Device) error {
		_, err := d.IO().Add(IOConfig{Enable: true, Name: "a", BusWidth: 41, Standard: LVTTL})
		return err
	}))
	n, p = hr33()
	assert.Equal(t, 2.0, n, "41 pins span two 40-pin banks")
	assert.Greater(t, p, 0.0)

	var clb RailPower
	for _, r := range d.Output().Typical.Rails {
		if r.Category == "clb" {
			clb = r
		}
	}
	assert.Equal(t, float64(d.res.CLBs), clb.Count)
}

func TestDevice_Thermal(t *testing.T) {
	spec := DefaultSpecification()
	spec.ThetaJA = 2
	d := newDevice(t, WithSpecification(spec))
	populate(t, d)
	out := d.Output()

	for _, sc := range []ScenarioPower{out.Typical, out.Worst} {
		assert.InDelta(t, sc.Dynamic+sc.Static, sc.Total, 1e-12)
		assert.InDelta(t, float64(sc.Ambient)+2*sc.Total, float64(sc.Junction), 1e-9)
	}
	assert.Equal(t, spec.AmbientWorst, out.Worst.Ambient)
	assert.False(t, out.OverBudget)
	assert.Empty(t, out.Messages)
}

func TestDevice_BudgetAndJunctionWarnings(t *testing.T) {
	d := newDevice(t)
	populate(t, d)

	spec := d.Specification()
	spec.PowerBudget = 1e-6
	spec.MaxJunction = 30
	require.NoError(t, d.SetSpecification(spec))
	require.NoError(t, d.Recompute())

	out := d.Output()
	assert.True(t, out.OverBudget)
	assert.True(t, diag.Has(out.Messages, diag.DeviceOverBudget))
	assert.True(t, diag.Has(out.Messages, diag.DeviceJunctionHot), "worst ambient alone exceeds 30 °C")
	for _, m := range out.Messages {
		t.Logf("%s", m)
	}
}

func TestDevice_SetSpecificationRejectsInvalid(t *testing.T) {
	d := newDevice(t)
	spec := DefaultSpecification()
	spec.ThetaJA = -1
	require.ErrorIs(t, d.SetSpecification(spec), ErrInvalidSpecification)
	assert.Equal(t, DefaultSpecification(), d.Specification())

	bad := newDevice(t, WithSpecification(spec))
	assert.ErrorIs(t, bad.Recompute(), ErrInvalidSpecification)
}

func TestDevice_MissingCategoryFails(t *testing.T) {
	d := NewDevice("bare", coeff.New(&coeff.Document{Name: "empty"}), resources.Default())
	err := d.Recompute()
	require.ErrorIs(t, err, coeff.ErrCategoryNotFound)
	assert.Empty(t, d.Output().Dynamic, "output is not patched on failure")
}

func TestDevice_MutateErrorSkipsRecompute(t *testing.T) {
	d := newDevice(t)
	boom := errors.New("boom")
	err := d.Mutate(func(d *Device) error {
		addClock(t, d, "CLK", mhz)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, d.Output().Dynamic)

	var n int
	d.View(func(d *Device) { n = d.Clocks().Len() })
	assert.Equal(t, 1, n)
}

func TestDevice_MutateErrorRestoresSpecification(t *testing.T) {
	d := newDevice(t)
	boom := errors.New("boom")
	spec := DefaultSpecification()
	spec.ThetaJA = 3
	err := d.Mutate(func(d *Device) error {
		require.NoError(t, d.StageSpecification(spec))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, DefaultSpecification(), d.Specification())

	require.NoError(t, d.Mutate(func(d *Device) error { return d.StageSpecification(spec) }))
	assert.Equal(t, spec, d.Specification())

	spec.ThetaJA = -1
	err = d.Mutate(func(d *Device) error { return d.StageSpecification(spec) })
	require.ErrorIs(t, err, ErrInvalidSpecification)
	assert.Equal(t, 3.0, d.Specification().ThetaJA)
}

func TestDevice_ConcurrentMutate(t *testing.T) {
	d := newDevice(t)
	addClock(t, d, "CLK", 100*mhz)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, d.Mutate(func(d *Device) error {
				_, err := d.FabricLE().Add(FabricLEConfig{Enable: true, Name: string(rune('a' + i)), FlipFlop: 10, Clock: "CLK"})
				return err
			}))
			_ = d.Output()
		}(i)
	}
	wg.Wait()

	c, _ := d.Clocks().Get(0)
	assert.Equal(t, 80, c.Output.FanOut)
}

func TestDevice_RegistryIsCopied(t *testing.T) {
	reg := resources.Default()
	d := newDevice(t)
	d2 := NewDevice("copy", d.coeffs, reg)
	reg.LUTs = 1
	assert.Equal(t, resources.Default().LUTs, d2.Registry().LUTs)
}
