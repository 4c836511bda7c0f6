package power

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/powerest/pkg/diag"
)

func TestBlocksUsed(t *testing.T) {
	assert.Equal(t, 5.0, BlocksUsed(8, 9, 10), "narrow operands are fractured")
	assert.Equal(t, 10.0, BlocksUsed(16, 16, 10))
	assert.Equal(t, 10.0, BlocksUsed(8, 16, 10))
	assert.Equal(t, 0.0, BlocksUsed(8, 8, 0))
}

func TestDSP_MultiplyPower(t *testing.T) {
	d := newDevice(t)
	addClock(t, d, "CLK", 250*mhz)
	_, err := d.DSP().Add(DSPConfig{Enable: true, Name: "fir", NumberOfMultipliers: 10, AInputWidth: 8, BInputWidth: 8, Clock: "CLK", ToggleRate: 0.2})
	require.NoError(t, err)
	_, err = d.DSP().Add(DSPConfig{Enable: true, Name: "wide", NumberOfMultipliers: 10, AInputWidth: 16, BInputWidth: 16, Clock: "CLK", ToggleRate: 0.2, Pipelining: PipeNone})
	require.NoError(t, err)
	require.NoError(t, d.Recompute())

	items := d.DSP().List()
	assert.Equal(t, 5.0, items[0].Output.BlocksUsed)
	assert.Equal(t, 10.0, items[1].Output.BlocksUsed)

	rate := 250 * 0.2 * 1.0
	assert.InDelta(t, rate, items[0].Output.OutputSignalRate, 1e-12)
	assert.InDelta(t, vcc2*scalar(t, d, "dsp", "MULT_CAP")*5*rate, items[0].Output.BlockPower, 1e-15)
	assert.InDelta(t, vcc2*scalar(t, d, "dsp", "INT_CAP")*5*rate, items[0].Output.InterconnectPower, 1e-15)
	assert.InDelta(t, 250*0.2*2.0, items[1].Output.OutputSignalRate, 1e-12, "unpipelined activity doubles")

	tot := d.DSP().Totals()
	assert.Equal(t, 15.0, tot.BlocksUsed)
	assert.Equal(t, 20, tot.Multipliers)
	assert.InDelta(t, 100.0, items[0].Output.Percentage+items[1].Output.Percentage, 1e-9)

	c, _ := d.Clocks().Get(0)
	assert.Equal(t, 20, c.Output.FanOut)
}

func TestDSP_AccumulatePower(t *testing.T) {
	d := newDevice(t)
	addClock(t, d, "CLK", 100*mhz)
	cfg := DSPConfig{Enable: true, Name: "mac", NumberOfMultipliers: 4, Mode: DSPMultiplyAccumulate, AInputWidth: 18, BInputWidth: 18, Clock: "CLK", ToggleRate: 0.5, Pipelining: PipeOutputOnly}
	_, err := d.DSP().Add(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Recompute())

	got, _ := d.DSP().Get(0)
	rate := 100 * 0.5 * 1.5
	mult := scalar(t, d, "dsp", "MULT_CAP") * 4 * rate
	acc := scalar(t, d, "dsp", "ACC_CAP") * 4 * 1.0 * 100
	assert.InDelta(t, vcc2*(mult+acc)*1.15, got.Output.BlockPower, 1e-15)
}

func TestDSP_DisabledAndBadClock(t *testing.T) {
	d := newDevice(t)
	_, err := d.DSP().Add(DSPConfig{Name: "off", NumberOfMultipliers: 2, AInputWidth: 4, BInputWidth: 4})
	require.NoError(t, err)
	_, err = d.DSP().Add(DSPConfig{Enable: true, Name: "lost", NumberOfMultipliers: 2, AInputWidth: 4, BInputWidth: 4, Clock: "X"})
	require.NoError(t, err)
	require.NoError(t, d.Recompute())

	items := d.DSP().List()
	require.Len(t, items[0].Output.Messages, 1)
	assert.Equal(t, diag.DSPDisabled, items[0].Output.Messages[0].Code)
	assert.Zero(t, items[0].Output.BlockPower+items[0].Output.InterconnectPower)
	assert.True(t, diag.Has(items[1].Output.Messages, diag.DSPBadClock))
	assert.Equal(t, 1.0, items[1].Output.BlocksUsed)
}

func TestDSP_Validation(t *testing.T) {
	d := newDevice(t)
	for _, cfg := range []DSPConfig{
		{AInputWidth: 0, BInputWidth: 8},
		{AInputWidth: 21, BInputWidth: 8},
		{AInputWidth: 8, BInputWidth: 19},
		{AInputWidth: 8, BInputWidth: 8, ToggleRate: 2},
		{AInputWidth: 8, BInputWidth: 8, Mode: "divide"},
		{AInputWidth: 8, BInputWidth: 8, Pipelining: "deep"},
		{AInputWidth: 16, BInputWidth: 16, NumberOfMultipliers: d.res.DSPs + 1},
	} {
		_, err := d.DSP().Add(cfg)
		assert.ErrorIs(t, err, ErrDSPValidation, "%+v", cfg)
	}
	assert.Zero(t, d.DSP().Len())

	// 2×DSPs fractured multipliers fit exactly
	_, err := d.DSP().Add(DSPConfig{AInputWidth: 8, BInputWidth: 8, NumberOfMultipliers: 2 * d.res.DSPs})
	require.NoError(t, err)
}

func TestDSP_BlockPowerBranches(t *testing.T) {
	type expect struct {
		pipe  float64 // Pipelining.Factor
		cap   string  // accumulator coefficient, empty for plain multiply
		half  bool    // fractured accumulator
		unreg bool    // input stage not registered
	}
	tests := []struct {
		name string
		cfg  DSPConfig
		want expect
	}{
		{
			name: "multiply",
			cfg:  DSPConfig{Mode: DSPMultiply, AInputWidth: 18, BInputWidth: 18, Pipelining: PipeInputAndOutput},
			want: expect{pipe: 1},
		},
		{
			name: "accumulate narrow",
			cfg:  DSPConfig{Mode: DSPMultiplyAccumulate, AInputWidth: 8, BInputWidth: 9, Pipelining: PipeInputAndOutput},
			want: expect{pipe: 1, cap: "ACC_CAP", half: true},
		},
		{
			name: "accumulate one wide operand",
			cfg:  DSPConfig{Mode: DSPMultiplyAccumulate, AInputWidth: 8, BInputWidth: 12, Pipelining: PipeInputAndOutput},
			want: expect{pipe: 1, cap: "ACC_CAP"},
		},
		{
			name: "add-sub input only",
			cfg:  DSPConfig{Mode: DSPMultiplyAddSub, AInputWidth: 16, BInputWidth: 16, Pipelining: PipeInputOnly},
			want: expect{pipe: 1.5, cap: "ADDSUB_CAP"},
		},
		{
			name: "add-sub unpipelined",
			cfg:  DSPConfig{Mode: DSPMultiplyAddSub, AInputWidth: 16, BInputWidth: 16, Pipelining: PipeNone},
			want: expect{pipe: 2, cap: "ADDSUB_CAP", unreg: true},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := newDevice(t)
			addClock(t, d, "CLK", 200*mhz)
			cfg := tc.cfg
			cfg.Enable, cfg.Name, cfg.Clock = true, "dsp", "CLK"
			cfg.NumberOfMultipliers, cfg.ToggleRate = 6, 0.25
			_, err := d.DSP().Add(cfg)
			require.NoError(t, err)
			require.NoError(t, d.Recompute())

			got, err := d.DSP().Get(0)
			require.NoError(t, err)

			blocks := BlocksUsed(cfg.AInputWidth, cfg.BInputWidth, 6)
			rate := 200 * 0.25 * tc.want.pipe
			want := scalar(t, d, "dsp", "MULT_CAP") * blocks * rate
			if tc.want.cap != "" {
				factor := 1.0
				if tc.want.half {
					factor = 0.5
				}
				want += scalar(t, d, "dsp", tc.want.cap) * 6 * factor * 200
			}
			if tc.want.unreg {
				want *= 1.15
			}
			assert.InDelta(t, rate, got.Output.OutputSignalRate, 1e-12)
			assert.InDelta(t, vcc2*want, got.Output.BlockPower, 1e-15)
			assert.InDelta(t, vcc2*scalar(t, d, "dsp", "INT_CAP")*blocks*rate, got.Output.InterconnectPower, 1e-15)
		})
	}
}
