package power

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/powerest/pkg/diag"
)

func TestBRAMType_Depth(t *testing.T) {
	assert.Equal(t, 512, BRAM18KSDP.Depth(32))
	assert.Equal(t, 512, BRAM18KSDP.Depth(36), "parity widths use 18432 bits")
	assert.Equal(t, 1024, BRAM36KSDP.Depth(36))
	assert.Equal(t, 0, BRAM36KSDP.Depth(0))
	assert.Equal(t, 0, BRAMType("bogus").Depth(8))
}

func TestBRAM_SDPPower(t *testing.T) {
	d := newDevice(t)
	addClock(t, d, "WR", 100*mhz)
	addClock(t, d, "RD", 100*mhz)
	_, err := d.BRAM().Add(BRAMConfig{
		Enable:     true,
		Name:       "buf",
		Type:       BRAM36KSDP,
		BRAMUsed:   2,
		PortA:      BRAMPortConfig{Clock: "WR", Width: 36, WriteEnableRate: 0.5},
		PortB:      BRAMPortConfig{Clock: "RD", Width: 36, ReadEnableRate: 0.5},
		ToggleRate: 0.5,
	})
	require.NoError(t, err)
	require.NoError(t, d.Recompute())

	got, err := d.BRAM().Get(0)
	require.NoError(t, err)

	c := func(n string) float64 { return scalar(t, d, "bram", n) }
	common := 36 * 0.5 * 0.5 * 100 * 2.0
	assert.InDelta(t, vcc2*(c("WRITE_CAP_36K")+c("READ_CAP_36K"))*common, got.Output.BlockPower, 1e-15)
	assert.InDelta(t, vcc2*c("INT_CAP_36K")*common, got.Output.InterconnectPower, 1e-15)
	assert.Equal(t, 1024, got.Output.PortA.RAMDepth)
	assert.InDelta(t, 25.0, got.Output.PortB.OutputSignalRate, 1e-12)
	assert.Empty(t, got.Output.Messages)

	tot := d.BRAM().Totals()
	assert.Equal(t, 2, tot.BRAM36K)
	assert.Zero(t, tot.BRAM18K)

	for _, clk := range d.Clocks().List() {
		assert.Equal(t, 2, clk.Output.FanOut, clk.Port)
	}
}

func TestBRAM_FIFOAddsControlPower(t *testing.T) {
	d := newDevice(t)
	addClock(t, d, "CLK", 100*mhz)
	port := BRAMPortConfig{Clock: "CLK", Width: 18, WriteEnableRate: 0.5, ReadEnableRate: 0.5}
	_, err := d.BRAM().Add(BRAMConfig{Enable: true, Name: "sdp", Type: BRAM18KSDP, BRAMUsed: 1, PortA: port, PortB: port, ToggleRate: 0.5})
	require.NoError(t, err)
	_, err = d.BRAM().Add(BRAMConfig{Enable: true, Name: "fifo", Type: BRAM18KFIFO, BRAMUsed: 1, PortA: port, PortB: port, ToggleRate: 0.5})
	require.NoError(t, err)
	require.NoError(t, d.Recompute())

	items := d.BRAM().List()
	fifo := scalar(t, d, "bram", "FIFO_CAP_18K")
	assert.InDelta(t, vcc2*fifo*100*0.5*2, items[1].Output.BlockPower-items[0].Output.BlockPower, 1e-15)

	c, _ := d.Clocks().Get(0)
	assert.Equal(t, 8, c.Output.FanOut)
}

func TestBRAM_PortDiagnostics(t *testing.T) {
	d := newDevice(t)
	addClock(t, d, "CLK", 100*mhz)
	_, err := d.BRAM().Add(BRAMConfig{Enable: true, Name: "rom", Type: BRAM18KROM, BRAMUsed: 1,
		PortA: BRAMPortConfig{Clock: "CLK", Width: 16, ReadEnableRate: 1},
		PortB: BRAMPortConfig{Clock: "CLK"},
	})
	require.NoError(t, err)
	_, err = d.BRAM().Add(BRAMConfig{Enable: true, Name: "lost", Type: BRAM18KTDP, BRAMUsed: 1,
		PortA: BRAMPortConfig{Clock: "MISSING", Width: 16, ReadEnableRate: 1},
		PortB: BRAMPortConfig{Clock: "CLK", Width: 16, ReadEnableRate: 1},
		ToggleRate: 0.25,
	})
	require.NoError(t, err)
	_, err = d.BRAM().Add(BRAMConfig{Name: "off", Type: BRAM18KTDP, BRAMUsed: 1})
	require.NoError(t, err)
	require.NoError(t, d.Recompute())

	items := d.BRAM().List()
	assert.True(t, diag.Has(items[0].Output.Messages, diag.BRAMPortUnused))
	assert.Equal(t, diag.Info, diag.Worst(items[0].Output.Messages))

	assert.True(t, diag.Has(items[1].Output.Messages, diag.BRAMBadClock))
	assert.Greater(t, items[1].Output.BlockPower, 0.0, "port B still counts")

	require.Len(t, items[2].Output.Messages, 1)
	assert.Equal(t, diag.BRAMDisabled, items[2].Output.Messages[0].Code)
	assert.Zero(t, items[2].Output.BlockPower+items[2].Output.InterconnectPower)
}

func TestBRAM_Validation(t *testing.T) {
	d := newDevice(t)
	for _, cfg := range []BRAMConfig{
		{Type: "bram_9k"},
		{Type: BRAM18KSDP, BRAMUsed: -1},
		{Type: BRAM18KSDP, PortA: BRAMPortConfig{Width: 37}},
		{Type: BRAM36KSDP, PortB: BRAMPortConfig{Width: 8, ReadEnableRate: 1.1}},
		{Type: BRAM36KSDP, ToggleRate: -1},
		{Type: BRAM36KSDP, BRAMUsed: d.res.BRAM36K + 1},
	} {
		_, err := d.BRAM().Add(cfg)
		assert.ErrorIs(t, err, ErrBRAMValidation, "%+v", cfg)
	}

	_, err := d.BRAM().Add(BRAMConfig{Type: BRAM18KSDP, BRAMUsed: d.res.BRAM18K()})
	require.NoError(t, err, "18K blocks count as half a tile")
	_, err = d.BRAM().Add(BRAMConfig{Type: BRAM18KSDP, BRAMUsed: 1})
	require.ErrorIs(t, err, ErrBRAMValidation)
}
