package power

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/diag"
)

func TestPeripheral_Bandwidth(t *testing.T) {
	spi := PeripheralConfig{Kind: PeriphSPI, Frequency: 50 * mhz, DataWidth: 8, ToggleRate: 0.5}
	assert.InDelta(t, 25.0, spi.Bandwidth(), 1e-12)

	ddr := PeripheralConfig{Kind: PeriphMemory, Frequency: 400 * mhz, DataWidth: 32, ReadRate: 0.25, WriteRate: 0.25}
	assert.InDelta(t, 800.0, ddr.Bandwidth(), 1e-12)
}

func TestPeripheral_PendingModel(t *testing.T) {
	d := newDevice(t)
	_, err := d.Peripherals().Add(PeripheralConfig{Kind: PeriphUART, Name: "console", Enable: true, Frequency: 100 * mhz, DataWidth: 8, ToggleRate: 0.1})
	require.NoError(t, err)
	_, err = d.Peripherals().Add(PeripheralConfig{Kind: PeriphUSB, Name: "otg", Frequency: 60 * mhz})
	require.NoError(t, err)
	require.NoError(t, d.Recompute())

	items := d.Peripherals().List()
	assert.True(t, diag.Has(items[0].Output.Messages, diag.PeripheralPending))
	assert.Zero(t, items[0].Output.BlockPower)
	assert.InDelta(t, 10.0, items[0].Output.Bandwidth, 1e-12)
	assert.Zero(t, items[0].Output.Percentage)

	require.Len(t, items[1].Output.Messages, 1)
	assert.Equal(t, diag.PeripheralDisabled, items[1].Output.Messages[0].Code)
}

func TestPeripheral_ScalarModel(t *testing.T) {
	d := newDevice(t)
	p := d.Peripherals()
	p.SetModel(PeriphSPI, p.ScalarModel("SPI"))
	_, err := p.Add(PeripheralConfig{Kind: PeriphSPI, Name: "flash", Enable: true, Frequency: 50 * mhz, DataWidth: 8, ToggleRate: 0.5})
	require.NoError(t, err)
	require.NoError(t, d.Recompute())

	got, _ := p.Get(0)
	assert.InDelta(t, vcc2*scalar(t, d, "peripheral", "SPI")*25, got.Output.BlockPower, 1e-15)
	assert.InDelta(t, 100.0, got.Output.Percentage, 1e-9)
	assert.Empty(t, got.Output.Messages)

	p.SetModel(PeriphSPI, p.ScalarModel("QSPI"))
	err = d.Recompute()
	assert.ErrorIs(t, err, coeff.ErrCoefficientNotFound)

	boom := errors.New("boom")
	p.SetModel(PeriphSPI, func(PeripheralConfig, float64) (float64, error) { return 0, boom })
	assert.ErrorIs(t, d.Recompute(), boom)

	p.SetModel(PeriphSPI, nil)
	require.NoError(t, d.Recompute())
}

// Every fpga_complex interface on a clock adds one load, enabled or not.
func TestPeripheral_ClockFanOutIgnoresEnable(t *testing.T) {
	d := newDevice(t)
	addClock(t, d, "AXI", 200*mhz)
	_, err := d.Peripherals().Add(PeripheralConfig{Kind: PeriphFPGAComplex, Name: "m0", Enable: true, Clock: "AXI"})
	require.NoError(t, err)
	_, err = d.Peripherals().Add(PeripheralConfig{Kind: PeriphFPGAComplex, Name: "m1", Clock: "AXI"})
	require.NoError(t, err)
	require.NoError(t, d.Recompute())

	c, _ := d.Clocks().Get(0)
	assert.Equal(t, 2, c.Output.FanOut)
}

func TestPeripheral_Validation(t *testing.T) {
	d := newDevice(t)
	for _, cfg := range []PeripheralConfig{
		{Kind: "can"},
		{Kind: PeriphI2C, Frequency: -1},
		{Kind: PeriphI2C, DataWidth: -8},
		{Kind: PeriphDMA, ReadRate: 2},
		{Kind: PeriphGigE, Clock: "AXI"},
	} {
		_, err := d.Peripherals().Add(cfg)
		assert.ErrorIs(t, err, ErrPeripheralValidation, "%+v", cfg)
	}
	_, err := d.Peripherals().Get(0)
	assert.ErrorIs(t, err, ErrPeripheralNotFound)
}
