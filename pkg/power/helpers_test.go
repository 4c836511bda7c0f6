package power

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/resources"
	"github.com/ja7ad/powerest/pkg/types"
)

const fixture = "../../testdata/gemini/device.yaml"

const vcc2 = 0.8 * 0.8

// newDevice builds an empty device from the gemini fixture.
func newDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	desc, err := resources.LoadDescriptor(filepath.FromSlash(fixture))
	require.NoError(t, err)
	reg, err := desc.Registry()
	require.NoError(t, err)
	store, err := coeff.Load(desc.Coefficients)
	require.NoError(t, err)
	return NewDevice(desc.Name, store, reg, opts...)
}

// scalar reads a dynamic coefficient of the fixture.
func scalar(t *testing.T, d *Device, cat coeff.Category, name string) float64 {
	t.Helper()
	v, err := d.coeffs.Scalar(cat, name)
	require.NoError(t, err)
	return v
}

func addClock(t *testing.T, d *Device, port string, f types.Hertz) int {
	t.Helper()
	i, err := d.Clocks().Add(ClockConfig{Enable: true, Port: port, Frequency: f})
	require.NoError(t, err)
	return i
}

const mhz = types.Hertz(1e6)
