package power

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/resources"
)

func TestManager_OpenGetRemove(t *testing.T) {
	m := NewManager(WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))))
	id, d, err := m.Open(filepath.FromSlash(fixture))
	require.NoError(t, err)
	assert.Equal(t, "gemini-1vg28", d.Name())
	assert.Equal(t, 40_000, d.Registry().LUTs)

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, d, got)
	assert.Equal(t, []string{id}, m.IDs())

	require.NoError(t, m.Remove(id))
	_, err = m.Get(id)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.ErrorIs(t, m.Remove(id), ErrDeviceNotFound)
	assert.Empty(t, m.IDs())
}

func TestManager_SharesCoefficientStore(t *testing.T) {
	m := NewManager()
	id1, d1, err := m.Open(filepath.FromSlash(fixture))
	require.NoError(t, err)
	id2, d2, err := m.Open(filepath.FromSlash(fixture))
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.NotSame(t, d1, d2)
	assert.Same(t, d1.coeffs, d2.coeffs)
	assert.Len(t, m.IDs(), 2)

	// devices are independent
	addClock(t, d1, "CLK", mhz)
	assert.Zero(t, d2.Clocks().Len())
}

func TestManager_Register(t *testing.T) {
	m := NewManager()
	d := NewDevice("adhoc", coeff.New(&coeff.Document{Name: "empty"}), resources.Default())
	id := m.Register(d)
	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, d, got)
}

func TestManager_OpenErrors(t *testing.T) {
	m := NewManager()
	_, _, err := m.Open("does/not/exist.yaml")
	assert.ErrorIs(t, err, resources.ErrDescriptor)

	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\ncoefficients: missing.yaml\n"), 0o644))
	_, _, err = m.Open(path)
	assert.ErrorIs(t, err, coeff.ErrDataFile)
	assert.Empty(t, m.IDs())
}
