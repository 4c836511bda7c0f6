package power

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rs/xid"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/resources"
)

// Manager keeps the open devices of a process, keyed by generated ids.
// Coefficient documents are loaded once per path and shared between devices.
type Manager struct {
	mu      sync.RWMutex
	devices map[string]*Device
	stores  map[string]*coeff.Store
	opts    []Option
}

// NewManager returns an empty manager. opts are applied to every device it
// opens.
func NewManager(opts ...Option) *Manager {
	return &Manager{
		devices: map[string]*Device{},
		stores:  map[string]*coeff.Store{},
		opts:    opts,
	}
}

// Open loads the descriptor at path, its coefficient document and registry,
// and registers a new empty device.
func (m *Manager) Open(path string, opts ...Option) (string, *Device, error) {
	desc, err := resources.LoadDescriptor(path)
	if err != nil {
		return "", nil, err
	}
	reg, err := desc.Registry()
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}
	store, err := m.store(desc.Coefficients)
	if err != nil {
		return "", nil, err
	}

	d := NewDevice(desc.Name, store, reg, append(slices.Clone(m.opts), opts...)...)
	return m.Register(d), d, nil
}

func (m *Manager) store(path string) (*coeff.Store, error) {
	m.mu.RLock()
	s, ok := m.stores[path]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := coeff.Load(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.stores[path]; ok {
		return cached, nil
	}
	m.stores[path] = s
	return s, nil
}

// Register adds an already built device and returns its id.
func (m *Manager) Register(d *Device) string {
	id := xid.New().String()
	m.mu.Lock()
	m.devices[id] = d
	m.mu.Unlock()
	return id
}

func (m *Manager) Get(id string) (*Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}
	return d, nil
}

func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; !ok {
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, id)
	}
	delete(m.devices, id)
	return nil
}

// IDs returns the registered ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
