package bambu

import (
	"sort"
	"sync"

	"github.com/anicoll/souzu/internal/pkg/hub"
	"github.com/anicoll/souzu/internal/pkg/model"
)

// Registry tracks the live connection of every monitored printer.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{connections: map[string]*Connection{}}
}

// Add registers conn. It reports false if a connection for the same device
// is already registered.
func (r *Registry) Add(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := conn.Device().ID
	if _, ok := r.connections[id]; ok {
		return false
	}
	r.connections[id] = conn
	return true
}

func (r *Registry) Remove(deviceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, deviceID)
}

func (r *Registry) Get(deviceID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[deviceID]
	return conn, ok
}

// Devices lists the registered printers ordered by id.
func (r *Registry) Devices() []model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := make([]model.Device, 0, len(r.connections))
	for _, conn := range r.connections {
		devices = append(devices, conn.Device())
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}

// Latest returns the newest snapshot of a printer. ok is false for unknown
// printers.
func (r *Registry) Latest(deviceID string) (*model.StatusReport, bool) {
	conn, ok := r.Get(deviceID)
	if !ok {
		return nil, false
	}
	return conn.Latest(), true
}

func (r *Registry) Subscribe(deviceID string) (*hub.Subscription[*model.StatusReport], bool) {
	conn, ok := r.Get(deviceID)
	if !ok {
		return nil, false
	}
	return conn.Subscribe(), true
}
