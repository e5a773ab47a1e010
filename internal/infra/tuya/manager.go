package tuya

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"smart-lock/internal/domain"
)

// Dispatcher delivers device signals to the hub.
type Dispatcher interface {
	Send(ctx context.Context, signal string, deviceIDs []string)
}

// DeviceManager keeps the device map in sync with the cloud and tells the
// hub which devices appeared, changed or disappeared.
type DeviceManager struct {
	client     *Client
	dispatcher Dispatcher
	logger     *slog.Logger

	mu      sync.RWMutex
	devices map[string]*domain.Device
}

func NewDeviceManager(client *Client, dispatcher Dispatcher, logger *slog.Logger) *DeviceManager {
	return &DeviceManager{
		client:     client,
		dispatcher: dispatcher,
		logger:     logger,
		devices:    make(map[string]*domain.Device),
	}
}

// API exposes the client used for device calls.
func (m *DeviceManager) API() *Client {
	return m.client
}

func (m *DeviceManager) Sync(ctx context.Context) error {
	m.logger.Info("syncing devices from Tuya")

	devices, err := m.client.GetDevices(ctx)
	if err != nil {
		return fmt.Errorf("fetching devices: %w", err)
	}

	var added, updated, removed []string

	m.mu.Lock()
	next := make(map[string]*domain.Device, len(devices))
	for i := range devices {
		d := devices[i]
		if _, known := m.devices[d.ID]; known {
			updated = append(updated, d.ID)
		} else {
			added = append(added, d.ID)
		}
		next[d.ID] = &d
	}
	for id := range m.devices {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	m.devices = next
	m.mu.Unlock()

	m.logger.Info("sync complete",
		"devices", len(devices),
		"added", len(added),
		"removed", len(removed),
	)

	m.dispatcher.Send(ctx, domain.SignalDeviceRemove, removed)
	m.dispatcher.Send(ctx, domain.SignalDiscoveryNew, added)
	m.dispatcher.Send(ctx, domain.SignalDeviceUpdate, updated)

	return nil
}

// Device returns a snapshot of the device with the given id.
func (m *DeviceManager) Device(id string) (domain.Device, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.devices[id]
	if !ok {
		return domain.Device{}, false
	}
	return d.Clone(), true
}

func (m *DeviceManager) DeviceIDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// ApplyStatusReport merges pushed data point values into a known device.
// Reports for unknown devices are dropped.
func (m *DeviceManager) ApplyStatusReport(ctx context.Context, deviceID string, items []domain.StatusItem) error {
	m.mu.Lock()
	d, ok := m.devices[deviceID]
	if ok {
		d.ApplyStatus(items)
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("status report for unknown device", "device", deviceID)
		return nil
	}

	m.dispatcher.Send(ctx, domain.SignalDeviceUpdate, []string{deviceID})
	return nil
}

// RefreshStatus polls the current status of a single device.
func (m *DeviceManager) RefreshStatus(ctx context.Context, deviceID string) error {
	items, err := m.client.GetDeviceStatus(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("refreshing %s: %w", deviceID, err)
	}
	return m.ApplyStatusReport(ctx, deviceID, items)
}

func (m *DeviceManager) StartPeriodicSync(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Sync(ctx); err != nil {
					m.logger.Error("periodic sync failed", "error", err)
				}
			}
		}
	}()
}
