package lock

import (
	"context"
	"fmt"
	"log/slog"

	"smart-lock/internal/application"
	"smart-lock/internal/domain"
)

type Platform struct {
	devices DeviceSource
	api     API
	logger  *slog.Logger
}

func NewPlatform(devices DeviceSource, api API, logger *slog.Logger) *Platform {
	return &Platform{
		devices: devices,
		api:     api,
		logger:  logger,
	}
}

// Setup registers entities for every device already known, then follows
// discovery signals for devices that appear later. The returned function
// stops following discovery.
func (p *Platform) Setup(ctx context.Context, add application.AddEntitiesFunc, dispatcher application.Dispatcher) (func(), error) {
	if err := p.Discover(ctx, add, p.devices.DeviceIDs()); err != nil {
		return nil, fmt.Errorf("initial lock discovery: %w", err)
	}

	disconnect := dispatcher.Connect(domain.SignalDiscoveryNew, func(ctx context.Context, deviceIDs []string) {
		if err := p.Discover(ctx, add, deviceIDs); err != nil {
			p.logger.Error("lock discovery failed", "error", err)
		}
	})

	return disconnect, nil
}

// Discover registers a lock entity for each id whose device category has
// a descriptor. Unknown ids and categories are skipped.
func (p *Platform) Discover(ctx context.Context, add application.AddEntitiesFunc, deviceIDs []string) error {
	entities := p.Entities(deviceIDs)
	if len(entities) == 0 {
		return nil
	}

	p.logger.Info("discovered locks", "count", len(entities))
	return add(ctx, entities)
}

// Entities builds the lock entities for deviceIDs without registering them.
func (p *Platform) Entities(deviceIDs []string) []application.LockEntity {
	var entities []application.LockEntity
	for _, id := range deviceIDs {
		device, ok := p.devices.Device(id)
		if !ok {
			continue
		}
		description, ok := Lookup(device.Category)
		if !ok {
			continue
		}
		entities = append(entities, NewEntity(device, p.devices, p.api, description, p.logger))
	}
	return entities
}
