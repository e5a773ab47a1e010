package application

import (
	"context"

	"smart-lock/internal/domain"
)

// LockEntity is the contract every lock platform entity fulfils.
type LockEntity interface {
	UniqueID() string
	DeviceID() string
	Name() string
	Icon() string
	// IsLocked reports the current lock state. known is false when the
	// device has not reported the state data point.
	IsLocked() (locked bool, known bool)
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// AddEntitiesFunc registers entities with the hub.
type AddEntitiesFunc func(ctx context.Context, entities []LockEntity) error

// PlatformSetup wires a platform into the hub. The returned function is
// called when the hub unloads.
type PlatformSetup func(ctx context.Context, add AddEntitiesFunc, dispatcher Dispatcher) (unload func(), err error)

// DeviceRegistry is the device manager as seen by the hub.
type DeviceRegistry interface {
	Sync(ctx context.Context) error
	DeviceIDs() []string
	Device(id string) (domain.Device, bool)
}

// StatePublisher pushes lock state to an outside system.
type StatePublisher interface {
	PublishLockState(ctx context.Context, entity LockEntity, state domain.LockState) error
}

// EntityAnnouncer is implemented by publishers that need to advertise new
// entities before publishing state for them.
type EntityAnnouncer interface {
	AnnounceLock(ctx context.Context, entity LockEntity) error
}

// EntityRetractor is implemented by publishers that keep per-entity data
// outside the process, such as retained MQTT messages, and clear it when
// the entity is removed.
type EntityRetractor interface {
	RetractLock(ctx context.Context, entity LockEntity) error
}

// StateOf returns the current state of entity.
func StateOf(entity LockEntity) domain.LockState {
	return domain.NewLockState(entity.IsLocked())
}
