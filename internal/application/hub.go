package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"smart-lock/internal/domain"
)

var (
	ErrEntityNotFound    = errors.New("entity not found")
	ErrUnsupportedAction = errors.New("unsupported action")
)

// Hub owns the lock entity registry and routes commands and state
// updates between the device manager, the platforms and the publishers.
type Hub struct {
	registry   DeviceRegistry
	dispatcher Dispatcher
	notifier   Notifier
	publishers []StatePublisher
	logger     *slog.Logger

	mu       sync.RWMutex
	entities map[string]LockEntity
	unloads  []func()
}

func NewHub(
	registry DeviceRegistry,
	dispatcher Dispatcher,
	notifier Notifier,
	logger *slog.Logger,
	publishers ...StatePublisher,
) *Hub {
	return &Hub{
		registry:   registry,
		dispatcher: dispatcher,
		notifier:   notifier,
		publishers: publishers,
		logger:     logger,
		entities:   make(map[string]LockEntity),
	}
}

// Start performs the initial registry sync and sets up every platform.
func (h *Hub) Start(ctx context.Context, setups ...PlatformSetup) error {
	h.OnUnload(h.dispatcher.Connect(domain.SignalDeviceUpdate, h.handleDeviceUpdate))
	h.OnUnload(h.dispatcher.Connect(domain.SignalDeviceRemove, h.handleDeviceRemove))

	h.logger.Info("syncing device registry")
	if err := h.registry.Sync(ctx); err != nil {
		return fmt.Errorf("initial registry sync: %w", err)
	}

	for _, setup := range setups {
		unload, err := setup(ctx, h.AddEntities, h.dispatcher)
		if err != nil {
			return fmt.Errorf("setting up platform: %w", err)
		}
		h.OnUnload(unload)
	}

	h.logger.Info("hub ready", "entities", len(h.LockEntities()))
	return nil
}

// Run starts the hub and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, setups ...PlatformSetup) error {
	defer h.Unload()

	if err := h.Start(ctx, setups...); err != nil {
		return err
	}

	<-ctx.Done()
	return ctx.Err()
}

// OnUnload registers fn to run when the hub unloads.
func (h *Hub) OnUnload(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	h.unloads = append(h.unloads, fn)
	h.mu.Unlock()
}

// Unload runs the registered unload functions in reverse order and
// drops every entity.
func (h *Hub) Unload() {
	h.mu.Lock()
	unloads := h.unloads
	h.unloads = nil
	h.entities = make(map[string]LockEntity)
	h.mu.Unlock()

	for i := len(unloads) - 1; i >= 0; i-- {
		unloads[i]()
	}
}

// AddEntities registers entities. Entities whose unique id is already
// registered are ignored, so repeated discovery of a device is harmless.
func (h *Hub) AddEntities(ctx context.Context, entities []LockEntity) error {
	added := make([]LockEntity, 0, len(entities))

	h.mu.Lock()
	for _, e := range entities {
		if _, exists := h.entities[e.UniqueID()]; exists {
			continue
		}
		h.entities[e.UniqueID()] = e
		added = append(added, e)
	}
	h.mu.Unlock()

	for _, e := range added {
		h.logger.Info("entity added", "entity", e.UniqueID(), "name", e.Name())
		h.announce(ctx, e)
		h.publishState(ctx, e)
	}

	return nil
}

func (h *Hub) LockEntity(uniqueID string) (LockEntity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, ok := h.entities[uniqueID]
	return e, ok
}

// LockEntities returns every registered entity ordered by unique id.
func (h *Hub) LockEntities() []LockEntity {
	h.mu.RLock()
	result := make([]LockEntity, 0, len(h.entities))
	for _, e := range h.entities {
		result = append(result, e)
	}
	h.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].UniqueID() < result[j].UniqueID()
	})
	return result
}

func (h *Hub) LocksForDevice(deviceID string) []LockEntity {
	var result []LockEntity
	for _, e := range h.LockEntities() {
		if e.DeviceID() == deviceID {
			result = append(result, e)
		}
	}
	return result
}

// Execute runs cmd against the entity named by cmd.TargetID and notifies
// the outcome.
func (h *Hub) Execute(ctx context.Context, cmd *domain.Command) (string, error) {
	result, err := h.executeCommand(ctx, cmd)
	if err != nil {
		notifyErr := alertOrNotify(ctx, h.notifier, fmt.Sprintf("Error: %s", err.Error()))
		if notifyErr != nil {
			h.logger.Error("notifying error", "error", notifyErr)
		}
		return "", fmt.Errorf("executing %s: %w", cmd.Action, err)
	}

	h.logger.Info("command executed",
		"action", cmd.Action,
		"target", cmd.TargetID,
		"source", cmd.Source,
		"request_id", cmd.RequestID,
	)

	if err := h.notifier.Notify(ctx, result); err != nil {
		h.logger.Error("notifying result", "error", err)
	}

	return result, nil
}

func (h *Hub) executeCommand(ctx context.Context, cmd *domain.Command) (string, error) {
	entity, ok := h.LockEntity(cmd.TargetID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrEntityNotFound, cmd.TargetID)
	}

	switch cmd.Action {
	case domain.ActionLock:
		if err := entity.Lock(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("'%s' locked", entity.Name()), nil

	case domain.ActionUnlock:
		if err := entity.Unlock(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("'%s' unlocked", entity.Name()), nil

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAction, cmd.Action)
	}
}

func (h *Hub) handleDeviceUpdate(ctx context.Context, deviceIDs []string) {
	for _, id := range deviceIDs {
		for _, e := range h.LocksForDevice(id) {
			h.publishState(ctx, e)
		}
	}
}

func (h *Hub) handleDeviceRemove(ctx context.Context, deviceIDs []string) {
	var removed []LockEntity

	h.mu.Lock()
	for _, id := range deviceIDs {
		for uid, e := range h.entities {
			if e.DeviceID() == id {
				delete(h.entities, uid)
				removed = append(removed, e)
				h.logger.Info("entity removed", "entity", uid)
			}
		}
	}
	h.mu.Unlock()

	for _, e := range removed {
		h.retract(ctx, e)
	}
}

func (h *Hub) announce(ctx context.Context, entity LockEntity) {
	for _, p := range h.publishers {
		announcer, ok := p.(EntityAnnouncer)
		if !ok {
			continue
		}
		if err := announcer.AnnounceLock(ctx, entity); err != nil {
			h.logger.Warn("announcing entity", "entity", entity.UniqueID(), "error", err)
		}
	}
}

func (h *Hub) retract(ctx context.Context, entity LockEntity) {
	for _, p := range h.publishers {
		retractor, ok := p.(EntityRetractor)
		if !ok {
			continue
		}
		if err := retractor.RetractLock(ctx, entity); err != nil {
			h.logger.Warn("retracting entity", "entity", entity.UniqueID(), "error", err)
		}
	}
}

func (h *Hub) publishState(ctx context.Context, entity LockEntity) {
	state := StateOf(entity)
	for _, p := range h.publishers {
		if err := p.PublishLockState(ctx, entity, state); err != nil {
			h.logger.Warn("publishing lock state", "entity", entity.UniqueID(), "state", state, "error", err)
		}
	}
}
