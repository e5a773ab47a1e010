package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"smart-lock/internal/domain"
)

const (
	ticketPathFormat  = "/v1.0/smart-lock/devices/%s/password-ticket"
	operatePathFormat = "/v1.0/smart-lock/devices/%s/password-free/door-operate"
)

// ErrNoTicket is returned when the ticket call succeeds without a ticket id.
var ErrNoTicket = errors.New("lock: ticket response has no ticket_id")

// DeviceSource is the device map owned by the device manager.
type DeviceSource interface {
	Device(id string) (domain.Device, bool)
	DeviceIDs() []string
}

// API issues signed calls against the Tuya OpenAPI and returns the
// response's result member.
type API interface {
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
}

type ticketResult struct {
	TicketID string `json:"ticket_id"`
}

type operateRequest struct {
	TicketID string `json:"ticket_id"`
	Open     bool   `json:"open"`
}

// Entity is a lock backed by a Tuya device. It never stores the lock
// state: every read goes back to the device manager.
type Entity struct {
	deviceID    string
	name        string
	devices     DeviceSource
	api         API
	description Descriptor
	logger      *slog.Logger
	operateSem  *semaphore.Weighted

	ticketPath  string
	operatePath string
}

func NewEntity(device domain.Device, devices DeviceSource, api API, description Descriptor, logger *slog.Logger) *Entity {
	return &Entity{
		deviceID:    device.ID,
		name:        device.Name,
		devices:     devices,
		api:         api,
		description: description,
		logger:      logger.With("device", device.ID),
		operateSem:  semaphore.NewWeighted(1),
		ticketPath:  fmt.Sprintf(ticketPathFormat, device.ID),
		operatePath: fmt.Sprintf(operatePathFormat, device.ID),
	}
}

func (e *Entity) UniqueID() string {
	return "tuya." + e.deviceID
}

func (e *Entity) DeviceID() string {
	return e.deviceID
}

func (e *Entity) Name() string {
	if d, ok := e.devices.Device(e.deviceID); ok && d.Name != "" {
		return d.Name
	}
	return e.name
}

func (e *Entity) Icon() string {
	return e.description.Icon
}

func (e *Entity) Descriptor() Descriptor {
	return e.description
}

func (e *Entity) IsLocked() (locked bool, known bool) {
	d, ok := e.devices.Device(e.deviceID)
	if !ok {
		return false, false
	}

	value, ok := d.StatusValue(e.description.Key)
	e.logger.Debug("read lock state", "code", e.description.Key, "value", value)
	if !ok {
		return false, false
	}

	return value == e.description.LockedValue, true
}

func (e *Entity) Lock(ctx context.Context) error {
	return e.operate(ctx, false)
}

func (e *Entity) Unlock(ctx context.Context) error {
	return e.operate(ctx, true)
}

// operate fetches a one-time ticket and spends it on a door-operate call.
// open=false locks the door, open=true unlocks it. Operations on one
// entity run one at a time.
func (e *Entity) operate(ctx context.Context, open bool) error {
	if err := e.operateSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for pending operation: %w", err)
	}
	defer e.operateSem.Release(1)

	ticketID, err := e.requestTicket(ctx)
	if err != nil {
		return err
	}

	if _, err := e.api.Post(ctx, e.operatePath, operateRequest{TicketID: ticketID, Open: open}); err != nil {
		return fmt.Errorf("operating door: %w", err)
	}

	e.logger.Info("door operated", "open", open)
	return nil
}

func (e *Entity) requestTicket(ctx context.Context) (string, error) {
	result, err := e.api.Post(ctx, e.ticketPath, nil)
	if err != nil {
		return "", fmt.Errorf("requesting ticket: %w", err)
	}

	var ticket ticketResult
	if len(result) > 0 {
		if err := json.Unmarshal(result, &ticket); err != nil {
			return "", fmt.Errorf("parsing ticket: %w", err)
		}
	}

	if ticket.TicketID == "" {
		return "", ErrNoTicket
	}

	return ticket.TicketID, nil
}
