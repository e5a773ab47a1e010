package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"smart-lock/internal/application"
	"smart-lock/internal/domain"
)

const commandTimeout = 30 * time.Second

// Conn is the subset of Client used by the bridge.
type Conn interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// StatusSink receives pushed device status reports.
type StatusSink interface {
	ApplyStatusReport(ctx context.Context, deviceID string, items []domain.StatusItem) error
}

// CommandExecutor runs lock commands.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd *domain.Command) (string, error)
	LocksForDevice(deviceID string) []application.LockEntity
}

// Bridge connects the hub to MQTT: it feeds Tuya status reports to the
// device manager, turns LOCK/UNLOCK messages into commands, and
// publishes lock state and Home Assistant discovery configs.
type Bridge struct {
	conn      Conn
	topics    Topics
	qos       byte
	discovery bool
	logger    *slog.Logger

	ctx      context.Context
	sink     StatusSink
	executor CommandExecutor
}

func NewBridge(conn Conn, topics Topics, qos byte, discovery bool, logger *slog.Logger) *Bridge {
	return &Bridge{
		conn:      conn,
		topics:    topics,
		qos:       qos,
		discovery: discovery,
		logger:    logger,
		ctx:       context.Background(),
	}
}

// Start subscribes to status reports and lock commands. Handlers derive
// their contexts from ctx.
func (b *Bridge) Start(ctx context.Context, sink StatusSink, executor CommandExecutor) error {
	b.ctx = ctx
	b.sink = sink
	b.executor = executor

	if err := b.conn.Subscribe(b.topics.StatusReport(), b.qos, b.handleReport); err != nil {
		return fmt.Errorf("subscribing to status reports: %w", err)
	}
	if err := b.conn.Subscribe(b.topics.AllLockCommands(), b.qos, b.handleCommand); err != nil {
		return fmt.Errorf("subscribing to lock commands: %w", err)
	}

	b.logger.Info("mqtt bridge started",
		"reports", b.topics.StatusReport(),
		"commands", b.topics.AllLockCommands(),
	)
	return nil
}

type statusReport struct {
	DevID  string              `json:"devId"`
	Status []domain.StatusItem `json:"status"`
}

func (b *Bridge) handleReport(_ string, payload []byte) error {
	var report statusReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("parsing status report: %w", err)
	}
	if report.DevID == "" {
		return fmt.Errorf("status report without devId")
	}

	return b.sink.ApplyStatusReport(b.ctx, report.DevID, report.Status)
}

func (b *Bridge) handleCommand(topic string, payload []byte) error {
	deviceID, ok := b.topics.DeviceFromCommand(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	action := domain.ParseAction(string(payload))
	if action == domain.ActionUnknown {
		return fmt.Errorf("unknown lock command %q", payload)
	}

	entities := b.executor.LocksForDevice(deviceID)
	if len(entities) == 0 {
		return fmt.Errorf("%w: device %s", application.ErrEntityNotFound, deviceID)
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	for _, e := range entities {
		cmd := &domain.Command{
			Action:    action,
			TargetID:  e.UniqueID(),
			RequestID: uuid.NewString(),
			Source:    domain.SourceMQTT,
		}
		if _, err := b.executor.Execute(ctx, cmd); err != nil {
			return err
		}
	}

	return nil
}

func (b *Bridge) PublishLockState(_ context.Context, entity application.LockEntity, state domain.LockState) error {
	return b.conn.Publish(b.topics.LockState(entity.DeviceID()), b.qos, true, []byte(statePayload(state)))
}

type discoveryConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	Icon              string `json:"icon,omitempty"`
	StateTopic        string `json:"state_topic"`
	CommandTopic      string `json:"command_topic"`
	AvailabilityTopic string `json:"availability_topic"`
	PayloadLock       string `json:"payload_lock"`
	PayloadUnlock     string `json:"payload_unlock"`
	StateLocked       string `json:"state_locked"`
	StateUnlocked     string `json:"state_unlocked"`
	QoS               byte   `json:"qos"`
}

// AnnounceLock publishes the Home Assistant MQTT discovery config for
// entity when discovery is enabled.
func (b *Bridge) AnnounceLock(_ context.Context, entity application.LockEntity) error {
	if !b.discovery {
		return nil
	}

	payload, err := json.Marshal(discoveryConfig{
		Name:              entity.Name(),
		UniqueID:          entity.UniqueID(),
		Icon:              entity.Icon(),
		StateTopic:        b.topics.LockState(entity.DeviceID()),
		CommandTopic:      b.topics.LockCommand(entity.DeviceID()),
		AvailabilityTopic: b.topics.BridgeStatus(),
		PayloadLock:       payloadLock,
		PayloadUnlock:     payloadUnlock,
		StateLocked:       payloadLocked,
		StateUnlocked:     payloadUnlocked,
		QoS:               b.qos,
	})
	if err != nil {
		return fmt.Errorf("marshaling discovery config: %w", err)
	}

	return b.conn.Publish(b.topics.LockDiscovery(entity.UniqueID()), b.qos, true, payload)
}

// RetractLock clears the retained state and discovery config of a removed
// entity so Home Assistant drops it.
func (b *Bridge) RetractLock(_ context.Context, entity application.LockEntity) error {
	if err := b.conn.Publish(b.topics.LockState(entity.DeviceID()), b.qos, true, []byte{}); err != nil {
		return fmt.Errorf("clearing lock state: %w", err)
	}
	if !b.discovery {
		return nil
	}
	if err := b.conn.Publish(b.topics.LockDiscovery(entity.UniqueID()), b.qos, true, []byte{}); err != nil {
		return fmt.Errorf("clearing discovery config: %w", err)
	}
	return nil
}

func statePayload(state domain.LockState) string {
	switch state {
	case domain.LockStateLocked:
		return payloadLocked
	case domain.LockStateUnlocked:
		return payloadUnlocked
	default:
		return payloadUnknown
	}
}
