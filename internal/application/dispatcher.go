package application

import (
	"context"
	"log/slog"
	"sync"
)

// SignalHandler receives the device ids carried by a signal.
type SignalHandler func(ctx context.Context, deviceIDs []string)

type Dispatcher interface {
	Connect(signal string, handler SignalHandler) (disconnect func())
	Send(ctx context.Context, signal string, deviceIDs []string)
}

// SignalDispatcher delivers signals synchronously to the handlers
// connected at the time of sending.
type SignalDispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]SignalHandler
}

func NewSignalDispatcher(logger *slog.Logger) *SignalDispatcher {
	return &SignalDispatcher{
		logger:   logger,
		handlers: make(map[string]map[int]SignalHandler),
	}
}

func (d *SignalDispatcher) Connect(signal string, handler SignalHandler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	if d.handlers[signal] == nil {
		d.handlers[signal] = make(map[int]SignalHandler)
	}
	d.handlers[signal][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.handlers[signal], id)
		})
	}
}

func (d *SignalDispatcher) Send(ctx context.Context, signal string, deviceIDs []string) {
	if len(deviceIDs) == 0 {
		return
	}

	d.mu.RLock()
	handlers := make([]SignalHandler, 0, len(d.handlers[signal]))
	for _, h := range d.handlers[signal] {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	d.logger.Debug("dispatching signal", "signal", signal, "devices", len(deviceIDs), "handlers", len(handlers))

	for _, h := range handlers {
		h(ctx, deviceIDs)
	}
}
