package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/trigger-store/internal/eventbus"
	"github.com/annel0/trigger-store/internal/logging"
	"github.com/annel0/trigger-store/internal/world"
)

// LocationEvent полезная нагрузка trigger.set / trigger.removed
type LocationEvent struct {
	World string `json:"world"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Slot  int    `json:"slot"`
}

// BatchEvent полезная нагрузка trigger.reloaded / trigger.saved
type BatchEvent struct {
	Loaded int `json:"loaded"`
	Failed int `json:"failed"`
}

// PasteEvent полезная нагрузка trigger.pasted
type PasteEvent struct {
	Actor string `json:"actor"`
	Mode  string `json:"mode"`
	From  string `json:"from"`
	To    string `json:"to"`
}

const notifyBuffer = 256

// notifier публикует события в шину из отдельной горутины.
// При переполнении буфера событие отбрасывается: операции хранилища не ждут шину.
type notifier struct {
	bus    eventbus.EventBus
	source string
	logger *logging.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *eventbus.Envelope
	wg     sync.WaitGroup
}

// newNotifier возвращает nil, если шина не задана; методы nil-notifier ничего не делают
func newNotifier(bus eventbus.EventBus, source string, logger *logging.Logger) *notifier {
	if bus == nil {
		return nil
	}
	n := &notifier{
		bus:    bus,
		source: source,
		logger: logger,
		queue:  make(chan *eventbus.Envelope, notifyBuffer),
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

func (n *notifier) location(eventType string, loc world.Location, slot int) {
	n.publish(eventType, "", LocationEvent{World: loc.World, X: loc.X, Y: loc.Y, Z: loc.Z, Slot: slot})
}

func (n *notifier) publish(eventType, correlationID string, payload interface{}) {
	if n == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(eventType, n.source, payload)
	if err != nil {
		n.logger.Warn("⚠️ event %s: %v", eventType, err)
		return
	}
	ev.CorrelationID = correlationID

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- ev:
	default:
		n.logger.Debug("event %s dropped: notify buffer full", eventType)
	}
}

func (n *notifier) loop() {
	defer n.wg.Done()
	for ev := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := n.bus.Publish(ctx, ev); err != nil {
			n.logger.Debug("event %s not published: %v", ev.EventType, err)
		}
		cancel()
	}
}

func (n *notifier) close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	n.wg.Wait()
}
