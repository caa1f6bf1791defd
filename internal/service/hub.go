package service

import (
	"sync"
	"time"

	"vexl-backend/internal/model"
	"vexl-backend/pkg/logger"
)

const defaultHubBuffer = 32

type subscriber struct {
	mu     sync.Mutex
	ch     chan model.AssistantEvent
	closed bool
}

// send reports false only when the buffer is full.
func (s *subscriber) send(ev model.AssistantEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// EventHub fans assistant events out to the streams of a session.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]*subscriber
	nextID uint64
	buffer int
}

func NewEventHub(buffer int) *EventHub {
	if buffer <= 0 {
		buffer = defaultHubBuffer
	}
	return &EventHub{
		subs:   make(map[string]map[uint64]*subscriber),
		buffer: buffer,
	}
}

// Subscribe returns the event channel of sessionID and a cancel func that
// must be called once the caller stops reading.
func (h *EventHub) Subscribe(sessionID string) (<-chan model.AssistantEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	sub := &subscriber{ch: make(chan model.AssistantEvent, h.buffer)}
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[uint64]*subscriber)
	}
	h.subs[sessionID][id] = sub

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		h.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

func (h *EventHub) Publish(ev model.AssistantEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[ev.SessionID] {
		if !sub.send(ev) {
			logger.WithFields(logger.Fields{
				"session_id": ev.SessionID,
				"type":       ev.Type,
			}).Debug("Dropped assistant event for slow subscriber")
		}
	}
}

// PublishState sends a state event carrying snap.
func (h *EventHub) PublishState(snap model.Snapshot) {
	h.Publish(model.AssistantEvent{
		Type:      model.EventState,
		SessionID: snap.SessionID,
		Snapshot:  &snap,
	})
}

// PublishAction implements navigation.Publisher.
func (h *EventHub) PublishAction(sessionID string, action model.Action) {
	h.Publish(model.AssistantEvent{
		Type:      model.EventAction,
		SessionID: sessionID,
		Action:    &action,
	})
}

// CloseSession sends a final closed event and ends every stream of
// sessionID.
func (h *EventHub) CloseSession(sessionID string) {
	h.mu.Lock()
	set := h.subs[sessionID]
	delete(h.subs, sessionID)
	h.mu.Unlock()

	ev := model.AssistantEvent{
		Type:      model.EventClosed,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}
	for _, sub := range set {
		sub.send(ev)
		sub.close()
	}
}

func (h *EventHub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
