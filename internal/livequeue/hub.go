package livequeue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/messaging"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

const defaultClientBuffer = 16

// Client is one local subscriber. The owner drains Send.
type Client struct {
	Send    chan []byte
	channel string
}

func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = defaultClientBuffer
	}
	return &Client{Send: make(chan []byte, buffer)}
}

// Hub fans broker events out to the clients subscribed on this instance.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}

	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewHub(m *metrics.Metrics, log *logger.Logger) *Hub {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
		metrics:  m,
		logger:   log,
	}
}

// Subscribe moves c onto the channel of doctorID's day and returns its name.
// A client listens on at most one channel.
func (h *Hub) Subscribe(c *Client, doctorID string, date time.Time) string {
	name := Channel(doctorID, date)

	h.mu.Lock()
	defer h.mu.Unlock()

	if c.channel != "" {
		h.removeLocked(c)
	}
	if h.channels[name] == nil {
		h.channels[name] = make(map[*Client]struct{})
	}
	h.channels[name][c] = struct{}{}
	c.channel = name
	h.metrics.LiveQueueSubscribers.Inc()
	return name
}

func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	subs, ok := h.channels[c.channel]
	if !ok {
		return
	}
	if _, ok := subs[c]; ok {
		delete(subs, c)
		h.metrics.LiveQueueSubscribers.Dec()
	}
	if len(subs) == 0 {
		delete(h.channels, c.channel)
	}
	c.channel = ""
}

// Subscribers returns the number of local clients on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Dispatch delivers ev to its channel and returns how many clients got it.
// Clients whose buffer is full miss the event.
func (h *Hub) Dispatch(ev Event) (int, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.channels[ev.Channel] {
		select {
		case c.Send <- data:
			delivered++
		default:
			h.metrics.LiveQueueDropped.Inc()
		}
	}
	return delivered, nil
}

// Run consumes topic until ctx is done.
func (h *Hub) Run(ctx context.Context, broker messaging.Broker, topic string) error {
	if topic == "" {
		topic = DefaultTopic
	}
	h.logger.Info("live queue hub started", "topic", topic)

	err := messaging.Consume(ctx, broker, topic, h.handle, func(err error) {
		h.metrics.LiveQueueEvents.WithLabelValues("in", "invalid").Inc()
		h.logger.Warn(err, "dropping live queue message")
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) handle(msg []byte) error {
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	if ev.Channel == "" {
		return errors.New("event without channel")
	}
	if _, err := h.Dispatch(ev); err != nil {
		return err
	}
	h.metrics.LiveQueueEvents.WithLabelValues("in", "ok").Inc()
	return nil
}
