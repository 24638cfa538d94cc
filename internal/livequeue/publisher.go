package livequeue

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/pkg/messaging"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

const DefaultTopic = "live-queue"

// Publisher pushes queue snapshots onto the broker topic that every
// API instance's Hub consumes.
type Publisher struct {
	broker  messaging.Broker
	topic   string
	metrics *metrics.Metrics
}

func NewPublisher(broker messaging.Broker, topic string, m *metrics.Metrics) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Publisher{broker: broker, topic: topic, metrics: m}
}

func (p *Publisher) Publish(ctx context.Context, doctorID string, date time.Time, snap model.QueueSnapshot) error {
	ev := Event{
		Channel: Channel(doctorID, date),
		Event:   EventCurrentPatientUpdate,
		Data:    snap,
	}
	if err := p.broker.Publish(ctx, p.topic, ev); err != nil {
		p.metrics.LiveQueueEvents.WithLabelValues("out", "error").Inc()
		return fmt.Errorf("failed to publish %s: %w", ev.Channel, err)
	}
	p.metrics.LiveQueueEvents.WithLabelValues("out", "ok").Inc()
	return nil
}
