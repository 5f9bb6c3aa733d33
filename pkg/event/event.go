// Package event publishes domain events after successful mutations.
// Delivery is best effort: a failed publish is logged and never fails the
// mutation that produced it.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"workflow/backend/config"
)

// Type names a domain event.
type Type string

const (
	ProjectCreated       Type = "project.created"
	ProjectUpdated       Type = "project.updated"
	ProjectStatusChanged Type = "project.status_changed"
	ProjectDeleted       Type = "project.deleted"
	MemberAdded          Type = "project.member_added"
	MemberRemoved        Type = "project.member_removed"
	TimetableReplaced    Type = "timetable.replaced"
	UserDeleted          Type = "user.deleted"
	UserRoleChanged      Type = "user.role_changed"
)

// Event is the payload carried on the bus.
type Event struct {
	Type       Type              `json:"type"`
	ActorID    uint              `json:"actorId"`
	ProjectID  uint              `json:"projectId,omitempty"`
	UserID     uint              `json:"userId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus publishes to watermill: Kafka when brokers are configured, an
// in-process go channel otherwise.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	logger     *zap.Logger
}

// NewBus picks the transport from cfg.
func NewBus(cfg *config.EventConfig, logger *zap.Logger) (*Bus, error) {
	wmLogger := NewZapAdapter(logger)

	if len(cfg.KafkaBrokers) == 0 {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		return &Bus{publisher: ch, subscriber: ch, topic: cfg.Topic, logger: logger}, nil
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:       cfg.KafkaBrokers,
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: "workflow-audit",
	}, wmLogger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create kafka subscriber: %w", err)
	}
	logger.Info("event bus using kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.Topic))
	return &Bus{publisher: pub, subscriber: sub, topic: cfg.Topic, logger: logger}, nil
}

// Publish stamps and sends ev.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(ev.Type))
	msg.SetContext(ctx)
	return b.publisher.Publish(b.topic, msg)
}

// RunAudit logs every event until ctx is cancelled.
func (b *Bus) RunAudit(ctx context.Context) error {
	msgs, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.topic, err)
	}
	for msg := range msgs {
		var ev Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			b.logger.Warn("malformed event dropped", zap.String("uuid", msg.UUID), zap.Error(err))
			msg.Ack()
			continue
		}
		b.logger.Info("audit",
			zap.String("event", string(ev.Type)),
			zap.Uint("actor_id", ev.ActorID),
			zap.Uint("project_id", ev.ProjectID),
			zap.Uint("user_id", ev.UserID),
			zap.Any("attributes", ev.Attributes),
			zap.Time("occurred_at", ev.OccurredAt),
		)
		msg.Ack()
	}
	return nil
}

// Close shuts down both ends of the bus.
func (b *Bus) Close() error {
	perr := b.publisher.Close()
	if any(b.subscriber) != any(b.publisher) {
		if err := b.subscriber.Close(); err != nil {
			return err
		}
	}
	return perr
}

// ── helpers ──

// Emit publishes ev and logs a failure instead of returning it.
func Emit(ctx context.Context, p Publisher, logger *zap.Logger, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.Warn("publish event failed", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// Publish records ev, or returns Err when set.
func (r *Recorder) Publish(_ context.Context, ev Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []Type {
	var out []Type
	for _, ev := range r.Events() {
		out = append(out, ev.Type)
	}
	return out
}
