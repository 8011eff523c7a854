// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/domain/order"
)

// OrderPlacedType is the event type header value for placements.
const OrderPlacedType = "order.placed"

// ErrClosed is returned by PublishOrderPlaced after Close.
var ErrClosed = errors.New("publisher closed")

var _ order.EventPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes order events to a topic, keyed by order id so all
// events of one order land on the same partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewProducerConfig returns the producer settings used for order events.
func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V2_6_0_0
	return cfg
}

// NewKafkaPublisher dials brokers and returns a publisher for topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, errors.Wrap(err, "create kafka producer")
	}
	return NewPublisher(producer, topic), nil
}

// NewPublisher wraps an existing producer.
func NewPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// PublishOrderPlaced sends the placement as an order.placed event.
func (p *KafkaPublisher) PublishOrderPlaced(ctx context.Context, pl *order.Placement) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(pl.Order.ID),
		Value: sarama.ByteEncoder(EncodeOrderPlaced(pl, p.now().UTC())),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(OrderPlacedType)},
		},
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	partition, offset, err := p.producer.SendMessage(msg)
	p.mu.RUnlock()
	if err != nil {
		return errors.Wrap(err, "send order placed event")
	}

	zctx.From(ctx).Debug("Event published",
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("order_id", pl.Order.ID),
	)
	return nil
}

// Close waits for in-flight sends, then flushes and closes the producer.
// Repeated calls are no-ops.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.producer.Close()
}

// EncodeOrderPlaced renders the event payload. Amounts are encoded as
// decimal strings.
func EncodeOrderPlaced(pl *order.Placement, eventTime time.Time) []byte {
	o := pl.Order
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("event", func(e *jx.Encoder) { e.Str(OrderPlacedType) })
		e.Field("order_id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("user_id", func(e *jx.Encoder) { e.Str(o.UserID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("total_amount", func(e *jx.Encoder) { e.Str(o.TotalAmount.String()) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339Nano)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(it.ProductID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("price", func(e *jx.Encoder) { e.Str(it.UnitPrice.String()) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					})
				}
			})
		})
		e.Field("delivery", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("status", func(e *jx.Encoder) { e.Str(string(pl.Delivery.Status)) })
				if pl.Delivery.DeliveryID != "" {
					e.Field("delivery_id", func(e *jx.Encoder) { e.Str(pl.Delivery.DeliveryID) })
				}
				if pl.Delivery.Error != "" {
					e.Field("error", func(e *jx.Encoder) { e.Str(pl.Delivery.Error) })
				}
			})
		})
		e.Field("cart_cleared", func(e *jx.Encoder) { e.Bool(pl.CartCleared) })
		e.Field("event_time", func(e *jx.Encoder) { e.Str(eventTime.Format(time.RFC3339Nano)) })
	})
	return e.Bytes()
}
