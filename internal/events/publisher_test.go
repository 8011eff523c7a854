package events

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/quickcart/internal/domain/order"
)

func testPlacement() *order.Placement {
	return &order.Placement{
		Order: &order.Order{
			ID:          "o-1",
			UserID:      "u1",
			Status:      order.StatusPlaced,
			TotalAmount: decimal.RequireFromString("130.50"),
			CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			Items: []order.Item{
				{ProductID: "p001", Name: "Milk", UnitPrice: decimal.NewFromInt(50), Quantity: 2},
				{ProductID: "p002", Name: "Bread", UnitPrice: decimal.RequireFromString("30.50"), Quantity: 1},
			},
		},
		Delivery:    order.DeliveryOutcome{Status: order.NotifyStatusFailed, Error: "timeout"},
		CartCleared: true,
	}
}

type decodedEvent struct {
	fields   map[string]string
	items    int
	delivery map[string]string
	cleared  bool
}

func decodeEvent(t *testing.T, data []byte) decodedEvent {
	t.Helper()
	ev := decodedEvent{fields: map[string]string{}, delivery: map[string]string{}}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				ev.items++
				return d.Skip()
			})
		case "delivery":
			return d.Obj(func(d *jx.Decoder, key string) error {
				v, err := d.Str()
				ev.delivery[key] = v
				return err
			})
		case "cart_cleared":
			v, err := d.Bool()
			ev.cleared = v
			return err
		default:
			v, err := d.Str()
			ev.fields[key] = v
			return err
		}
	})
	require.NoError(t, err)
	return ev
}

func TestEncodeOrderPlaced(t *testing.T) {
	eventTime := time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC)
	ev := decodeEvent(t, EncodeOrderPlaced(testPlacement(), eventTime))

	assert.Equal(t, OrderPlacedType, ev.fields["event"])
	assert.Equal(t, "o-1", ev.fields["order_id"])
	assert.Equal(t, "u1", ev.fields["user_id"])
	assert.Equal(t, "PLACED", ev.fields["status"])
	assert.Equal(t, "130.5", ev.fields["total_amount"])
	assert.Equal(t, "2024-05-01T12:00:00Z", ev.fields["created_at"])
	assert.Equal(t, "2024-05-01T12:00:01Z", ev.fields["event_time"])
	assert.Equal(t, 2, ev.items)
	assert.Equal(t, "failed", ev.delivery["status"])
	assert.Equal(t, "timeout", ev.delivery["error"])
	assert.NotContains(t, ev.delivery, "delivery_id")
	assert.True(t, ev.cleared)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	cfg := NewProducerConfig()
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "orders" {
			return errors.Errorf("unexpected topic %q", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "o-1" {
			return errors.Errorf("unexpected key %q", key)
		}
		return nil
	})

	pub := NewPublisher(producer, "orders")
	require.NoError(t, pub.PublishOrderPlaced(context.Background(), testPlacement()))
	require.NoError(t, pub.Close())
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewPublisher(producer, "orders")
	err := pub.PublishOrderPlaced(context.Background(), testPlacement())
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisher_PublishAfterClose(t *testing.T) {
	producer := mocks.NewSyncProducer(t, NewProducerConfig())

	pub := NewPublisher(producer, "orders")
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	err := pub.PublishOrderPlaced(context.Background(), testPlacement())
	require.ErrorIs(t, err, ErrClosed)
}
