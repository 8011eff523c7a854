package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/domain/cart"
)

const instrumentationName = "github.com/xenking/quickcart/internal/domain/order"

// CartStore is the subset of cart persistence the workflow needs.
type CartStore interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// DeliveryNotifier provisions delivery tracking for a placed order. It
// returns the id of the created or already existing delivery.
type DeliveryNotifier interface {
	Notify(ctx context.Context, orderID, userID string) (string, error)
}

// EventPublisher announces placements to downstream consumers.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, p *Placement) error
}

// NotifyStatus reports how the delivery notification ended.
type NotifyStatus string

const (
	NotifyStatusNotified NotifyStatus = "notified"
	NotifyStatusFailed   NotifyStatus = "failed"
)

// DeliveryOutcome is the result of the best-effort delivery notification.
type DeliveryOutcome struct {
	Status     NotifyStatus
	DeliveryID string
	Error      string
}

// Notified reports whether a delivery record is known to exist.
func (d DeliveryOutcome) Notified() bool {
	return d.Status == NotifyStatusNotified
}

// Placement is the result of a successful PlaceOrder call. The order is
// authoritative; Delivery and CartCleared describe the side effects, which
// may have failed without failing the placement.
type Placement struct {
	Order       *Order
	Delivery    DeliveryOutcome
	CartCleared bool
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider. Defaults to the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. Defaults to the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service encapsulates the order placement workflow.
type Service struct {
	carts    CartStore
	orders   Repository
	delivery DeliveryNotifier
	events   EventPublisher // nil-safe: publishing skipped if nil

	now    func() time.Time
	tracer trace.Tracer
	meter  metric.Meter

	placed         metric.Int64Counter
	notifyFailures metric.Int64Counter
	clearFailures  metric.Int64Counter
}

// NewService creates an order Service. events may be nil.
func NewService(
	carts CartStore,
	orders Repository,
	delivery DeliveryNotifier,
	events EventPublisher,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		carts:    carts,
		orders:   orders,
		delivery: delivery,
		events:   events,
		now:      time.Now,
		tracer:   otel.GetTracerProvider().Tracer(instrumentationName),
		meter:    otel.GetMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.placed, err = s.meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders persisted"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.placed counter")
	}
	if s.notifyFailures, err = s.meter.Int64Counter("orders.delivery_notify_failures",
		metric.WithDescription("Placed orders whose delivery notification failed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.delivery_notify_failures counter")
	}
	if s.clearFailures, err = s.meter.Int64Counter("orders.cart_clear_failures",
		metric.WithDescription("Placed orders whose cart could not be cleared"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.cart_clear_failures counter")
	}
	return s, nil
}

// PlaceOrder turns the user's cart into an order. Once the order record is
// written the call succeeds; delivery notification, cart clearing and event
// publishing are best-effort and reported on the returned Placement.
func (s *Service) PlaceOrder(ctx context.Context, userID string) (*Placement, error) {
	ctx, span := s.tracer.Start(ctx, "order.place",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	c, err := s.carts.Get(ctx, userID)
	if err != nil && !errors.Is(err, cart.ErrCartNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get cart")
		return nil, errors.Wrap(err, "get cart")
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}

	items := make([]Item, len(c.Items))
	total := decimal.Zero
	for i, li := range c.Items {
		items[i] = Item{
			ProductID: li.ProductID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice,
			Quantity:  li.Quantity,
		}
		total = total.Add(li.Subtotal())
	}

	o := &Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Items:       items,
		TotalAmount: total,
		CreatedAt:   s.now().UTC().Truncate(time.Microsecond),
		Status:      StatusPlaced,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		return nil, errors.Wrap(err, "create order")
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	s.placed.Add(ctx, 1)

	lg := zctx.From(ctx).With(zap.String("order_id", o.ID), zap.String("user_id", userID))
	p := &Placement{Order: o}

	deliveryID, err := s.delivery.Notify(ctx, o.ID, userID)
	if err != nil {
		lg.Warn("Delivery notification failed", zap.Error(err))
		span.AddEvent("delivery notification failed")
		s.notifyFailures.Add(ctx, 1)
		p.Delivery = DeliveryOutcome{Status: NotifyStatusFailed, Error: err.Error()}
	} else {
		p.Delivery = DeliveryOutcome{Status: NotifyStatusNotified, DeliveryID: deliveryID}
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		lg.Error("Cart clear failed after placement", zap.Error(err))
		s.clearFailures.Add(ctx, 1)
	} else {
		p.CartCleared = true
	}

	if s.events != nil {
		if err := s.events.PublishOrderPlaced(ctx, p); err != nil {
			lg.Warn("Publish order placed event failed", zap.Error(err))
		}
	}

	lg.Info("Order placed",
		zap.String("total_amount", o.TotalAmount.String()),
		zap.String("delivery", string(p.Delivery.Status)),
	)
	return p, nil
}

// GetOrders returns every order of the user, oldest first.
func (s *Service) GetOrders(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// GetOrder returns a single order or ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}
