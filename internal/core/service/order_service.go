package service

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/core/gate"
	"github.com/rl1809/order-ledger/internal/core/ledger"
	"github.com/rl1809/order-ledger/internal/logger"
	"github.com/rl1809/order-ledger/internal/port"
)

const DefaultMaxLinesPerOrder = 10

type Config struct {
	// MaxLinesPerOrder caps the lines considered per order; extra lines are
	// marked invalid.
	MaxLinesPerOrder int
	// QueueSize is the capacity of the archive queue. Zero disables it.
	QueueSize int
}

// OrderService places orders: it allocates an id in the ledger and deducts
// every line from the inventory inside the same ledger critical section, so
// id order always matches the order in which deductions were applied.
type OrderService struct {
	inventory  port.Inventory
	ledger     *ledger.Ledger
	gate       *gate.Gate
	recorder   port.Recorder
	validate   *validator.Validate
	logger     *zap.Logger
	tracer     trace.Tracer
	maxLines   int

	queueMu     sync.RWMutex
	queueClosed bool
	orderQueue  chan domain.Order
}

func NewOrderService(
	inventory port.Inventory,
	ledger *ledger.Ledger,
	gate *gate.Gate,
	recorder port.Recorder,
	logger *zap.Logger,
	cfg Config,
) *OrderService {
	if cfg.MaxLinesPerOrder <= 0 {
		cfg.MaxLinesPerOrder = DefaultMaxLinesPerOrder
	}
	if recorder == nil {
		recorder = port.NopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &OrderService{
		inventory: inventory,
		ledger:    ledger,
		gate:      gate,
		recorder:  recorder,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		tracer:    otel.Tracer("order_service"),
		maxLines:  cfg.MaxLinesPerOrder,
	}
	if cfg.QueueSize > 0 {
		s.orderQueue = make(chan domain.Order, cfg.QueueSize)
	}
	return s
}

// PlaceOrder records an order for customer and deducts each line from stock.
//
// Lines are handled independently: a line that fails validation, names an
// unknown product or asks for more than is in stock is marked with that
// outcome and the rest of the order still goes through. Callers must inspect
// the returned outcomes. An error is returned only when admission fails,
// in which case nothing was allocated or deducted.
func (s *OrderService) PlaceOrder(ctx context.Context, customer string, lines []domain.OrderLine) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer", customer),
		attribute.Int("lines", len(lines)),
	)

	waitStart := time.Now()
	if err := s.gate.Acquire(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission failed")
		logger.Warn(ctx, s.logger, "order not admitted",
			zap.String("customer", customer),
			zap.Error(err),
		)
		return domain.Order{}, fmt.Errorf("place order: %w", err)
	}
	s.recorder.AdmissionWaited(time.Since(waitStart))
	s.recorder.AdmissionChanged(s.gate.InFlight())

	order := func() domain.Order {
		defer func() {
			s.gate.Release()
			s.recorder.AdmissionChanged(s.gate.InFlight())
		}()

		prepared := s.prepare(lines)
		return s.ledger.AllocateAndAppend(customer, prepared, s.apply)
	}()

	span.SetAttributes(
		attribute.Int64("order_id", order.ID),
		attribute.Bool("fulfilled", order.Fulfilled()),
	)
	s.recorder.OrderPlaced(order)

	logger.Info(ctx, s.logger, "order placed",
		zap.Int64("order_id", order.ID),
		zap.String("customer", customer),
		zap.Any("outcomes", order.Outcomes()),
	)

	s.enqueue(ctx, order)

	return order, nil
}

// enqueue hands order to the archive queue. The order is already committed
// to the ledger, so when ctx ends first or the queue is closed it is only
// left unarchived.
func (s *OrderService) enqueue(ctx context.Context, order domain.Order) {
	if s.orderQueue == nil {
		return
	}

	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if s.queueClosed {
		logger.Warn(ctx, s.logger, "archive queue closed, order not archived",
			zap.Int64("order_id", order.ID),
		)
		return
	}

	select {
	case s.orderQueue <- order:
	case <-ctx.Done():
		logger.Warn(ctx, s.logger, "archive queue full, order not archived",
			zap.Int64("order_id", order.ID),
			zap.Error(ctx.Err()),
		)
	}
}

// prepare copies lines and marks the ones that must not reach the inventory.
func (s *OrderService) prepare(lines []domain.OrderLine) []domain.OrderLine {
	out := make([]domain.OrderLine, len(lines))
	for i, line := range lines {
		line.Outcome = domain.OutcomePending
		if i >= s.maxLines || s.validate.Struct(line) != nil {
			line.Outcome = domain.OutcomeInvalidLine
		}
		out[i] = line
	}
	return out
}

// apply runs under the ledger lock. If the inventory panics part way through,
// the lines already deducted are restocked before the panic continues, so
// neither the ledger nor the inventory keeps a partial placement.
func (s *OrderService) apply(o *domain.Order) {
	done := 0
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		for _, line := range o.Lines[:done] {
			if line.Outcome != domain.OutcomeDeducted {
				continue
			}
			if err := s.inventory.Restock(line.ProductName, line.Quantity); err != nil {
				s.logger.Error("CRITICAL restock failed after aborted placement",
					zap.Int64("order_id", o.ID),
					zap.String("product", line.ProductName),
					zap.Int("quantity", line.Quantity),
					zap.Error(err),
				)
			}
		}
		panic(r)
	}()

	for i := range o.Lines {
		line := &o.Lines[i]
		if line.Outcome == domain.OutcomePending {
			line.Outcome = s.inventory.TryDeduct(line.ProductName, line.Quantity)
		}
		done = i + 1
	}
}

func (s *OrderService) GetOrder(id int64) (domain.Order, error) {
	return s.ledger.Get(id)
}

// Orders yields every placed order in ascending id order.
func (s *OrderService) Orders() iter.Seq[domain.Order] {
	return s.ledger.All()
}

// Report returns the ledger and the inventory as of one instant: no
// placement can commit between the two reads.
func (s *OrderService) Report() domain.Report {
	var r domain.Report
	s.ledger.View(func(orders []domain.Order) {
		r.Orders = make([]domain.Order, len(orders))
		for i, o := range orders {
			r.Orders[i] = o.Clone()
		}
		r.Inventory = s.inventory.Snapshot()
	})
	return r
}

// Queue returns placed orders for archiving. It is nil when the service was
// built without a queue. Consumers must keep draining it.
func (s *OrderService) Queue() <-chan domain.Order {
	return s.orderQueue
}

// Close closes the archive queue once pending sends have finished. Orders
// placed afterwards are still recorded but never archived. Close is safe to
// call more than once.
func (s *OrderService) Close() {
	if s.orderQueue == nil {
		return
	}

	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if !s.queueClosed {
		s.queueClosed = true
		close(s.orderQueue)
	}
}
