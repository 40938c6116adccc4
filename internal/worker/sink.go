// Package worker drains the order queue into the archive and the inventory
// mirror.
package worker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/order-ledger/internal/core/domain"
	"github.com/rl1809/order-ledger/internal/port"
)

// SnapshotSource is the inventory as seen by the mirror.
type SnapshotSource interface {
	VersionedSnapshot() (uint64, []domain.Product)
}

type Config struct {
	Timeout time.Duration
	// ConsecutiveFailures trips a sink's breaker.
	ConsecutiveFailures uint32
	// OpenFor is how long a tripped breaker rejects calls.
	OpenFor time.Duration
}

// Sink pushes placed orders to the archive and refreshes the mirror after
// each one. Either side may be nil. Sink failures are logged and never
// touch the ledger or the inventory: the ledger stays the source of truth.
type Sink struct {
	archive   port.OrderArchive
	mirror    port.InventoryMirror
	snapshots SnapshotSource
	logger    *zap.Logger
	timeout   time.Duration

	archiveBreaker *gobreaker.CircuitBreaker
	mirrorBreaker  *gobreaker.CircuitBreaker
}

func NewSink(archive port.OrderArchive, mirror port.InventoryMirror, snapshots SnapshotSource, logger *zap.Logger, cfg Config) *Sink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 10 * time.Second
	}

	return &Sink{
		archive:        archive,
		mirror:         mirror,
		snapshots:      snapshots,
		logger:         logger,
		timeout:        cfg.Timeout,
		archiveBreaker: newBreaker("order-archive", cfg, logger),
		mirrorBreaker:  newBreaker("inventory-mirror", cfg, logger),
	}
}

func newBreaker(name string, cfg Config, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("sink breaker state changed",
				zap.String("sink", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func executeWithBreaker[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return *new(T), err
	}
	return res.(T), nil
}

// Run starts workers goroutines draining queue and returns once the queue is
// closed and every worker has finished.
func (s *Sink) Run(queue <-chan domain.Order, workers int) error {
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for order := range queue {
				s.Handle(i, order)
			}
			return nil
		})
	}
	return g.Wait()
}

// Handle archives one order and refreshes the mirror.
func (s *Sink) Handle(workerID int, order domain.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.archive != nil {
		_, err := executeWithBreaker(s.archiveBreaker, func() (struct{}, error) {
			return struct{}{}, s.archive.ArchiveOrder(ctx, order)
		})
		if err != nil {
			s.logger.Error("failed to archive order",
				zap.Int("worker", workerID),
				zap.Int64("order_id", order.ID),
				zap.Error(err),
			)
		} else {
			s.logger.Debug("archived order",
				zap.Int("worker", workerID),
				zap.Int64("order_id", order.ID),
			)
		}
	}

	if s.mirror != nil && s.snapshots != nil {
		version, products := s.snapshots.VersionedSnapshot()
		applied, err := executeWithBreaker(s.mirrorBreaker, func() (bool, error) {
			return s.mirror.PublishSnapshot(ctx, version, products)
		})
		if err != nil {
			s.logger.Error("failed to mirror inventory",
				zap.Int("worker", workerID),
				zap.Uint64("version", version),
				zap.Error(err),
			)
		} else if !applied {
			s.logger.Debug("newer inventory snapshot already mirrored",
				zap.Uint64("version", version),
			)
		}
	}
}
