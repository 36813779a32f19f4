package recorder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/Chrissou78/omniswap-sub002/internal/domain/entities"
	"github.com/Chrissou78/omniswap-sub002/internal/logger"
	"github.com/Chrissou78/omniswap-sub002/internal/metrics"
)

// ErrQueueFull is returned when the async queue cannot take another record
var ErrQueueFull = errors.New("recorder queue full")

// ErrClosed is returned by Record after Close
var ErrClosed = errors.New("recorder closed")

// AsyncOptions tunes the background writer
type AsyncOptions struct {
	QueueSize      int
	MaxTries       uint
	MaxElapsedTime time.Duration
	// NewBackOff builds the retry schedule of one record
	NewBackOff func() backoff.BackOff
}

// AsyncRecorder hands records to a background goroutine which retries
// transient sink failures with exponential backoff
type AsyncRecorder struct {
	sink   Recorder
	opts   AsyncOptions
	queue  chan entities.TransactionRecord
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsyncRecorder(sink Recorder, opts AsyncOptions, log *zap.Logger) *AsyncRecorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 5
	}
	if opts.MaxElapsedTime <= 0 {
		opts.MaxElapsedTime = 30 * time.Second
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}

	r := &AsyncRecorder{
		sink:   sink,
		opts:   opts,
		queue:  make(chan entities.TransactionRecord, opts.QueueSize),
		logger: logger.OrNop(log).Named("recorder"),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record validates and enqueues; it never waits on the sink
func (r *AsyncRecorder) Record(ctx context.Context, rec entities.TransactionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	select {
	case r.queue <- rec:
		return nil
	default:
		metrics.RecorderWrites.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// Close stops accepting records and waits for the queue to drain
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *AsyncRecorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		r.write(rec)
	}
}

func (r *AsyncRecorder) write(rec entities.TransactionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.MaxElapsedTime)
	defer cancel()

	operation := func() (struct{}, error) {
		err := r.sink.Record(ctx, rec)
		if err != nil && errors.Is(err, context.Canceled) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}
	notify := func(err error, next time.Duration) {
		r.logger.Debug("transaction record retry", zap.Error(err), zap.Duration("next", next))
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(r.opts.NewBackOff()),
		backoff.WithMaxTries(r.opts.MaxTries),
		backoff.WithMaxElapsedTime(r.opts.MaxElapsedTime),
		backoff.WithNotify(notify))
	if err != nil {
		metrics.RecorderWrites.WithLabelValues("failed").Inc()
		r.logger.Warn("transaction record lost",
			zap.Int64("from_chain_id", rec.FromChainID),
			zap.String("tx_hash", rec.TxHash),
			zap.Error(err))
		return
	}
	metrics.RecorderWrites.WithLabelValues("ok").Inc()
}
