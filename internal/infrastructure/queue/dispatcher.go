package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/geosoft/accounts-api/internal/api/metrics"
	"github.com/geosoft/accounts-api/internal/core/domain"
	"github.com/geosoft/accounts-api/internal/core/ports"
)

const (
	defaultWorkers    = 4
	defaultJobTimeout = 30 * time.Second
	channelBuffer     = 256
)

var (
	// ErrQueueFull is returned when the recipient's worker channel is full.
	ErrQueueFull = errors.New("mail queue full")
	// ErrClosed is returned by Enqueue after Shutdown.
	ErrClosed = errors.New("mail queue closed")
)

// Dispatcher delivers emails through a fixed set of workers. Messages are
// sharded by recipient so one inbox receives its mail in enqueue order.
type Dispatcher struct {
	workers    []chan domain.EmailMessage
	mailer     ports.Mailer
	jobTimeout time.Duration
	log        zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, mailer ports.Mailer, jobTimeout time.Duration, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if jobTimeout <= 0 {
		jobTimeout = defaultJobTimeout
	}
	d := &Dispatcher{
		workers:    make([]chan domain.EmailMessage, numWorkers),
		mailer:     mailer,
		jobTimeout: jobTimeout,
		log:        log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.EmailMessage, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled
// or, after Shutdown, once their channel is drained.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands msg to the worker responsible for its recipient. It never
// blocks: a full channel drops the message and returns ErrQueueFull.
func (d *Dispatcher) Enqueue(msg domain.EmailMessage) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	idx := d.shardIndex(msg.To)
	select {
	case d.workers[idx] <- msg:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return nil
	default:
		metrics.MailDeliveriesTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().Int("worker_id", idx).Str("subject", msg.Subject).Msg("mail queue full, message dropped")
		return ErrQueueFull
	}
}

// Shutdown stops accepting messages and waits for queued ones to be
// delivered, or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(domain.NormalizeEmail(recipient)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.EmailMessage) {
	defer d.wg.Done()
	depth := metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			d.deliver(ctx, id, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, msg domain.EmailMessage) {
	jobCtx, cancel := context.WithTimeout(ctx, d.jobTimeout)
	defer cancel()

	if err := d.mailer.Send(jobCtx, msg); err != nil {
		metrics.MailDeliveriesTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).
			Str("subject", msg.Subject).
			Int("worker_id", id).
			Msg("email delivery failed")
		return
	}
	metrics.MailDeliveriesTotal.WithLabelValues("sent").Inc()
}
