package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/internal/queue"
	"github.com/core-coin/vaultminter/pkg/logger"
)

const (
	DefaultConcurrency = 5
	DefaultHeartbeat   = 5 * time.Minute
)

var (
	// ErrUnknownKind and ErrInvalidPayload mark jobs that can never succeed.
	ErrUnknownKind    = errors.New("unknown job kind")
	ErrInvalidPayload = errors.New("invalid job payload")
)

// Channel is a queue served by a bounded pool of workers.
type Channel struct {
	Queue       queue.Queue
	Concurrency int
}

// Dispatcher pulls jobs from its channels and routes them to the minter by kind.
type Dispatcher struct {
	logger *logger.Logger

	minter models.MinterI
	alerts models.AlertService

	channels  []Channel
	heartbeat time.Duration
	// healthCheck is logged with every heartbeat when set.
	healthCheck func(ctx context.Context) error

	mu        sync.RWMutex
	listeners []Listener
	stats     *stats
}

// NewDispatcher creates a dispatcher with the logging/stats listener installed.
func NewDispatcher(minter models.MinterI, alerts models.AlertService, logger *logger.Logger, channels ...Channel) *Dispatcher {
	d := &Dispatcher{
		logger:    logger,
		minter:    minter,
		alerts:    alerts,
		channels:  channels,
		heartbeat: DefaultHeartbeat,
		stats:     newStats(),
	}
	for _, ch := range channels {
		d.stats.get(ch.Queue.Name())
	}
	d.OnEvent(d.stats.record(logger))
	return d
}

// OnEvent registers a listener for job and channel events.
func (d *Dispatcher) OnEvent(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// SetHeartbeat changes the heartbeat interval and the health check it logs.
func (d *Dispatcher) SetHeartbeat(interval time.Duration, check func(ctx context.Context) error) {
	d.heartbeat = interval
	d.healthCheck = check
}

// Stats returns a snapshot of the per-queue counters.
func (d *Dispatcher) Stats() map[string]QueueStats {
	return d.stats.snapshot()
}

// Run consumes every channel until ctx is cancelled or all deliveries stop,
// then waits for in-flight jobs to settle.
func (d *Dispatcher) Run(ctx context.Context) error {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		d.runHeartbeat(hbCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range d.channels {
		ch := ch
		g.Go(func() error { return d.consume(gctx, ch) })
	}

	err := g.Wait()
	stopHeartbeat()
	<-heartbeatDone
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Dispatcher) consume(ctx context.Context, ch Channel) error {
	name := ch.Queue.Name()
	deliveries, err := ch.Queue.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", name, err)
	}

	limit := ch.Concurrency
	if limit < 1 {
		limit = DefaultConcurrency
	}
	pool := new(errgroup.Group)
	pool.SetLimit(limit)

	d.emit(Event{Type: EventReady, Queue: name})

	// jobs outlive the consumer so that shutdown lets them settle
	jobCtx := context.WithoutCancel(ctx)
	for delivery := range deliveries {
		delivery := delivery
		pool.Go(func() error {
			d.handle(jobCtx, name, delivery)
			return nil
		})
	}
	return pool.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, queueName string, delivery *queue.Delivery) {
	job := delivery.Job
	log := d.logger.With("queue", queueName, "job", job.ID, "kind", job.Kind, "attempt", job.Attempt)
	counters := d.stats.get(queueName)
	counters.inFlight.Add(1)
	defer counters.inFlight.Add(-1)

	if delivery.DecodeErr != nil {
		if err := delivery.Reject(); err != nil {
			log.Errorw("Failed to reject undecodable job", "error", err)
		}
		d.emit(Event{Type: EventFailed, Queue: queueName, Job: job, Err: delivery.DecodeErr, Terminal: true})
		return
	}

	ctx = models.WithProgress(ctx, func(progress int) {
		d.emit(Event{Type: EventProgress, Queue: queueName, Job: job, Progress: progress})
	})

	start := time.Now()
	result, err := d.safeRoute(ctx, job)
	elapsed := time.Since(start)

	if err == nil {
		if ackErr := delivery.Ack(); ackErr != nil {
			log.Errorw("Failed to acknowledge job", "error", ackErr)
		}
		d.emit(Event{Type: EventCompleted, Queue: queueName, Job: job, Result: result, Duration: elapsed})
		return
	}

	if errors.Is(err, ErrUnknownKind) || errors.Is(err, ErrInvalidPayload) {
		if rejectErr := delivery.Reject(); rejectErr != nil {
			log.Errorw("Failed to reject job", "error", rejectErr)
		}
		d.emit(Event{Type: EventFailed, Queue: queueName, Job: job, Err: err, Terminal: true, Duration: elapsed})
		return
	}

	retryErr := delivery.Retry()
	switch {
	case errors.Is(retryErr, queue.ErrAttemptsExhausted):
		d.emit(Event{Type: EventFailed, Queue: queueName, Job: job, Err: err, Terminal: true, Duration: elapsed})
		d.onTerminal(ctx, log, job, err)
	case retryErr != nil:
		log.Errorw("Failed to schedule retry", "error", retryErr)
		d.emit(Event{Type: EventFailed, Queue: queueName, Job: job, Err: err, Duration: elapsed})
	default:
		d.emit(Event{Type: EventFailed, Queue: queueName, Job: job, Err: err, Duration: elapsed})
	}
}

// route dispatches a job to the minter operation matching its kind.
func (d *Dispatcher) route(ctx context.Context, job models.Job) (interface{}, error) {
	switch job.Kind {
	case models.JobKindPrepare:
		var p models.PreparePayload
		if err := decodePayload(job, &p); err != nil || p.VaultID == "" {
			return nil, invalidPayload(job, err)
		}
		return nil, d.minter.Prepare(ctx, p.VaultID)
	case models.JobKindMint:
		var p models.MintPayload
		if err := decodePayload(job, &p); err != nil || p.ClaimID == "" {
			return nil, invalidPayload(job, err)
		}
		return nil, d.minter.Mint(ctx, p.ClaimID)
	case models.JobKindReconcile:
		var p models.ReconcilePayload
		if err := decodePayload(job, &p); err != nil || p.VaultID == "" {
			return nil, invalidPayload(job, err)
		}
		return d.minter.Reconcile(ctx, p.VaultID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, job.Kind)
	}
}

// safeRoute runs route with panic recovery; a panic fails the job.
func (d *Dispatcher) safeRoute(ctx context.Context, job models.Job) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("Job panicked", "job", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return d.route(ctx, job)
}

// onTerminal runs once a job has used all of its attempts.
func (d *Dispatcher) onTerminal(ctx context.Context, log *logger.Logger, job models.Job, cause error) {
	subject := ""
	switch job.Kind {
	case models.JobKindMint:
		var p models.MintPayload
		if err := decodePayload(job, &p); err == nil {
			subject = p.ClaimID
			if err := d.minter.MarkMintFailed(ctx, p.ClaimID); err != nil {
				log.Errorw("Failed to mark claim as failed", "claim", p.ClaimID, "error", err)
			}
		}
	case models.JobKindPrepare, models.JobKindReconcile:
		var p models.PreparePayload
		if err := decodePayload(job, &p); err == nil {
			subject = p.VaultID
		}
	}

	if d.alerts == nil {
		return
	}
	d.safeCall(log, func() {
		d.alerts.SendAlert(ctx, &models.Alert{
			Title:   "Job failed permanently",
			JobID:   job.ID,
			Kind:    string(job.Kind),
			Subject: subject,
			Error:   cause.Error(),
		})
	}, "terminalAlert")
}

func (d *Dispatcher) emit(e Event) {
	d.mu.RLock()
	listeners := d.listeners
	d.mu.RUnlock()
	for _, l := range listeners {
		d.safeCall(d.logger, func() { l(e) }, "listener")
	}
}

// safeCall runs a function with panic recovery
func (d *Dispatcher) safeCall(log *logger.Logger, fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (d *Dispatcher) runHeartbeat(ctx context.Context) {
	if d.heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(d.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.logger.Infow("Worker heartbeat", "stats", d.Stats())
			if d.healthCheck != nil {
				if err := d.healthCheck(ctx); err != nil {
					d.logger.Warnw("Health check failed", "error", err)
				}
			}
		}
	}
}

func decodePayload(job models.Job, v interface{}) error {
	if len(job.Payload) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(job.Payload, v)
}

func invalidPayload(job models.Job, err error) error {
	if err != nil {
		return fmt.Errorf("%w for %s job: %v", ErrInvalidPayload, job.Kind, err)
	}
	return fmt.Errorf("%w for %s job: missing id", ErrInvalidPayload, job.Kind)
}
