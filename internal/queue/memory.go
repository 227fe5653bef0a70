package queue

import (
	"context"
	"sync"
	"time"

	"github.com/core-coin/vaultminter/internal/models"
)

// Memory is an in-process Queue with the same settlement semantics as the
// RabbitMQ queue. Used by tests and local runs.
type Memory struct {
	name        string
	maxAttempts int
	backoff     time.Duration

	// sendMu guards closed and sending on msgs; a publisher waiting on a full
	// buffer never holds mu.
	sendMu    sync.RWMutex
	closed    bool
	msgs      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.Mutex
	acked []models.Job
	dead  []models.Job
}

var _ Queue = (*Memory)(nil)

func NewMemory(name string, maxAttempts int, backoff time.Duration) *Memory {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Memory{
		name:        name,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		msgs:        make(chan []byte, 1024),
		done:        make(chan struct{}),
	}
}

func (m *Memory) Name() string {
	return m.name
}

func (m *Memory) Publish(ctx context.Context, job models.Job) error {
	body, err := encodeJob(job)
	if err != nil {
		return err
	}
	return m.PublishRaw(ctx, body)
}

// PublishRaw enqueues a message body as is.
func (m *Memory) PublishRaw(ctx context.Context, body []byte) error {
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	select {
	case m.msgs <- body:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Consume(ctx context.Context) (<-chan *Delivery, error) {
	out := make(chan *Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case body, ok := <-m.msgs:
				if !ok {
					return
				}
				select {
				case out <- m.wrap(body):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *Memory) wrap(body []byte) *Delivery {
	job, decodeErr := decodeJob(body)
	return &Delivery{
		Job:         job,
		DecodeErr:   decodeErr,
		maxAttempts: m.maxAttempts,
		ack: func() error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.acked = append(m.acked, job)
			return nil
		},
		republish: func(next models.Job) error {
			if m.backoff <= 0 {
				return m.Publish(context.Background(), next)
			}
			time.AfterFunc(m.backoff, func() { _ = m.Publish(context.Background(), next) })
			return nil
		},
		deadLetter: func() error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.dead = append(m.dead, job)
			return nil
		},
	}
}

// Acked returns the jobs acknowledged so far.
func (m *Memory) Acked() []models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Job(nil), m.acked...)
}

// Dead returns the jobs rejected or exhausted so far.
func (m *Memory) Dead() []models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Job(nil), m.dead...)
}

func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		// release blocked publishers before waiting for them
		close(m.done)
		m.sendMu.Lock()
		defer m.sendMu.Unlock()
		m.closed = true
		close(m.msgs)
	})
	return nil
}
