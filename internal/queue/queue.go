package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/core-coin/vaultminter/internal/models"
)

var (
	// ErrAttemptsExhausted is returned by Delivery.Retry when the job has used
	// all of its attempts and was dead-lettered instead.
	ErrAttemptsExhausted = errors.New("job attempts exhausted")
	ErrClosed            = errors.New("queue closed")
)

// Queue is a named channel of jobs.
type Queue interface {
	Name() string
	Publish(ctx context.Context, job models.Job) error
	// Consume streams deliveries until ctx is cancelled or the queue closes.
	Consume(ctx context.Context) (<-chan *Delivery, error)
	Close() error
}

// Delivery is a received job awaiting settlement. Exactly one of Ack, Retry
// or Reject must be called.
type Delivery struct {
	Job models.Job
	// DecodeErr is set when the message body is not a valid job.
	DecodeErr error

	maxAttempts int
	ack         func() error
	republish   func(next models.Job) error
	deadLetter  func() error
}

func (d *Delivery) Ack() error {
	return d.ack()
}

// Retry schedules the job again with its attempt counter increased. When the
// job is out of attempts it is dead-lettered and ErrAttemptsExhausted returned.
func (d *Delivery) Retry() error {
	if d.DecodeErr != nil {
		return d.Reject()
	}
	if d.Job.Attempt >= d.maxAttempts {
		if err := d.deadLetter(); err != nil {
			return fmt.Errorf("failed to dead-letter job: %w", err)
		}
		return ErrAttemptsExhausted
	}
	next := d.Job
	next.Attempt++
	if err := d.republish(next); err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}
	return nil
}

// Reject dead-letters the job without retrying it.
func (d *Delivery) Reject() error {
	return d.deadLetter()
}

// NewJob builds a first-attempt job with a fresh id.
func NewJob(kind models.JobKind, payload interface{}) (models.Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return models.Job{}, fmt.Errorf("failed to encode payload: %w", err)
	}
	return models.Job{ID: uuid.NewString(), Kind: kind, Payload: body, Attempt: 1}, nil
}

func encodeJob(job models.Job) ([]byte, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Attempt < 1 {
		job.Attempt = 1
	}
	return json.Marshal(job)
}

func decodeJob(body []byte) (models.Job, error) {
	var job models.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return models.Job{}, fmt.Errorf("invalid job body: %w", err)
	}
	if job.Kind == "" {
		return models.Job{}, fmt.Errorf("job has no kind")
	}
	if job.Attempt < 1 {
		job.Attempt = 1
	}
	return job, nil
}
