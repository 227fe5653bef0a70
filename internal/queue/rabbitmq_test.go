package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeConfirm struct {
	acked bool
	err   error
	block bool
}

func (f fakeConfirm) WaitContext(ctx context.Context) (bool, error) {
	if f.block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return f.acked, f.err
}

func TestAwaitConfirm(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, awaitConfirm(ctx, fakeConfirm{acked: true}))
	assert.ErrorIs(t, awaitConfirm(ctx, fakeConfirm{acked: false}), errNotConfirmed)

	channelErr := errors.New("channel closed")
	assert.ErrorIs(t, awaitConfirm(ctx, fakeConfirm{err: channelErr}), channelErr)
}

func TestAwaitConfirmTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, awaitConfirm(ctx, fakeConfirm{block: true}), context.DeadlineExceeded)
}
