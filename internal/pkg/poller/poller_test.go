package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls   int32
	checked int
	updated int
	err     error
}

func (s *fakeSweeper) SweepStale(ctx context.Context) (int, int, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.checked, s.updated, s.err
}

func TestRunOnce(t *testing.T) {
	sweeper := &fakeSweeper{checked: 3, updated: 1}
	p := New(sweeper, time.Minute)

	checked, updated := p.RunOnce()
	assert.Equal(t, 3, checked)
	assert.Equal(t, 1, updated)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sweeper.calls))
}

func TestRunOnce_SweepErrorReturnsCounters(t *testing.T) {
	sweeper := &fakeSweeper{checked: 2, updated: 0, err: errors.New("db gone")}
	p := New(sweeper, time.Minute)

	checked, updated := p.RunOnce()
	assert.Equal(t, 2, checked)
	assert.Zero(t, updated)
}

func TestStartStop(t *testing.T) {
	sweeper := &fakeSweeper{}
	p := New(sweeper, 10*time.Millisecond)

	p.Start()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sweeper.calls) >= 2
	}, time.Second, 5*time.Millisecond)
	p.Stop()

	// No further sweeps after Stop.
	calls := atomic.LoadInt32(&sweeper.calls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, atomic.LoadInt32(&sweeper.calls))
}

func TestStartIsIdempotent(t *testing.T) {
	sweeper := &fakeSweeper{}
	p := New(sweeper, time.Hour)

	p.Start()
	p.Start()
	p.Stop()
	p.Stop()
}

func TestNewDefaultsInterval(t *testing.T) {
	p := New(&fakeSweeper{}, 0)
	assert.Equal(t, time.Minute, p.interval)
}
