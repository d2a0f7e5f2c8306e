package poller

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Sweeper is the slice of the payment service the poller drives.
type Sweeper interface {
	SweepStale(ctx context.Context) (checked, updated int, err error)
}

// Poller periodically sweeps stale pending intents. It is the fallback path
// for lost provider callbacks.
type Poller struct {
	sweeper  Sweeper
	interval time.Duration
	timeout  time.Duration

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a poller; interval defaults to a minute.
func New(sweeper Sweeper, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Poller{
		sweeper:  sweeper,
		interval: interval,
		// A run queries at most one bounded batch with pacing in between, so
		// a couple of minutes is generous.
		timeout: 2 * time.Minute,
	}
}

// Start launches the background sweep loop.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.stopCh = make(chan struct{})
	p.running = true

	p.ticker = time.NewTicker(p.interval)
	p.wg.Add(1)
	go p.worker()

	log.Infof("[Poller] started, interval %s", p.interval)
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.ticker.Stop()
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	log.Info("[Poller] stopped")
}

func (p *Poller) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ticker.C:
			p.RunOnce()
		case <-p.stopCh:
			return
		}
	}
}

// RunOnce executes a single sweep and returns its counters. Exposed for the
// on-demand trigger route and tests.
func (p *Poller) RunOnce() (checked, updated int) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	checked, updated, err := p.sweeper.SweepStale(ctx)
	if err != nil {
		log.Errorf("[Poller] sweep failed: %v", err)
		return checked, updated
	}
	if checked > 0 {
		log.Infof("[Poller] sweep done: checked=%d updated=%d", checked, updated)
	}
	return checked, updated
}
