// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"sync"
	"time"

	"tapeloop/internal/log"
)

// DefaultPublishInterval is used when a Publisher is given a non-positive interval.
const DefaultPublishInterval = 33 * time.Millisecond

// Publisher periodically takes a snapshot from its source and sends it to
// every transport. It runs in a separate goroutine managed by Start and Stop.
type Publisher struct {
	source     SnapshotSource
	transports []Transport
	interval   time.Duration

	ticker   *time.Ticker   // Ticker that triggers a publish.
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	published uint64
}

// NewPublisher creates a publisher. If interval is not positive it defaults
// to DefaultPublishInterval.
func NewPublisher(interval time.Duration, source SnapshotSource, transports ...Transport) (*Publisher, error) {
	if source == nil {
		return nil, errors.New("publisher: snapshot source cannot be nil")
	}
	if len(transports) == 0 {
		return nil, errors.New("publisher: at least one transport is required")
	}
	if interval <= 0 {
		interval = DefaultPublishInterval
		log.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}
	return &Publisher{
		source:     source,
		transports: transports,
		interval:   interval,
	}, nil
}

// Start begins the periodic publishing process. Calling Start on a running
// publisher is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("Publisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Captured so the goroutine never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Debugf("Publisher: goroutine started (Interval: %s, Transports: %d)", p.interval, len(p.transports))
		for {
			select {
			case <-ticker.C:
				p.Publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Publish sends one snapshot to every transport. Transport errors are
// logged and do not stop the fan-out.
func (p *Publisher) Publish() {
	snap := p.source.Snapshot()
	for _, t := range p.transports {
		if err := t.Send(snap); err != nil {
			log.Debugf("Publisher: %T send failed: %v", t, err)
		}
	}
	p.published++
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	log.Debugf("Publisher: goroutine finished after %d snapshots.", p.published)
	return nil
}

// Close stops the publisher and closes every transport.
func (p *Publisher) Close() error {
	err := p.Stop()
	for _, t := range p.transports {
		err = errors.Join(err, t.Close())
	}
	return err
}

// Ensure Publisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*Publisher)(nil)
