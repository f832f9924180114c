// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"sort"
	"sync"
	"time"

	applog "analyser/internal/log"
	"analyser/internal/transport"
)

// UDPPublisher keeps the latest frame of every analyser and, on each tick,
// packs them into binary datagrams (see EncodePacket) and sends them with a
// PacketSender. Send never touches the network, so a slow or unreachable
// consumer cannot stall analysis.
type UDPPublisher struct {
	sender   PacketSender  // The underlying datagram sender.
	interval time.Duration // The interval at which packets are sent.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker and doneChan during Start/Stop.

	latestMu sync.Mutex
	latest   map[string]*transport.Frame // Most recent frame per analyser.
	dirty    map[string]bool             // Analysers with a frame not yet published.

	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
	sent         uint64
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender PacketSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		latest:       make(map[string]*transport.Frame),
		dirty:        make(map[string]bool),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Send records frame as the latest result for its analyser. The frame's
// buffers are copied into storage owned by the publisher.
func (p *UDPPublisher) Send(frame transport.Frame) error {
	p.latestMu.Lock()
	defer p.latestMu.Unlock()

	slot, ok := p.latest[frame.Analyser]
	if !ok {
		slot = &transport.Frame{}
		p.latest[frame.Analyser] = slot
	}
	slot.Analyser = frame.Analyser
	slot.Sequence = frame.Sequence
	slot.Timestamp = frame.Timestamp
	slot.Bytes = append(slot.Bytes[:0], frame.Bytes...)
	p.dirty[frame.Analyser] = true
	return nil
}

// Start begins the periodic publishing process. Calling Start on a running
// publisher is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Local copies keep the goroutine clear of races on p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.Flush()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
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
	applog.Debugf("UDPPublisher: Publisher goroutine finished after %d packets.", p.sent)
	return nil
}

// Flush sends one packet for every analyser whose frame changed since the
// previous flush, in analyser-name order.
func (p *UDPPublisher) Flush() {
	p.latestMu.Lock()
	defer p.latestMu.Unlock()

	names := make([]string, 0, len(p.dirty))
	for name := range p.dirty {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		delete(p.dirty, name)
		p.packetBuffer.Reset()
		if err := EncodePacket(p.packetBuffer, *p.latest[name]); err != nil {
			applog.Errorf("UDPPublisher: Error packing frame for %q: %v", name, err)
			continue
		}
		// Errors are logged by the sender; the next tick retries with fresh data.
		if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
			p.sent++
		}
	}
}

// Close stops the publisher and closes the underlying sender.
func (p *UDPPublisher) Close() error {
	return errors.Join(p.Stop(), p.sender.Close())
}

var _ transport.Transport = (*UDPPublisher)(nil)
