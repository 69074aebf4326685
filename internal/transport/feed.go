// SPDX-License-Identifier: MIT
package transport

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"mixdeck/internal/analysis"
	"mixdeck/internal/deck"
	"mixdeck/internal/log"
)

// DefaultFeedInterval is about 30 frames per second.
const DefaultFeedInterval = 33 * time.Millisecond

// Source is what the feed samples on each tick.
type Source interface {
	analysis.SnapshotProvider
	analysis.LevelProvider
	DeckSnapshots() []deck.Snapshot
}

// ByteArray marshals to a JSON array of numbers rather than base64, which is
// what visualisers expect from getByteFrequencyData.
type ByteArray []byte

// MarshalJSON implements json.Marshaler.
func (b ByteArray) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+4*len(b))
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

// Frame is one feed message.
type Frame struct {
	Type      string          `json:"type"` // always "frame"
	Seq       uint64          `json:"seq"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Frequency ByteArray       `json:"frequency"`
	Waveform  ByteArray       `json:"waveform"`
	Levels    analysis.Levels `json:"levels"`
	Decks     []deck.Snapshot `json:"decks"`
}

// Feed periodically samples a Source and sends a Frame to its transports.
// It runs in a separate goroutine managed by Start and Stop.
type Feed struct {
	source     Source
	transports []Transport
	interval   time.Duration
	logger     *log.Logger

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	// Owned by the feed goroutine; Send must not retain them.
	seq       uint64
	frequency []byte
	waveform  []byte
}

// NewFeed creates a feed of source. If interval is not positive it defaults
// to DefaultFeedInterval.
func NewFeed(interval time.Duration, source Source, transports ...Transport) (*Feed, error) {
	if source == nil {
		return nil, fmt.Errorf("feed source cannot be nil")
	}
	if len(transports) == 0 {
		return nil, fmt.Errorf("feed needs at least one transport")
	}
	f := &Feed{
		source:     source,
		transports: transports,
		interval:   interval,
		logger:     log.Named("feed"),
		frequency:  make([]byte, source.BinCount()),
		waveform:   make([]byte, source.BinCount()),
	}
	if f.interval <= 0 {
		f.interval = DefaultFeedInterval
		f.logger.Warnf("invalid interval provided, defaulting to %s", f.interval)
	}
	return f, nil
}

// Start begins publishing. Subsequent calls are no-ops while running.
func (f *Feed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticker != nil {
		f.logger.Warnf("Start called but already running")
		return
	}
	f.ticker = time.NewTicker(f.interval)
	f.doneChan = make(chan struct{})
	ticker, done := f.ticker, f.doneChan

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.logger.Debugf("publishing every %s to %d transports", f.interval, len(f.transports))
		for {
			select {
			case <-ticker.C:
				f.publish(time.Now())
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the feed goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times.
func (f *Feed) Stop() error {
	f.mu.Lock()
	if f.ticker == nil {
		f.mu.Unlock()
		return nil
	}
	close(f.doneChan)
	f.ticker.Stop()
	f.ticker = nil
	f.mu.Unlock()

	f.wg.Wait()
	return nil
}

// publish builds one frame and sends it to every transport.
func (f *Feed) publish(now time.Time) {
	f.seq++
	n := f.source.FrequencyData(f.frequency)
	m := f.source.TimeDomainData(f.waveform)
	frame := Frame{
		Type:      "frame",
		Seq:       f.seq,
		Timestamp: now.UnixMilli(),
		Frequency: f.frequency[:n],
		Waveform:  f.waveform[:m],
		Levels:    f.source.Levels(),
		Decks:     f.source.DeckSnapshots(),
	}
	for _, t := range f.transports {
		if err := t.Send(frame); err != nil {
			f.logger.Debugf("frame %d: %v", f.seq, err)
		}
	}
}

// Close stops the feed. The transports are left to their owner.
func (f *Feed) Close() error {
	return f.Stop()
}
