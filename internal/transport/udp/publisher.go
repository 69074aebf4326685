// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"mixdeck/internal/analysis"
)

// DefaultInterval is about 60 packets per second.
const DefaultInterval = 16 * time.Millisecond

// headerSize is sequence + timestamp + count.
const headerSize = 4 + 8 + 2

// ErrShortPacket is returned by DecodePacket for truncated input.
var ErrShortPacket = errors.New("udp packet too short")

// UDPPublisher periodically fetches the byte spectrum of the analyzer, packs
// it into the packet format below and sends it with a Sender. It runs in a
// separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   Sender
	source   analysis.SnapshotProvider
	interval time.Duration
	now      func() time.Time

	ticker   *time.Ticker
	doneChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	// Owned by the publisher goroutine.
	sequenceNum uint32
	spectrum    []byte
	packet      []byte
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to DefaultInterval.
func NewUDPPublisher(interval time.Duration, sender Sender, source analysis.SnapshotProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: spectrum source cannot be nil")
	}
	bins := source.BinCount()
	if bins > 0xFFFF {
		return nil, fmt.Errorf("UDPPublisher: %d bins do not fit the packet count field", bins)
	}

	if interval <= 0 {
		interval = DefaultInterval
		logger.Warnf("invalid interval provided, defaulting to %s", interval)
	}
	logger.Infof("publisher ready (interval %s, %d bins)", interval, bins)

	return &UDPPublisher{
		sender:   sender,
		source:   source,
		interval: interval,
		now:      time.Now,
		spectrum: make([]byte, bins),
		packet:   make([]byte, 0, headerSize+bins),
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ticker != nil {
		logger.Warnf("Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	ticker, doneChan := p.ticker, p.doneChan

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.ticker.Stop()
	p.ticker = nil
	p.mu.Unlock()

	p.wg.Wait()
	logger.Debugf("publisher stopped after %d packets", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Bin Count         | uint16         | 2            | Number of bins (N)      |
| Spectrum          | []byte         | N            | Byte frequency data     |
+-----------------------------------------------------------------------------+

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<---- N Bytes ---->|
+-------------------+-----------------------+---------------+-------------------+
|  Sequence Number  |       Timestamp       |   Bin Count   |     Spectrum      |
+-------------------+-----------------------+---------------+-------------------+
*/

// Packet is a decoded spectrum packet.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Spectrum  []byte
}

// encodePacket appends the packet for seq, ts and spectrum to dst.
func encodePacket(dst []byte, seq uint32, ts int64, spectrum []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(spectrum)))
	return append(dst, spectrum...)
}

// DecodePacket parses a packet. The returned spectrum aliases b.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < headerSize {
		return Packet{}, ErrShortPacket
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) < headerSize+n {
		return Packet{}, fmt.Errorf("%w: %d bins declared, %d bytes present", ErrShortPacket, n, len(b)-headerSize)
	}
	p.Spectrum = b[headerSize : headerSize+n]
	return p, nil
}

// buildAndSendPacket is executed on each ticker interval: it copies the
// latest spectrum, packs it and sends it.
func (p *UDPPublisher) buildAndSendPacket() {
	n := p.source.FrequencyData(p.spectrum)
	p.sequenceNum++
	p.packet = encodePacket(p.packet[:0], p.sequenceNum, p.now().UnixNano(), p.spectrum[:n])

	if err := p.sender.Send(p.packet); err == nil {
		logger.Debugf("sent packet %d (%d bytes)", p.sequenceNum, len(p.packet))
	}
}

// Close implements the io.Closer interface. It stops the publisher; the
// sender is left to its owner.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
