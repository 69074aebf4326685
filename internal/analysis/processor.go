// SPDX-License-Identifier: MIT
package analysis

// BlockProcessor consumes blocks of the mixed signal. Process is called from
// the real-time audio callback and must not block or allocate.
type BlockProcessor interface {
	Process(block []float32)
}

// SnapshotProvider exposes the visualization snapshots of the analyzer. Both
// queries copy the most recent frame into dst and return the number of bytes
// written; they never wait for a new frame.
type SnapshotProvider interface {
	BinCount() int
	FrequencyData(dst []byte) int
	TimeDomainData(dst []byte) int
}

// LevelProvider exposes the level feed of the analyzer.
type LevelProvider interface {
	Levels() Levels
}

// Compile-time checks for interface implementations.
var (
	_ BlockProcessor   = (*Analyzer)(nil)
	_ SnapshotProvider = (*Analyzer)(nil)
	_ LevelProvider    = (*Analyzer)(nil)
)
