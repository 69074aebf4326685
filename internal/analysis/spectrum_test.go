// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync"
	"testing"

	"mixdeck/pkg/utils"
)

const testSampleRate = 44100.0

func newTestAnalyzer(t testing.TB) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(DefaultAnalyzerOptions(testSampleRate))
	if err != nil {
		t.Fatalf("NewAnalyzer() error: %v", err)
	}
	return a
}

func constant(n int, v float32) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestNewAnalyzerValidation(t *testing.T) {
	base := DefaultAnalyzerOptions(testSampleRate)
	tests := []struct {
		name   string
		mutate func(*AnalyzerOptions)
	}{
		{"not power of two", func(o *AnalyzerOptions) { o.FFTSize = 1000 }},
		{"too small", func(o *AnalyzerOptions) { o.FFTSize = 16 }},
		{"zero sample rate", func(o *AnalyzerOptions) { o.SampleRate = 0 }},
		{"smoothing of one", func(o *AnalyzerOptions) { o.Smoothing = 1 }},
		{"negative smoothing", func(o *AnalyzerOptions) { o.Smoothing = -0.1 }},
		{"inverted decibel range", func(o *AnalyzerOptions) { o.MinDecibels, o.MaxDecibels = -30, -100 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			if _, err := NewAnalyzer(opts); err == nil {
				t.Errorf("NewAnalyzer(%+v) succeeded, want error", opts)
			}
		})
	}
}

func TestAnalyzerDefaults(t *testing.T) {
	a := newTestAnalyzer(t)
	if a.FFTSize() != 2048 || a.BinCount() != 1024 {
		t.Errorf("size = %d, bins = %d; want 2048, 1024", a.FFTSize(), a.BinCount())
	}
	if got := a.FrequencyForBin(1); math.Abs(got-testSampleRate/2048) > 1e-9 {
		t.Errorf("FrequencyForBin(1) = %v", got)
	}
	if a.FrequencyForBin(-1) != 0 || a.FrequencyForBin(1024) != 0 {
		t.Error("out of range bins should map to 0 Hz")
	}
}

func TestAnalyzerSilence(t *testing.T) {
	a := newTestAnalyzer(t)

	// Before any block and after a silent one the snapshot is flat.
	for _, feed := range []bool{false, true} {
		if feed {
			a.Process(make([]float32, 512))
		}
		freq := a.Frequency()
		for i, b := range freq {
			if b != 0 {
				t.Fatalf("frequency bin %d = %d, want 0", i, b)
			}
		}
		timeData := a.TimeDomain()
		if len(timeData) != a.BinCount() {
			t.Fatalf("time-domain length = %d, want %d", len(timeData), a.BinCount())
		}
		for i, b := range timeData {
			if b != 128 {
				t.Fatalf("time-domain sample %d = %d, want 128", i, b)
			}
		}
	}
}

func TestAnalyzerTimeDomainIsMostRecent(t *testing.T) {
	a := newTestAnalyzer(t)
	dst := make([]byte, a.BinCount())

	a.Process(constant(2048, 0.5))
	if n := a.TimeDomainData(dst); n != len(dst) {
		t.Fatalf("TimeDomainData() wrote %d bytes, want %d", n, len(dst))
	}
	for i, b := range dst {
		if b != 192 {
			t.Fatalf("sample %d = %d, want 192", i, b)
		}
	}

	// Exactly one snapshot's worth of new signal replaces what is shown.
	a.Process(constant(1024, -1))
	a.TimeDomainData(dst)
	for i, b := range dst {
		if b != 0 {
			t.Fatalf("after new block sample %d = %d, want 0", i, b)
		}
	}

	a.Process(constant(1024, 2)) // clipped signal saturates the byte range
	a.TimeDomainData(dst)
	if dst[0] != 255 || dst[len(dst)-1] != 255 {
		t.Errorf("clipped samples = %d..%d, want 255", dst[0], dst[len(dst)-1])
	}
}

func TestAnalyzerOversizedBlock(t *testing.T) {
	a := newTestAnalyzer(t)
	block := make([]float32, 4096)
	for i := 3072; i < len(block); i++ {
		block[i] = 0.5
	}
	a.Process(block)
	for i, b := range a.TimeDomain() {
		if b != 192 {
			t.Fatalf("sample %d = %d, want 192", i, b)
		}
	}
}

func TestAnalyzerSineSpectrum(t *testing.T) {
	a := newTestAnalyzer(t)
	const freq = 1000.0
	sine := utils.GenerateSineWave(512*64, testSampleRate, freq, 0.01)
	dst := make([]byte, a.BinCount())

	// Let the smoothing settle.
	for off := 0; off < len(sine); off += 512 {
		a.Process(sine[off : off+512])
		a.FrequencyData(dst)
	}

	wantBin := int(math.Round(freq / (testSampleRate / 2048)))
	if got := utils.FindPeakBin(dst, 1, len(dst)-1); absInt(got-wantBin) > 1 {
		t.Errorf("byte spectrum peak at bin %d, want %d ± 1", got, wantBin)
	}
	if got := utils.FindPeakBin(a.Magnitudes(), 1, a.BinCount()-1); absInt(got-wantBin) > 1 {
		t.Errorf("magnitude peak at bin %d, want %d ± 1", got, wantBin)
	}
	if dst[wantBin] == 0 || dst[wantBin] == 255 {
		t.Errorf("peak byte = %d, want within the decibel range", dst[wantBin])
	}
	if far := dst[wantBin*10]; far != 0 {
		t.Errorf("bin %d far from the tone = %d, want 0", wantBin*10, far)
	}
}

func TestAnalyzerQueriesWithoutNewFrameAreStable(t *testing.T) {
	a := newTestAnalyzer(t)
	a.Process(utils.GenerateComplexWave(2048, testSampleRate))
	first := a.Frequency()
	second := a.Frequency()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("bin %d changed without new audio: %d -> %d", i, first[i], second[i])
		}
	}
}

func TestAnalyzerProcessDoesNotAllocate(t *testing.T) {
	a := newTestAnalyzer(t)
	block := utils.GenerateSineWave(256, testSampleRate, 440, 0.5)
	allocs := testing.AllocsPerRun(100, func() {
		a.Process(block)
	})
	if allocs != 0 {
		t.Errorf("Process allocated %.1f times per run, want 0", allocs)
	}

	dst := make([]byte, a.BinCount())
	allocs = testing.AllocsPerRun(20, func() {
		a.Process(block)
		a.FrequencyData(dst)
		a.TimeDomainData(dst)
	})
	if allocs != 0 {
		t.Errorf("snapshot queries allocated %.1f times per run, want 0", allocs)
	}
}

func TestAnalyzerConcurrentReaders(t *testing.T) {
	a := newTestAnalyzer(t)
	block := utils.GenerateSineWave(256, testSampleRate, 440, 0.5)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			a.Process(block)
		}
	}()
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst := make([]byte, a.BinCount())
			for i := 0; i < 200; i++ {
				a.FrequencyData(dst)
				a.TimeDomainData(dst)
				a.Levels()
			}
		}()
	}
	wg.Wait()
}

func TestDecibelsToByte(t *testing.T) {
	tests := []struct {
		db   float64
		want byte
	}{
		{math.Inf(-1), 0},
		{math.NaN(), 0},
		{-120, 0},
		{-100, 0},
		{-65, 127},
		{-30, 255},
		{0, 255},
	}
	for _, tt := range tests {
		if got := decibelsToByte(tt.db, DefaultMinDecibels, DefaultMaxDecibels); got != tt.want {
			t.Errorf("decibelsToByte(%v) = %d, want %d", tt.db, got, tt.want)
		}
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"blackman", Blackman, false},
		{"Hanning", Hann, false},
		{" Nuttall ", Nuttall, false},
		{"", Blackman, false},
		{"triangle", Blackman, true},
	}
	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.name)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) = %v, %v; want %v, error %v", tt.name, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestApplyWindowBlackman(t *testing.T) {
	coeffs := make([]float64, 64)
	applyWindow(coeffs, Blackman)
	if math.Abs(coeffs[0]) > 1e-9 {
		t.Errorf("Blackman window starts at %v, want 0", coeffs[0])
	}
	peak := utils.FindPeakBin(coeffs, 0, len(coeffs)-1)
	if peak != 31 && peak != 32 {
		t.Errorf("Blackman window peaks at %d, want the centre", peak)
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func BenchmarkAnalyzerProcess(b *testing.B) {
	a := newTestAnalyzer(b)
	block := utils.GenerateSineWave(256, testSampleRate, 440, 0.5)
	b.ReportAllocs()
	for b.Loop() {
		a.Process(block)
	}
}

func BenchmarkAnalyzerFrequencyData(b *testing.B) {
	a := newTestAnalyzer(b)
	block := utils.GenerateSineWave(256, testSampleRate, 440, 0.5)
	dst := make([]byte, a.BinCount())
	b.ReportAllocs()
	for b.Loop() {
		a.Process(block)
		a.FrequencyData(dst)
	}
}
