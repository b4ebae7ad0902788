package engine

import "math"

// Source is the randomness a game session draws from. Implementations need
// not be safe for concurrent use.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Intn returns a value in [0, n). n must be > 0.
	Intn(n int) int
}

// HMACSource is a deterministic Source backed by an HMAC byte stream. The same
// seeds and nonce always produce the same sequence.
type HMACSource struct {
	seeds Seeds
	nonce uint64
	gen   *byteStream
	drawn uint64
}

// NewSource creates a Source for the given seeds, starting at nonce.
func NewSource(seeds Seeds, nonce uint64) *HMACSource {
	return &HMACSource{
		seeds: seeds,
		nonce: nonce,
		gen:   newByteStream(seeds.Server, seeds.Client, nonce, 0),
	}
}

// Float64 implements Source.
func (s *HMACSource) Float64() float64 {
	s.drawn++
	return s.gen.float()
}

// Intn implements Source.
func (s *HMACSource) Intn(n int) int {
	if n <= 0 {
		panic("engine: Intn called with n <= 0")
	}
	return indexFromFloat(s.Float64(), n)
}

// Seeds returns the seeds the source was created with.
func (s *HMACSource) Seeds() Seeds { return s.seeds }

// Drawn reports how many floats have been consumed.
func (s *HMACSource) Drawn() uint64 { return s.drawn }

// Shuffle permutes n elements with Fisher-Yates, drawing from src.
func Shuffle(src Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		swap(i, j)
	}
}

// indexFromFloat maps a float in [0,1) onto [0, n-1].
func indexFromFloat(f float64, n int) int {
	index := int(math.Floor(f * float64(n)))
	if index < 0 {
		return 0
	}
	if index >= n {
		return n - 1
	}
	return index
}
