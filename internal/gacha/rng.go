package gacha

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// RandomSource yields uniform floats in [0, 1). Implementations must be safe
// for concurrent use; one source is shared by every draw session.
type RandomSource interface {
	Float64() float64 // [0, 1)
}

// cryptoRNG reads from crypto/rand and keeps the top 53 bits, the float64
// mantissa width.
type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

// DefaultRNG is the source used when a ledger is built without WithRandom.
func DefaultRNG() RandomSource { return cryptoRNG{} }

// seededRNG is a reproducible PCG stream for simulations and tests.
type seededRNG struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededRNG returns a reproducible source for seed.
func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}
