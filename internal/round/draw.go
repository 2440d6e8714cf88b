package round

import (
	crand "crypto/rand"
	"math/big"
	mrand "math/rand/v2"

	"github.com/rs/zerolog/log"
)

// Rand is the randomness a round needs. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// CryptoRand draws from crypto/rand and falls back to math/rand/v2 if the
// system source fails.
type CryptoRand struct{}

// IntN returns a value in [0, n). n must be positive.
func (CryptoRand) IntN(n int) int {
	v, err := crand.Int(crand.Reader, big.NewInt(int64(n)))
	if err != nil {
		log.Warn().Err(err).Msg("crypto random source failed, using math/rand")
		return mrand.IntN(n)
	}
	return int(v.Int64())
}

// Draw picks a uniform index in [0, n). It returns 0 when n <= 1.
func Draw(rng Rand, n int) int {
	if n <= 1 {
		return 0
	}
	return rng.IntN(n)
}

// DrawExcluding picks a uniform index in [0, n) that differs from prev.
// With fewer than two choices there is nothing else to pick, so prev is
// kept (or 0 if prev is out of range).
func DrawExcluding(rng Rand, n, prev int) int {
	if n <= 1 {
		if prev >= 0 && prev < n {
			return prev
		}
		return 0
	}
	for {
		next := rng.IntN(n)
		if next != prev {
			return next
		}
	}
}
