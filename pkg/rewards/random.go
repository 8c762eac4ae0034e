package rewards

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
)

const (
	coinChancePercent  = 70
	coinStep           = 100
	coinStepsMin       = 1
	coinStepsMax       = 7
	boosterStepPercent = 10
	boosterStepsMin    = 15
	boosterStepsMax    = 24
	boosterHoursMin    = 1
	boosterHoursMax    = 24*8 - 1
)

// RandomSource is the subset of *rand.Rand used for reward and countdown draws.
// Implementations need not be safe for concurrent use.
type RandomSource interface {
	IntN(n int) int
}

// NewRandomSource returns a PCG generator seeded from crypto/rand.
func NewRandomSource() (*rand.Rand, error) {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))), nil
}

// Draw picks a reward: coins in hundreds with 70% probability, otherwise a booster.
func Draw(random RandomSource) Reward {
	if random.IntN(100) < coinChancePercent {
		return CoinReward(ledger.Coins(IntInRange(random, coinStepsMin, coinStepsMax) * coinStep))
	}
	return BoosterReward(
		IntInRange(random, boosterStepsMin, boosterStepsMax)*boosterStepPercent,
		time.Duration(IntInRange(random, boosterHoursMin, boosterHoursMax))*time.Hour,
	)
}

// IntInRange returns a value in [low, high].
func IntInRange(random RandomSource, low int, high int) int {
	return low + random.IntN(high-low+1)
}
