package execution

import "math/rand/v2"

const (
	MinCost            = 1
	MaxCost            = 15
	MinDurationSeconds = 10
	MaxDurationSeconds = 40

	// SuccessProbability is the chance a charged task ends Succeeded.
	SuccessProbability = 0.75
)

// Randomizer supplies the draws made when a task is charged.
// Implementations must be safe for concurrent use.
type Randomizer interface {
	// Cost returns a charge in [MinCost, MaxCost].
	Cost() int
	// DurationSeconds returns a simulated run time in [MinDurationSeconds, MaxDurationSeconds].
	DurationSeconds() int
	// Seed returns the value the task's outcome is derived from.
	Seed() uint64
}

// DefaultRandomizer draws from the math/rand/v2 global source, which is
// safe for concurrent use.
type DefaultRandomizer struct{}

func (DefaultRandomizer) Cost() int {
	return MinCost + rand.IntN(MaxCost-MinCost+1)
}

func (DefaultRandomizer) DurationSeconds() int {
	return MinDurationSeconds + rand.IntN(MaxDurationSeconds-MinDurationSeconds+1)
}

func (DefaultRandomizer) Seed() uint64 {
	return rand.Uint64()
}

// SucceedsWithSeed derives the outcome of a task from its persisted seed.
// The same seed always yields the same result.
func SucceedsWithSeed(seed uint64) bool {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return r.Float64() < SuccessProbability
}
