package lesson

import (
	"math/rand"
	"time"
)

// Picker is the source of randomness for mini-game generation.
// *rand.Rand satisfies it, so tests can pass a fixed seed.
type Picker interface {
	Intn(n int) int
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// NewPicker returns a Picker seeded with seed
func NewPicker(seed int64) Picker {
	return rand.New(rand.NewSource(seed))
}

func defaultPicker() Picker {
	return NewPicker(time.Now().UnixNano())
}
