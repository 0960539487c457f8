// Package latency models the activation delay applied between an order's
// client timestamp and the moment it becomes visible on the book.
package latency

import (
	"math"
	"math/rand"
	"time"
)

// Mode selects the shape of the sampled delay distribution.
type Mode int8

const (
	Sine Mode = iota
	Cosine
	NormalDistribution
	Uniform
)

func (m Mode) String() string {
	switch m {
	case Sine:
		return "sine"
	case Cosine:
		return "cosine"
	case NormalDistribution:
		return "normal_distribution"
	case Uniform:
		return "uniform"
	default:
		return "unknown"
	}
}

// Model samples a latency in milliseconds bounded by [Min, Max]. Each call
// advances an internal call counter so repeated samples within the same
// wall-clock millisecond still diverge.
type Model struct {
	Mode Mode
	Min  int64
	Max  int64

	calls  uint64
	rng    *rand.Rand
	source rand.Source
}

func New(mode Mode, min, max int64) *Model {
	src := rand.NewSource(time.Now().UnixNano())
	return &Model{
		Mode:   mode,
		Min:    min,
		Max:    max,
		source: src,
		rng:    rand.New(src),
	}
}

// Sample returns a latency in [Min, Max], perturbed by seed and an internal
// call counter so back-to-back calls within one millisecond still diverge.
func (m *Model) Sample(seed int64) int64 {
	m.calls++
	span := float64(m.Max - m.Min)
	if span <= 0 {
		return m.Min
	}

	perturbed := float64(seed%1000) + float64(m.calls%997)
	mean := float64(m.Min+m.Max) / 2
	sigma := span / 4

	var v float64
	switch m.Mode {
	case Sine:
		v = mean + (span/2)*math.Sin(perturbed/159.0)
	case Cosine:
		v = mean + (span/2)*math.Cos(perturbed/159.0)
	case NormalDistribution:
		v = mean + sigma*m.rng.NormFloat64()
	case Uniform:
		v = float64(m.Min) + m.rng.Float64()*span
	default:
		v = mean
	}

	if v < float64(m.Min) {
		v = float64(m.Min)
	}
	if v > float64(m.Max) {
		v = float64(m.Max)
	}
	return int64(v)
}
