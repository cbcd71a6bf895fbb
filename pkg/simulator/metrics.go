package simulator

import (
	"math"
	"math/rand"
)

// Synthetic funnel parameters. The counts only illustrate drop-off along the order.
const (
	BaseCount      = 10000
	DecayFactor    = 0.72
	DecayJitter    = 0.10
	MinElapsedMs   = 150
	ElapsedRangeMs = 1850
)

// Metrics is the synthetic throughput shown for a node during a simulated run.
type Metrics struct {
	Count     int `json:"count"`
	ElapsedMs int `json:"elapsed_ms"`
}

func assignMetrics(order []string, rng *rand.Rand) map[string]Metrics {
	out := make(map[string]Metrics, len(order))
	count := float64(BaseCount)

	for i, id := range order {
		if i > 0 {
			count *= DecayFactor * (1 + (rng.Float64()*2-1)*DecayJitter)
		}

		out[id] = Metrics{
			Count:     int(math.Round(count)),
			ElapsedMs: MinElapsedMs + rng.Intn(ElapsedRangeMs),
		}
	}

	return out
}
