package training

import (
	"math/rand"
	"sync"

	"github.com/fedgovio/fedgov/types"
)

// Trial is one concrete hyperparameter assignment drawn from a model's
// search space.
type Trial map[string]any

// Tuner drives the per-session hyperparameter search. Intermediate
// rounds draw a random sample from the search space, the final round
// replays the best trial reported so far. Lower scores are better,
// matching the loss objective of the aggregation worker.
type Tuner struct {
	mu    sync.Mutex
	space []types.Hyperparameter
	rng   *rand.Rand

	best      Trial
	bestScore float64
	reported  bool
}

// NewTuner creates a tuner over the given search space.
func NewTuner(space []types.Hyperparameter, seed int64) *Tuner {
	return &Tuner{
		space: space,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Suggest samples one trial from the search space.
func (t *Tuner) Suggest() Trial {
	t.mu.Lock()
	defer t.mu.Unlock()

	trial := make(Trial, len(t.space))
	for _, hp := range t.space {
		trial[hp.Name] = t.sample(hp)
	}
	return trial
}

// Report records the score a trial achieved. The best (lowest) score
// wins ties by arrival order.
func (t *Tuner) Report(trial Trial, score float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.reported || score < t.bestScore {
		t.best = trial
		t.bestScore = score
		t.reported = true
	}
}

// Best returns the best reported trial, or a fresh sample when nothing
// has been reported yet.
func (t *Tuner) Best() Trial {
	t.mu.Lock()
	if t.reported {
		best := t.best
		t.mu.Unlock()
		return best
	}
	t.mu.Unlock()
	return t.Suggest()
}

func (t *Tuner) sample(hp types.Hyperparameter) any {
	switch hp.Type {
	case types.HPInteger:
		lo, hi, ok := bounds(hp.ValidValues)
		if !ok {
			return nil
		}
		low, high := int(lo), int(hi)
		if high <= low {
			return low
		}
		return low + t.rng.Intn(high-low+1)
	case types.HPFloat:
		lo, hi, ok := bounds(hp.ValidValues)
		if !ok {
			return nil
		}
		if hi <= lo {
			return lo
		}
		return lo + t.rng.Float64()*(hi-lo)
	case types.HPCategorical:
		if len(hp.ValidValues) == 0 {
			return nil
		}
		return hp.ValidValues[t.rng.Intn(len(hp.ValidValues))]
	default:
		return nil
	}
}

// bounds extracts the [min, max] pair from a hyperparameter's valid
// values. JSON decoding yields float64, hand-built spaces may carry ints.
func bounds(values []any) (lo, hi float64, ok bool) {
	if len(values) < 2 {
		return 0, 0, false
	}
	lo, okLo := toFloat(values[0])
	hi, okHi := toFloat(values[1])
	return lo, hi, okLo && okHi
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
