package teacher

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/ale-nlp/ale/internal/alerr"
)

// Random proposes a seeded uniform sample of the candidates. It is the baseline
// the other strategies are compared against.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a random teacher. Successive proposals continue the same
// random stream, so a run is reproducible from its seed.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func newRandomFromDeps(_ context.Context, d Deps) (Teacher, error) {
	return NewRandom(d.Seed), nil
}

// Propose implements Teacher. stepSize larger than the pool is an error.
func (r *Random) Propose(_ context.Context, candidateIDs []int, stepSize, _ int) ([]int, error) {
	if stepSize < 0 || stepSize > len(candidateIDs) {
		return nil, fmt.Errorf("%w: cannot sample %d of %d candidates", alerr.ErrInvalidInput, stepSize, len(candidateIDs))
	}

	pool := make([]int, len(candidateIDs))
	copy(pool, candidateIDs)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < stepSize; i++ {
		j := i + r.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:stepSize], nil
}
