package classifier

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/kiranshivaraju/integrityos/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Forest hyperparameters.
const (
	NumTrees        = 100
	MaxDepth        = 10
	MinSamplesSplit = 5
	MinSamplesLeaf  = 2
	Seed            = 42
)

// forest is a bagged ensemble of CART trees.
type forest struct {
	Trees []tree `json:"trees"`
}

func defaultTreeParams() treeParams {
	return treeParams{
		maxDepth:        MaxDepth,
		minSamplesSplit: MinSamplesSplit,
		minSamplesLeaf:  MinSamplesLeaf,
		maxFeatures:     int(math.Sqrt(models.NumFeatures)),
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// fitForest trains NumTrees trees on bootstrap samples of (x, y). Per-tree seeds are
// drawn in order from the master seed before any tree is built, so the result does not
// depend on goroutine scheduling.
func fitForest(ctx context.Context, x []vector, y []models.RiskLabel, seed uint64) (*forest, error) {
	master := newRand(seed)
	seeds := make([]uint64, NumTrees)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	params := defaultTreeParams()
	f := &forest{Trees: make([]tree, NumTrees)}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range f.Trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := newRand(seeds[i])
			idx := make([]int, len(x))
			for k := range idx {
				idx[k] = rng.IntN(len(x))
			}
			f.Trees[i] = growTree(x, y, idx, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// proba averages the leaf distributions of all trees and renormalizes the result to sum
// to 1.
func (f *forest) proba(x vector) [models.NumRiskLabels]float64 {
	var out [models.NumRiskLabels]float64
	for i := range f.Trees {
		for c, p := range f.Trees[i].predict(x) {
			out[c] += p
		}
	}
	var total float64
	for _, p := range out {
		total += p
	}
	if total <= 0 || math.IsNaN(total) {
		return [models.NumRiskLabels]float64{1, 0, 0}
	}
	for c := range out {
		out[c] /= total
	}
	return out
}

// argmax returns the most probable label. Ties go to the lower label.
func argmax(p [models.NumRiskLabels]float64) models.RiskLabel {
	best := models.RiskNormal
	for _, l := range models.RiskLabels[1:] {
		if p[l] > p[best] {
			best = l
		}
	}
	return best
}

func (f *forest) valid() bool {
	if len(f.Trees) == 0 {
		return false
	}
	for i := range f.Trees {
		if !f.Trees[i].valid() {
			return false
		}
	}
	return true
}
