package classifier

import (
	"math/rand/v2"
	"sort"

	"github.com/kiranshivaraju/integrityos/pkg/models"
)

const leaf = -1

// node is one entry of a flattened decision tree. Internal nodes route samples with
// x[Feature] <= Threshold to Left, otherwise to Right. Leaves carry the class
// distribution of the training samples that reached them.
type node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Dist      []float64 `json:"d,omitempty"`
}

// tree is a CART classification tree stored as a node slice with the root at index 0.
type tree struct {
	Nodes []node `json:"nodes"`
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

// predict returns the class distribution of the leaf x falls into.
func (t *tree) predict(x vector) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n.Dist
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// valid checks structural integrity so that predict always terminates in range.
// Children must come after their parent, which rules out cycles.
func (t *tree) valid() bool {
	if len(t.Nodes) == 0 {
		return false
	}
	for i, n := range t.Nodes {
		if n.Feature == leaf {
			if len(n.Dist) != models.NumRiskLabels {
				return false
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= models.NumFeatures {
			return false
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return false
		}
	}
	return true
}

type treeBuilder struct {
	x      []vector
	y      []models.RiskLabel
	params treeParams
	rng    *rand.Rand
	nodes  []node
}

// growTree fits a tree on the samples listed in idx. Indices may repeat, as they do for
// bootstrap samples.
func growTree(x []vector, y []models.RiskLabel, idx []int, params treeParams, rng *rand.Rand) tree {
	b := &treeBuilder{x: x, y: y, params: params, rng: rng}
	b.grow(idx, 0)
	return tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	self := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: leaf})

	counts := b.classCounts(idx)
	if depth >= b.params.maxDepth || len(idx) < b.params.minSamplesSplit || isPure(counts) {
		b.nodes[self].Dist = distribution(counts)
		return self
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		b.nodes[self].Dist = distribution(counts)
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[self] = node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self
}

// bestSplit searches a random subset of maxFeatures non-constant features for the
// threshold with the lowest weighted Gini impurity. Constant features do not count
// towards the subset size.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	var (
		bestFeature   int
		bestThreshold float64
		bestScore     = -1.0
		found         bool
		visited       int
	)

	sorted := make([]int, len(idx))
	for _, f := range b.rng.Perm(models.NumFeatures) {
		if visited >= b.params.maxFeatures {
			break
		}
		copy(sorted, idx)
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.x[sorted[i]][f] < b.x[sorted[j]][f]
		})
		if b.x[sorted[0]][f] == b.x[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		score, threshold, ok := b.scanFeature(sorted, f)
		if ok && score > bestScore {
			bestFeature, bestThreshold, bestScore, found = f, threshold, score, true
		}
	}
	return bestFeature, bestThreshold, found
}

// scanFeature evaluates every split point of samples sorted by feature f. The score is
// sum(count²)/n over both children, which is maximal where weighted Gini impurity is
// minimal.
func (b *treeBuilder) scanFeature(sorted []int, f int) (float64, float64, bool) {
	var left, right [models.NumRiskLabels]float64
	for _, i := range sorted {
		right[b.y[i]]++
	}

	n := len(sorted)
	minLeaf := b.params.minSamplesLeaf
	bestScore := -1.0
	var bestThreshold float64
	found := false

	for pos := 1; pos < n; pos++ {
		moved := b.y[sorted[pos-1]]
		left[moved]++
		right[moved]--

		if pos < minLeaf || n-pos < minLeaf {
			continue
		}
		lo, hi := b.x[sorted[pos-1]][f], b.x[sorted[pos]][f]
		if lo == hi {
			continue
		}

		score := sumSquares(left)/float64(pos) + sumSquares(right)/float64(n-pos)
		if score > bestScore {
			bestScore = score
			bestThreshold = lo + (hi-lo)/2
			if bestThreshold == hi {
				bestThreshold = lo
			}
			found = true
		}
	}
	return bestScore, bestThreshold, found
}

func (b *treeBuilder) classCounts(idx []int) [models.NumRiskLabels]float64 {
	var counts [models.NumRiskLabels]float64
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func isPure(counts [models.NumRiskLabels]float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func distribution(counts [models.NumRiskLabels]float64) []float64 {
	var total float64
	for _, c := range counts {
		total += c
	}
	dist := make([]float64, models.NumRiskLabels)
	if total == 0 {
		dist[models.RiskNormal] = 1
		return dist
	}
	for i, c := range counts {
		dist[i] = c / total
	}
	return dist
}

func sumSquares(counts [models.NumRiskLabels]float64) float64 {
	var s float64
	for _, c := range counts {
		s += c * c
	}
	return s
}
