package risk

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Node is one decision node in a fitted tree. Leaf nodes have Left == -1
// and carry the positive-class fraction of their training samples.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Prob      float64
}

// Tree is a depth-limited CART classification tree stored as a flat node
// slice so the whole forest gob-encodes cleanly.
type Tree struct {
	Nodes []Node
}

// Forest is a bagged ensemble of decision trees. Exported fields make up
// the persisted model artifact: the trees, the feature order they were
// fit against, the normalized impurity importances, and the training-set
// imputation means reused verbatim at scoring time.
type Forest struct {
	Trees       []Tree
	Features    []string
	Importances []float64
	FillValues  []float64
	Seed        int64
}

// forestParams bundles the fitting knobs.
type forestParams struct {
	trees      int
	maxDepth   int
	minLeaf    int
	maxFeature int
}

// fitForest trains the ensemble on imputed features X (no NaNs) against
// binary labels y, bootstrap-sampling rows and subsampling features per
// split, all driven by one seeded generator.
func fitForest(X [][]float64, y []int, features []string, fill []float64, trees, maxDepth int, seed int64) *Forest {
	nFeatures := len(features)
	maxFeature := int(math.Sqrt(float64(nFeatures)))
	if maxFeature < 1 {
		maxFeature = 1
	}
	params := forestParams{
		trees:      trees,
		maxDepth:   maxDepth,
		minLeaf:    1,
		maxFeature: maxFeature,
	}

	rng := rand.New(rand.NewPCG(uint64(seed), 1))
	f := &Forest{
		Features:    features,
		Importances: make([]float64, nFeatures),
		FillValues:  fill,
		Seed:        seed,
	}

	n := len(X)
	importance := make([]float64, nFeatures)
	for t := 0; t < params.trees; t++ {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		tree := Tree{}
		grow(&tree, X, y, sample, 0, params, rng, importance)
		f.Trees = append(f.Trees, tree)
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i, v := range importance {
			f.Importances[i] = v / total
		}
	}
	return f
}

// grow appends the subtree for the given sample rows and returns its
// root index. Importance accumulates sample-weighted gini decrease.
func grow(tree *Tree, X [][]float64, y []int, sample []int, depth int, p forestParams, rng *rand.Rand, importance []float64) int {
	pos := 0
	for _, i := range sample {
		pos += y[i]
	}
	prob := float64(pos) / float64(len(sample))

	leaf := func() int {
		tree.Nodes = append(tree.Nodes, Node{Left: -1, Right: -1, Prob: prob})
		return len(tree.Nodes) - 1
	}

	if depth >= p.maxDepth || len(sample) <= p.minLeaf || pos == 0 || pos == len(sample) {
		return leaf()
	}

	feature, threshold, gain, ok := bestSplit(X, y, sample, p, rng)
	if !ok {
		return leaf()
	}

	var left, right []int
	for _, i := range sample {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf()
	}

	importance[feature] += gain * float64(len(sample))

	idx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, Node{Feature: feature, Threshold: threshold})
	l := grow(tree, X, y, left, depth+1, p, rng, importance)
	r := grow(tree, X, y, right, depth+1, p, rng, importance)
	tree.Nodes[idx].Left = l
	tree.Nodes[idx].Right = r
	return idx
}

// bestSplit searches a random feature subset for the threshold with the
// largest gini decrease over the sample.
func bestSplit(X [][]float64, y []int, sample []int, p forestParams, rng *rand.Rand) (feature int, threshold, gain float64, ok bool) {
	parent := gini(y, sample)

	candidates := rng.Perm(len(X[0]))[:p.maxFeature]

	best := -1.0
	for _, f := range candidates {
		values := make([]float64, 0, len(sample))
		for _, i := range sample {
			values = append(values, X[i][f])
		}
		sort.Float64s(values)

		for i := 1; i < len(values); i++ {
			if values[i] == values[i-1] {
				continue
			}
			thr := (values[i] + values[i-1]) / 2

			lPos, lN, rPos, rN := 0, 0, 0, 0
			for _, j := range sample {
				if X[j][f] <= thr {
					lN++
					lPos += y[j]
				} else {
					rN++
					rPos += y[j]
				}
			}
			if lN == 0 || rN == 0 {
				continue
			}

			total := float64(lN + rN)
			g := parent -
				float64(lN)/total*giniCounts(lPos, lN) -
				float64(rN)/total*giniCounts(rPos, rN)
			if g > best {
				best = g
				feature = f
				threshold = thr
			}
		}
	}
	if best <= 0 {
		return 0, 0, 0, false
	}
	return feature, threshold, best, true
}

func gini(y []int, sample []int) float64 {
	pos := 0
	for _, i := range sample {
		pos += y[i]
	}
	return giniCounts(pos, len(sample))
}

func giniCounts(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	p := float64(pos) / float64(n)
	return 2 * p * (1 - p)
}

// Predict returns the ghost probability for one feature vector: the mean
// of the per-tree leaf probabilities, always in [0, 1].
func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.Trees))
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left == -1 {
			return n.Prob
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
