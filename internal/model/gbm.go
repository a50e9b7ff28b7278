package model

import (
	"fmt"
	"math"
	"math/rand"
)

// HyperParams governs the gradient-boosted classifier fit. Field ranges match
// the optimizer's search space.
type HyperParams struct {
	NEstimators     int     `json:"n_estimators" validate:"gt=0"`
	LearningRate    float64 `json:"learning_rate" validate:"gt=0"`
	MaxDepth        int     `json:"max_depth" validate:"gt=0"`
	MaxLeaves       int     `json:"max_leaves" validate:"gt=1"`
	MinChildSamples int     `json:"min_child_samples" validate:"gt=0"`
	FeatureFraction float64 `json:"feature_fraction" validate:"gt=0,lte=1"`
	LambdaL1        float64 `json:"lambda_l1" validate:"gte=0"`
	LambdaL2        float64 `json:"lambda_l2" validate:"gte=0"`
	Seed            int64   `json:"seed"`
}

// DefaultHyperParams is the untuned baseline fit.
func DefaultHyperParams() HyperParams {
	return HyperParams{
		NEstimators:     300,
		LearningRate:    0.05,
		MaxDepth:        7,
		MaxLeaves:       31,
		MinChildSamples: 20,
		FeatureFraction: 0.8,
		LambdaL1:        0,
		LambdaL2:        1.0,
		Seed:            42,
	}
}

// treeNode is one node of a regression tree over the logistic gradient.
// Leaves carry the boosted increment in log-odds space.
type treeNode struct {
	Feature int       `json:"f"`
	Split   float64   `json:"s"`
	Value   float64   `json:"v"`
	Left    *treeNode `json:"l,omitempty"`
	Right   *treeNode `json:"r,omitempty"`
}

func (n *treeNode) isLeaf() bool {
	return n.Left == nil && n.Right == nil
}

func (n *treeNode) predict(row []float64) float64 {
	for !n.isLeaf() {
		if row[n.Feature] <= n.Split {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// Classifier is a gradient-boosted tree ensemble for binary labels, trained
// with logistic loss and class-balanced sample weights.
type Classifier struct {
	Params    HyperParams `json:"params"`
	BasePred  float64     `json:"base_pred"` // prior log-odds
	Trees     []*treeNode `json:"trees"`
	NumInputs int         `json:"num_inputs"`
}

// Fit trains the ensemble on standardized row-major samples. The label
// distribution is typically skewed toward "no good entry", so each class is
// weighted inversely to its frequency.
func Fit(rows [][]float64, y []int8, hp HyperParams) (*Classifier, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("cannot fit classifier on zero rows")
	}
	if len(y) != n {
		return nil, fmt.Errorf("label count %d does not match row count %d", len(y), n)
	}
	dim := len(rows[0])

	var pos int
	for _, label := range y {
		if label == 1 {
			pos++
		}
	}
	neg := n - pos
	if pos == 0 || neg == 0 {
		return nil, fmt.Errorf("degenerate label distribution: %d positive, %d negative", pos, neg)
	}

	// Balanced weights: each class contributes half the total mass.
	wPos := float64(n) / (2 * float64(pos))
	wNeg := float64(n) / (2 * float64(neg))
	weights := make([]float64, n)
	targets := make([]float64, n)
	for i, label := range y {
		if label == 1 {
			weights[i] = wPos
			targets[i] = 1
		} else {
			weights[i] = wNeg
		}
	}

	clf := &Classifier{
		Params:    hp,
		BasePred:  math.Log(float64(pos) / float64(neg)),
		NumInputs: dim,
	}

	rng := rand.New(rand.NewSource(hp.Seed))
	raw := make([]float64, n)
	for i := range raw {
		raw[i] = clf.BasePred
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for t := 0; t < hp.NEstimators; t++ {
		for i := 0; i < n; i++ {
			p := sigmoid(raw[i])
			grad[i] = weights[i] * (p - targets[i])
			hess[i] = weights[i] * p * (1 - p)
		}

		builder := &treeBuilder{
			rows:   rows,
			grad:   grad,
			hess:   hess,
			hp:     hp,
			rng:    rng,
			leaves: 0,
		}
		root := builder.build(indices, 0)
		if root == nil {
			break
		}
		clf.Trees = append(clf.Trees, root)

		for _, i := range indices {
			raw[i] += hp.LearningRate * root.predict(rows[i])
		}
	}

	if len(clf.Trees) == 0 {
		return nil, fmt.Errorf("boosting produced no trees (min_child_samples=%d, rows=%d)", hp.MinChildSamples, n)
	}
	return clf, nil
}

// PredictProba returns the probability of the positive class for one row.
func (c *Classifier) PredictProba(row []float64) (float64, error) {
	if len(row) != c.NumInputs {
		return 0, fmt.Errorf("classifier expects %d features, got %d", c.NumInputs, len(row))
	}
	raw := c.BasePred
	for _, tree := range c.Trees {
		raw += c.Params.LearningRate * tree.predict(row)
	}
	return sigmoid(raw), nil
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// treeBuilder grows one depth-limited regression tree on the current
// gradient/hessian residuals.
type treeBuilder struct {
	rows   [][]float64
	grad   []float64
	hess   []float64
	hp     HyperParams
	rng    *rand.Rand
	leaves int
}

func (b *treeBuilder) build(indices []int, depth int) *treeNode {
	if len(indices) < b.hp.MinChildSamples {
		return nil
	}

	leaf := &treeNode{Value: b.leafValue(indices)}
	if depth >= b.hp.MaxDepth || b.leaves >= b.hp.MaxLeaves-1 || len(indices) < 2*b.hp.MinChildSamples {
		b.leaves++
		return leaf
	}

	feature, split, ok := b.bestSplit(indices)
	if !ok {
		b.leaves++
		return leaf
	}

	var left, right []int
	for _, i := range indices {
		if b.rows[i][feature] <= split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.hp.MinChildSamples || len(right) < b.hp.MinChildSamples {
		b.leaves++
		return leaf
	}

	node := &treeNode{Feature: feature, Split: split}
	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	if node.Left == nil || node.Right == nil {
		b.leaves++
		return leaf
	}
	return node
}

// leafValue is the regularized Newton step for the leaf: shrunken gradient
// sum over hessian sum, with L1 soft-thresholding and L2 damping.
func (b *treeBuilder) leafValue(indices []int) float64 {
	var g, h float64
	for _, i := range indices {
		g += b.grad[i]
		h += b.hess[i]
	}
	g = softThreshold(g, b.hp.LambdaL1)
	return -g / (h + b.hp.LambdaL2 + 1e-12)
}

// bestSplit scans a random feature subset for the gain-maximizing threshold
// using quantile candidate cuts.
func (b *treeBuilder) bestSplit(indices []int) (int, float64, bool) {
	dim := len(b.rows[0])
	nFeatures := int(math.Ceil(b.hp.FeatureFraction * float64(dim)))
	if nFeatures < 1 {
		nFeatures = 1
	}

	perm := b.rng.Perm(dim)[:nFeatures]

	var totalG, totalH float64
	for _, i := range indices {
		totalG += b.grad[i]
		totalH += b.hess[i]
	}
	parentScore := totalG * totalG / (totalH + b.hp.LambdaL2 + 1e-12)

	bestGain := 1e-9
	bestFeature, bestSplitVal := -1, 0.0

	const nCuts = 16
	for _, f := range perm {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range indices {
			v := b.rows[i][f]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi <= lo {
			continue
		}
		for c := 1; c < nCuts; c++ {
			cut := lo + (hi-lo)*float64(c)/nCuts
			var lg, lh float64
			var ln int
			for _, i := range indices {
				if b.rows[i][f] <= cut {
					lg += b.grad[i]
					lh += b.hess[i]
					ln++
				}
			}
			rn := len(indices) - ln
			if ln < b.hp.MinChildSamples || rn < b.hp.MinChildSamples {
				continue
			}
			rg, rh := totalG-lg, totalH-lh
			gain := lg*lg/(lh+b.hp.LambdaL2+1e-12) + rg*rg/(rh+b.hp.LambdaL2+1e-12) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestSplitVal = cut
			}
		}
	}

	return bestFeature, bestSplitVal, bestFeature >= 0
}

func softThreshold(v, lambda float64) float64 {
	if v > lambda {
		return v - lambda
	}
	if v < -lambda {
		return v + lambda
	}
	return 0
}
