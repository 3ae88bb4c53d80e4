package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
)

type TreeConfig struct {
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures limits the candidate features per split; 0 means all.
	MaxFeatures int
}

type DecisionTree struct {
	nodes      []TreeNode
	numClasses int
	config     TreeConfig
}

type TreeNode struct {
	FeatureIdx   int       `json:"feature_idx"`
	Threshold    float64   `json:"threshold"`
	LeftChild    int       `json:"left_child"`
	RightChild   int       `json:"right_child"`
	ClassLabel   int       `json:"class_label"`
	IsLeaf       bool      `json:"is_leaf"`
	Distribution []float64 `json:"distribution,omitempty"`
}

func NewDecisionTree(config TreeConfig) *DecisionTree {
	return &DecisionTree{config: config}
}

func (dt *DecisionTree) Train(features [][]float64, labels []int) error {
	return dt.train(features, labels, numClassesOf(labels), nil)
}

func (dt *DecisionTree) train(features [][]float64, labels []int, numClasses int, rng *rand.Rand) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	for _, label := range labels {
		if label < 0 {
			return fmt.Errorf("invalid label %d", label)
		}
	}
	if dt.config.MaxDepth <= 0 {
		dt.config.MaxDepth = 3
	}
	if dt.config.MinSamplesSplit < 2 {
		dt.config.MinSamplesSplit = 2
	}

	b := &treeBuilder{
		features:   features,
		labels:     labels,
		numClasses: numClasses,
		config:     dt.config,
		rng:        rng,
	}
	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}
	dt.nodes = b.buildNode(indices, 0)
	dt.numClasses = numClasses
	return nil
}

// Predict returns the predicted class and the leaf probability of that class.
func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	label, dist, err := dt.PredictProba(features)
	if err != nil {
		return 0, 0, err
	}
	return label, dist[label], nil
}

// PredictProba walks the tree and returns the leaf class and its class
// distribution.
func (dt *DecisionTree) PredictProba(features []float64) (int, []float64, error) {
	node, err := dt.leaf(features)
	if err != nil {
		return 0, nil, err
	}
	dist := make([]float64, dt.numClasses)
	if len(node.Distribution) == 0 {
		if node.ClassLabel < 0 || node.ClassLabel >= len(dist) {
			return 0, nil, errors.New("invalid leaf label")
		}
		dist[node.ClassLabel] = 1
		return node.ClassLabel, dist, nil
	}
	copy(dist, node.Distribution)
	return node.ClassLabel, dist, nil
}

func (dt *DecisionTree) leaf(features []float64) (TreeNode, error) {
	if len(dt.nodes) == 0 {
		return TreeNode{}, errors.New("model not trained")
	}
	idx := 0
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return TreeNode{}, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return TreeNode{}, errors.New("invalid tree state")
		}
	}
	return TreeNode{}, errors.New("invalid tree state: cycle detected")
}

func (dt *DecisionTree) NumClasses() int {
	return dt.numClasses
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(dt)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dt)
}

type treeJSON struct {
	Nodes []TreeNode `json:"nodes"`
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
	return json.Marshal(treeJSON{Nodes: dt.nodes})
}

func (dt *DecisionTree) UnmarshalJSON(data []byte) error {
	var payload treeJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	if len(payload.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	numClasses := 2
	for i, node := range payload.Nodes {
		if node.IsLeaf {
			if len(node.Distribution) > numClasses {
				numClasses = len(node.Distribution)
			}
			if node.ClassLabel+1 > numClasses {
				numClasses = node.ClassLabel + 1
			}
			continue
		}
		if node.LeftChild <= i || node.RightChild <= i ||
			node.LeftChild >= len(payload.Nodes) || node.RightChild >= len(payload.Nodes) {
			return fmt.Errorf("node %d has invalid children", i)
		}
	}
	dt.nodes = payload.Nodes
	dt.numClasses = numClasses
	return nil
}

type treeBuilder struct {
	features   [][]float64
	labels     []int
	numClasses int
	config     TreeConfig
	rng        *rand.Rand
}

func (b *treeBuilder) buildNode(indices []int, depth int) []TreeNode {
	counts := b.classCounts(indices)
	if depth >= b.config.MaxDepth || len(indices) < b.config.MinSamplesSplit || isPure(counts) {
		return []TreeNode{b.leafNode(counts, len(indices))}
	}

	bestFeature, threshold, ok := b.findBestSplit(indices, gini(counts, len(indices)))
	if !ok {
		return []TreeNode{b.leafNode(counts, len(indices))}
	}

	left, right := b.splitIndices(indices, bestFeature, threshold)
	if len(left) == 0 || len(right) == 0 {
		return []TreeNode{b.leafNode(counts, len(indices))}
	}

	leftNodes := b.buildNode(left, depth+1)
	rightNodes := b.buildNode(right, depth+1)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		ClassLabel: argmax(counts),
		IsLeaf:     false,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, shiftChildren(leftNodes, 1)...)
	nodes = append(nodes, shiftChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

func (b *treeBuilder) leafNode(counts []int, total int) TreeNode {
	dist := make([]float64, b.numClasses)
	for class, count := range counts {
		dist[class] = float64(count) / float64(total)
	}
	return TreeNode{
		FeatureIdx:   -1,
		Threshold:    0,
		LeftChild:    -1,
		RightChild:   -1,
		ClassLabel:   argmax(counts),
		IsLeaf:       true,
		Distribution: dist,
	}
}

// findBestSplit scans midpoints between consecutive distinct values of each
// candidate feature and keeps the split with the lowest weighted gini.
func (b *treeBuilder) findBestSplit(indices []int, parentImpurity float64) (int, float64, bool) {
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := parentImpurity

	total := len(indices)
	sorted := append([]int(nil), indices...)
	for _, featureIdx := range b.candidateFeatures() {
		sort.SliceStable(sorted, func(i, j int) bool {
			return b.features[sorted[i]][featureIdx] < b.features[sorted[j]][featureIdx]
		})

		left := make([]int, b.numClasses)
		right := b.classCounts(sorted)
		for pos := 0; pos < total-1; pos++ {
			label := b.labels[sorted[pos]]
			left[label]++
			right[label]--

			current := b.features[sorted[pos]][featureIdx]
			next := b.features[sorted[pos+1]][featureIdx]
			if current == next {
				continue
			}
			nLeft := pos + 1
			nRight := total - nLeft
			impurity := (float64(nLeft)*gini(left, nLeft) + float64(nRight)*gini(right, nRight)) / float64(total)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = (current + next) / 2
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (b *treeBuilder) candidateFeatures() []int {
	width := len(b.features[0])
	maxFeatures := b.config.MaxFeatures
	if maxFeatures <= 0 || maxFeatures >= width || b.rng == nil {
		all := make([]int, width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(width)[:maxFeatures]
}

func (b *treeBuilder) splitIndices(indices []int, featureIdx int, threshold float64) ([]int, []int) {
	left := make([]int, 0)
	right := make([]int, 0)
	for _, idx := range indices {
		if b.features[idx][featureIdx] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

func (b *treeBuilder) classCounts(indices []int) []int {
	counts := make([]int, b.numClasses)
	for _, idx := range indices {
		counts[b.labels[idx]]++
	}
	return counts
}

func shiftChildren(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if !nodes[i].IsLeaf {
			nodes[i].LeftChild += offset
			nodes[i].RightChild += offset
		}
	}
	return nodes
}

func gini(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(total)
		impurity -= prob * prob
	}
	return impurity
}

func argmax(counts []int) int {
	best := 0
	for class, count := range counts {
		if count > counts[best] {
			best = class
		}
	}
	return best
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, count := range counts {
		if count > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func numClassesOf(labels []int) int {
	n := 2
	for _, label := range labels {
		if label+1 > n {
			n = label + 1
		}
	}
	return n
}
