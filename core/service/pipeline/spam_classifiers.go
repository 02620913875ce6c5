package pipeline

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Classifier is the learner behind a scoring pipeline. Proba returns the
// probability of the positive (spam) class and false when the learner cannot
// produce probabilities.
type Classifier interface {
	Fit(X []Vector, y []int, dim int) error
	Predict(x Vector) int
	Proba(x Vector) (float64, bool)
}

func sigmoid(z float64) float64 {
	if z < -30 {
		return 0
	}
	if z > 30 {
		return 1
	}
	return 1 / (1 + math.Exp(-z))
}

func dot(w []float64, x Vector) float64 {
	var sum float64
	for i, v := range x {
		if i < len(w) {
			sum += w[i] * v
		}
	}
	return sum
}

// =============================================================================
// Logistic Regression
// =============================================================================

// LogisticRegression is an L2-regularized logistic model trained by
// per-sample gradient descent over sparse vectors.
type LogisticRegression struct {
	LearningRate float64
	Epochs       int
	L2           float64
	Seed         int64

	Weights []float64
	Bias    float64
}

func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		LearningRate: 0.5,
		Epochs:       200,
		L2:           1e-4,
		Seed:         42,
	}
}

func (c *LogisticRegression) Fit(X []Vector, y []int, dim int) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("features/labels length mismatch: %d vs %d", len(X), len(y))
	}

	c.Weights = make([]float64, dim)
	c.Bias = 0

	rnd := rand.New(rand.NewSource(c.Seed))
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < c.Epochs; epoch++ {
		rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			g := sigmoid(dot(c.Weights, X[idx])+c.Bias) - float64(y[idx])
			for i, v := range X[idx] {
				c.Weights[i] -= c.LearningRate * (g*v + c.L2*c.Weights[i])
			}
			c.Bias -= c.LearningRate * g
		}
	}
	return nil
}

func (c *LogisticRegression) Predict(x Vector) int {
	if p, _ := c.Proba(x); p >= 0.5 {
		return 1
	}
	return 0
}

func (c *LogisticRegression) Proba(x Vector) (float64, bool) {
	return sigmoid(dot(c.Weights, x) + c.Bias), true
}

// =============================================================================
// SGD (logistic loss, decaying learning rate)
// =============================================================================

// SGDLogistic is the cheaper single-pass-friendly variant: logistic loss with
// a decaying step size. Fewer epochs, lighter regularization.
type SGDLogistic struct {
	Eta0   float64
	Decay  float64
	Epochs int
	L2     float64
	Seed   int64

	Weights []float64
	Bias    float64
}

func NewSGDLogistic() *SGDLogistic {
	return &SGDLogistic{
		Eta0:   0.5,
		Decay:  1e-3,
		Epochs: 100,
		L2:     1e-5,
		Seed:   42,
	}
}

func (c *SGDLogistic) Fit(X []Vector, y []int, dim int) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("features/labels length mismatch: %d vs %d", len(X), len(y))
	}

	c.Weights = make([]float64, dim)
	c.Bias = 0

	rnd := rand.New(rand.NewSource(c.Seed))
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}

	t := 0
	for epoch := 0; epoch < c.Epochs; epoch++ {
		rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			eta := c.Eta0 / (1 + c.Decay*float64(t))
			t++
			g := sigmoid(dot(c.Weights, X[idx])+c.Bias) - float64(y[idx])
			for i, v := range X[idx] {
				c.Weights[i] -= eta * (g*v + c.L2*c.Weights[i])
			}
			c.Bias -= eta * g
		}
	}
	return nil
}

func (c *SGDLogistic) Predict(x Vector) int {
	if p, _ := c.Proba(x); p >= 0.5 {
		return 1
	}
	return 0
}

func (c *SGDLogistic) Proba(x Vector) (float64, bool) {
	return sigmoid(dot(c.Weights, x) + c.Bias), true
}

// =============================================================================
// Multinomial Naive Bayes
// =============================================================================

// MultinomialNB with Lidstone smoothing. Feature values act as soft counts;
// negative values (possible after standardization of the numeric branch) are
// clamped to zero.
type MultinomialNB struct {
	Alpha float64
	Dim   int

	ClassLogPrior  [2]float64
	FeatureLogProb [2][]float64
}

func NewMultinomialNB() *MultinomialNB {
	return &MultinomialNB{Alpha: 1.0}
}

func (c *MultinomialNB) Fit(X []Vector, y []int, dim int) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("features/labels length mismatch: %d vs %d", len(X), len(y))
	}

	c.Dim = dim
	var classCount [2]float64
	var featureCount [2][]float64
	featureCount[0] = make([]float64, dim)
	featureCount[1] = make([]float64, dim)

	for n, x := range X {
		cls := y[n]
		classCount[cls]++
		for i, v := range x {
			if v > 0 {
				featureCount[cls][i] += v
			}
		}
	}

	total := classCount[0] + classCount[1]
	for cls := 0; cls < 2; cls++ {
		c.ClassLogPrior[cls] = math.Log((classCount[cls] + 1e-10) / (total + 2e-10))
		var featTotal float64
		for _, v := range featureCount[cls] {
			featTotal += v
		}
		c.FeatureLogProb[cls] = make([]float64, dim)
		denom := featTotal + c.Alpha*float64(dim)
		for i, v := range featureCount[cls] {
			c.FeatureLogProb[cls][i] = math.Log((v + c.Alpha) / denom)
		}
	}
	return nil
}

func (c *MultinomialNB) jointLog(x Vector, cls int) float64 {
	sum := c.ClassLogPrior[cls]
	for i, v := range x {
		if v > 0 && i < c.Dim {
			sum += v * c.FeatureLogProb[cls][i]
		}
	}
	return sum
}

func (c *MultinomialNB) Predict(x Vector) int {
	if c.jointLog(x, 1) > c.jointLog(x, 0) {
		return 1
	}
	return 0
}

func (c *MultinomialNB) Proba(x Vector) (float64, bool) {
	return sigmoid(c.jointLog(x, 1) - c.jointLog(x, 0)), true
}

// =============================================================================
// Random Forest
// =============================================================================

// TreeNode is one node of a decision tree, stored flat for gob.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Leaf      bool
	Prob      float64
}

// DecisionTree is a gini-split CART over sparse vectors. Absent features read
// as zero.
type DecisionTree struct {
	Nodes []TreeNode
}

func (t *DecisionTree) proba(x Vector) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Prob
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// RandomForest bags depth-limited trees over bootstrap samples, with split
// candidates drawn from the features actually present in each node.
type RandomForest struct {
	NTrees   int
	MaxDepth int
	MinLeaf  int
	Seed     int64

	Trees []*DecisionTree
}

func NewRandomForest(nTrees int) *RandomForest {
	return &RandomForest{
		NTrees:   nTrees,
		MaxDepth: 10,
		MinLeaf:  2,
		Seed:     42,
	}
}

func (c *RandomForest) Fit(X []Vector, y []int, dim int) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("features/labels length mismatch: %d vs %d", len(X), len(y))
	}

	rnd := rand.New(rand.NewSource(c.Seed))
	c.Trees = make([]*DecisionTree, 0, c.NTrees)

	for i := 0; i < c.NTrees; i++ {
		sample := make([]int, len(X))
		for j := range sample {
			sample[j] = rnd.Intn(len(X))
		}
		tree := &DecisionTree{}
		c.grow(tree, X, y, sample, 0, rnd)
		c.Trees = append(c.Trees, tree)
	}
	return nil
}

// grow appends the subtree for the given samples and returns its node index.
func (c *RandomForest) grow(tree *DecisionTree, X []Vector, y []int, samples []int, depth int, rnd *rand.Rand) int {
	pos := 0
	for _, s := range samples {
		pos += y[s]
	}
	prob := float64(pos) / float64(len(samples))

	leaf := func() int {
		tree.Nodes = append(tree.Nodes, TreeNode{Leaf: true, Prob: prob})
		return len(tree.Nodes) - 1
	}

	if depth >= c.MaxDepth || len(samples) < 2*c.MinLeaf || pos == 0 || pos == len(samples) {
		return leaf()
	}

	feature, threshold, ok := c.bestSplit(X, y, samples, rnd)
	if !ok {
		return leaf()
	}

	var left, right []int
	for _, s := range samples {
		if X[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) < c.MinLeaf || len(right) < c.MinLeaf {
		return leaf()
	}

	idx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, TreeNode{Feature: feature, Threshold: threshold})
	leftIdx := c.grow(tree, X, y, left, depth+1, rnd)
	rightIdx := c.grow(tree, X, y, right, depth+1, rnd)
	tree.Nodes[idx].Left = leftIdx
	tree.Nodes[idx].Right = rightIdx
	return idx
}

func gini(pos, total int) float64 {
	if total == 0 {
		return 0
	}
	p := float64(pos) / float64(total)
	return 2 * p * (1 - p)
}

func (c *RandomForest) bestSplit(X []Vector, y []int, samples []int, rnd *rand.Rand) (int, float64, bool) {
	present := make(map[int]bool)
	for _, s := range samples {
		for f := range X[s] {
			present[f] = true
		}
	}
	if len(present) == 0 {
		return 0, 0, false
	}

	features := make([]int, 0, len(present))
	for f := range present {
		features = append(features, f)
	}
	sort.Ints(features)
	rnd.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })

	k := int(math.Sqrt(float64(len(features)))) + 1
	if k > len(features) {
		k = len(features)
	}

	totalPos := 0
	for _, s := range samples {
		totalPos += y[s]
	}
	parent := gini(totalPos, len(samples))

	bestGain := 1e-9
	bestFeature, bestThreshold := -1, 0.0

	for _, f := range features[:k] {
		values := make([]float64, len(samples))
		for i, s := range samples {
			values[i] = X[s][f]
		}
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)

		var thresholds []float64
		for i := 1; i < len(sorted) && len(thresholds) < 8; i++ {
			if sorted[i] != sorted[i-1] {
				thresholds = append(thresholds, (sorted[i]+sorted[i-1])/2)
			}
		}

		for _, thr := range thresholds {
			leftPos, leftN := 0, 0
			for i, s := range samples {
				if values[i] <= thr {
					leftN++
					leftPos += y[s]
				}
			}
			rightN := len(samples) - leftN
			rightPos := totalPos - leftPos
			if leftN == 0 || rightN == 0 {
				continue
			}
			weighted := (float64(leftN)*gini(leftPos, leftN) + float64(rightN)*gini(rightPos, rightN)) / float64(len(samples))
			if gain := parent - weighted; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = thr
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func (c *RandomForest) Predict(x Vector) int {
	if p, _ := c.Proba(x); p >= 0.5 {
		return 1
	}
	return 0
}

func (c *RandomForest) Proba(x Vector) (float64, bool) {
	if len(c.Trees) == 0 {
		return 0, true
	}
	var sum float64
	for _, tree := range c.Trees {
		sum += tree.proba(x)
	}
	return sum / float64(len(c.Trees)), true
}

// =============================================================================
// Stacking
// =============================================================================

// StackingEnsemble combines naive-Bayes, linear and tree-ensemble base
// learners under a logistic meta-learner. Meta features are out-of-fold base
// probabilities; original features pass through after them.
type StackingEnsemble struct {
	Folds int
	Seed  int64

	NB   *MultinomialNB
	LR   *LogisticRegression
	RF   *RandomForest
	Meta *LogisticRegression
	Dim  int
}

func NewStackingEnsemble() *StackingEnsemble {
	return &StackingEnsemble{Folds: 5, Seed: 42}
}

const stackingBaseCount = 3

func (c *StackingEnsemble) freshBases() (*MultinomialNB, *LogisticRegression, *RandomForest) {
	return NewMultinomialNB(), NewLogisticRegression(), NewRandomForest(100)
}

func (c *StackingEnsemble) metaVector(pNB, pLR, pRF float64, x Vector) Vector {
	mv := make(Vector, len(x)+stackingBaseCount)
	mv[0] = pNB
	mv[1] = pLR
	mv[2] = pRF
	for i, v := range x {
		mv[i+stackingBaseCount] = v
	}
	return mv
}

func (c *StackingEnsemble) Fit(X []Vector, y []int, dim int) error {
	if len(X) < c.Folds {
		return fmt.Errorf("training set smaller than fold count: %d < %d", len(X), c.Folds)
	}
	c.Dim = dim

	rnd := rand.New(rand.NewSource(c.Seed))
	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}
	rnd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	// Out-of-fold base probabilities feed the meta learner.
	oof := make([][stackingBaseCount]float64, len(X))
	for fold := 0; fold < c.Folds; fold++ {
		var trainIdx, testIdx []int
		for pos, idx := range order {
			if pos%c.Folds == fold {
				testIdx = append(testIdx, idx)
			} else {
				trainIdx = append(trainIdx, idx)
			}
		}

		trainX := make([]Vector, len(trainIdx))
		trainY := make([]int, len(trainIdx))
		for i, idx := range trainIdx {
			trainX[i] = X[idx]
			trainY[i] = y[idx]
		}

		nb, lr, rf := c.freshBases()
		if err := nb.Fit(trainX, trainY, dim); err != nil {
			return err
		}
		if err := lr.Fit(trainX, trainY, dim); err != nil {
			return err
		}
		if err := rf.Fit(trainX, trainY, dim); err != nil {
			return err
		}

		for _, idx := range testIdx {
			pNB, _ := nb.Proba(X[idx])
			pLR, _ := lr.Proba(X[idx])
			pRF, _ := rf.Proba(X[idx])
			oof[idx] = [stackingBaseCount]float64{pNB, pLR, pRF}
		}
	}

	metaX := make([]Vector, len(X))
	for i, x := range X {
		metaX[i] = c.metaVector(oof[i][0], oof[i][1], oof[i][2], x)
	}
	c.Meta = NewLogisticRegression()
	if err := c.Meta.Fit(metaX, y, dim+stackingBaseCount); err != nil {
		return err
	}

	// Refit bases on the full data for serving.
	c.NB, c.LR, c.RF = c.freshBases()
	if err := c.NB.Fit(X, y, dim); err != nil {
		return err
	}
	if err := c.LR.Fit(X, y, dim); err != nil {
		return err
	}
	return c.RF.Fit(X, y, dim)
}

func (c *StackingEnsemble) Predict(x Vector) int {
	if p, _ := c.Proba(x); p >= 0.5 {
		return 1
	}
	return 0
}

func (c *StackingEnsemble) Proba(x Vector) (float64, bool) {
	pNB, _ := c.NB.Proba(x)
	pLR, _ := c.LR.Proba(x)
	pRF, _ := c.RF.Proba(x)
	return c.Meta.Proba(c.metaVector(pNB, pLR, pRF, x))
}
