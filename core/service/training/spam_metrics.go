package training

import (
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// classificationMetrics computes accuracy, precision, recall and f1 from hard
// predictions at the decision threshold.
func classificationMetrics(yTrue, yPred []int) map[string]float64 {
	var tp, fp, tn, fn float64
	for i, truth := range yTrue {
		switch {
		case truth == 1 && yPred[i] == 1:
			tp++
		case truth == 0 && yPred[i] == 1:
			fp++
		case truth == 0 && yPred[i] == 0:
			tn++
		default:
			fn++
		}
	}

	m := map[string]float64{
		"accuracy": (tp + tn) / float64(len(yTrue)),
	}
	if tp+fp > 0 {
		m["precision"] = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m["recall"] = tp / (tp + fn)
	}
	if p, r := m["precision"], m["recall"]; p+r > 0 {
		m["f1"] = 2 * p * r / (p + r)
	}
	return m
}

// rocAUC is the area under the ROC curve. Returns ok=false when the holdout
// is single-class and the curve is undefined.
func rocAUC(yTrue []int, scores []float64) (float64, bool) {
	classes := make([]bool, len(yTrue))
	y := append([]float64(nil), scores...)
	hasPos, hasNeg := false, false
	for i, t := range yTrue {
		classes[i] = t == 1
		if classes[i] {
			hasPos = true
		} else {
			hasNeg = true
		}
	}
	if !hasPos || !hasNeg {
		return 0, false
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), true
}

// prAUC is the area under the precision-recall curve, computed by sweeping
// thresholds over the observed scores in descending order.
func prAUC(yTrue []int, scores []float64) (float64, bool) {
	type pair struct {
		score float64
		label int
	}
	pairs := make([]pair, len(yTrue))
	totalPos := 0
	for i := range yTrue {
		pairs[i] = pair{scores[i], yTrue[i]}
		totalPos += yTrue[i]
	}
	if totalPos == 0 || totalPos == len(yTrue) {
		return 0, false
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	var auc, prevRecall float64
	tp, fp := 0, 0
	for i, p := range pairs {
		if p.label == 1 {
			tp++
		} else {
			fp++
		}
		// Only evaluate at distinct score boundaries.
		if i+1 < len(pairs) && pairs[i+1].score == p.score {
			continue
		}
		precision := float64(tp) / float64(tp+fp)
		recall := float64(tp) / float64(totalPos)
		auc += precision * (recall - prevRecall)
		prevRecall = recall
	}
	return auc, true
}
