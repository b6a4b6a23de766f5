// Package evaluate computes standard SDM performance statistics from a
// fitted model's validation records.
package evaluate

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/frame"
)

// Bundle is the fixed-key metric bundle. Every key is always populated;
// degenerate inputs (a single observed class) yield NaN rather than a
// partial bundle.
type Bundle struct {
	AUC               float64
	Kappa             float64
	Omission          float64
	Sensitivity       float64
	Specificity       float64
	ProportionCorrect float64
}

// Map returns the bundle as a fixed-key map, handy for storage and display.
func (b Bundle) Map() map[string]float64 {
	return map[string]float64{
		"auc":               b.AUC,
		"kappa":             b.Kappa,
		"omissions":         b.Omission,
		"sensitivity":       b.Sensitivity,
		"specificity":       b.Specificity,
		"proportionCorrect": b.ProportionCorrect,
	}
}

// Evaluate computes the metric bundle from a sample table and its stored
// predictions. A nil threshold defaults to the empirical presence proportion
// (the mean of the value column).
//
// The fold column selects the evaluation branch:
//   - all folds == 1: no held-out data; a warning diagnostic is emitted and
//     the bundle is computed in-sample;
//   - folds in {0, 1}: confusion metrics use only the held-out fold == 0
//     rows, while AUC uses all rows (a documented inconsistency inherited
//     from the reference behavior, flagged with a diagnostic);
//   - folds all >= 1 with several labels: predictions are already
//     cross-validated upstream, the bundle is computed over all rows.
func Evaluate(samples *frame.SampleTable, predictions []float64, threshold *float64) (Bundle, error) {
	logger := slog.Default().With("service", "evaluate")

	if samples == nil || samples.Len() == 0 {
		return Bundle{}, errors.Newf("evaluation requires a non-empty sample table").
			Component("evaluate").
			Category(errors.CategoryEvaluation).
			Build()
	}
	if len(predictions) != samples.Len() {
		return Bundle{}, errors.Newf("got %d predictions for %d sample rows", len(predictions), samples.Len()).
			Component("evaluate").
			Category(errors.CategoryEvaluation).
			Build()
	}

	values := samples.Values()

	thr := stat.Mean(values, nil)
	if threshold != nil {
		thr = *threshold
	}

	if isBinary(predictions) {
		logger.Warn("predictions look like hard classifications; score-based metrics such as AUC may be unreliable")
	}

	// Row subset for the confusion-matrix metrics.
	confValues, confPreds := values, predictions
	switch samples.Scheme() {
	case frame.FoldsAbsent, frame.FoldsNone:
		logger.Warn("no cross-validation folds present; validation statistics are misleading without held-out data")
	case frame.FoldsHoldout:
		logger.Warn("single holdout split: confusion metrics use held-out rows only, AUC uses all rows")
		confValues = confValues[:0:0]
		confPreds = confPreds[:0:0]
		for i, f := range samples.Folds {
			if f == 0 {
				confValues = append(confValues, values[i])
				confPreds = append(confPreds, predictions[i])
			}
		}
	case frame.FoldsKFold:
		// Predictions are already held-out scores from upstream k-fold.
	case frame.FoldsInvalid:
		return Bundle{}, errors.Newf("fold column mixes holdout label 0 with cross-validation labels").
			Component("evaluate").
			Category(errors.CategoryEvaluation).
			Build()
	}

	m := confusion(confValues, confPreds, thr)
	n := float64(m.tp + m.tn + m.fp + m.fn)

	return Bundle{
		AUC:               auc(values, predictions),
		Kappa:             m.kappa(),
		Omission:          ratio(float64(m.fn), float64(m.fn+m.tp)),
		Sensitivity:       ratio(float64(m.tp), float64(m.tp+m.fn)),
		Specificity:       ratio(float64(m.tn), float64(m.tn+m.fp)),
		ProportionCorrect: ratio(float64(m.tp+m.tn), n),
	}, nil
}

type confusionMatrix struct {
	tp, fp, tn, fn int
}

// confusion tallies predicted vs observed presence at the given threshold.
// Observed presence is any positive value, covering count-valued records.
func confusion(values, predictions []float64, threshold float64) confusionMatrix {
	var m confusionMatrix
	for i := range values {
		observed := values[i] > 0
		predicted := predictions[i] >= threshold
		switch {
		case observed && predicted:
			m.tp++
		case observed && !predicted:
			m.fn++
		case !observed && predicted:
			m.fp++
		default:
			m.tn++
		}
	}
	return m
}

// kappa is agreement beyond chance on the thresholded confusion matrix.
func (m confusionMatrix) kappa() float64 {
	n := float64(m.tp + m.tn + m.fp + m.fn)
	if n == 0 {
		return math.NaN()
	}
	po := float64(m.tp+m.tn) / n
	pe := (float64(m.tp+m.fn)*float64(m.tp+m.fp) + float64(m.tn+m.fp)*float64(m.tn+m.fn)) / (n * n)
	if pe == 1 {
		return math.NaN()
	}
	return (po - pe) / (1 - pe)
}

// auc implements the Mann-Whitney U formulation of the area under the ROC
// curve, with midrank correction for tied prediction scores.
func auc(values, predictions []float64) float64 {
	ranks := midranks(predictions)

	var rankSum float64
	var np, na int
	for i := range values {
		if values[i] > 0 {
			np++
			rankSum += ranks[i]
		} else {
			na++
		}
	}
	if np == 0 || na == 0 {
		return math.NaN()
	}

	u := rankSum - float64(np)*(float64(np)+1)/2
	return u / (float64(np) * float64(na))
}

// midranks assigns 1-based ranks, averaging over tied groups.
func midranks(xs []float64) []float64 {
	n := len(xs)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return xs[order[a]] < xs[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && xs[order[j]] == xs[order[i]] {
			j++
		}
		// Positions i..j-1 hold tied values; assign their average rank.
		avg := (float64(i+1) + float64(j)) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}
	return ranks
}

func isBinary(predictions []float64) bool {
	for _, p := range predictions {
		if p != 0 && p != 1 {
			return false
		}
	}
	return len(predictions) > 0
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}
