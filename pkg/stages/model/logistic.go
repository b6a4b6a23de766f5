// Package model provides the built-in model stage implementations: logistic
// regression fitted by iteratively reweighted least squares, and a BIOCLIM
// rectilinear envelope.
package model

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// LogisticConfig configures the logistic regression fit.
type LogisticConfig struct {
	// MaxIter caps the number of reweighting iterations.
	MaxIter int
	// Tol is the convergence threshold on the coefficient update norm.
	Tol float64
}

// DefaultLogisticConfig returns the default fitting configuration.
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{MaxIter: 25, Tol: 1e-8}
}

// Logistic fits a logistic regression of the binary response (value > 0)
// against all covariate columns plus an intercept. Absence and background
// rows both contribute as zeros.
type Logistic struct {
	cfg LogisticConfig
}

// NewLogistic constructs the stage, filling config defaults.
func NewLogistic(cfg LogisticConfig) *Logistic {
	def := DefaultLogisticConfig()
	if cfg.MaxIter < 1 {
		cfg.MaxIter = def.MaxIter
	}
	if cfg.Tol <= 0 {
		cfg.Tol = def.Tol
	}
	return &Logistic{cfg: cfg}
}

func (l *Logistic) Name() string { return "logistic" }

// Fit runs iteratively reweighted least squares until the coefficient update
// falls below the tolerance or the iteration cap is reached.
func (l *Logistic) Fit(ctx context.Context, samples *frame.SampleTable) (stage.FittedModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := stage.RequireKnownTypes(samples.Types()); err != nil {
		return nil, err
	}

	n := samples.Len()
	p := len(samples.CovariateNames)
	if n == 0 {
		return nil, fitErr("logistic", "sample table is empty")
	}

	// Response and design matrix with a leading intercept column.
	y := make([]float64, n)
	positives := 0
	x := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		if samples.Rows[i].Value > 0 {
			y[i] = 1
			positives++
		}
		x.Set(i, 0, 1)
		for j, v := range samples.Covariates[i] {
			if math.IsNaN(v) {
				return nil, fitErr("logistic", fmt.Sprintf("row %d covariate %q is NaN", i, samples.CovariateNames[j]))
			}
			x.Set(i, j+1, v)
		}
	}
	if positives == 0 || positives == n {
		return nil, fitErr("logistic", "response has a single class, nothing to separate")
	}

	beta := make([]float64, p+1)
	eta := make([]float64, n)
	z := make([]float64, n)
	w := make([]float64, n)

	for iter := 0; iter < l.cfg.MaxIter; iter++ {
		for i := 0; i < n; i++ {
			eta[i] = 0
			for j := 0; j <= p; j++ {
				eta[i] += x.At(i, j) * beta[j]
			}
			mu := sigmoid(eta[i])
			mu = math.Min(math.Max(mu, 1e-9), 1-1e-9)
			w[i] = mu * (1 - mu)
			z[i] = eta[i] + (y[i]-mu)/w[i]
		}

		// Weighted normal equations: (Xᵀ W X) β = Xᵀ W z.
		var xtw mat.Dense
		wx := mat.NewDense(n, p+1, nil)
		for i := 0; i < n; i++ {
			for j := 0; j <= p; j++ {
				wx.Set(i, j, w[i]*x.At(i, j))
			}
		}
		xtw.Mul(x.T(), wx)
		// A small ridge keeps the system solvable when the classes are
		// perfectly separable and the weights collapse toward zero.
		for j := 0; j <= p; j++ {
			xtw.Set(j, j, xtw.At(j, j)+1e-10)
		}

		rhs := make([]float64, p+1)
		for j := 0; j <= p; j++ {
			for i := 0; i < n; i++ {
				rhs[j] += x.At(i, j) * w[i] * z[i]
			}
		}

		next := mat.NewVecDense(p+1, nil)
		if err := next.SolveVec(&xtw, mat.NewVecDense(p+1, rhs)); err != nil {
			return nil, errors.New(err).
				Component("model").
				Category(errors.CategoryModelFit).
				Context("model", "logistic").
				Context("iteration", iter).
				Build()
		}

		delta := 0.0
		for j := 0; j <= p; j++ {
			delta = math.Max(delta, math.Abs(next.AtVec(j)-beta[j]))
			beta[j] = next.AtVec(j)
		}
		if delta < l.cfg.Tol {
			break
		}
	}

	return &logisticModel{coeffs: beta}, nil
}

// Source returns the stage's literal source form with the effective
// configuration baked in.
func (l *Logistic) Source() (stage.SourceForm, error) {
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/model",
		},
		Decl: fmt.Sprintf(`func newModelStage() stage.Model {
	return model.NewLogistic(model.LogisticConfig{MaxIter: %d, Tol: %g})
}`, l.cfg.MaxIter, l.cfg.Tol),
	}, nil
}

// logisticModel is the fitted handle: an intercept followed by one
// coefficient per covariate column.
type logisticModel struct {
	coeffs []float64
}

// Predict returns the fitted probability for each covariate row. Rows
// containing NaN yield NaN.
func (m *logisticModel) Predict(covariates [][]float64) ([]float64, error) {
	out := make([]float64, len(covariates))
	for i, row := range covariates {
		if len(row) != len(m.coeffs)-1 {
			return nil, errors.Newf("row %d has %d covariates, model was fitted on %d",
				i, len(row), len(m.coeffs)-1).
				Component("model").
				Category(errors.CategoryPrediction).
				Build()
		}
		eta := m.coeffs[0]
		nan := false
		for j, v := range row {
			if math.IsNaN(v) {
				nan = true
				break
			}
			eta += m.coeffs[j+1] * v
		}
		if nan {
			out[i] = math.NaN()
			continue
		}
		out[i] = sigmoid(eta)
	}
	return out, nil
}

func sigmoid(eta float64) float64 {
	return 1 / (1 + math.Exp(-eta))
}

func fitErr(name, msg string) error {
	return errors.Newf("%s fit failed: %s", name, msg).
		Component("model").
		Category(errors.CategoryModelFit).
		Context("model", name).
		Build()
}
