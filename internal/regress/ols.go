package regress

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"bankpanel/internal/dataset"
	"bankpanel/internal/errors"
)

// FESpec names one additive fixed-effect specification
type FESpec struct {
	Tag      string
	Bank     bool
	Quarter  bool
	BankPost bool
}

// DefaultFE is the main specification: bank, quarter, and bank-by-post
// fixed effects. Its tag is empty so the default cross-product tables get
// unsuffixed filenames.
var DefaultFE = FESpec{Tag: "", Bank: true, Quarter: true, BankPost: true}

// FESweep enumerates the robustness specifications run on the full/both
// combination, from the full interaction model down to single factors
var FESweep = []FESpec{
	{Tag: "mainFE", Bank: true, Quarter: true, BankPost: true},
	{Tag: "noPost2008FE", Bank: true, Quarter: true, BankPost: false},
	{Tag: "noBankFE", Bank: false, Quarter: true, BankPost: true},
	{Tag: "noQuarterFE", Bank: true, Quarter: false, BankPost: true},
	{Tag: "onlyBankFE", Bank: true, Quarter: false, BankPost: false},
	{Tag: "quarterOnlyFE", Bank: false, Quarter: true, BankPost: false},
}

// Coefficient holds one estimated slope with its clustered standard error
// and two-sided p-value
type Coefficient struct {
	Estimate float64
	SE       float64
	PValue   float64
}

// FitResult is one fitted specification: the concentration level term, the
// rate-change interaction, and fit statistics. Immutable once returned.
type FitResult struct {
	DepVar        string
	Concentration Coefficient
	Interaction   Coefficient
	N             int
	Clusters      int
	R2            float64
	WithinR2      float64
	FE            FESpec
}

const (
	demeanTol     = 1e-10
	demeanMaxIter = 200
)

// Fit estimates Y ~ l1_herfdepcty + l1_herfdepcty:d_FF with the given
// fixed effects absorbed by iterated within-group demeaning, clustering
// standard errors by bank. The frame must already be the intersection
// sample: no missing values in the dependent variable or regressors.
func Fit(f *dataset.Frame, depVar string, fe FESpec) (*FitResult, error) {
	y, err := f.Column(depVar)
	if err != nil {
		return nil, err
	}
	herf, err := f.Column(ConcentrationColumn)
	if err != nil {
		return nil, err
	}
	dff, err := f.Column(RateChangeColumn)
	if err != nil {
		return nil, err
	}

	n := f.Len()
	if n < 3 {
		return nil, errors.NewValidationError(
			fmt.Sprintf("sample for %s has %d rows, need at least 3", depVar, n))
	}

	yd := append([]float64(nil), y...)
	x1 := append([]float64(nil), herf...)
	x2 := make([]float64, n)
	for i := range x2 {
		x2[i] = herf[i] * dff[i]
	}

	factors, err := buildFactors(f, fe)
	if err != nil {
		return nil, err
	}
	absorbed := demean(factors, yd, x1, x2)

	X := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, x1[i])
		X.Set(i, 1, x2[i])
	}
	yVec := mat.NewVecDense(n, yd)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return nil, errors.NewValidationError(
			fmt.Sprintf("regressors for %s are collinear after demeaning", depVar))
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), yVec)
	var beta mat.VecDense
	beta.MulVec(&xtxInv, &xty)

	// Residuals on the demeaned data
	resid := make([]float64, n)
	ssr := 0.0
	for i := 0; i < n; i++ {
		fitted := beta.AtVec(0)*x1[i] + beta.AtVec(1)*x2[i]
		resid[i] = yd[i] - fitted
		ssr += resid[i] * resid[i]
	}

	k := 2 + absorbed
	clusters := countClusters(f.Banks())
	vcov, err := clusteredVCov(f.Banks(), X, resid, &xtxInv, n, k, clusters)
	if err != nil {
		return nil, err
	}

	result := &FitResult{
		DepVar:   depVar,
		N:        n,
		Clusters: clusters,
		R2:       rSquared(y, ssr),
		WithinR2: rSquared(yd, ssr),
		FE:       fe,
	}
	result.Concentration = makeCoefficient(beta.AtVec(0), vcov.At(0, 0), clusters)
	result.Interaction = makeCoefficient(beta.AtVec(1), vcov.At(1, 1), clusters)

	return result, nil
}

// buildFactors returns the group labels per row for each active factor.
// A specification that references a column the frame does not carry is a
// hard error; the model is never fitted with a factor quietly left out.
func buildFactors(f *dataset.Frame, fe FESpec) ([][]string, error) {
	n := f.Len()
	banks := f.Banks()
	quarters := f.Quarters()

	var post []float64
	if fe.BankPost {
		col, err := f.Column("post2008")
		if err != nil {
			return nil, err
		}
		post = col
	}

	var factors [][]string
	if fe.Bank {
		labels := make([]string, n)
		for i, b := range banks {
			labels[i] = fmt.Sprintf("b%d", b)
		}
		factors = append(factors, labels)
	}
	if fe.BankPost {
		labels := make([]string, n)
		for i, b := range banks {
			labels[i] = fmt.Sprintf("b%d|p%.0f", b, post[i])
		}
		factors = append(factors, labels)
	}
	if fe.Quarter {
		factors = append(factors, quarters)
	}
	return factors, nil
}

// demean absorbs the factors from the series in place by alternating
// within-group demeaning until convergence. With no factors the grand mean
// is removed instead. Returns the degrees of freedom absorbed.
func demean(factors [][]string, series ...[]float64) int {
	if len(factors) == 0 {
		for _, s := range series {
			m := dataset.Mean(s)
			for i := range s {
				s[i] -= m
			}
		}
		return 1
	}

	for iter := 0; iter < demeanMaxIter; iter++ {
		maxAdj := 0.0
		for _, labels := range factors {
			for _, s := range series {
				adj := demeanOnce(labels, s)
				if adj > maxAdj {
					maxAdj = adj
				}
			}
		}
		if maxAdj < demeanTol {
			break
		}
	}

	absorbed := 0
	for _, labels := range factors {
		absorbed += countLevels(labels)
	}
	// Overlapping group means are counted once per shared constant
	absorbed -= len(factors) - 1
	return absorbed
}

// demeanOnce removes group means for one factor and returns the largest
// absolute adjustment
func demeanOnce(labels []string, s []float64) float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, l := range labels {
		sums[l] += s[i]
		counts[l]++
	}
	maxAdj := 0.0
	for i, l := range labels {
		m := sums[l] / float64(counts[l])
		s[i] -= m
		if a := math.Abs(m); a > maxAdj {
			maxAdj = a
		}
	}
	return maxAdj
}

func countLevels(labels []string) int {
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		seen[l] = true
	}
	return len(seen)
}

func countClusters(banks []int64) int {
	seen := make(map[int64]bool)
	for _, b := range banks {
		seen[b] = true
	}
	return len(seen)
}

// clusteredVCov computes the cluster-robust sandwich covariance with the
// usual small-sample adjustment G/(G-1) * (N-1)/(N-K)
func clusteredVCov(banks []int64, X *mat.Dense, resid []float64, xtxInv *mat.Dense, n, k, clusters int) (*mat.Dense, error) {
	if clusters < 2 {
		return nil, errors.NewValidationError(
			fmt.Sprintf("clustered errors need at least 2 entities, got %d", clusters))
	}

	scores := make(map[int64]*[2]float64, clusters)
	for i, bank := range banks {
		s, ok := scores[bank]
		if !ok {
			s = &[2]float64{}
			scores[bank] = s
		}
		s[0] += X.At(i, 0) * resid[i]
		s[1] += X.At(i, 1) * resid[i]
	}

	meat := mat.NewDense(2, 2, nil)
	for _, s := range scores {
		meat.Set(0, 0, meat.At(0, 0)+s[0]*s[0])
		meat.Set(0, 1, meat.At(0, 1)+s[0]*s[1])
		meat.Set(1, 0, meat.At(1, 0)+s[1]*s[0])
		meat.Set(1, 1, meat.At(1, 1)+s[1]*s[1])
	}

	adj := float64(clusters) / float64(clusters-1)
	if n > k {
		adj *= float64(n-1) / float64(n-k)
	}

	var bread mat.Dense
	bread.Mul(xtxInv, meat)
	var vcov mat.Dense
	vcov.Mul(&bread, xtxInv)
	vcov.Scale(adj, &vcov)

	return &vcov, nil
}

// makeCoefficient packages an estimate with its clustered standard error
// and a two-sided p-value from the t distribution with G-1 degrees of
// freedom
func makeCoefficient(estimate, variance float64, clusters int) Coefficient {
	se := math.Sqrt(math.Max(variance, 0))
	p := math.NaN()
	if se > 0 && clusters > 1 {
		t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(clusters - 1)}
		p = 2 * t.Survival(math.Abs(estimate/se))
	}
	return Coefficient{Estimate: estimate, SE: se, PValue: p}
}

// rSquared computes 1 - SSR/TSS against the given outcome series
func rSquared(y []float64, ssr float64) float64 {
	m := dataset.Mean(y)
	tss := 0.0
	for _, v := range y {
		d := v - m
		tss += d * d
	}
	if tss == 0 {
		return 0
	}
	return 1 - ssr/tss
}
