package gacha

// defaultCurve is the reference curve: 0.6% flat to 70, certain at 90.
var defaultCurve = MustCurve(DefaultCurveConfig())

// DefaultCurve returns the shared reference curve.
func DefaultCurve() *Curve { return defaultCurve }

// ProbabilityForPity returns the rare-tier probability of the reference curve
// for a pity counter in [0, 90].
func ProbabilityForPity(counter int) (float64, error) {
	return defaultCurve.Probability(counter)
}
