package gacha

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// TrialGoal selects what the simulation measures per trial.
type TrialGoal string

const (
	// Draws until the first rare item (rate-up or not).
	GoalFirstRare TrialGoal = "first_rare"
	// Draws until the first rate-up item, guarantee rules included.
	GoalFirstRateUp TrialGoal = "first_rate_up"
	// Given a fixed budget of draws, count rate-up items obtained.
	GoalFixedBudget TrialGoal = "fixed_budget"
)

var ErrUnknownGoal = errors.New("unknown simulation goal")

// SimParams describes the mechanics for one simulation run.
type SimParams struct {
	Curve *Curve
	Pool  *Pool
	// Start is the state every trial begins from (carry-over pity, guarantee).
	Start UserData
	// Budget is the number of draws per trial for GoalFixedBudget.
	Budget int
	// Seed makes trials reproducible; trial i uses Seed+i. 0 means crypto random.
	Seed uint64
	// Workers bounds parallel trials; <= 0 uses GOMAXPROCS.
	Workers int
}

// Stats summarizes simulation results.
type Stats struct {
	Trials int     `json:"trials"`
	Mean   float64 `json:"mean"`
	Var    float64 `json:"var"`
	StdDev float64 `json:"stddev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
	// Optional: raw samples if caller needs histograms/exports
	Samples []int `json:"-"`
}

// calcStats computes mean/variance/percentiles for integer samples.
func calcStats(xs []int) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)

	// variance (population)
	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}
	variance := acc / float64(n)

	cp := append([]int(nil), xs...)
	sort.Ints(cp)
	percentile := func(p float64) float64 {
		if n == 1 || p <= 0 {
			return float64(cp[0])
		}
		if p >= 1 {
			return float64(cp[n-1])
		}
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		f := pos - float64(i)
		if i+1 >= n {
			return float64(cp[i])
		}
		return float64(cp[i])*(1-f) + float64(cp[i+1])*f
	}

	return Stats{
		Trials:  n,
		Mean:    mean,
		Var:     variance,
		StdDev:  math.Sqrt(variance),
		P50:     percentile(0.50),
		P90:     percentile(0.90),
		P99:     percentile(0.99),
		Samples: xs,
	}
}

// simulateOne returns the metric of one trial depending on the goal.
func simulateOne(p SimParams, goal TrialGoal, rng RandomSource) (int, error) {
	s := NewSession(p.Curve, p.Pool, p.Start, rng)

	switch goal {
	case GoalFirstRare, GoalFirstRateUp:
		for {
			if _, err := s.Run(1); err != nil {
				return 0, err
			}
			sum := s.Summary()
			if goal == GoalFirstRare && sum.RareHits > 0 {
				return sum.Produced, nil
			}
			if goal == GoalFirstRateUp && sum.RateUpHits > 0 {
				return sum.Produced, nil
			}
		}
	case GoalFixedBudget:
		if p.Budget <= 0 {
			return 0, nil
		}
		if _, err := s.Run(p.Budget); err != nil {
			return 0, err
		}
		return s.Summary().RateUpHits, nil
	}
	return 0, ErrUnknownGoal
}

// RunMonteCarlo repeats trials and returns summary stats.
// goal determines what metric is recorded per trial.
func RunMonteCarlo(ctx context.Context, p SimParams, goal TrialGoal, trials int) (Stats, error) {
	if trials <= 0 {
		return Stats{}, nil
	}
	switch goal {
	case GoalFirstRare, GoalFirstRateUp, GoalFixedBudget:
	default:
		return Stats{}, ErrUnknownGoal
	}
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	samples := make([]int, trials)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < trials; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rng := DefaultRNG()
			if p.Seed != 0 {
				rng = NewSeededRNG(p.Seed + uint64(i))
			}
			v, err := simulateOne(p, goal, rng)
			if err != nil {
				return err
			}
			samples[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	return calcStats(samples), nil
}
