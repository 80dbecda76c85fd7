// Command simulate estimates draw costs on a catalog banner by Monte Carlo.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/xtding233/wish-ledger/internal/catalog"
	"github.com/xtding233/wish-ledger/internal/gacha"
)

type options struct {
	catalog    string
	banner     int64
	goal       string
	trials     int
	budget     int
	seed       uint64
	workers    int
	pity       int
	guaranteed bool
	jsonOut    bool
	curve      gacha.CurveConfig
}

func parseFlags(args []string) (options, error) {
	def := gacha.DefaultCurveConfig()
	var o options
	fs := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	fs.StringVar(&o.catalog, "catalog", "configs/catalog.yaml", "catalog YAML file")
	fs.Int64Var(&o.banner, "banner", 1, "banner id")
	fs.StringVar(&o.goal, "goal", string(gacha.GoalFirstRateUp), "first_rare, first_rate_up or fixed_budget")
	fs.IntVarP(&o.trials, "trials", "n", 100000, "number of trials")
	fs.IntVar(&o.budget, "budget", 180, "draws per trial for fixed_budget")
	fs.Uint64Var(&o.seed, "seed", 0, "seed for reproducible runs, 0 is random")
	fs.IntVar(&o.workers, "workers", 0, "parallel workers, 0 uses GOMAXPROCS")
	fs.IntVar(&o.pity, "pity", 0, "starting pity counter")
	fs.BoolVar(&o.guaranteed, "guaranteed", false, "start with the rate-up guarantee")
	fs.BoolVar(&o.jsonOut, "json", false, "print stats as JSON")
	fs.Float64Var(&o.curve.BaseRate, "base-rate", def.BaseRate, "rare-tier base probability")
	fs.IntVar(&o.curve.SoftStart, "soft-start", def.SoftStart, "pity where the soft ramp begins")
	fs.IntVar(&o.curve.HardPity, "hard-pity", def.HardPity, "pity where a rare hit is certain")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.trials <= 0 {
		return o, errors.New("--trials must be positive")
	}
	return o, nil
}

func run(ctx context.Context, o options, w io.Writer) error {
	snap, err := catalog.LoadFile(o.catalog)
	if err != nil {
		return err
	}
	pool, banner, err := snap.Pool(o.banner)
	if err != nil {
		return err
	}
	curve, err := gacha.NewCurve(o.curve)
	if err != nil {
		return err
	}

	stats, err := gacha.RunMonteCarlo(ctx, gacha.SimParams{
		Curve:   curve,
		Pool:    pool,
		Start:   gacha.UserData{Pity: o.pity, Guaranteed: o.guaranteed},
		Budget:  o.budget,
		Seed:    o.seed,
		Workers: o.workers,
	}, gacha.TrialGoal(o.goal), o.trials)
	if err != nil {
		return err
	}

	if o.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Banner int64             `json:"banner"`
			Goal   string            `json:"goal"`
			Stats  gacha.Stats       `json:"stats"`
			Curve  gacha.CurveConfig `json:"curve"`
		}{banner.ID, o.goal, stats, curve.Config()})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "banner\t%d (%s)\n", banner.ID, banner.Name)
	fmt.Fprintf(tw, "goal\t%s\n", o.goal)
	fmt.Fprintf(tw, "trials\t%d\n", stats.Trials)
	fmt.Fprintf(tw, "mean\t%.3f\n", stats.Mean)
	fmt.Fprintf(tw, "stddev\t%.3f\n", stats.StdDev)
	fmt.Fprintf(tw, "p50\t%.1f\n", stats.P50)
	fmt.Fprintf(tw, "p90\t%.1f\n", stats.P90)
	fmt.Fprintf(tw, "p99\t%.1f\n", stats.P99)
	return tw.Flush()
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "simulate:", err)
		os.Exit(1)
	}
}
