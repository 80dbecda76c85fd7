package gacha

import (
	"errors"
	"fmt"
)

const (
	DefaultBaseRate  = 0.006
	DefaultSoftStart = 70
	DefaultHardPity  = 90
)

var (
	ErrCurveConfig    = errors.New("invalid pity curve config")
	ErrPityOutOfRange = errors.New("pity counter out of range")
)

// CurveConfig defines the accumulating ramp before hard pity.
// Example: BaseRate=0.006, SoftStart=70, HardPity=90 → flat 0.6% up to 70,
// then each step adds step*(counter-SoftStart) on top of the previous value
// so that the probability is exactly 1 at counter 90.
type CurveConfig struct {
	BaseRate  float64 `mapstructure:"base_rate" yaml:"base_rate" json:"base_rate" validate:"gt=0,lt=1"`
	SoftStart int     `mapstructure:"soft_start" yaml:"soft_start" json:"soft_start" validate:"gte=0"`
	HardPity  int     `mapstructure:"hard_pity" yaml:"hard_pity" json:"hard_pity" validate:"gtfield=SoftStart"`
}

// DefaultCurveConfig returns the reference curve.
func DefaultCurveConfig() CurveConfig {
	return CurveConfig{
		BaseRate:  DefaultBaseRate,
		SoftStart: DefaultSoftStart,
		HardPity:  DefaultHardPity,
	}
}

// normalize validates the config; returns error if invalid.
func (c *CurveConfig) normalize() error {
	if err := validateProb(c.BaseRate); err != nil || c.BaseRate <= 0 || c.BaseRate >= 1 {
		return fmt.Errorf("%w: base_rate must be in (0,1)", ErrCurveConfig)
	}
	if c.SoftStart < 0 {
		return fmt.Errorf("%w: soft_start must be >= 0", ErrCurveConfig)
	}
	// Ramp ends at HardPity. SoftStart must be < HardPity to have room to ramp.
	if c.HardPity <= c.SoftStart {
		return fmt.Errorf("%w: hard_pity must be > soft_start", ErrCurveConfig)
	}
	return nil
}

// Curve maps a pity counter to the rare-tier probability for the next draw.
// Values are precomputed once; a Curve is read-only and safe to share.
type Curve struct {
	cfg   CurveConfig
	table []float64 // index = pity counter
}

// NewCurve builds the probability table for cfg.
func NewCurve(cfg CurveConfig) (*Curve, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	n := cfg.HardPity - cfg.SoftStart
	// remaining mass spread over 1+2+...+n so the last step lands on 1
	step := (1 - cfg.BaseRate) / float64(n*(n+1)/2)

	table := make([]float64, cfg.HardPity+1)
	for t := range table {
		if t <= cfg.SoftStart {
			table[t] = cfg.BaseRate
			continue
		}
		// same order of operations as the recursive definition:
		// p(t) = step*(t-start) + p(t-1)
		p := step*float64(t-cfg.SoftStart) + table[t-1]
		if p > 1 {
			p = 1
		}
		table[t] = p
	}
	table[cfg.HardPity] = 1
	return &Curve{cfg: cfg, table: table}, nil
}

// MustCurve is NewCurve for configs known to be valid.
func MustCurve(cfg CurveConfig) *Curve {
	c, err := NewCurve(cfg)
	if err != nil {
		panic(err)
	}
	return c
}

// Probability returns the rare-tier probability at counter.
// Counters outside [0, HardPity] are a caller bug and fail with ErrPityOutOfRange.
func (c *Curve) Probability(counter int) (float64, error) {
	if counter < 0 || counter > c.cfg.HardPity {
		return 0, fmt.Errorf("%w: %d not in [0,%d]", ErrPityOutOfRange, counter, c.cfg.HardPity)
	}
	return c.table[counter], nil
}

// Clamp forces a possibly corrupted stored counter back into the curve's domain.
func (c *Curve) Clamp(counter int) int {
	if counter < 0 {
		return 0
	}
	if counter > c.cfg.HardPity {
		return c.cfg.HardPity
	}
	return counter
}

// HardPity is the counter at which the probability reaches 1.
func (c *Curve) HardPity() int { return c.cfg.HardPity }

// Config returns the normalized config the curve was built from.
func (c *Curve) Config() CurveConfig { return c.cfg }

// Table returns a copy of the probability for every counter 0..HardPity.
func (c *Curve) Table() []float64 {
	return append([]float64(nil), c.table...)
}
