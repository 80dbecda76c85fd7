package gacha

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// RateUpWeight is the sampling weight of the banner's rate-up item relative
// to any other single eligible item.
const RateUpWeight = 5

// BannerKind selects the draw path of a banner.
type BannerKind string

const (
	KindCharacter BannerKind = "character"
	KindWeapon    BannerKind = "weapon"
)

var (
	ErrRateUpMissing  = errors.New("rate-up item not in catalog")
	ErrRateUpNotRare  = errors.New("rate-up item is not rare tier")
	ErrDegeneratePool = errors.New("pool has no common items")
)

// Banner is one draw campaign. Rare items released after Cutoff are not
// eligible unless they are in the always-eligible set.
type Banner struct {
	ID     int64
	Name   string
	Kind   BannerKind
	RateUp ItemID
	Cutoff time.Time
}

// PoolEntry is one candidate with its sampling weight.
type PoolEntry struct {
	Item   Item
	Weight int
}

// Pool is the weighted candidate set of one banner.
// Sampling walks a cumulative-weight table instead of duplicating records.
type Pool struct {
	entries    []PoolEntry
	cumulative []int // cumulative[i] = sum of weights of entries[0..i]
	total      int
	rateUp     Item
}

// BuildPool composes the candidate pool for banner:
// - every common item
// - every rare item released on or before the cutoff
// - every item of the always-eligible rare set
// - the rate-up item, last, at RateUpWeight
func BuildPool(items []Item, banner Banner, alwaysEligible map[ItemID]bool) (*Pool, error) {
	var (
		rateUp   Item
		found    bool
		commons  int
		seen     = make(map[ItemID]bool, len(items))
		entries  = make([]PoolEntry, 0, len(items)+1)
		cutoffOK = func(it Item) bool { return !it.Released.After(banner.Cutoff) }
	)
	for _, it := range items {
		if it.ID == banner.RateUp {
			rateUp, found = it, true
			continue
		}
		if seen[it.ID] {
			continue
		}
		if !it.Star || cutoffOK(it) || alwaysEligible[it.ID] {
			seen[it.ID] = true
			entries = append(entries, PoolEntry{Item: it, Weight: 1})
			if !it.Star {
				commons++
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: banner %d rate-up %d", ErrRateUpMissing, banner.ID, banner.RateUp)
	}
	if !rateUp.Star {
		return nil, fmt.Errorf("%w: banner %d rate-up %d", ErrRateUpNotRare, banner.ID, banner.RateUp)
	}
	if commons == 0 {
		return nil, fmt.Errorf("%w: banner %d", ErrDegeneratePool, banner.ID)
	}
	entries = append(entries, PoolEntry{Item: rateUp, Weight: RateUpWeight})

	p := &Pool{entries: entries, cumulative: make([]int, len(entries)), rateUp: rateUp}
	for i, e := range entries {
		p.total += e.Weight
		p.cumulative[i] = p.total
	}
	return p, nil
}

// Pick samples one item with probability proportional to its weight.
func (p *Pool) Pick(rng RandomSource) Item {
	x := rng.Float64() * float64(p.total)
	i := sort.Search(len(p.cumulative), func(i int) bool {
		return float64(p.cumulative[i]) > x
	})
	if i >= len(p.entries) {
		i = len(p.entries) - 1
	}
	return p.entries[i].Item
}

// RateUp returns the banner's rate-up item.
func (p *Pool) RateUp() Item { return p.rateUp }

// Total is the sum of all weights.
func (p *Pool) Total() int { return p.total }

// Weight returns the sampling weight of id, 0 if it is not in the pool.
func (p *Pool) Weight(id ItemID) int {
	for _, e := range p.entries {
		if e.Item.ID == id {
			return e.Weight
		}
	}
	return 0
}

// Entries returns a copy of the pool in sampling order.
func (p *Pool) Entries() []PoolEntry {
	return append([]PoolEntry(nil), p.entries...)
}
