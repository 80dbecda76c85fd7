package catalog

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xtding233/wish-ledger/internal/gacha"
)

var (
	ErrBannerNotFound = errors.New("banner not found")
	ErrItemNotFound   = errors.New("item not found")
)

// Snapshot is one immutable, validated view of the catalog.
type Snapshot struct {
	version  string
	items    []gacha.Item // sorted by id
	byID     map[gacha.ItemID]gacha.Item
	banners  map[int64]gacha.Banner
	always   map[gacha.ItemID]bool
	loadedAt time.Time
}

// NewSnapshot validates f and converts it to engine types.
func NewSnapshot(f File) (*Snapshot, error) {
	if err := Validate(f); err != nil {
		return nil, err
	}
	s := &Snapshot{
		version:  f.Version,
		items:    make([]gacha.Item, 0, len(f.Items)),
		byID:     make(map[gacha.ItemID]gacha.Item, len(f.Items)),
		banners:  make(map[int64]gacha.Banner, len(f.Banners)),
		always:   make(map[gacha.ItemID]bool, len(f.AlwaysEligible)),
		loadedAt: time.Now(),
	}
	for _, raw := range f.Items {
		released, _ := time.Parse(DateLayout, raw.Released)
		it := gacha.Item{ID: gacha.ItemID(raw.ID), Name: raw.Name, Star: raw.Star, Released: released}
		s.items = append(s.items, it)
		s.byID[it.ID] = it
	}
	sort.Slice(s.items, func(i, j int) bool { return s.items[i].ID < s.items[j].ID })
	for _, b := range f.Banners {
		cutoff, _ := time.Parse(DateLayout, b.Cutoff)
		s.banners[b.ID] = gacha.Banner{
			ID:     b.ID,
			Name:   b.Name,
			Kind:   gacha.BannerKind(b.Kind),
			RateUp: gacha.ItemID(b.RateUp),
			Cutoff: cutoff,
		}
	}
	for _, id := range f.AlwaysEligible {
		s.always[gacha.ItemID(id)] = true
	}
	return s, nil
}

func (s *Snapshot) Version() string     { return s.version }
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Item looks up one item.
func (s *Snapshot) Item(id gacha.ItemID) (gacha.Item, error) {
	it, ok := s.byID[id]
	if !ok {
		return gacha.Item{}, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return it, nil
}

// Items returns every item ordered by id.
func (s *Snapshot) Items() []gacha.Item {
	return append([]gacha.Item(nil), s.items...)
}

// Banner looks up one banner.
func (s *Snapshot) Banner(id int64) (gacha.Banner, error) {
	b, ok := s.banners[id]
	if !ok {
		return gacha.Banner{}, fmt.Errorf("%w: %d", ErrBannerNotFound, id)
	}
	return b, nil
}

// Banners returns every banner ordered by id.
func (s *Snapshot) Banners() []gacha.Banner {
	out := make([]gacha.Banner, 0, len(s.banners))
	for _, b := range s.banners {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AlwaysEligible returns a copy of the rare items that ignore banner cutoffs.
func (s *Snapshot) AlwaysEligible() map[gacha.ItemID]bool {
	out := make(map[gacha.ItemID]bool, len(s.always))
	for id := range s.always {
		out[id] = true
	}
	return out
}

// Pool composes the draw pool of a banner.
func (s *Snapshot) Pool(bannerID int64) (*gacha.Pool, gacha.Banner, error) {
	b, err := s.Banner(bannerID)
	if err != nil {
		return nil, gacha.Banner{}, err
	}
	p, err := gacha.BuildPool(s.items, b, s.always)
	if err != nil {
		return nil, b, err
	}
	return p, b, nil
}
