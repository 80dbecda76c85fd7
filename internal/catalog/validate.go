package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xtding233/wish-ledger/internal/gacha"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// Validate checks semantic constraints of a catalog file and reports every
// violation at once.
func Validate(f File) error {
	var errs []string

	items := make(map[int64]ItemSpec, len(f.Items))
	commons := 0
	for i, it := range f.Items {
		if it.ID <= 0 {
			errs = append(errs, fmt.Sprintf("items[%d].id must be > 0", i))
		}
		_, dup := items[it.ID]
		if dup {
			errs = append(errs, fmt.Sprintf("items[%d].id %d is duplicated", i, it.ID))
		}
		if strings.TrimSpace(it.Name) == "" {
			errs = append(errs, fmt.Sprintf("items[%d].name is required", i))
		}
		if _, err := time.Parse(DateLayout, it.Released); err != nil {
			errs = append(errs, fmt.Sprintf("items[%d].released must be YYYY-MM-DD", i))
		}
		if !it.Star {
			commons++
		}
		if !dup {
			items[it.ID] = it
		}
	}
	if len(f.Items) > 0 && commons == 0 {
		errs = append(errs, "items must contain at least one non-star item")
	}

	for i, id := range f.AlwaysEligible {
		it, ok := items[id]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("always_eligible[%d] refers to unknown item %d", i, id))
		case !it.Star:
			errs = append(errs, fmt.Sprintf("always_eligible[%d] item %d is not a star item", i, id))
		}
	}

	banners := make(map[int64]bool, len(f.Banners))
	for i, b := range f.Banners {
		if b.ID <= 0 {
			errs = append(errs, fmt.Sprintf("banners[%d].id must be > 0", i))
		}
		if banners[b.ID] {
			errs = append(errs, fmt.Sprintf("banners[%d].id %d is duplicated", i, b.ID))
		}
		banners[b.ID] = true
		switch gacha.BannerKind(b.Kind) {
		case gacha.KindCharacter, gacha.KindWeapon:
		default:
			errs = append(errs, fmt.Sprintf("banners[%d].kind must be one of: character, weapon", i))
		}
		if _, err := time.Parse(DateLayout, b.Cutoff); err != nil {
			errs = append(errs, fmt.Sprintf("banners[%d].cutoff must be YYYY-MM-DD", i))
		}
		up, ok := items[b.RateUp]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("banners[%d].rate_up refers to unknown item %d", i, b.RateUp))
		case !up.Star:
			errs = append(errs, fmt.Sprintf("banners[%d].rate_up item %d is not a star item", i, b.RateUp))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(errs, "; "))
	}
	return nil
}
