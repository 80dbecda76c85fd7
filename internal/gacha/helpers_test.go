package gacha

import (
	"testing"
	"time"
)

// scriptedRNG replays vals in order, wrapping around.
type scriptedRNG struct {
	vals []float64
	i    int
}

func (s *scriptedRNG) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Pool order built from testItems with testBanner:
// common1(1) common2(1) rare1(1) rare3(1) rateUp(5) → total 9.
var (
	common1 = Item{ID: 1, Name: "Dull Blade", Released: day(2020, 9, 28)}
	common2 = Item{ID: 2, Name: "Harbinger of Dawn", Released: day(2020, 9, 28)}
	rare1   = Item{ID: 10, Name: "Diluc", Star: true, Released: day(2020, 9, 28)}
	rare2   = Item{ID: 11, Name: "Ganyu", Star: true, Released: day(2021, 1, 12)}
	rare3   = Item{ID: 12, Name: "Qiqi", Star: true, Released: day(2021, 3, 1)}
	rateUp  = Item{ID: 20, Name: "Venti", Star: true, Released: day(2020, 9, 28)}

	testItems  = []Item{common1, common2, rare1, rare2, rare3, rateUp}
	testBanner = Banner{ID: 1, Name: "Ballad in Goblets", Kind: KindCharacter, RateUp: rateUp.ID, Cutoff: day(2020, 12, 1)}
	testAlways = map[ItemID]bool{rare3.ID: true}
)

// pick values that land on each pool entry (x = v * 9)
const (
	pickCommon1 = 0.05
	pickCommon2 = 0.15
	pickRare1   = 0.25
	pickRare3   = 0.40
	pickRateUp  = 0.90
)

func testPool(t *testing.T) *Pool {
	t.Helper()
	p, err := BuildPool(testItems, testBanner, testAlways)
	if err != nil {
		t.Fatalf("BuildPool: %v", err)
	}
	return p
}
