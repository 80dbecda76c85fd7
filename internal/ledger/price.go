package ledger

// Price defines how many tickets a number of draws costs.
type Price struct {
	Name       string // e.g. "Intertwined Fate"
	PerDraw    int64  // tickets per single draw
	PerTenDraw int64  // optional bundle price for 10 draws; 0 means 10*PerDraw
}

// DefaultPrice charges one ticket per draw.
func DefaultPrice() Price { return Price{Name: "ticket", PerDraw: 1} }

// Cost returns the tickets required for n draws.
func (p Price) Cost(n int) int64 {
	if n <= 0 {
		return 0
	}
	if p.PerTenDraw > 0 && n >= 10 {
		tens := int64(n / 10)
		rem := int64(n % 10)
		return tens*p.PerTenDraw + rem*p.PerDraw
	}
	return int64(n) * p.PerDraw
}
