package pricing

import "fmt"

// Quote answers "what do I buy to afford these draws".
type Quote struct {
	Draws   int   `json:"draws"`
	Needed  int64 `json:"needed"`
	Balance int64 `json:"balance"`
	Short   int64 `json:"short"`
	Plan    Plan  `json:"plan"`
}

// QuoteDraws plans the cheapest purchase covering needed-balance tickets.
// A balance that already covers needed yields an empty plan.
func QuoteDraws(shop Shop, draws int, needed, balance int64, first FirstTimeState) (Quote, error) {
	q := Quote{Draws: draws, Needed: needed, Balance: balance, Plan: Plan{Currency: shop.Currency}}
	if needed <= balance {
		return q, nil
	}
	q.Short = needed - balance
	if q.Short > MaxPlanSize {
		return q, fmt.Errorf("%w: %d tickets", ErrTooLarge, q.Short)
	}
	plan, err := MinCostAtLeast(shop, int(q.Short), first)
	if err != nil {
		return q, err
	}
	q.Plan = plan
	return q, nil
}
