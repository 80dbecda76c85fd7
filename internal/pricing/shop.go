// Package pricing plans ticket pack purchases: the cheapest combination that
// covers a shortfall, and the most tickets a budget can buy.
package pricing

import (
	"errors"
	"math"
	"sort"
)

// MaxPlanSize bounds the dynamic programming tables (tickets or cents).
const MaxPlanSize = 1_000_000

var (
	ErrTooLarge = errors.New("plan target exceeds limit")
	ErrNoPacks  = errors.New("shop has no packs")
)

// Pack models a purchasable SKU.
type Pack struct {
	ID          string // SKU id, e.g. "6480"
	Name        string
	Tickets     int  // base tickets granted
	Bonus       int  // permanent extra tickets
	FirstTimeX2 bool // first purchase doubles Tickets (not Bonus)
	PriceCents  int
}

// Shop is a regional product list with tax info. PriceCents are pre-tax;
// set TaxRate=0 when prices are tax-inclusive.
type Shop struct {
	Currency string
	TaxRate  float64
	Packs    []Pack
}

// FirstTimeState maps pack id to whether its first-time double is still available.
type FirstTimeState map[string]bool

type Plan struct {
	Purchases    []Purchase `json:"purchases"`
	SubCents     int        `json:"sub_cents"`
	TaxCents     int        `json:"tax_cents"`
	TotalCents   int        `json:"total_cents"`
	TotalTickets int        `json:"total_tickets"`
	Currency     string     `json:"currency"`
}

// Purchase is one line item in a plan.
type Purchase struct {
	PackID      string `json:"pack_id"`
	Name        string `json:"name"`
	Qty         int    `json:"qty"`
	UnitPrice   int    `json:"unit_price"`
	UnitTickets int    `json:"unit_tickets"` // first-time double and bonus applied
	Subtotal    int    `json:"subtotal"`
}

// variant is a pack as it can actually be bought: the doubled first-time
// variant (at most once) and the regular one.
type variant struct {
	id, name string
	tickets  int
	price    int
	once     bool
}

func (s Shop) variants(first FirstTimeState) []variant {
	var out []variant
	for _, p := range s.Packs {
		if p.Tickets+p.Bonus <= 0 || p.PriceCents <= 0 {
			continue
		}
		if p.FirstTimeX2 && first[p.ID] {
			out = append(out, variant{id: p.ID + "#x2", name: p.Name + " (x2)", tickets: p.Tickets*2 + p.Bonus, price: p.PriceCents, once: true})
		}
		out = append(out, variant{id: p.ID, name: p.Name, tickets: p.Tickets + p.Bonus, price: p.PriceCents})
	}
	return out
}

func (s Shop) plan(vs []variant, counts []int) Plan {
	plan := Plan{Currency: s.Currency}
	for i, qty := range counts {
		if qty == 0 {
			continue
		}
		v := vs[i]
		sub := v.price * qty
		plan.Purchases = append(plan.Purchases, Purchase{
			PackID:      v.id,
			Name:        v.name,
			Qty:         qty,
			UnitPrice:   v.price,
			UnitTickets: v.tickets,
			Subtotal:    sub,
		})
		plan.SubCents += sub
		plan.TotalTickets += v.tickets * qty
	}
	sort.Slice(plan.Purchases, func(i, j int) bool { return plan.Purchases[i].PackID < plan.Purchases[j].PackID })
	plan.TaxCents, plan.TotalCents = applyTax(plan.SubCents, s.TaxRate)
	return plan
}

// applyTax computes tax and total given a subtotal and a tax rate.
func applyTax(sub int, taxRate float64) (tax int, total int) {
	if taxRate <= 0 {
		return 0, sub
	}
	t := int(math.Round(float64(sub) * taxRate))
	return t, sub + t
}
