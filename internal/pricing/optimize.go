package pricing

import "fmt"

// MinCostAtLeast finds the cheapest combination granting at least target
// tickets. Regular packs can be bought any number of times; a first-time
// doubled variant at most once.
func MinCostAtLeast(shop Shop, target int, first FirstTimeState) (Plan, error) {
	if target <= 0 {
		return Plan{Currency: shop.Currency}, nil
	}
	if target > MaxPlanSize {
		return Plan{}, fmt.Errorf("%w: %d tickets", ErrTooLarge, target)
	}
	vs := shop.variants(first)
	if len(vs) == 0 {
		return Plan{}, ErrNoPacks
	}

	const inf = int(^uint(0) >> 1)
	sub := func(t, n int) int {
		if t < n {
			return 0
		}
		return t - n
	}

	// dp[t] = min cost for at least t tickets
	dp := make([]int, target+1)
	choice := make([]int, target+1)
	for t := 1; t <= target; t++ {
		dp[t], choice[t] = inf, -1
		for i, v := range vs {
			if v.once {
				continue
			}
			if prev := dp[sub(t, v.tickets)]; prev != inf && prev+v.price < dp[t] {
				dp[t], choice[t] = prev+v.price, i
			}
		}
	}
	// 0/1 layers for the once-only variants
	var onceIdx []int
	var took [][]bool
	for i, v := range vs {
		if !v.once {
			continue
		}
		layer := make([]bool, target+1)
		for t := target; t > 0; t-- {
			if prev := dp[sub(t, v.tickets)]; prev != inf && prev+v.price < dp[t] {
				dp[t], layer[t] = prev+v.price, true
			}
		}
		onceIdx = append(onceIdx, i)
		took = append(took, layer)
	}

	counts := make([]int, len(vs))
	t := target
	for k := len(took) - 1; k >= 0; k-- {
		if took[k][t] {
			v := vs[onceIdx[k]]
			counts[onceIdx[k]]++
			t = sub(t, v.tickets)
		}
	}
	for t > 0 {
		i := choice[t]
		counts[i]++
		t = sub(t, vs[i].tickets)
	}
	return shop.plan(vs, counts), nil
}

// MaxTicketsUnderBudget finds the combination granting the most tickets
// whose taxed total stays within budgetCents.
func MaxTicketsUnderBudget(shop Shop, budgetCents int, first FirstTimeState) (Plan, error) {
	if budgetCents <= 0 {
		return Plan{Currency: shop.Currency}, nil
	}
	if budgetCents > MaxPlanSize {
		return Plan{}, fmt.Errorf("%w: %d cents", ErrTooLarge, budgetCents)
	}
	vs := shop.variants(first)
	if len(vs) == 0 {
		return Plan{}, ErrNoPacks
	}

	// largest pre-tax subtotal whose taxed total fits
	budget := budgetCents
	if shop.TaxRate > 0 {
		budget = int(float64(budgetCents) / (1 + shop.TaxRate))
		for budget > 0 {
			if _, total := applyTax(budget, shop.TaxRate); total <= budgetCents {
				break
			}
			budget--
		}
	}

	// dp[c] = max tickets for a subtotal of at most c
	dp := make([]int, budget+1)
	choice := make([]int, budget+1)
	for c := 1; c <= budget; c++ {
		dp[c], choice[c] = dp[c-1], -1
		for i, v := range vs {
			if v.once || v.price > c {
				continue
			}
			if val := dp[c-v.price] + v.tickets; val > dp[c] {
				dp[c], choice[c] = val, i
			}
		}
	}
	var onceIdx []int
	var took [][]bool
	for i, v := range vs {
		if !v.once {
			continue
		}
		layer := make([]bool, budget+1)
		for c := budget; c >= v.price; c-- {
			if val := dp[c-v.price] + v.tickets; val > dp[c] {
				dp[c], layer[c] = val, true
			}
		}
		onceIdx = append(onceIdx, i)
		took = append(took, layer)
	}

	counts := make([]int, len(vs))
	c := budget
	for k := len(took) - 1; k >= 0; k-- {
		if took[k][c] {
			counts[onceIdx[k]]++
			c -= vs[onceIdx[k]].price
		}
	}
	for c > 0 {
		if choice[c] == -1 {
			c--
			continue
		}
		i := choice[c]
		counts[i]++
		c -= vs[i].price
	}
	return shop.plan(vs, counts), nil
}
