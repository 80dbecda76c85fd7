package gacha

// Presented is what the rendering side receives for each drawn item.
type Presented struct {
	ItemID ItemID `json:"item_id"`
	Name   string `json:"name"`
	Star   bool   `json:"star"`
	RateUp bool   `json:"rate_up"`
}

// StablePartition moves every occurrence of rateUp behind the other items,
// keeping the relative draw order inside both halves.
func StablePartition(items []Item, rateUp ItemID) []Item {
	out := make([]Item, 0, len(items))
	var ups []Item
	for _, it := range items {
		if it.ID == rateUp {
			ups = append(ups, it)
			continue
		}
		out = append(out, it)
	}
	return append(out, ups...)
}

// Present orders items for display and tags the rate-up occurrences.
func Present(items []Item, rateUp ItemID) []Presented {
	ordered := StablePartition(items, rateUp)
	out := make([]Presented, len(ordered))
	for i, it := range ordered {
		out[i] = Presented{ItemID: it.ID, Name: it.Name, Star: it.Star, RateUp: it.ID == rateUp}
	}
	return out
}
