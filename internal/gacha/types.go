package gacha

import "time"

// ItemID identifies a catalog item.
type ItemID int64

// Item is one catalog entry. Star marks the rare tier.
type Item struct {
	ID       ItemID
	Name     string
	Star     bool
	Released time.Time
}

// UserData is the per-user gacha state carried between sessions.
type UserData struct {
	Pity       int              // draws since the last rare hit
	Guaranteed bool             // next rare hit is forced to the rate-up item
	Inventory  map[ItemID]int64 // owned count per item
}

// Clone returns a deep copy so a session can mutate it freely.
func (d UserData) Clone() UserData {
	out := UserData{Pity: d.Pity, Guaranteed: d.Guaranteed}
	out.Inventory = make(map[ItemID]int64, len(d.Inventory))
	for id, n := range d.Inventory {
		out.Inventory[id] = n
	}
	return out
}
