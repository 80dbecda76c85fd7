// Package codec converts ledger inventories to and from the JSON column
// the SQL stores keep them in.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/xtding233/wish-ledger/internal/gacha"
)

// EncodeInventory marshals inv as a JSON object keyed by item id. A nil map
// encodes as "{}".
func EncodeInventory(inv map[gacha.ItemID]int64) ([]byte, error) {
	if inv == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("encode inventory: %w", err)
	}
	return b, nil
}

// DecodeInventory is the inverse of EncodeInventory. It never returns a nil map.
func DecodeInventory(b []byte) (map[gacha.ItemID]int64, error) {
	inv := make(map[gacha.ItemID]int64)
	if len(b) == 0 {
		return inv, nil
	}
	if err := json.Unmarshal(b, &inv); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	return inv, nil
}
