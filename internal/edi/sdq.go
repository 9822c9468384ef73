package edi

import (
	"fmt"
	"strconv"
)

// StoreAllocation is one (store, quantity) pair from an SDQ segment.
type StoreAllocation struct {
	StoreNumber string
	Qty         int
}

// StoreAllocations extracts store-level quantity allocations from an SDQ
// segment. SDQ01 is the UOM, SDQ02 is ignored, then stores sit at odd keys
// (SDQ03, SDQ05, ...) with quantities at the following even keys. The walk
// stops at the first gap; entries with an empty store or non-positive
// quantity are dropped.
//
// The write path does not persist these yet; the detail row's store_number
// stays empty. The parser is kept for allocation-aware consumers.
func StoreAllocations(dest *DestinationInfo, norm *Normalizer) []StoreAllocation {
	if dest == nil || len(dest.SDQ) == 0 {
		return nil
	}

	var allocations []StoreAllocation
	for i := 3; ; i += 2 {
		store, storeOK := dest.SDQ[fmt.Sprintf("SDQ%02d", i)]
		qty, qtyOK := dest.SDQ[fmt.Sprintf("SDQ%02d", i+1)]
		if !storeOK || !qtyOK {
			break
		}

		storeNumber := scalarText(store)
		q := norm.BoundedInt(qty, 0)
		if storeNumber != "" && q > 0 {
			allocations = append(allocations, StoreAllocation{StoreNumber: storeNumber, Qty: q})
		}
	}
	return allocations
}

// scalarText renders a decoded JSON scalar as identifier text. Zero and
// empty values collapse to "" so they drop out of allocations.
func scalarText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case Text:
		return string(v)
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		if v == 0 {
			return ""
		}
		return strconv.Itoa(v)
	default:
		return ""
	}
}
