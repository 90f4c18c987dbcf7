package live

import (
	"fmt"
	"sort"
	"time"
)

// SortByField orders documents ascending by the named field, restoring the
// order the indexed query would have produced. The sort is stable so
// documents with equal keys keep their arrival order.
func SortByField(docs []Document, field string) {
	sort.SliceStable(docs, func(i, j int) bool {
		return lessValue(docs[i][field], docs[j][field])
	})
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	case string:
		if bv, ok := b.(string); ok {
			return av < bv
		}
	}
	// Mixed or unexpected types: compare the printed form so the order is at
	// least deterministic.
	return fmt.Sprint(a) < fmt.Sprint(b)
}
