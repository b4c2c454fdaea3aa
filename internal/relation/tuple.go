package relation

import (
	"strconv"
	"strings"
)

// encodeTuple turns an ordered int tuple into a map key. Order matters —
// the tuple position encodes which domain an entry belongs to, so this is
// deliberately not a set-style (order-insensitive) hash (§9).
func encodeTuple(items []int) string {
	var b strings.Builder
	for i, x := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(x))
	}
	return b.String()
}

func cloneInts(items []int) []int {
	cp := make([]int, len(items))
	copy(cp, items)
	return cp
}
