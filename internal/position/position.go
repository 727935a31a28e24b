// Package position computes fractional ordering keys for cards within a
// column. New insertions get a key strictly between their neighbors, so a
// single drag never renumbers the whole column; once adjacent keys get too
// dense the column is reindexed in one batch.
package position

const (
	// Step is the default spacing between freshly indexed keys.
	Step = 1024

	// MinGap is the smallest adjacent gap tolerated before a reindex.
	MinGap = 8
)

// Compute returns an ordering key for a card inserted between prev and next.
// A nil neighbor means the card is first/last in the column. The midpoint is
// rounded toward prev.
func Compute(prev, next *int) int {
	switch {
	case prev == nil && next == nil:
		return Step
	case prev == nil:
		return *next - Step
	case next == nil:
		return *prev + Step
	}
	gap := *next - *prev
	return *prev + gap/2
}

// NeedsReindex reports whether any adjacent gap in the sorted key list has
// collapsed to MinGap or below.
func NeedsReindex(sorted []int) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i]-sorted[i-1] <= MinGap {
			return true
		}
	}
	return false
}

// Reindex assigns evenly spaced keys to the given ids, preserving order.
func Reindex(idsInOrder []int64) map[int64]int {
	updates := make(map[int64]int, len(idsInOrder))
	p := Step
	for _, id := range idsInOrder {
		updates[id] = p
		p += Step
	}
	return updates
}
