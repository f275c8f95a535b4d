package redact

import (
	"math/rand"
	"sort"
)

// DefaultSampleSeed is the seed used for CSV row sampling.
const DefaultSampleSeed = 42

// SampleRows picks size distinct row indices out of n, deterministically for
// a given seed, and returns them ascending. All rows are returned when size
// is not positive or not smaller than n.
func SampleRows(n, size int, seed int64) []int {
	if size <= 0 || size >= n {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}

	rng := rand.New(rand.NewSource(seed))
	rows := rng.Perm(n)[:size]
	sort.Ints(rows)
	return rows
}
