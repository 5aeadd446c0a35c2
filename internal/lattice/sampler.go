package lattice

import "sort"

// SampleAt returns the index of the rightmost entry of times that is <= t.
// Times before the first sample clamp to 0 and times past the last sample
// clamp to len(times)-1. times must be sorted and non-empty.
func SampleAt(t float64, times []float64) int {
	i := sort.Search(len(times), func(i int) bool { return times[i] > t })
	if i == 0 {
		return 0
	}
	return i - 1
}
