package sweep

import "sort"

// Report is the ranked view of a run's accepted combinations
type Report struct {
	Combinations []Combination `json:"combinations"` // sorted by token
	Best         *Combination  `json:"best"`         // nil when nothing was accepted
}

// Found reports whether any connection was found
func (r Report) Found() bool {
	return r.Best != nil
}

// Rank orders accepted combinations by token and picks the one with the
// highest baud rate. Rank does not modify accepted.
//
// The sort is stable and uses the token only, so combinations sharing a
// token keep their probe order. On equal baud rates the first one seen wins.
func Rank(accepted []Combination) Report {
	sorted := make([]Combination, len(accepted))
	copy(sorted, accepted)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Token < sorted[j].Token
	})

	var best *Combination
	for i := range accepted {
		if best == nil || accepted[i].BaudRate > best.BaudRate {
			c := accepted[i]
			best = &c
		}
	}

	return Report{Combinations: sorted, Best: best}
}
