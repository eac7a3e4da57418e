// Package waterfall implements a priority-ordered, multi-strategy exact-key
// matcher. Each strategy only sees the targets left unmatched by the
// strategies before it.
package waterfall

// Unmatched is the method recorded for targets no strategy could match.
const Unmatched = "unmatched"

// Strategy is one exact-key join of a waterfall. TargetKeys and CandidateKeys
// return the join keys of a row; empty keys never participate in a join, so a
// row returning no non-empty key is treated as missing its key.
type Strategy[T, C any] struct {
	Method        string
	TargetKeys    func(T) []string
	CandidateKeys func(C) []string
}

// Match is the outcome for one target. Hits are candidate indices in
// candidate order; several hits mean the target fans out to several rows.
type Match struct {
	Method string `json:"method"`
	Hits   []int  `json:"hits,omitempty"`
}

// Matched reports whether any strategy produced a hit.
func (m Match) Matched() bool {
	return len(m.Hits) > 0
}

// PassStats counts what happened during one strategy pass.
type PassStats struct {
	Method string `json:"method"`
	// Attempted is the number of targets still unmatched when the pass began.
	Attempted int `json:"attempted"`
	Matched   int `json:"matched"`
	// Ambiguous counts matched targets with more than one hit.
	Ambiguous int `json:"ambiguous"`
	// MissingKey counts attempted targets with no usable key for the pass.
	MissingKey int `json:"missing_key"`
}

// Result is the outcome of a waterfall run.
type Result struct {
	Matches   []Match     `json:"matches"`
	Passes    []PassStats `json:"passes"`
	Unmatched int         `json:"unmatched"`
}

// MethodCounts returns the number of targets tagged with each method,
// including Unmatched.
func (r *Result) MethodCounts() map[string]int {
	out := make(map[string]int, len(r.Passes)+1)
	for _, m := range r.Matches {
		out[m.Method]++
	}
	return out
}
