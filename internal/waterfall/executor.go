package waterfall

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Run matches targets against candidates with strategies in order. A target
// hit by a strategy keeps every hit of that strategy and is withheld from the
// strategies after it. Targets without any hit end with method Unmatched.
//
// The context is checked between passes only; each pass is a barrier.
func Run[T, C any](ctx context.Context, targets []T, candidates []C, strategies []Strategy[T, C]) (*Result, error) {
	log := zap.L().With(zap.String("component", "waterfall"))

	res := &Result{Matches: make([]Match, len(targets))}

	pending := make([]int, len(targets))
	for i := range targets {
		pending[i] = i
	}

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "waterfall: before pass %s", s.Method)
		}
		if s.TargetKeys == nil || s.CandidateKeys == nil {
			return nil, eris.Errorf("waterfall: strategy %q has no key functions", s.Method)
		}

		stats := PassStats{Method: s.Method, Attempted: len(pending)}
		if len(pending) == 0 {
			res.Passes = append(res.Passes, stats)
			continue
		}

		index := buildIndex(candidates, s.CandidateKeys)

		remaining := pending[:0:0]
		for _, ti := range pending {
			keys := nonEmpty(s.TargetKeys(targets[ti]))
			if len(keys) == 0 {
				stats.MissingKey++
				remaining = append(remaining, ti)
				continue
			}

			hits := lookup(index, keys)
			if len(hits) == 0 {
				remaining = append(remaining, ti)
				continue
			}

			res.Matches[ti] = Match{Method: s.Method, Hits: hits}
			stats.Matched++
			if len(hits) > 1 {
				stats.Ambiguous++
				log.Debug("ambiguous match",
					zap.String("method", s.Method),
					zap.Int("target", ti),
					zap.Int("hits", len(hits)),
				)
			}
		}

		if stats.Ambiguous > 0 {
			log.Warn("strategy produced multiple hits for some targets",
				zap.String("method", s.Method),
				zap.Int("ambiguous", stats.Ambiguous),
			)
		}

		res.Passes = append(res.Passes, stats)
		pending = remaining
	}

	for _, ti := range pending {
		res.Matches[ti] = Match{Method: Unmatched}
	}
	res.Unmatched = len(pending)

	return res, nil
}

// buildIndex maps each non-empty candidate key to the candidates carrying it,
// in candidate order.
func buildIndex[C any](candidates []C, keys func(C) []string) map[string][]int {
	index := make(map[string][]int, len(candidates))
	for ci, c := range candidates {
		for _, k := range dedupe(nonEmpty(keys(c))) {
			index[k] = append(index[k], ci)
		}
	}
	return index
}

// lookup returns the union of candidates carrying any of keys, ordered by
// candidate index.
func lookup(index map[string][]int, keys []string) []int {
	if len(keys) == 1 {
		return slices.Clone(index[keys[0]])
	}

	seen := make(map[int]struct{})
	var hits []int
	for _, k := range keys {
		for _, ci := range index[k] {
			if _, ok := seen[ci]; ok {
				continue
			}
			seen[ci] = struct{}{}
			hits = append(hits, ci)
		}
	}
	slices.Sort(hits)
	return hits
}

func nonEmpty(keys []string) []string {
	out := keys[:0:0]
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

func dedupe(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
