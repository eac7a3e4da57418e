// Package certify ranks registry certifications and resolves one
// authoritative certification per vendor identity.
package certify

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/certspend/internal/model"
)

// OtherRank is the rank of any certification type missing from the hierarchy.
const OtherRank = 999

// Level is one entry of the certification hierarchy. Lower ranks win ties
// during resolution; Qualifying levels count toward certified spend.
type Level struct {
	Type       model.CertType `yaml:"type" mapstructure:"type"`
	Rank       int            `yaml:"rank" mapstructure:"rank"`
	Qualifying bool           `yaml:"qualifying" mapstructure:"qualifying"`
}

// DefaultLevels is the built-in hierarchy. VOB ranks in the hierarchy but
// never qualifies.
var DefaultLevels = []Level{
	{Type: model.CertMBE, Rank: 1, Qualifying: true},
	{Type: model.CertMWBE, Rank: 2, Qualifying: true},
	{Type: model.CertWBE, Rank: 3, Qualifying: true},
	{Type: model.CertCBE, Rank: 4, Qualifying: true},
	{Type: model.CertSEDBE, Rank: 5, Qualifying: true},
	{Type: model.CertVOB, Rank: 6, Qualifying: false},
}

// Hierarchy is the ranked certification table consulted by the resolver,
// the aggregator and the calculator.
type Hierarchy struct {
	levels map[model.CertType]Level
}

// DefaultHierarchy returns the built-in hierarchy.
func DefaultHierarchy() *Hierarchy {
	h, _ := NewHierarchy(DefaultLevels)
	return h
}

// NewHierarchy builds a hierarchy from levels. Types are normalized; a type
// listed twice keeps its last entry.
func NewHierarchy(levels []Level) (*Hierarchy, error) {
	h := &Hierarchy{levels: make(map[model.CertType]Level, len(levels))}
	for _, l := range levels {
		if err := h.set(l); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// With returns a copy of h with overrides merged over its levels.
func (h *Hierarchy) With(overrides []Level) (*Hierarchy, error) {
	out := &Hierarchy{levels: make(map[model.CertType]Level, len(h.levels)+len(overrides))}
	for k, v := range h.levels {
		out.levels[k] = v
	}
	for _, l := range overrides {
		if err := out.set(l); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (h *Hierarchy) set(l Level) error {
	l.Type = model.ParseCertType(string(l.Type))
	if l.Type.IsNull() {
		return eris.New("certify: hierarchy level with empty type")
	}
	if l.Rank <= 0 {
		return eris.Errorf("certify: hierarchy level %s has non-positive rank %d", l.Type, l.Rank)
	}
	h.levels[l.Type] = l
	return nil
}

// Rank returns the hierarchy rank of t, or OtherRank when t is unknown or null.
func (h *Hierarchy) Rank(t model.CertType) int {
	if l, ok := h.levels[t]; ok {
		return l.Rank
	}
	return OtherRank
}

// Qualifies reports whether t counts toward certified spend.
func (h *Hierarchy) Qualifies(t model.CertType) bool {
	l, ok := h.levels[t]
	return ok && l.Qualifying
}

// Best returns the best-ranked non-null type among types, or the null type.
// Equal ranks keep the earliest.
func (h *Hierarchy) Best(types ...model.CertType) model.CertType {
	var best model.CertType
	bestRank := OtherRank + 1
	for _, t := range types {
		if t.IsNull() {
			continue
		}
		if r := h.Rank(t); r < bestRank {
			best, bestRank = t, r
		}
	}
	return best
}

// Levels returns the hierarchy ordered by rank, then type.
func (h *Hierarchy) Levels() []Level {
	out := make([]Level, 0, len(h.levels))
	for _, l := range h.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// QualifyingTypes returns the qualifying types ordered by rank.
func (h *Hierarchy) QualifyingTypes() []model.CertType {
	var out []model.CertType
	for _, l := range h.Levels() {
		if l.Qualifying {
			out = append(out, l.Type)
		}
	}
	return out
}
