// Package spend aggregates ledger dollars per prime and applies the
// certified-spend formula.
package spend

import (
	"github.com/sells-group/certspend/internal/certify"
	"github.com/sells-group/certspend/internal/model"
)

// Options tunes the aggregation and the formula.
type Options struct {
	// FloorAtZero clamps negative certified spend (uncertified subs larger
	// than the prime total) to zero.
	FloorAtZero bool `mapstructure:"floor_at_zero"`
	// DedupeFanout counts each ledger row once, with its best-ranked
	// certification, instead of once per matcher hit.
	DedupeFanout bool `mapstructure:"dedupe_fanout"`
}

// Calculator aggregates matched ledger rows and computes certified spend.
type Calculator struct {
	hierarchy *certify.Hierarchy
	opts      Options
}

// New creates a Calculator. A nil hierarchy uses the default one.
func New(h *certify.Hierarchy, opts Options) *Calculator {
	if h == nil {
		h = certify.DefaultHierarchy()
	}
	return &Calculator{hierarchy: h, opts: opts}
}

// CertifiedSpend applies the formula for one prime. A qualifying prime keeps
// its own total less uncertified subcontracting; any other prime earns only
// its certified subcontracting.
func (c *Calculator) CertifiedSpend(primeCert model.CertType, primeTotal float64, sub model.SubTotal) float64 {
	var v float64
	if c.hierarchy.Qualifies(primeCert) {
		v = primeTotal - sub.UncertifiedSubsTotal
	} else {
		v = sub.CertifiedSubsTotal
	}
	if c.opts.FloorAtZero && v < 0 {
		return 0
	}
	return v
}

// Calculate produces one CertifiedSpendRecord per prime total, in input
// order. A prime without a SubTotal is treated as having no subcontracting.
func (c *Calculator) Calculate(totals []model.AgencyPrimeTotal, subs []model.SubTotal) []model.CertifiedSpendRecord {
	byKey := make(map[model.PrimeKey]model.SubTotal, len(subs))
	for _, s := range subs {
		byKey[s.Key()] = s
	}

	out := make([]model.CertifiedSpendRecord, 0, len(totals))
	for _, t := range totals {
		out = append(out, model.CertifiedSpendRecord{
			Agency:         t.Agency,
			PrimeVendor:    t.PrimeVendor,
			CertifiedSpend: c.CertifiedSpend(t.CertificationType, t.PrimeTotalAmount, byKey[t.Key()]),
		})
	}
	return out
}

// Options returns the calculator options.
func (c *Calculator) Options() Options {
	return c.opts
}

// Qualifies reports whether t counts toward certified spend.
func (c *Calculator) Qualifies(t model.CertType) bool {
	return c.hierarchy.Qualifies(t)
}
