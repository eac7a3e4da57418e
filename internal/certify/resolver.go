package certify

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/certspend/internal/model"
	"github.com/sells-group/certspend/internal/resolve"
)

// noTaxID stands in for a missing tax_id in the grouping key so that
// registry rows without one still group by canonical name.
const noTaxID = "\x00no-tax-id"

// identity is the (tax_id-or-sentinel, canonical_name) grouping key.
type identity struct {
	taxID string
	name  string
}

// Resolution is the outcome of certification resolution.
type Resolution struct {
	Vendors []model.CertifiedVendor
	// InactiveOnly counts identities whose best candidate was not active.
	InactiveOnly int
	// Unkeyed counts registry rows with neither a tax_id nor a canonical name.
	Unkeyed int
}

// Resolver picks one certification per vendor identity.
type Resolver struct {
	hierarchy *Hierarchy
}

// NewResolver creates a Resolver ranking certifications with h. A nil h uses
// the default hierarchy.
func NewResolver(h *Hierarchy) *Resolver {
	if h == nil {
		h = DefaultHierarchy()
	}
	return &Resolver{hierarchy: h}
}

type candidate struct {
	rec   model.VendorRecord
	name  string
	rank  int
	order int
}

// Resolve groups registry rows by identity, ranks each group by status
// (active first) then hierarchy rank, and keeps the winner only when it is
// active. Output order follows the first appearance of each identity.
func (r *Resolver) Resolve(records []model.VendorRecord) Resolution {
	log := zap.L().With(zap.String("component", "certify.resolver"))

	var res Resolution
	groups := make(map[identity][]candidate)
	var order []identity

	for i, rec := range records {
		taxID := strings.TrimSpace(rec.TaxID)
		name := resolve.Canonicalize(rec.BusinessName)
		if taxID == "" && name == "" {
			res.Unkeyed++
			continue
		}

		key := identity{taxID: taxID, name: name}
		if taxID == "" {
			key.taxID = noTaxID
		}

		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], candidate{
			rec:   rec,
			name:  name,
			rank:  r.hierarchy.Rank(rec.CertificationType),
			order: i,
		})
	}

	for _, key := range order {
		cands := groups[key]
		winner := r.pick(cands)
		if !winner.rec.IsActive() {
			res.InactiveOnly++
			continue
		}

		res.Vendors = append(res.Vendors, model.CertifiedVendor{
			TaxID:               strings.TrimSpace(winner.rec.TaxID),
			CanonicalName:       winner.name,
			BusinessName:        strings.TrimSpace(winner.rec.BusinessName),
			B2GID:               strings.TrimSpace(winner.rec.B2GID),
			CertificationType:   winner.rec.CertificationType,
			CertificationStatus: winner.rec.CertificationStatus,
			Rank:                winner.rank,
			Candidates:          len(cands),
		})
	}

	log.Debug("certification resolution complete",
		zap.Int("records", len(records)),
		zap.Int("identities", len(order)),
		zap.Int("certified", len(res.Vendors)),
		zap.Int("inactive_only", res.InactiveOnly),
		zap.Int("unkeyed", res.Unkeyed),
	)

	return res
}

// pick returns the rank-1 candidate: active before inactive, then lower
// hierarchy rank, then registry order.
func (r *Resolver) pick(cands []candidate) candidate {
	sorted := make([]candidate, len(cands))
	copy(sorted, cands)
	sort.SliceStable(sorted, func(i, j int) bool {
		ai, aj := sorted[i].rec.IsActive(), sorted[j].rec.IsActive()
		if ai != aj {
			return ai
		}
		if sorted[i].rank != sorted[j].rank {
			return sorted[i].rank < sorted[j].rank
		}
		return sorted[i].order < sorted[j].order
	})
	return sorted[0]
}
