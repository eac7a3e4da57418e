// Package match links ledger and funding rows to certified vendors and
// subcontractor lines to their primes through ordered exact-key waterfalls.
package match

import (
	"strings"

	"github.com/sells-group/certspend/internal/waterfall"
)

// keySep joins the parts of a composite key. It cannot appear in a canonical
// name.
const keySep = "\x1f"

// Matcher runs the three matcher instances with the strategy order of a plan.
type Matcher struct {
	plan waterfall.Plan
}

// New creates a Matcher. Empty plan entries fall back to the default order.
func New(plan waterfall.Plan) *Matcher {
	def := waterfall.DefaultPlan()
	if len(plan.Contract) == 0 {
		plan.Contract = def.Contract
	}
	if len(plan.Funding) == 0 {
		plan.Funding = def.Funding
	}
	if len(plan.SubPrime) == 0 {
		plan.SubPrime = def.SubPrime
	}
	return &Matcher{plan: plan}
}

// Plan returns the effective strategy plan.
func (m *Matcher) Plan() waterfall.Plan {
	return m.plan
}

// one wraps a single key, dropping it when empty.
func one(k string) []string {
	if k == "" {
		return nil
	}
	return []string{k}
}

// coKey joins parts into one composite key. Any empty part yields the empty
// (non-joining) key.
func coKey(parts ...string) string {
	for _, p := range parts {
		if p == "" {
			return ""
		}
	}
	return strings.Join(parts, keySep)
}

// cleanID trims an identifier for exact comparison.
func cleanID(s string) string {
	return strings.TrimSpace(s)
}
