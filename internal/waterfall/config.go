package waterfall

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Strategy method names used by the matcher instances.
const (
	MethodTaxID      = "tax_id"
	MethodB2GID      = "b2g_id"
	MethodName       = "name"
	MethodPrimeTaxID = "prime_tax_id"
	MethodPrimeName  = "prime_name"
)

// Plan lists, per matcher instance, the strategy names in priority order.
type Plan struct {
	Contract []string `yaml:"contract" json:"contract"`
	Funding  []string `yaml:"funding" json:"funding"`
	SubPrime []string `yaml:"sub_prime" json:"sub_prime"`
}

// DefaultPlan returns the built-in strategy order.
func DefaultPlan() Plan {
	return Plan{
		Contract: []string{MethodTaxID, MethodB2GID, MethodName},
		Funding:  []string{MethodTaxID, MethodName},
		SubPrime: []string{MethodPrimeTaxID, MethodPrimeName},
	}
}

// LoadPlan reads a strategy plan from a YAML file. Instances left out of the
// file keep the default order.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "waterfall: read plan %s", path)
	}

	// The YAML has a top-level "waterfall" key
	var wrapper struct {
		Waterfall Plan `yaml:"waterfall"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "waterfall: parse plan")
	}

	plan := wrapper.Waterfall
	def := DefaultPlan()
	if len(plan.Contract) == 0 {
		plan.Contract = def.Contract
	}
	if len(plan.Funding) == 0 {
		plan.Funding = def.Funding
	}
	if len(plan.SubPrime) == 0 {
		plan.SubPrime = def.SubPrime
	}

	return &plan, nil
}

// Select orders available strategies by names. An empty names list keeps
// available as-is. Unknown or repeated names are configuration errors.
func Select[T, C any](available []Strategy[T, C], names []string) ([]Strategy[T, C], error) {
	if len(names) == 0 {
		return available, nil
	}

	byName := make(map[string]Strategy[T, C], len(available))
	for _, s := range available {
		byName[s.Method] = s
	}

	out := make([]Strategy[T, C], 0, len(names))
	used := make(map[string]bool, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, eris.Errorf("waterfall: unknown strategy %q", n)
		}
		if used[n] {
			return nil, eris.Errorf("waterfall: strategy %q listed twice", n)
		}
		used[n] = true
		out = append(out, s)
	}
	return out, nil
}
