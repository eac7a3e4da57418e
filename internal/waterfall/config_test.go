package waterfall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPlan(t *testing.T) {
	yaml := `
waterfall:
  contract: [name, tax_id]
  sub_prime:
    - prime_name
`
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	plan, err := LoadPlan(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "tax_id"}, plan.Contract)
	assert.Equal(t, []string{"prime_name"}, plan.SubPrime)
	// Funding was omitted and keeps the default.
	assert.Equal(t, DefaultPlan().Funding, plan.Funding)
}

func TestLoadPlan_FileNotFound(t *testing.T) {
	_, err := LoadPlan("/nonexistent/plan.yaml")
	assert.Error(t, err)
}

func TestLoadPlan_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("waterfall: [unterminated"), 0644))

	_, err := LoadPlan(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "waterfall: parse plan")
}

func TestDefaultPlan(t *testing.T) {
	plan := DefaultPlan()
	assert.Equal(t, []string{MethodTaxID, MethodB2GID, MethodName}, plan.Contract)
	assert.Equal(t, []string{MethodTaxID, MethodName}, plan.Funding)
	assert.Equal(t, []string{MethodPrimeTaxID, MethodPrimeName}, plan.SubPrime)
}

func TestSelect(t *testing.T) {
	available := []Strategy[string, string]{
		{Method: "a"}, {Method: "b"}, {Method: "c"},
	}

	got, err := Select(available, []string{"c", "a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Method)
	assert.Equal(t, "a", got[1].Method)

	got, err = Select(available, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSelect_Errors(t *testing.T) {
	available := []Strategy[string, string]{{Method: "a"}}

	_, err := Select(available, []string{"fuzzy"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown strategy "fuzzy"`)

	_, err = Select(available, []string{"a", "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listed twice")
}
