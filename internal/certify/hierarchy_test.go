package certify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/certspend/internal/model"
)

func TestDefaultHierarchy_Ranks(t *testing.T) {
	h := DefaultHierarchy()
	tests := []struct {
		cert model.CertType
		rank int
	}{
		{model.CertMBE, 1},
		{model.CertMWBE, 2},
		{model.CertWBE, 3},
		{model.CertCBE, 4},
		{model.CertSEDBE, 5},
		{model.CertVOB, 6},
		{"DBE", OtherRank},
		{"", OtherRank},
	}
	for _, tt := range tests {
		t.Run(string(tt.cert), func(t *testing.T) {
			assert.Equal(t, tt.rank, h.Rank(tt.cert))
		})
	}
}

func TestDefaultHierarchy_Qualifies(t *testing.T) {
	h := DefaultHierarchy()
	for _, c := range []model.CertType{model.CertMBE, model.CertWBE, model.CertMWBE, model.CertSEDBE, model.CertCBE} {
		assert.True(t, h.Qualifies(c), "%s should qualify", c)
	}
	assert.False(t, h.Qualifies(model.CertVOB))
	assert.False(t, h.Qualifies("DBE"))
	assert.False(t, h.Qualifies(""))
}

func TestHierarchy_QualifyingTypes(t *testing.T) {
	h := DefaultHierarchy()
	assert.Equal(t, []model.CertType{
		model.CertMBE, model.CertMWBE, model.CertWBE, model.CertCBE, model.CertSEDBE,
	}, h.QualifyingTypes())
}

func TestHierarchy_Best(t *testing.T) {
	h := DefaultHierarchy()
	assert.Equal(t, model.CertMBE, h.Best(model.CertVOB, model.CertMBE, model.CertWBE))
	assert.Equal(t, model.CertVOB, h.Best("", model.CertVOB))
	assert.Equal(t, model.CertType("DBE"), h.Best("DBE", ""))
	assert.Equal(t, model.CertType(""), h.Best("", ""))
	assert.Equal(t, model.CertType(""), h.Best())
}

func TestHierarchy_WithOverrides(t *testing.T) {
	h, err := DefaultHierarchy().With([]Level{
		{Type: "dbe", Rank: 7, Qualifying: true},
		{Type: "VOB", Rank: 6, Qualifying: true},
	})
	require.NoError(t, err)

	assert.Equal(t, 7, h.Rank("DBE"))
	assert.True(t, h.Qualifies("DBE"))
	assert.True(t, h.Qualifies(model.CertVOB))

	// The original is untouched.
	assert.False(t, DefaultHierarchy().Qualifies(model.CertVOB))
}

func TestNewHierarchy_InvalidLevels(t *testing.T) {
	_, err := NewHierarchy([]Level{{Type: "", Rank: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty type")

	_, err = NewHierarchy([]Level{{Type: "MBE", Rank: 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-positive rank")
}

func TestHierarchy_Levels_Ordered(t *testing.T) {
	levels := DefaultHierarchy().Levels()
	require.Len(t, levels, 6)
	for i := 1; i < len(levels); i++ {
		assert.Less(t, levels[i-1].Rank, levels[i].Rank)
	}
}
