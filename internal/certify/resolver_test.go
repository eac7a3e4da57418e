package certify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/certspend/internal/model"
)

func vendor(name, taxID string, cert model.CertType, status string) model.VendorRecord {
	return model.VendorRecord{
		BusinessName:        name,
		TaxID:               taxID,
		CertificationType:   cert,
		CertificationStatus: status,
	}
}

func TestResolve_StatusDominatesHierarchy(t *testing.T) {
	res := NewResolver(nil).Resolve([]model.VendorRecord{
		vendor("Acme LLC", "11-1111111", model.CertMWBE, "Active"),
		vendor("ACME", "11-1111111", model.CertMBE, "Inactive"),
	})

	require.Len(t, res.Vendors, 1)
	assert.Equal(t, model.CertMWBE, res.Vendors[0].CertificationType)
	assert.Equal(t, "Active", res.Vendors[0].CertificationStatus)
	assert.Equal(t, 2, res.Vendors[0].Candidates)
}

func TestResolve_HierarchyBreaksTiesAmongActive(t *testing.T) {
	res := NewResolver(nil).Resolve([]model.VendorRecord{
		vendor("Acme", "1", model.CertVOB, "Active"),
		vendor("Acme", "1", model.CertWBE, "Active"),
		vendor("Acme", "1", model.CertMBE, "active"),
	})

	require.Len(t, res.Vendors, 1)
	assert.Equal(t, model.CertMBE, res.Vendors[0].CertificationType)
	assert.Equal(t, 1, res.Vendors[0].Rank)
}

func TestResolve_UnknownTypeRanksLast(t *testing.T) {
	res := NewResolver(nil).Resolve([]model.VendorRecord{
		vendor("Acme", "1", "DBE", "Active"),
		vendor("Acme", "1", model.CertVOB, "Active"),
	})

	require.Len(t, res.Vendors, 1)
	assert.Equal(t, model.CertVOB, res.Vendors[0].CertificationType)
}

func TestResolve_InactiveOnlyGroupExcluded(t *testing.T) {
	res := NewResolver(nil).Resolve([]model.VendorRecord{
		vendor("Dormant Co", "2", model.CertMBE, "Expired"),
		vendor("Dormant Company", "2", model.CertWBE, "Inactive"),
	})

	assert.Empty(t, res.Vendors)
	assert.Equal(t, 1, res.InactiveOnly)
}

func TestResolve_GroupsByTaxIDAndName(t *testing.T) {
	res := NewResolver(nil).Resolve([]model.VendorRecord{
		vendor("Acme", "1", model.CertMBE, "Active"),
		vendor("Acme", "2", model.CertWBE, "Active"),
		vendor("Acme Inc", "", model.CertCBE, "Active"),
		vendor("Acme, Incorporated", "", model.CertSEDBE, "Active"),
	})

	require.Len(t, res.Vendors, 3)
	assert.Equal(t, "1", res.Vendors[0].TaxID)
	assert.Equal(t, "2", res.Vendors[1].TaxID)
	assert.Equal(t, "", res.Vendors[2].TaxID)
	assert.Equal(t, model.CertCBE, res.Vendors[2].CertificationType)
	assert.Equal(t, "ACME", res.Vendors[2].CanonicalName)
}

func TestResolve_AtMostOnePerIdentity(t *testing.T) {
	var records []model.VendorRecord
	for range 10 {
		records = append(records, vendor("Repeat Vendor LLC", "9", model.CertWBE, "Active"))
	}
	res := NewResolver(nil).Resolve(records)

	require.Len(t, res.Vendors, 1)
	assert.Equal(t, 10, res.Vendors[0].Candidates)
}

func TestResolve_UnkeyedRowsSkipped(t *testing.T) {
	res := NewResolver(nil).Resolve([]model.VendorRecord{
		vendor("", "", model.CertMBE, "Active"),
		vendor("LLC", "", model.CertMBE, "Active"),
		vendor("", "5", model.CertMBE, "Active"),
	})

	assert.Equal(t, 2, res.Unkeyed)
	require.Len(t, res.Vendors, 1)
	assert.Equal(t, "5", res.Vendors[0].TaxID)
	assert.Equal(t, "", res.Vendors[0].CanonicalName)
}

func TestResolve_RegistryOrderBreaksFullTies(t *testing.T) {
	a := vendor("Acme", "1", model.CertMBE, "Active")
	a.B2GID = "first"
	b := vendor("ACME", "1", model.CertMBE, "Active")
	b.B2GID = "second"

	res := NewResolver(nil).Resolve([]model.VendorRecord{a, b})
	require.Len(t, res.Vendors, 1)
	assert.Equal(t, "first", res.Vendors[0].B2GID)
}

func TestResolve_CustomHierarchy(t *testing.T) {
	h, err := NewHierarchy([]Level{
		{Type: model.CertWBE, Rank: 1, Qualifying: true},
		{Type: model.CertMBE, Rank: 2, Qualifying: true},
	})
	require.NoError(t, err)

	res := NewResolver(h).Resolve([]model.VendorRecord{
		vendor("Acme", "1", model.CertMBE, "Active"),
		vendor("Acme", "1", model.CertWBE, "Active"),
	})
	require.Len(t, res.Vendors, 1)
	assert.Equal(t, model.CertWBE, res.Vendors[0].CertificationType)
}

func TestResolve_Empty(t *testing.T) {
	res := NewResolver(nil).Resolve(nil)
	assert.Empty(t, res.Vendors)
	assert.Zero(t, res.InactiveOnly)
	assert.Zero(t, res.Unkeyed)
}
