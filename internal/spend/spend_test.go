package spend

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/certspend/internal/model"
)

func TestCertifiedSpend_QualifyingPrime(t *testing.T) {
	c := New(nil, Options{})
	assert.Equal(t, 85000.0, c.CertifiedSpend(model.CertMBE, 100000, model.SubTotal{UncertifiedSubsTotal: 15000}))
	assert.Equal(t, 100000.0, c.CertifiedSpend(model.CertMBE, 100000, model.SubTotal{}))
}

func TestCertifiedSpend_NonQualifyingPrime(t *testing.T) {
	c := New(nil, Options{})
	sub := model.SubTotal{CertifiedSubsTotal: 20000, UncertifiedSubsTotal: 5000}
	assert.Equal(t, 20000.0, c.CertifiedSpend("", 100000, sub))
	assert.Equal(t, 20000.0, c.CertifiedSpend("", 1, sub))
	assert.Equal(t, 20000.0, c.CertifiedSpend(model.CertVOB, 100000, sub))
}

func TestCertifiedSpend_Floor(t *testing.T) {
	sub := model.SubTotal{UncertifiedSubsTotal: 150}

	assert.Equal(t, -50.0, New(nil, Options{}).CertifiedSpend(model.CertWBE, 100, sub))
	assert.Equal(t, 0.0, New(nil, Options{FloorAtZero: true}).CertifiedSpend(model.CertWBE, 100, sub))
}

func TestCalculate_MissingSubTotalIsZero(t *testing.T) {
	c := New(nil, Options{})
	totals := []model.AgencyPrimeTotal{
		{Agency: "DOT", PrimeVendor: "Acme", PrimeTotalAmount: 500, CertificationType: model.CertMBE},
		{Agency: "DOT", PrimeVendor: "Beta", PrimeTotalAmount: 800},
	}
	subs := []model.SubTotal{
		{Agency: "DOT", PrimeVendor: "Beta", CertifiedSubsTotal: 120, UncertifiedSubsTotal: 30},
	}

	got := c.Calculate(totals, subs)
	assert.Equal(t, []model.CertifiedSpendRecord{
		{Agency: "DOT", PrimeVendor: "Acme", CertifiedSpend: 500},
		{Agency: "DOT", PrimeVendor: "Beta", CertifiedSpend: 120},
	}, got)
}

func line(row int, agency, prime, name string, role model.VendorRole, amount float64, cert model.CertType, method model.MatchMethod) model.MatchedContractLine {
	return model.MatchedContractLine{
		ContractLineItem: model.ContractLineItem{
			Row:          row,
			Agency:       agency,
			PrimeVendor:  prime,
			BusinessName: name,
			Role:         role,
			AmountPaid:   &amount,
		},
		CertificationType: cert,
		MatchMethod:       method,
	}
}

func TestAggregatePrimes(t *testing.T) {
	c := New(nil, Options{})
	l3 := line(3, "DOT", "", "Beta", model.RolePrime, 0, "", model.MatchUnmatched)
	l3.AmountPaid = nil
	l3.TaxID = " 77 "

	lines := []model.MatchedContractLine{
		line(1, "DOT", "Acme", "Acme", model.RolePrime, 100, model.CertWBE, model.MatchName),
		line(2, "DOT", "Acme", "Acme", model.RolePrime, 50, model.CertMBE, model.MatchTaxID),
		l3,
		line(4, "DOT", "Acme", "Sub Co", model.RoleSub, 999, model.CertMBE, model.MatchTaxID),
		line(5, "DOT", "Acme", "Odd", model.RoleUnknown, 999, "", model.MatchUnmatched),
	}
	lines[1].MatchedTaxID = "11"

	got := c.AggregatePrimes(lines)
	assert.Len(t, got, 2)

	assert.Equal(t, "Acme", got[0].PrimeVendor)
	assert.Equal(t, 150.0, got[0].PrimeTotalAmount)
	assert.Equal(t, model.CertMBE, got[0].CertificationType)
	assert.Equal(t, model.MatchTaxID, got[0].MatchMethod)
	assert.Equal(t, "11", got[0].ResolvedTaxID)
	assert.Equal(t, 2, got[0].RowCount)

	// Blank prime_vendor on a PRIME row falls back to its business name.
	assert.Equal(t, "Beta", got[1].PrimeVendor)
	assert.Equal(t, 0.0, got[1].PrimeTotalAmount)
	assert.True(t, got[1].CertificationType.IsNull())
	assert.Equal(t, model.MatchUnmatched, got[1].MatchMethod)
	assert.Equal(t, "77", got[1].ResolvedTaxID)
}

func TestAggregatePrimes_FanOut(t *testing.T) {
	lines := []model.MatchedContractLine{
		line(1, "DOT", "Acme", "Acme", model.RolePrime, 100, model.CertVOB, model.MatchName),
		line(1, "DOT", "Acme", "Acme", model.RolePrime, 100, model.CertMBE, model.MatchName),
	}

	kept := New(nil, Options{}).AggregatePrimes(lines)
	assert.Equal(t, 200.0, kept[0].PrimeTotalAmount)
	assert.Equal(t, 1, kept[0].RowCount)

	deduped := New(nil, Options{DedupeFanout: true}).AggregatePrimes(lines)
	assert.Equal(t, 100.0, deduped[0].PrimeTotalAmount)
	assert.Equal(t, model.CertMBE, deduped[0].CertificationType)
}

func link(l model.MatchedContractLine, agency, prime string, method model.MatchMethod) model.SubLink {
	return model.SubLink{Line: l, Prime: model.PrimeKey{Agency: agency, PrimeVendor: prime}, Method: method}
}

func TestAggregateSubs_QualifyingSplit(t *testing.T) {
	c := New(nil, Options{})
	links := []model.SubLink{
		link(line(1, "DOT", "Acme", "S1", model.RoleSub, 100, model.CertMBE, model.MatchTaxID), "DOT", "Acme", model.MatchPrimeTaxID),
		link(line(2, "DOT", "Acme", "S2", model.RoleSub, 40, model.CertVOB, model.MatchName), "DOT", "Acme", model.MatchPrimeName),
		link(line(3, "DOT", "Acme", "S3", model.RoleSub, 10, "", model.MatchUnmatched), "DOT", "Acme", model.MatchPrimeName),
		link(line(4, "DOT", "Ghost", "S4", model.RoleSub, 7, model.CertMBE, model.MatchTaxID), "", "", model.MatchUnmatched),
	}

	got := c.AggregateSubs(links)
	assert.Equal(t, []model.SubTotal{
		{Agency: "DOT", PrimeVendor: "Acme", CertifiedSubsTotal: 100, UncertifiedSubsTotal: 50, SubCount: 3},
	}, got)
}

func TestAggregateSubs_AgencyIsolation(t *testing.T) {
	c := New(nil, Options{})
	links := []model.SubLink{
		link(line(1, "A", "Acme", "S1", model.RoleSub, 100, model.CertMBE, model.MatchTaxID), "A", "Acme", model.MatchPrimeName),
		link(line(2, "B", "Acme", "S2", model.RoleSub, 30, "", model.MatchUnmatched), "B", "Acme", model.MatchPrimeName),
	}

	got := c.AggregateSubs(links)
	assert.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].CertifiedSubsTotal)
	assert.Zero(t, got[0].UncertifiedSubsTotal)
	assert.Zero(t, got[1].CertifiedSubsTotal)
	assert.Equal(t, 30.0, got[1].UncertifiedSubsTotal)
}

func TestAggregateSubs_Dedupe(t *testing.T) {
	l := line(1, "DOT", "Acme", "S1", model.RoleSub, 100, model.CertVOB, model.MatchName)
	l2 := l
	l2.CertificationType = model.CertWBE
	links := []model.SubLink{
		link(l, "DOT", "Acme", model.MatchPrimeName),
		link(l2, "DOT", "Acme", model.MatchPrimeName),
	}

	kept := New(nil, Options{}).AggregateSubs(links)
	assert.Equal(t, 100.0, kept[0].CertifiedSubsTotal)
	assert.Equal(t, 100.0, kept[0].UncertifiedSubsTotal)
	assert.Equal(t, 2, kept[0].SubCount)

	deduped := New(nil, Options{DedupeFanout: true}).AggregateSubs(links)
	assert.Equal(t, 100.0, deduped[0].CertifiedSubsTotal)
	assert.Zero(t, deduped[0].UncertifiedSubsTotal)
	assert.Equal(t, 1, deduped[0].SubCount)
}

func TestOrphanSubs(t *testing.T) {
	c := New(nil, Options{})
	links := []model.SubLink{
		link(line(1, " DOT ", "Ghost LLC ", "S1", model.RoleSub, 25, model.CertMBE, model.MatchTaxID), "", "", model.MatchUnmatched),
		link(line(2, "DOT", "Ghost LLC", "S2", model.RoleSub, 5, "", model.MatchUnmatched), "", "", model.MatchUnmatched),
		link(line(3, "DOT", "Acme", "S3", model.RoleSub, 99, "", model.MatchUnmatched), "DOT", "Acme", model.MatchPrimeName),
	}

	got := c.OrphanSubs(links)
	assert.Equal(t, []model.SubTotal{
		{Agency: "DOT", PrimeVendor: "Ghost LLC", CertifiedSubsTotal: 25, UncertifiedSubsTotal: 5, SubCount: 2},
	}, got)
}
