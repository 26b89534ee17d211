package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/kontrata/internal/contract"
)

func TestRequiredEmployment(t *testing.T) {
	r := NewResolver()
	assert.Equal(t,
		[]string{"employer_name", "employee_name", "position", "salary", "start_date"},
		r.Required(contract.CategoryEmployment))
}

func TestRequiredNeverDuplicatesOrReserved(t *testing.T) {
	r := NewResolver()
	for _, c := range contract.Categories {
		seen := map[string]bool{}
		for _, name := range r.Required(c) {
			require.False(t, seen[name], "%s duplicated in %s", name, c)
			require.False(t, Reserved[name], "%s is reserved", name)
			seen[name] = true
		}
		assert.NotEmpty(t, seen, c)
	}
}

func TestRequiredUnknownCategory(t *testing.T) {
	assert.Empty(t, NewResolver().Required(contract.Category("FRANCHISE")))
}

type failingSource struct{}

func (failingSource) Fields(contract.Category) ([]Field, error) {
	return nil, errors.New("boom")
}

func TestResolverFallsBackToStatic(t *testing.T) {
	r := NewResolver(failingSource{})
	assert.Equal(t, NewResolver().Required(contract.CategoryLease), r.Required(contract.CategoryLease))
}

func TestFileSourceOverridesAndInfersKinds(t *testing.T) {
	src, err := ParseFile([]byte(`
lease:
  - name: lessor_name
    default: "[LESSOR]"
  - name: lessor_name
    default: "[DUPLICATE]"
  - name: rental_amount
  - name: payment_terms
    default: monthly in advance
  - name: security_deposit
    default: two months
    default_kind: meaningful
  - name: special_clauses
`))
	require.NoError(t, err)

	r := NewResolver(src)
	assert.Equal(t, []string{"lessor_name", "rental_amount"}, r.Required(contract.CategoryLease))
	// categories missing from the file keep the built-in table
	assert.Equal(t, NewResolver().Required(contract.CategoryEmployment), r.Required(contract.CategoryEmployment))
}

func TestParseFileRejectsUnknownCategory(t *testing.T) {
	_, err := ParseFile([]byte("franchise:\n  - name: x\n"))
	assert.Error(t, err)
}

func TestClassifyDefault(t *testing.T) {
	cases := map[string]DefaultKind{
		"":                      DefaultNone,
		"'[EMPLOYER]'":          DefaultPlaceholder,
		"{{today}}":             DefaultToday,
		"As per company policy": DefaultMeaningful,
		"Regular":               DefaultMeaningful,
		"monthly in advance":    DefaultMeaningful,
		"Lot 12":                DefaultNone,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClassifyDefault(in), in)
	}
}

func TestKindOf(t *testing.T) {
	cases := map[string]FieldKind{
		"partner_names":        KindParties,
		"employer_name":        KindName,
		"business_address":     KindAddress,
		"salary":               KindMoney,
		"rental_amount":        KindMoney,
		"capital_contribution": KindMoney,
		"start_date":           KindDate,
		"lease_period":         KindDuration,
		"item_description":     KindDescription,
		"position":             KindTitle,
		"profit_sharing_ratio": KindOther,
	}
	for in, want := range cases {
		assert.Equal(t, want, KindOf(in), in)
	}
}
