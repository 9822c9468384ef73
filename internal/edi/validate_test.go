package edi

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/edibridge/pkg/errorbank"
)

func mustParse(t *testing.T, raw string) *Payload {
	t.Helper()
	p, err := Parse([]byte(raw))
	require.NoError(t, err)
	return p
}

func TestParse(t *testing.T) {
	t.Run("malformed JSON is a parse error", func(t *testing.T) {
		_, err := Parse([]byte(`{"PurchaseOrderHeader":`))
		require.Error(t, err)
		assert.Equal(t, errorbank.KindParse, errorbank.From(err).Kind())
	})

	t.Run("unquoted identifiers decode as text", func(t *testing.T) {
		p := mustParse(t, `{"PurchaseOrderHeader":{"PurchaseOrderNumber":15826580}}`)
		require.NotNil(t, p.PurchaseOrderHeader.PurchaseOrderNumber)
		assert.Equal(t, "15826580", p.PurchaseOrderHeader.PurchaseOrderNumber.String())
	})
}

func TestValidate(t *testing.T) {
	valid := `{
		"PurchaseOrderHeader": {
			"PurchaseOrderNumber": "15826580",
			"CompanyCode": "ACME",
			"PurchaseOrder": {"PurchaseOrderDetails": []}
		}
	}`

	t.Run("valid payload passes", func(t *testing.T) {
		assert.NoError(t, Validate(mustParse(t, valid)))
	})

	cases := []struct {
		name    string
		raw     string
		wantMsg string
	}{
		{
			"missing header",
			`{}`,
			"missing required field: PurchaseOrderHeader",
		},
		{
			"missing po number",
			`{"PurchaseOrderHeader":{"CompanyCode":"ACME","PurchaseOrder":{"PurchaseOrderDetails":[]}}}`,
			"missing required field: PurchaseOrderHeader.PurchaseOrderNumber",
		},
		{
			"missing company code",
			`{"PurchaseOrderHeader":{"PurchaseOrderNumber":"1","PurchaseOrder":{"PurchaseOrderDetails":[]}}}`,
			"missing required field: PurchaseOrderHeader.CompanyCode",
		},
		{
			"missing purchase order",
			`{"PurchaseOrderHeader":{"PurchaseOrderNumber":"1","CompanyCode":"ACME"}}`,
			"missing required field: PurchaseOrderHeader.PurchaseOrder",
		},
		{
			"missing details",
			`{"PurchaseOrderHeader":{"PurchaseOrderNumber":"1","CompanyCode":"ACME","PurchaseOrder":{}}}`,
			"missing required field: PurchaseOrder.PurchaseOrderDetails",
		},
		{
			"details not an array",
			`{"PurchaseOrderHeader":{"PurchaseOrderNumber":"1","CompanyCode":"ACME","PurchaseOrder":{"PurchaseOrderDetails":"oops"}}}`,
			"PurchaseOrderDetails must be an array",
		},
		{
			"null details rejected",
			`{"PurchaseOrderHeader":{"PurchaseOrderNumber":"1","CompanyCode":"ACME","PurchaseOrder":{"PurchaseOrderDetails":null}}}`,
			"PurchaseOrderDetails must be an array",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(mustParse(t, tc.raw))
			require.Error(t, err)
			appErr := errorbank.From(err)
			assert.Equal(t, errorbank.KindValidation, appErr.Kind())
			assert.Equal(t, tc.wantMsg, appErr.Message())
		})
	}

	t.Run("po number over length limit", func(t *testing.T) {
		long := strings.Repeat("9", 51)
		raw := fmt.Sprintf(`{"PurchaseOrderHeader":{"PurchaseOrderNumber":"%s","CompanyCode":"ACME","PurchaseOrder":{"PurchaseOrderDetails":[]}}}`, long)
		err := Validate(mustParse(t, raw))
		require.Error(t, err)
		assert.Equal(t, errorbank.KindValidation, errorbank.From(err).Kind())
		assert.Contains(t, err.Error(), "exceeds maximum length")
	})

	t.Run("po number at length limit passes", func(t *testing.T) {
		exact := strings.Repeat("9", 50)
		raw := fmt.Sprintf(`{"PurchaseOrderHeader":{"PurchaseOrderNumber":"%s","CompanyCode":"ACME","PurchaseOrder":{"PurchaseOrderDetails":[]}}}`, exact)
		assert.NoError(t, Validate(mustParse(t, raw)))
	})

	t.Run("excessive line items", func(t *testing.T) {
		items := make([]string, 10_001)
		for i := range items {
			items[i] = `{}`
		}
		raw := fmt.Sprintf(`{"PurchaseOrderHeader":{"PurchaseOrderNumber":"1","CompanyCode":"ACME","PurchaseOrder":{"PurchaseOrderDetails":[%s]}}}`, strings.Join(items, ","))
		err := Validate(mustParse(t, raw))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "excessive line items")
	})
}
