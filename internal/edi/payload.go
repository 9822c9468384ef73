package edi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Additional-Code/edibridge/pkg/errorbank"
)

// Text is a JSON scalar read as text. Trading partners are inconsistent
// about quoting identifiers, so numbers and booleans decode too.
type Text string

// UnmarshalJSON accepts strings, numbers, booleans, and null.
func (t *Text) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*t = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*t = Text(v)
		return nil
	}
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return fmt.Errorf("cannot decode %s as text", previewJSON(s))
	}
	*t = Text(s)
	return nil
}

func (t Text) String() string { return string(t) }

func previewJSON(s string) string {
	if len(s) > 20 {
		return s[:20] + "..."
	}
	return s
}

// Payload is one decoded EDI 850 transmission.
type Payload struct {
	PurchaseOrderHeader *PurchaseOrderHeader `json:"PurchaseOrderHeader"`
}

// PurchaseOrderHeader carries the order-level fields. Required fields are
// pointers so the validator can distinguish absent from empty.
type PurchaseOrderHeader struct {
	PurchaseOrderNumber *Text          `json:"PurchaseOrderNumber"`
	CompanyCode         *Text          `json:"CompanyCode"`
	OrderDate           Text           `json:"OrderDate"`
	PurchaseOrder       *PurchaseOrder `json:"PurchaseOrder"`
}

// PurchaseOrder holds scheduling fields and the line items.
type PurchaseOrder struct {
	RequestedShipDate    Text      `json:"RequestedShipDate"`
	CancelDate           Text      `json:"CancelDate"`
	DepartmentNumber     Text      `json:"DepartmentNumber"`
	ReferencePOType      Text      `json:"ReferencePOType"`
	PurchaseOrderDetails LineItems `json:"PurchaseOrderDetails"`
}

// LineItems keeps track of whether the source field was present and
// array-shaped, so shape problems surface as validation errors rather than
// failing the whole decode.
type LineItems struct {
	present bool
	isArray bool
	Items   []LineItem
}

// UnmarshalJSON tolerates non-array values; the validator rejects them.
// A literal null decodes without error but is not a sequence, so it is
// flagged the same as any other non-array value.
func (l *LineItems) UnmarshalJSON(b []byte) error {
	l.present = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		l.isArray = false
		return nil
	}
	if err := json.Unmarshal(b, &l.Items); err != nil {
		l.isArray = false
		l.Items = nil
		return nil
	}
	l.isArray = true
	return nil
}

// LineItem is one PurchaseOrderDetails entry. Numeric-ish fields stay
// untyped and pass through the Normalizer.
type LineItem struct {
	VendorItemNumber Text             `json:"VendorItemNumber"`
	GTIN             Text             `json:"GTIN"`
	BuyerPartNumber  Text             `json:"BuyerPartNumber"`
	Quantity         any              `json:"Quantity"`
	UOMTypeCode      Text             `json:"UOMTypeCode"`
	UnitPrice        any              `json:"UnitPrice"`
	ColorDescription Text             `json:"ColorDescription"`
	SizeDescription  Text             `json:"SizeDescription"`
	RetailPrice      any              `json:"RetailPrice"`
	Pack             any              `json:"Pack"`
	PackSize         any              `json:"PackSize"`
	DestinationInfo  *DestinationInfo `json:"DestinationInfo"`
	BOMDetails       []BOMDetail      `json:"BOMDetails"`
}

// DestinationInfo wraps the repeating SDQ segment keys.
type DestinationInfo struct {
	SDQ map[string]any `json:"SDQ"`
}

// BOMDetail is one assortment member of a PREPACK line item.
type BOMDetail struct {
	ColorDescription Text `json:"ColorDescription"`
	SizeDescription  Text `json:"SizeDescription"`
	GTIN             Text `json:"GTIN"`
	Quantity         any  `json:"Quantity"`
	UnitPrice        any  `json:"UnitPrice"`
	RetailPrice      any  `json:"RetailPrice"`
}

// Parse decodes raw transmission content into a Payload.
func Parse(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errorbank.Parse("invalid JSON content", errorbank.WithCause(err))
	}
	return &p, nil
}
