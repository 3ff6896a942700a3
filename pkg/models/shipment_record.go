package models

import (
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
)

// DeliveryPreference is the receiver's declared address type. The zero value means absent.
type DeliveryPreference string

const (
	DeliveryPreferenceNone        DeliveryPreference = ""
	DeliveryPreferenceResidential DeliveryPreference = "residential"
	DeliveryPreferenceCommercial  DeliveryPreference = "commercial"
)

// ParseDeliveryPreference maps an upstream value to the enum. Unknown values are absent.
func ParseDeliveryPreference(s string) DeliveryPreference {
	switch DeliveryPreference(strings.ToLower(strings.TrimSpace(s))) {
	case DeliveryPreferenceResidential:
		return DeliveryPreferenceResidential
	case DeliveryPreferenceCommercial:
		return DeliveryPreferenceCommercial
	default:
		return DeliveryPreferenceNone
	}
}

// AddressSuffix is the marker appended to the composed address line
func (p DeliveryPreference) AddressSuffix() string {
	switch p {
	case DeliveryPreferenceResidential:
		return " (R)"
	case DeliveryPreferenceCommercial:
		return " (C)"
	default:
		return ""
	}
}

// Place is an id+name pair from the upstream address block
type Place struct {
	ID   string
	Name string
}

type Address struct {
	AddressLine        string
	StreetName         string
	StreetNumber       string
	ZipCode            string
	City               Place
	State              Place
	Country            Place
	Neighborhood       Place
	Municipality       Place
	Latitude           sql.NullFloat64
	Longitude          sql.NullFloat64
	Comment            string
	DeliveryPreference DeliveryPreference
}

// ComposedLine is the address line as stored on the shipment row
func (a Address) ComposedLine() string {
	return a.AddressLine + a.DeliveryPreference.AddressSuffix()
}

type Logistics struct {
	// Weight is never absent; missing weights are 0.
	Weight         float64
	BaseCost       sql.NullFloat64
	DeclaredCost   sql.NullFloat64
	TrackingMethod string
	TrackingNumber string
	CreatedAt      sql.NullTime
}

type ShippingOption struct {
	ID                     string
	MethodID               string
	Name                   string
	CurrencyID             string
	Cost                   sql.NullFloat64
	ListCost               sql.NullFloat64
	EstimatedDelivery      sql.NullTime
	EstimatedDeliveryLimit sql.NullTime
	EstimatedDeliveryFinal sql.NullTime
	// EstimatedDeliveryExtended is always flat text; nested upstream values are JSON encoded.
	EstimatedDeliveryExtended string
}

type ShipmentItem struct {
	ID          string
	Description string
	Dimensions  string
	Quantity    int64
}

// CanonicalShipmentRecord is the merged view of a shipment and its order.
type CanonicalShipmentRecord struct {
	OrderID           string
	ReceiverID        string
	ReceiverAddressID string
	ReceiverName      string
	ReceiverPhone     string

	Address        Address
	Logistics      Logistics
	ShippingOption ShippingOption

	Notes  string
	Turbo  int64
	PackID string

	Items []ShipmentItem
	// OrderItems are the order's raw line items, kept for seller SKU lookup.
	OrderItems []map[string]any
}

// Validate enforces the invariants required before anything is written.
func (r *CanonicalShipmentRecord) Validate() error {
	var missing []string
	if strings.TrimSpace(r.OrderID) == "" {
		missing = append(missing, "order id")
	}
	if strings.TrimSpace(r.Address.City.Name) == "" {
		missing = append(missing, "city name")
	}
	if strings.TrimSpace(r.Address.ZipCode) == "" {
		missing = append(missing, "postal code")
	}
	if len(missing) > 0 {
		return apperrors.Newf(apperrors.KindValidationFailed, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// SellerSKU finds the seller-assigned SKU of an item by matching the order line item ids.
func (r *CanonicalShipmentRecord) SellerSKU(itemID string) string {
	if itemID == "" {
		return ""
	}
	for _, line := range r.OrderItems {
		item, ok := line["item"].(map[string]any)
		if !ok {
			continue
		}
		if stringify(item["id"]) != itemID {
			continue
		}
		if sku, ok := item["seller_sku"]; ok && sku != nil {
			return stringify(sku)
		}
		return ""
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
