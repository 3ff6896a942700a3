// Package merger reconciles an upstream shipment document and its order document into one
// canonical shipment record.
//
// Merge is total: absent or malformed input degrades to the documented defaults and never
// produces an error.
package merger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/normalize"
)

// Merge builds the canonical record from a decoded shipment document and order document.
// Either document may be nil.
func Merge(shipmentDoc, orderDoc map[string]any) models.CanonicalShipmentRecord {
	d := documents{shipment: shipmentDoc, order: orderDoc}

	record := models.CanonicalShipmentRecord{
		OrderID:           d.text(orderIDSources...),
		ReceiverID:        d.text(receiverIDSources...),
		ReceiverAddressID: d.text(receiverAddressIDSources...),
		ReceiverName:      normalize.Name(d.receiverName()),
		ReceiverPhone:     d.text(receiverPhoneSources...),

		Address: models.Address{
			AddressLine:  d.text(addressLineSources...),
			StreetName:   d.text(streetNameSources...),
			StreetNumber: d.text(streetNumberSources...),
			ZipCode:      d.text(zipCodeSources...),
			City: models.Place{
				ID:   d.text(cityIDSources...),
				Name: normalize.Name(d.text(cityNameSources...)),
			},
			State: models.Place{
				ID:   d.text(stateIDSources...),
				Name: d.text(stateNameSources...),
			},
			Country: models.Place{
				ID:   d.text(countryIDSources...),
				Name: d.text(countryNameSources...),
			},
			Neighborhood: models.Place{
				ID:   d.text(neighborhoodIDSources...),
				Name: d.text(neighborhoodNameSources...),
			},
			Municipality: models.Place{
				ID:   d.text(municipalityIDSources...),
				Name: d.text(municipalityNameSources...),
			},
			Latitude:           d.number(latitudeSources...),
			Longitude:          d.number(longitudeSources...),
			Comment:            d.text(commentSources...),
			DeliveryPreference: models.ParseDeliveryPreference(d.text(deliveryPreferenceSources...)),
		},

		Logistics: models.Logistics{
			Weight:         d.number(weightSources...).Float64,
			BaseCost:       d.number(baseCostSources...),
			DeclaredCost:   d.number(declaredCostSources...),
			TrackingMethod: d.text(trackingMethodSources...),
			TrackingNumber: d.text(trackingNumberSources...),
			CreatedAt:      d.timestamp(createdAtSources...),
		},

		ShippingOption: models.ShippingOption{
			ID:                        d.text(shippingOptionIDSources...),
			MethodID:                  d.text(shippingMethodIDSources...),
			Name:                      d.text(shippingOptionNameSources...),
			CurrencyID:                d.text(currencyIDSources...),
			Cost:                      d.number(shippingCostSources...),
			ListCost:                  d.number(shippingListCostSources...),
			EstimatedDelivery:         d.timestamp(estimatedDeliverySources...),
			EstimatedDeliveryLimit:    d.timestamp(estimatedDeliveryLimitSources...),
			EstimatedDeliveryFinal:    d.timestamp(estimatedDeliveryFinalSources...),
			EstimatedDeliveryExtended: flatText(d.get(extendedDeliverySource)),
		},

		Notes:  d.text(notesSources...),
		Turbo:  d.flag(turboSources...),
		PackID: d.text(packIDSources...),

		Items:      d.items(),
		OrderItems: d.orderItems(),
	}

	return record
}

// OrderReference returns the order id a shipment document points at, or "" when none is present.
func OrderReference(shipmentDoc map[string]any) string {
	return documents{shipment: shipmentDoc}.text(orderReferenceSources...)
}

// HasStreetName reports whether the shipment carries a usable receiver street name.
// Upstream returns address-less shipments when the seller credential lacks access.
func HasStreetName(shipmentDoc map[string]any) bool {
	return documents{shipment: shipmentDoc}.text(streetNameSources...) != ""
}

type documents struct {
	shipment map[string]any
	order    map[string]any
	element  any
}

func (d documents) get(src source) any {
	var doc any
	switch src.doc {
	case fromShipment:
		if d.shipment == nil {
			return nil
		}
		doc = d.shipment
	case fromOrder:
		if d.order == nil {
			return nil
		}
		doc = d.order
	case fromElement:
		doc = d.element
	}
	if doc == nil {
		return nil
	}

	value, err := src.path.Search(doc)
	if err != nil {
		return nil
	}
	return value
}

// text returns the first candidate that renders to a non-blank scalar.
func (d documents) text(sources ...source) string {
	for _, src := range sources {
		if s, ok := scalarText(d.get(src)); ok {
			return s
		}
	}
	return ""
}

// number returns the first candidate convertible to a finite number.
func (d documents) number(sources ...source) sql.NullFloat64 {
	for _, src := range sources {
		if f, ok := finite(d.get(src)); ok {
			return sql.NullFloat64{Float64: f, Valid: true}
		}
	}
	return sql.NullFloat64{}
}

func (d documents) timestamp(sources ...source) sql.NullTime {
	for _, src := range sources {
		s, ok := scalarText(d.get(src))
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return sql.NullTime{}
		}
		return sql.NullTime{Time: t, Valid: true}
	}
	return sql.NullTime{}
}

// flag reads booleans and integers as 0/1 style integers
func (d documents) flag(sources ...source) int64 {
	for _, src := range sources {
		switch v := d.get(src).(type) {
		case bool:
			if v {
				return 1
			}
			return 0
		default:
			if f, ok := finite(v); ok {
				return int64(f)
			}
		}
	}
	return 0
}

func (d documents) receiverName() string {
	if name := d.text(receiverNameSources...); name != "" {
		return name
	}
	first, _ := scalarText(d.get(buyerFirstNameSource))
	last, _ := scalarText(d.get(buyerLastNameSource))
	return strings.TrimSpace(first + " " + last)
}

func (d documents) items() []models.ShipmentItem {
	raw, ok := d.get(itemsSource).([]any)
	if !ok {
		return []models.ShipmentItem{}
	}

	items := make([]models.ShipmentItem, 0, len(raw))
	for _, entry := range raw {
		if _, ok := entry.(map[string]any); !ok {
			continue
		}
		e := documents{element: entry}
		quantity := int64(0)
		if q := e.number(itemQuantitySources...); q.Valid {
			quantity = int64(q.Float64)
		}
		items = append(items, models.ShipmentItem{
			ID:          e.text(itemIDSources...),
			Description: e.text(itemDescriptionSources...),
			Dimensions:  flatText(e.get(itemDimensionsSource)),
			Quantity:    quantity,
		})
	}
	return items
}

func (d documents) orderItems() []map[string]any {
	raw, ok := d.get(orderItemsSource).([]any)
	if !ok {
		return []map[string]any{}
	}

	lines := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if line, ok := entry.(map[string]any); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

// scalarText renders strings, numbers and booleans. Blank strings and structures are absent.
func scalarText(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case json.Number:
		s = t.String()
		if strings.ContainsAny(s, "eE") {
			f, err := t.Float64()
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return "", false
			}
			s = strconv.FormatFloat(f, 'f', -1, 64)
		}
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	return s, s != ""
}

func finite(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// flatText turns a possibly structured value into the text form stored in a single column.
func flatText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		if s, ok := scalarText(t); ok {
			return s
		}
		return fmt.Sprint(t)
	}
}
