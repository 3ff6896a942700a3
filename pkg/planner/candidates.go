package planner

import "github.com/Ramsey-B/fern/pkg/models"

// ShipmentTable is the routing table the core update targets
const ShipmentTable = "envios"

// Candidate is one column the shipment update would like to write.
type Candidate struct {
	Column string
	Value  any
}

// ShipmentCandidates maps a canonical record onto the shipment table columns, in statement order.
func ShipmentCandidates(record models.CanonicalShipmentRecord) []Candidate {
	addr := record.Address
	opt := record.ShippingOption

	return []Candidate{
		{Column: "ml_venta_id", Value: record.OrderID},
		{Column: "obs", Value: record.Notes},
		{Column: "peso", Value: record.Logistics.Weight},
		{Column: "tracking_method", Value: record.Logistics.TrackingMethod},
		{Column: "tracking_number", Value: record.Logistics.TrackingNumber},
		{Column: "fecha_venta", Value: record.Logistics.CreatedAt},
		{Column: "destination_type", Value: ""},
		{Column: "destination_receiver_id", Value: record.ReceiverID},
		{Column: "destination_receiver_name", Value: record.ReceiverName},
		{Column: "destination_receiver_phone", Value: record.ReceiverPhone},
		{Column: "destination_comments", Value: addr.Comment},
		{Column: "destination_shipping_address_id", Value: record.ReceiverAddressID},
		{Column: "destination_shipping_address_line", Value: addr.ComposedLine()},
		{Column: "destination_shipping_street_name", Value: addr.StreetName},
		{Column: "destination_shipping_street_number", Value: addr.StreetNumber},
		{Column: "destination_shipping_comment", Value: ""},
		{Column: "destination_shipping_zip_code", Value: addr.ZipCode},
		{Column: "destination_city_id", Value: addr.City.ID},
		{Column: "destination_city_name", Value: addr.City.Name},
		{Column: "destination_state_id", Value: addr.State.ID},
		{Column: "destination_state_name", Value: addr.State.Name},
		{Column: "destination_country_id", Value: addr.Country.ID},
		{Column: "destination_country_name", Value: addr.Country.Name},
		{Column: "destination_neighborhood_id", Value: addr.Neighborhood.ID},
		{Column: "destination_neighborhood_name", Value: addr.Neighborhood.Name},
		{Column: "destination_municipality_id", Value: addr.Municipality.ID},
		{Column: "destination_municipality_name", Value: addr.Municipality.Name},
		{Column: "destination_types", Value: ""},
		{Column: "destination_latitude", Value: addr.Latitude},
		{Column: "destination_longitude", Value: addr.Longitude},
		{Column: "lead_time_option_id", Value: opt.ID},
		{Column: "lead_time_shipping_method_id", Value: opt.MethodID},
		{Column: "lead_time_shipping_method_name", Value: opt.Name},
		{Column: "lead_time_shipping_method_type", Value: ""},
		{Column: "lead_time_shipping_method_deliver_to", Value: ""},
		{Column: "lead_time_currency_id", Value: opt.CurrencyID},
		{Column: "lead_time_cost", Value: opt.Cost},
		{Column: "lead_time_list_cost", Value: opt.ListCost},
		{Column: "estimated_delivery_time_date", Value: opt.EstimatedDelivery},
		{Column: "estimated_delivery_time_date_72", Value: opt.EstimatedDeliveryLimit},
		{Column: "estimated_delivery_time_date_480", Value: opt.EstimatedDeliveryFinal},
		{Column: "estimated_delivery_extended", Value: opt.EstimatedDeliveryExtended},
		{Column: "base_cost", Value: record.Logistics.BaseCost},
		{Column: "delivery_preference", Value: string(addr.DeliveryPreference)},
		{Column: "valor_declarado", Value: record.Logistics.DeclaredCost},
		{Column: "turbo", Value: record.Turbo},
		{Column: "ml_pack_id", Value: record.PackID},
	}
}
