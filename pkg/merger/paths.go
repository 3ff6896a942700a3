package merger

import "github.com/jmespath/go-jmespath"

type docKind int

const (
	fromShipment docKind = iota
	fromOrder
	fromElement
)

// source is one candidate location of a canonical field.
type source struct {
	doc  docKind
	expr string
	path *jmespath.JMESPath
}

func shipment(expr string) source {
	return source{doc: fromShipment, expr: expr, path: jmespath.MustCompile(expr)}
}

func order(expr string) source {
	return source{doc: fromOrder, expr: expr, path: jmespath.MustCompile(expr)}
}

func element(expr string) source {
	return source{doc: fromElement, expr: expr, path: jmespath.MustCompile(expr)}
}

// Candidate locations, in precedence order. Flattened fields come before their nested form.
var (
	orderIDSources = []source{shipment("order_id"), order("id"), order("order_id")}

	receiverIDSources        = []source{shipment("receiver_address.receiver_id"), shipment("receiver_id")}
	receiverAddressIDSources = []source{shipment("receiver_address.id")}
	receiverNameSources      = []source{shipment("receiver_address.receiver_name"), shipment("receiver.name")}
	buyerFirstNameSource     = order("buyer.first_name")
	buyerLastNameSource      = order("buyer.last_name")
	receiverPhoneSources     = []source{shipment("receiver_address.receiver_phone"), shipment("receiver.phone")}

	addressLineSources  = []source{shipment("receiver_address.address_line")}
	streetNameSources   = []source{shipment("receiver_address.street_name")}
	streetNumberSources = []source{shipment("receiver_address.street_number")}
	zipCodeSources      = []source{shipment("receiver_address.zip_code"), shipment("receiver_address.zipcode")}

	cityIDSources           = []source{shipment("receiver_address.city.id")}
	cityNameSources         = []source{shipment("receiver_address.city_name"), shipment("receiver_address.city.name")}
	stateIDSources          = []source{shipment("receiver_address.state.id")}
	stateNameSources        = []source{shipment("receiver_address.state_name"), shipment("receiver_address.state.name")}
	countryIDSources        = []source{shipment("receiver_address.country.id")}
	countryNameSources      = []source{shipment("receiver_address.country.name")}
	neighborhoodIDSources   = []source{shipment("receiver_address.neighborhood.id")}
	neighborhoodNameSources = []source{shipment("receiver_address.neighborhood.name")}
	municipalityIDSources   = []source{shipment("receiver_address.municipality.id")}
	municipalityNameSources = []source{shipment("receiver_address.municipality.name")}

	latitudeSources           = []source{shipment("receiver_address.latitude")}
	longitudeSources          = []source{shipment("receiver_address.longitude")}
	commentSources            = []source{shipment("receiver_address.comment"), shipment("comment")}
	deliveryPreferenceSources = []source{shipment("delivery_preference"), shipment("receiver_address.delivery_preference")}

	weightSources         = []source{shipment("weight"), shipment("dimensions.weight")}
	baseCostSources       = []source{shipment("base_cost")}
	declaredCostSources   = []source{order("order_cost"), order("shipping.cost.charge"), order("total_amount"), order("base_cost")}
	trackingMethodSources = []source{shipment("tracking_method"), shipment("tracking.method")}
	trackingNumberSources = []source{shipment("tracking_number"), shipment("tracking.number")}
	createdAtSources      = []source{shipment("date_created"), shipment("creation_date"), order("date_created")}

	shippingOptionIDSources       = []source{shipment("shipping_option.id")}
	shippingMethodIDSources       = []source{shipment("shipping_option.shipping_method_id"), shipment("shipping_method.id")}
	shippingOptionNameSources     = []source{shipment("shipping_option.name"), shipment("shipping_method.name")}
	currencyIDSources             = []source{shipment("shipping_option.currency_id")}
	shippingCostSources           = []source{shipment("shipping_option.cost")}
	shippingListCostSources       = []source{shipment("shipping_option.list_cost")}
	estimatedDeliverySources      = []source{shipment("shipping_option.estimated_delivery_time.date")}
	estimatedDeliveryLimitSources = []source{shipment("shipping_option.estimated_delivery_time.limit")}
	estimatedDeliveryFinalSources = []source{shipment("shipping_option.estimated_delivery_time.final")}
	extendedDeliverySource        = shipment("shipping_option.estimated_delivery_time.offset")

	notesSources  = []source{shipment("obs")}
	turboSources  = []source{shipment("turbo")}
	packIDSources = []source{order("pack_id")}

	itemsSource      = shipment("items")
	orderItemsSource = order("order_items")

	itemIDSources          = []source{element("id"), element("item.id")}
	itemDescriptionSources = []source{element("description"), element("title")}
	itemDimensionsSource   = element("dimensions")
	itemQuantitySources    = []source{element("quantity")}
)

// orderReferenceSources locate the parent order id on a shipment document.
var orderReferenceSources = []source{shipment("order_id"), shipment("order.id"), shipment("orderId")}
