// Package context carries request and work-item identifiers on a context.Context.
package context

import (
	"context"
	"strconv"
)

type ContextKey string

var (
	RequestIDKey         = ContextKey("X-Request-Id")
	MethodKey            = ContextKey("X-Method")
	RouteKey             = ContextKey("X-Route")
	RemoteIPKey          = ContextKey("X-Remote-Ip")
	CompanyIDKey         = ContextKey("X-Company-Id")
	ShipmentRoutingIDKey = ContextKey("X-Shipment-Routing-Id")
	TransportKey         = ContextKey("X-Transport")
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	value, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	value, ok := ctx.Value(MethodKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	value, ok := ctx.Value(RouteKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	value, ok := ctx.Value(RemoteIPKey).(string)
	if !ok {
		return ""
	}
	return value
}

func SetCompanyID(ctx context.Context, companyID int64) context.Context {
	return context.WithValue(ctx, CompanyIDKey, companyID)
}

func GetCompanyID(ctx context.Context) int64 {
	value, ok := ctx.Value(CompanyIDKey).(int64)
	if !ok {
		return 0
	}
	return value
}

func SetShipmentRoutingID(ctx context.Context, shipmentRoutingID int64) context.Context {
	return context.WithValue(ctx, ShipmentRoutingIDKey, shipmentRoutingID)
}

func GetShipmentRoutingID(ctx context.Context) int64 {
	value, ok := ctx.Value(ShipmentRoutingIDKey).(int64)
	if !ok {
		return 0
	}
	return value
}

// SetTransport records which queue transport delivered the work item
func SetTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, TransportKey, transport)
}

func GetTransport(ctx context.Context) string {
	value, ok := ctx.Value(TransportKey).(string)
	if !ok {
		return ""
	}
	return value
}

// LogFields returns the identifiers present on ctx, keyed the way log lines name them.
func LogFields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	if id := GetRequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if id := GetCompanyID(ctx); id != 0 {
		fields["company_id"] = strconv.FormatInt(id, 10)
	}
	if id := GetShipmentRoutingID(ctx); id != 0 {
		fields["shipment_routing_id"] = strconv.FormatInt(id, 10)
	}
	if transport := GetTransport(ctx); transport != "" {
		fields["transport"] = transport
	}
	return fields
}
