package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkItemKeys(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, int64(0), GetCompanyID(ctx))
	assert.Empty(t, LogFields(ctx))

	ctx = SetRequestID(ctx, "req-1")
	ctx = SetCompanyID(ctx, 275)
	ctx = SetShipmentRoutingID(ctx, 10001)
	ctx = SetTransport(ctx, "amqp")

	assert.Equal(t, int64(275), GetCompanyID(ctx))
	assert.Equal(t, int64(10001), GetShipmentRoutingID(ctx))
	assert.Equal(t, map[string]any{
		"request_id":          "req-1",
		"company_id":          "275",
		"shipment_routing_id": "10001",
		"transport":           "amqp",
	}, LogFields(ctx))
}
