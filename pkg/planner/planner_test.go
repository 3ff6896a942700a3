package planner

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/schema"
)

func sampleRecord() models.CanonicalShipmentRecord {
	return models.CanonicalShipmentRecord{
		OrderID:      "2000008113466484",
		ReceiverName: "Jose Perez",
		Address: models.Address{
			AddressLine:        "Av. Santa Fe 1234",
			ZipCode:            "1425",
			City:               models.Place{ID: "C1", Name: "Palermo"},
			Latitude:           sql.NullFloat64{Float64: -34.5, Valid: true},
			DeliveryPreference: models.DeliveryPreferenceCommercial,
		},
		Logistics: models.Logistics{
			Weight:    1.2,
			CreatedAt: sql.NullTime{Time: time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC), Valid: true},
		},
		ShippingOption: models.ShippingOption{EstimatedDeliveryExtended: `{"shipping":24}`},
		Turbo:          1,
		PackID:         "2000005555",
	}
}

func TestShipmentCandidates_FixedOrderAndColumns(t *testing.T) {
	candidates := ShipmentCandidates(sampleRecord())

	require.Len(t, candidates, 47)
	assert.Equal(t, "ml_venta_id", candidates[0].Column)
	assert.Equal(t, "ml_pack_id", candidates[len(candidates)-1].Column)

	seen := map[string]bool{}
	for _, c := range candidates {
		assert.False(t, seen[c.Column], "duplicate column %s", c.Column)
		seen[c.Column] = true
		assert.NotEqual(t, "estado", c.Column)
		assert.NotEqual(t, "fecha_carga", c.Column)
	}

	byColumn := map[string]any{}
	for _, c := range candidates {
		byColumn[c.Column] = c.Value
	}
	assert.Equal(t, "Av. Santa Fe 1234 (C)", byColumn["destination_shipping_address_line"])
	assert.Equal(t, "commercial", byColumn["delivery_preference"])
	assert.Equal(t, 1.2, byColumn["peso"])
	assert.Equal(t, "", byColumn["destination_types"])
	assert.Equal(t, int64(1), byColumn["turbo"])
}

func TestPlan_GatesOnLiveColumns(t *testing.T) {
	known := schema.NewColumnSet("ml_venta_id", "PESO", "destination_latitude", "fecha_venta", "lead_time_cost", "estimated_delivery_extended")

	plan, err := Plan(ShipmentCandidates(sampleRecord()), known)
	require.NoError(t, err)

	assert.Equal(t, []string{"ml_venta_id", "peso", "fecha_venta", "destination_latitude", "lead_time_cost", "estimated_delivery_extended"}, plan.Columns())
	assert.Len(t, plan.Skipped, 47-6)
	assert.Contains(t, plan.Skipped, "ml_pack_id")

	values := map[string]any{}
	for _, a := range plan.Assignments {
		values[a.Column] = a.Value
	}
	assert.Equal(t, "2000008113466484", values["ml_venta_id"])
	assert.Equal(t, -34.5, values["destination_latitude"])
	assert.Equal(t, time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC), values["fecha_venta"])
	assert.Nil(t, values["lead_time_cost"])
	assert.Equal(t, `{"shipping":24}`, values["estimated_delivery_extended"])
}

func TestPlan_NoMatchingColumnIsSchemaMismatch(t *testing.T) {
	plan, err := Plan(ShipmentCandidates(sampleRecord()), schema.NewColumnSet("id", "estado"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSchemaMismatch, apperrors.KindOf(err))
	assert.Empty(t, plan.Assignments)

	_, err = Plan(nil, schema.NewColumnSet("id"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindSchemaMismatch))
}

func TestPlan_UnserializableValue(t *testing.T) {
	_, err := Plan([]Candidate{{Column: "obs", Value: map[string]any{"x": math.Inf(1)}}}, schema.NewColumnSet("obs"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSchemaMismatch, apperrors.KindOf(err))
}

func TestCoerce(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var nilTime *sql.NullTime

	tests := []struct {
		name     string
		in       any
		expected any
	}{
		{name: "nil", in: nil, expected: nil},
		{name: "string", in: "abc", expected: "abc"},
		{name: "int", in: int64(7), expected: int64(7)},
		{name: "valid null float", in: sql.NullFloat64{Float64: 2.5, Valid: true}, expected: 2.5},
		{name: "invalid null float", in: sql.NullFloat64{}, expected: nil},
		{name: "valid null time", in: sql.NullTime{Time: now, Valid: true}, expected: now},
		{name: "nil valuer pointer", in: nilTime, expected: nil},
		{name: "time", in: now, expected: now},
		{name: "map", in: map[string]any{"a": 1}, expected: `{"a":1}`},
		{name: "slice", in: []string{"x", "y"}, expected: `["x","y"]`},
		{name: "struct", in: struct {
			A int `json:"a"`
		}{A: 1}, expected: `{"a":1}`},
		{name: "bytes", in: []byte("raw"), expected: []byte("raw")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
