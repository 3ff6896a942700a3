package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Ramsey-B/fern/pkg/errors"
)

func TestParseWorkItem(t *testing.T) {
	t.Run("current field names", func(t *testing.T) {
		item, err := ParseWorkItem([]byte(`{"companyId":275,"shipmentRoutingId":10001,"sellerId":"1964159102","upstreamShipmentId":"45399487764"}`))
		require.NoError(t, err)
		assert.Equal(t, WorkItem{
			CompanyID:          275,
			ShipmentRoutingID:  10001,
			SellerID:           "1964159102",
			UpstreamShipmentID: "45399487764",
		}, *item)
	})

	t.Run("legacy field names with numeric ids", func(t *testing.T) {
		item, err := ParseWorkItem([]byte(`{"idEmpresa":275,"did":10001,"sellerId":1964159102,"shipmentId":45399487764}`))
		require.NoError(t, err)
		assert.Equal(t, int64(275), item.CompanyID)
		assert.Equal(t, int64(10001), item.ShipmentRoutingID)
		assert.Equal(t, "1964159102", item.SellerID)
		assert.Equal(t, "45399487764", item.UpstreamShipmentID)
	})

	t.Run("ids as strings", func(t *testing.T) {
		item, err := ParseWorkItem([]byte(`{"companyId":"275","shipmentRoutingId":"10001"}`))
		require.NoError(t, err)
		assert.Equal(t, int64(275), item.CompanyID)
		assert.Equal(t, int64(10001), item.ShipmentRoutingID)
		assert.Empty(t, item.SellerID)
		assert.Empty(t, item.UpstreamShipmentID)
	})

	t.Run("current names win over legacy", func(t *testing.T) {
		item, err := ParseWorkItem([]byte(`{"companyId":1,"idEmpresa":2,"shipmentRoutingId":3,"did":4}`))
		require.NoError(t, err)
		assert.Equal(t, int64(1), item.CompanyID)
		assert.Equal(t, int64(3), item.ShipmentRoutingID)
	})

	t.Run("missing routing id", func(t *testing.T) {
		_, err := ParseWorkItem([]byte(`{"companyId":275}`))
		assert.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseWorkItem([]byte(`nope`))
		assert.Error(t, err)
	})

	t.Run("fractional id", func(t *testing.T) {
		_, err := ParseWorkItem([]byte(`{"companyId":1.5,"shipmentRoutingId":3}`))
		assert.Error(t, err)
	})
}

func TestWorkItem_MarshalRoundTripUsesCurrentNames(t *testing.T) {
	data, err := json.Marshal(WorkItem{CompanyID: 1, ShipmentRoutingID: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"companyId":1,"shipmentRoutingId":2}`, string(data))
}

func TestCanonicalShipmentRecord_Validate(t *testing.T) {
	valid := CanonicalShipmentRecord{
		OrderID: "2000001",
		Address: Address{ZipCode: "1425", City: Place{Name: "Palermo"}},
	}
	assert.NoError(t, valid.Validate())

	missingZip := valid
	missingZip.Address.ZipCode = "  "
	err := missingZip.Validate()
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidationFailed, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "postal code")

	empty := CanonicalShipmentRecord{}
	err = empty.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order id, city name, postal code")
}

func TestCanonicalShipmentRecord_SellerSKU(t *testing.T) {
	record := CanonicalShipmentRecord{
		OrderItems: []map[string]any{
			{"item": map[string]any{"id": "MLA1", "seller_sku": "SKU-1"}},
			{"item": map[string]any{"id": json.Number("42"), "seller_sku": json.Number("777")}},
			{"item": map[string]any{"id": "MLA3"}},
			{"quantity": 1},
		},
	}

	assert.Equal(t, "SKU-1", record.SellerSKU("MLA1"))
	assert.Equal(t, "777", record.SellerSKU("42"))
	assert.Equal(t, "", record.SellerSKU("MLA3"))
	assert.Equal(t, "", record.SellerSKU("missing"))
	assert.Equal(t, "", record.SellerSKU(""))
}

func TestDeliveryPreference(t *testing.T) {
	assert.Equal(t, DeliveryPreferenceResidential, ParseDeliveryPreference("Residential"))
	assert.Equal(t, DeliveryPreferenceCommercial, ParseDeliveryPreference(" commercial "))
	assert.Equal(t, DeliveryPreferenceNone, ParseDeliveryPreference("office"))

	addr := Address{AddressLine: "Av. Santa Fe 1234", DeliveryPreference: DeliveryPreferenceResidential}
	assert.Equal(t, "Av. Santa Fe 1234 (R)", addr.ComposedLine())
	addr.DeliveryPreference = DeliveryPreferenceCommercial
	assert.Equal(t, "Av. Santa Fe 1234 (C)", addr.ComposedLine())
	addr.DeliveryPreference = DeliveryPreferenceNone
	assert.Equal(t, "Av. Santa Fe 1234", addr.ComposedLine())
}

func TestResult_Kind(t *testing.T) {
	assert.Equal(t, apperrors.Kind(""), Result{OK: true}.Kind())
	assert.Equal(t, apperrors.KindUnknown, Result{}.Kind())
	assert.Equal(t, apperrors.KindCredentialMissing, Result{Error: "CredentialMissing"}.Kind())
}

func TestDeadLetterReasonFor(t *testing.T) {
	assert.Equal(t, DLQReasonCredentials, DeadLetterReasonFor(apperrors.KindCredentialMissing))
	assert.Equal(t, DLQReasonUnknown, DeadLetterReasonFor(apperrors.KindUnknown))
}
