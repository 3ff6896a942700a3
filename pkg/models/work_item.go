package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// WorkItem identifies one shipment to enrich.
type WorkItem struct {
	CompanyID          int64  `json:"companyId" validate:"required,gt=0"`
	ShipmentRoutingID  int64  `json:"shipmentRoutingId" validate:"required,gt=0"`
	SellerID           string `json:"sellerId,omitempty"`
	UpstreamShipmentID string `json:"upstreamShipmentId,omitempty"`
}

// workItemPayload accepts the current field names and the legacy ones still produced by older publishers.
type workItemPayload struct {
	CompanyID          json.RawMessage `json:"companyId"`
	ShipmentRoutingID  json.RawMessage `json:"shipmentRoutingId"`
	SellerID           json.RawMessage `json:"sellerId"`
	UpstreamShipmentID json.RawMessage `json:"upstreamShipmentId"`

	LegacyCompanyID  json.RawMessage `json:"idEmpresa"`
	LegacyRoutingID  json.RawMessage `json:"did"`
	LegacyShipmentID json.RawMessage `json:"shipmentId"`
}

func (w *WorkItem) UnmarshalJSON(data []byte) error {
	var p workItemPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var err error
	if w.CompanyID, err = flexInt(firstRaw(p.CompanyID, p.LegacyCompanyID)); err != nil {
		return fmt.Errorf("companyId: %w", err)
	}
	if w.ShipmentRoutingID, err = flexInt(firstRaw(p.ShipmentRoutingID, p.LegacyRoutingID)); err != nil {
		return fmt.Errorf("shipmentRoutingId: %w", err)
	}
	if w.SellerID, err = flexString(p.SellerID); err != nil {
		return fmt.Errorf("sellerId: %w", err)
	}
	if w.UpstreamShipmentID, err = flexString(firstRaw(p.UpstreamShipmentID, p.LegacyShipmentID)); err != nil {
		return fmt.Errorf("upstreamShipmentId: %w", err)
	}
	return nil
}

// Validate checks the required identifiers
func (w WorkItem) Validate() error {
	return validate.Struct(w)
}

// ParseWorkItem decodes and validates a queued work item
func ParseWorkItem(data []byte) (*WorkItem, error) {
	var item WorkItem
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("invalid work item: %w", err)
	}
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("invalid work item: %w", err)
	}
	return &item, nil
}

func firstRaw(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 && !bytes.Equal(v, []byte("null")) {
			return v
		}
	}
	return nil
}

// flexInt reads a JSON number or a numeric string
func flexInt(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return parseInt(n.String())
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected number or string, got %s", string(raw))
	}
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return parseInt(s)
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int64(f), nil
}

// flexString reads a JSON string or number as a string
func flexString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", string(raw))
	}
	return n.String(), nil
}
