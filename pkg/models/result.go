package models

import apperrors "github.com/Ramsey-B/fern/pkg/errors"

// Result is what one pipeline run reports to its caller. It is never replaced by a returned error.
type Result struct {
	OK                bool     `json:"ok"`
	ShipmentRoutingID int64    `json:"shipmentRoutingId"`
	CompanyID         int64    `json:"companyId"`
	State             string   `json:"state"`
	FailedAt          string   `json:"failedAt,omitempty"`
	Error             string   `json:"error,omitempty"`
	Message           string   `json:"message,omitempty"`
	SkippedFields     []string `json:"skippedFields,omitempty"`
	ItemsWritten      int      `json:"itemsWritten,omitempty"`
}

// Kind returns the error classification of a failed result
func (r Result) Kind() apperrors.Kind {
	if r.OK {
		return ""
	}
	if r.Error == "" {
		return apperrors.KindUnknown
	}
	return apperrors.Kind(r.Error)
}
