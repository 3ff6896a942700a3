package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	pkgerrors "github.com/pkg/errors"
)

// Kind classifies why a shipment could not be applied.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindCredentialMissing  Kind = "CredentialMissing"
	KindUpstreamIncomplete Kind = "UpstreamIncomplete"
	KindOrderIDUnresolved  Kind = "OrderIdUnresolved"
	KindValidationFailed   Kind = "ValidationFailed"
	KindSchemaMismatch     Kind = "SchemaMismatch"
	KindTransport          Kind = "TransportError"
	KindUnknown            Kind = "Unknown"
)

var statusCodes = map[Kind]int{
	KindNotFound:           http.StatusNotFound,
	KindCredentialMissing:  http.StatusFailedDependency,
	KindUpstreamIncomplete: http.StatusBadGateway,
	KindOrderIDUnresolved:  http.StatusUnprocessableEntity,
	KindValidationFailed:   http.StatusUnprocessableEntity,
	KindSchemaMismatch:     http.StatusConflict,
	KindTransport:          http.StatusBadGateway,
	KindUnknown:            http.StatusInternalServerError,
}

// StatusCode returns the HTTP status used when a failure of this kind is reported over the admin API.
func (k Kind) StatusCode() int {
	if code, ok := statusCodes[k]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Retryable reports whether redelivering the work item may succeed.
func (k Kind) Retryable() bool {
	return k == KindTransport
}

type ShipmentError struct {
	Kind              Kind
	Message           string
	Step              string
	ShipmentRoutingID int64
	CompanyID         int64
	cause             error
}

func New(kind Kind, msg string) *ShipmentError {
	return &ShipmentError{
		Kind:    kind,
		Message: msg,
	}
}

// Newf creates a new ShipmentError with a formatted message
func Newf(kind Kind, format string, args ...any) *ShipmentError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap classifies err. The cause keeps a stack trace for logging.
func Wrap(kind Kind, err error, msg string) *ShipmentError {
	if err == nil {
		return nil
	}
	return &ShipmentError{
		Kind:    kind,
		Message: msg,
		cause:   pkgerrors.WithStack(err),
	}
}

// Wrapf classifies err with a formatted message
func Wrapf(kind Kind, err error, format string, args ...any) *ShipmentError {
	return Wrap(kind, err, fmt.Sprintf(format, args...))
}

func (e *ShipmentError) Error() string {
	path := []string{string(e.Kind)}
	if e.Step != "" {
		path = append(path, fmt.Sprintf("step '%s'", e.Step))
	}

	msg := strings.Join(path, " -> ")
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ShipmentError) Unwrap() error {
	return e.cause
}

// Cause returns the underlying error, if any
func (e *ShipmentError) Cause() error {
	return e.cause
}

func (e *ShipmentError) AddStep(step string) *ShipmentError {
	if e.Step == "" {
		e.Step = step
	}
	return e
}

func (e *ShipmentError) AddShipment(shipmentRoutingID int64) *ShipmentError {
	e.ShipmentRoutingID = shipmentRoutingID
	return e
}

func (e *ShipmentError) AddCompany(companyID int64) *ShipmentError {
	e.CompanyID = companyID
	return e
}

// Detail is the message without the kind prefix
func (e *ShipmentError) Detail() string {
	if e.cause == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.cause.Error()
	}
	return e.Message + ": " + e.cause.Error()
}

func (e *ShipmentError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(e.Kind.StatusCode(), e.Detail()).
		AddMetaValue("error_kind", string(e.Kind)).
		AddMetaValue("step", e.Step).
		AddMetaValue("shipment_routing_id", e.ShipmentRoutingID).
		AddMetaValue("company_id", e.CompanyID)
}

// As returns the ShipmentError in err's chain, if any
func As(err error) (*ShipmentError, bool) {
	var se *ShipmentError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// KindOf returns the classification of err. Errors outside the taxonomy are Unknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if se, ok := As(err); ok {
		return se.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classify returns err as a ShipmentError, wrapping anything unclassified as Unknown.
func Classify(err error) *ShipmentError {
	if err == nil {
		return nil
	}
	if se, ok := As(err); ok {
		return se
	}
	return Wrap(KindUnknown, err, "")
}
