package models

import apperrors "github.com/Ramsey-B/fern/pkg/errors"

// DeadLetterReason represents why a work item was sent to the DLQ
type DeadLetterReason string

const (
	DLQReasonMaxRetries  DeadLetterReason = "max_retries_exceeded"
	DLQReasonInvalidItem DeadLetterReason = "invalid_item"
	DLQReasonNotFound    DeadLetterReason = "not_found"
	DLQReasonCredentials DeadLetterReason = "credential_missing"
	DLQReasonUpstream    DeadLetterReason = "upstream_incomplete"
	DLQReasonValidation  DeadLetterReason = "validation_failed"
	DLQReasonSchema      DeadLetterReason = "schema_mismatch"
	DLQReasonTransport   DeadLetterReason = "transport_error"
	DLQReasonUnknown     DeadLetterReason = "unknown"
)

var reasonsByKind = map[apperrors.Kind]DeadLetterReason{
	apperrors.KindNotFound:           DLQReasonNotFound,
	apperrors.KindCredentialMissing:  DLQReasonCredentials,
	apperrors.KindUpstreamIncomplete: DLQReasonUpstream,
	apperrors.KindOrderIDUnresolved:  DLQReasonUpstream,
	apperrors.KindValidationFailed:   DLQReasonValidation,
	apperrors.KindSchemaMismatch:     DLQReasonSchema,
	apperrors.KindTransport:          DLQReasonTransport,
}

// DeadLetterReasonFor maps a failure kind to the reason recorded on its DLQ entry
func DeadLetterReasonFor(kind apperrors.Kind) DeadLetterReason {
	if reason, ok := reasonsByKind[kind]; ok {
		return reason
	}
	return DLQReasonUnknown
}
