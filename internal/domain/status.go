// Package domain contains the core business entities and the charge/refund
// lifecycle rules for the payment connector.
package domain

// ChargeStatus is the internal status of a charge. The set is closed: a
// charge is always in exactly one of these states, and transitions between
// them are governed by the per-variant transition tables.
type ChargeStatus string

const (
	StatusCreated             ChargeStatus = "CREATED"
	StatusEnteringCardDetails ChargeStatus = "ENTERING_CARD_DETAILS"

	StatusAuthorisationReady       ChargeStatus = "AUTHORISATION_READY"
	StatusAuthorisationSubmitted   ChargeStatus = "AUTHORISATION_SUBMITTED"
	StatusAuthorisation3DSRequired ChargeStatus = "AUTHORISATION_3DS_REQUIRED"
	StatusAuthorisation3DSReady    ChargeStatus = "AUTHORISATION_3DS_READY"
	StatusAuthorisationSuccess     ChargeStatus = "AUTHORISATION_SUCCESS"
	StatusAuthorisationRejected    ChargeStatus = "AUTHORISATION_REJECTED"
	StatusAuthorisationError       ChargeStatus = "AUTHORISATION_ERROR"
	StatusAuthorisationCancelled   ChargeStatus = "AUTHORISATION_CANCELLED"

	StatusCaptureApproved      ChargeStatus = "CAPTURE_APPROVED"
	StatusCaptureApprovedRetry ChargeStatus = "CAPTURE_APPROVED_RETRY"
	StatusCaptureReady         ChargeStatus = "CAPTURE_READY"
	StatusCaptureSubmitted     ChargeStatus = "CAPTURE_SUBMITTED"
	StatusCaptureError         ChargeStatus = "CAPTURE_ERROR"
	StatusCaptured             ChargeStatus = "CAPTURED"

	StatusExpireCancelReady  ChargeStatus = "EXPIRE_CANCEL_READY"
	StatusExpireCancelFailed ChargeStatus = "EXPIRE_CANCEL_FAILED"
	StatusExpired            ChargeStatus = "EXPIRED"

	StatusSystemCancelReady ChargeStatus = "SYSTEM_CANCEL_READY"
	StatusSystemCancelError ChargeStatus = "SYSTEM_CANCEL_ERROR"
	StatusSystemCancelled   ChargeStatus = "SYSTEM_CANCELLED"

	StatusUserCancelReady ChargeStatus = "USER_CANCEL_READY"
	StatusUserCancelError ChargeStatus = "USER_CANCEL_ERROR"
	StatusUserCancelled   ChargeStatus = "USER_CANCELLED"
)

// AllChargeStatuses lists every member of the closed charge status set, in
// lifecycle order. Used for exhaustive transition-table tests and for
// validating stored values.
var AllChargeStatuses = []ChargeStatus{
	StatusCreated,
	StatusEnteringCardDetails,
	StatusAuthorisationReady,
	StatusAuthorisationSubmitted,
	StatusAuthorisation3DSRequired,
	StatusAuthorisation3DSReady,
	StatusAuthorisationSuccess,
	StatusAuthorisationRejected,
	StatusAuthorisationError,
	StatusAuthorisationCancelled,
	StatusCaptureApproved,
	StatusCaptureApprovedRetry,
	StatusCaptureReady,
	StatusCaptureSubmitted,
	StatusCaptureError,
	StatusCaptured,
	StatusExpireCancelReady,
	StatusExpireCancelFailed,
	StatusExpired,
	StatusSystemCancelReady,
	StatusSystemCancelError,
	StatusSystemCancelled,
	StatusUserCancelReady,
	StatusUserCancelError,
	StatusUserCancelled,
}

// ExternalStatus is the coarse status exposed to API consumers. Several
// internal statuses collapse onto one external value.
type ExternalStatus string

const (
	ExternalCreated   ExternalStatus = "created"
	ExternalStarted   ExternalStatus = "started"
	ExternalSubmitted ExternalStatus = "submitted"
	ExternalSuccess   ExternalStatus = "success"
	ExternalDeclined  ExternalStatus = "declined"
	ExternalCancelled ExternalStatus = "cancelled"
	ExternalExpired   ExternalStatus = "expired"
	ExternalError     ExternalStatus = "error"
)

var externalStatuses = map[ChargeStatus]ExternalStatus{
	StatusCreated:                  ExternalCreated,
	StatusEnteringCardDetails:      ExternalStarted,
	StatusAuthorisationReady:       ExternalStarted,
	StatusAuthorisation3DSRequired: ExternalStarted,
	StatusAuthorisation3DSReady:    ExternalStarted,
	StatusAuthorisationSubmitted:   ExternalSubmitted,
	StatusAuthorisationSuccess:     ExternalSubmitted,
	StatusAuthorisationRejected:    ExternalDeclined,
	StatusAuthorisationError:       ExternalError,
	StatusAuthorisationCancelled:   ExternalCancelled,
	StatusCaptureApproved:          ExternalSuccess,
	StatusCaptureApprovedRetry:     ExternalSuccess,
	StatusCaptureReady:             ExternalSuccess,
	StatusCaptureSubmitted:         ExternalSuccess,
	StatusCaptureError:             ExternalError,
	StatusCaptured:                 ExternalSuccess,
	StatusExpireCancelReady:        ExternalExpired,
	StatusExpireCancelFailed:       ExternalError,
	StatusExpired:                  ExternalExpired,
	StatusSystemCancelReady:        ExternalCancelled,
	StatusSystemCancelError:        ExternalError,
	StatusSystemCancelled:          ExternalCancelled,
	StatusUserCancelReady:          ExternalCancelled,
	StatusUserCancelError:          ExternalError,
	StatusUserCancelled:            ExternalCancelled,
}

// External returns the externally-visible status for s.
func (s ChargeStatus) External() ExternalStatus {
	if ext, ok := externalStatuses[s]; ok {
		return ext
	}
	return ExternalError
}

// Valid reports whether s is a member of the closed charge status set.
func (s ChargeStatus) Valid() bool {
	_, ok := externalStatuses[s]
	return ok
}

// RefundStatus is the internal status of a refund. Refunds have a much
// shorter lifecycle than charges.
type RefundStatus string

const (
	RefundCreated   RefundStatus = "CREATED"
	RefundSubmitted RefundStatus = "REFUND_SUBMITTED"
	RefundSucceeded RefundStatus = "REFUNDED"
	RefundError     RefundStatus = "REFUND_ERROR"
)

// AllRefundStatuses lists every member of the closed refund status set.
var AllRefundStatuses = []RefundStatus{
	RefundCreated,
	RefundSubmitted,
	RefundSucceeded,
	RefundError,
}

// External returns the externally-visible status for s.
func (s RefundStatus) External() ExternalStatus {
	switch s {
	case RefundCreated, RefundSubmitted:
		return ExternalSubmitted
	case RefundSucceeded:
		return ExternalSuccess
	default:
		return ExternalError
	}
}
