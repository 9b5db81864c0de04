package domain

// GatewayVariant selects which transition table applies to a charge. It is
// derived from the payment provider of the owning gateway account:
// synchronous gateways answer authorise/capture calls in-line and skip the
// *_SUBMITTED intermediates, asynchronous gateways confirm via notification.
type GatewayVariant string

const (
	VariantAsync GatewayVariant = "async"
	VariantSync  GatewayVariant = "sync"
)

// TransitionTable maps each status to the exhaustive set of statuses
// reachable from it in one hop. A status with no entry, or an empty entry,
// is terminal: no transition out of it is ever legal.
type TransitionTable map[ChargeStatus][]ChargeStatus

// AsyncTransitions is the transition table for asynchronous gateways
// (Worldpay, Smartpay, ePDQ). Authorisation and capture pass through the
// *_SUBMITTED states; the final status arrives as a gateway notification.
var AsyncTransitions = TransitionTable{
	StatusCreated: {
		StatusEnteringCardDetails,
		StatusSystemCancelled,
		StatusExpired,
	},
	StatusEnteringCardDetails: {
		StatusAuthorisationReady,
		StatusSystemCancelled,
		StatusUserCancelled,
		StatusExpired,
	},
	StatusAuthorisationReady: {
		StatusAuthorisationSubmitted,
		StatusAuthorisation3DSRequired,
		StatusAuthorisationCancelled,
		StatusAuthorisationError,
	},
	StatusAuthorisationSubmitted: {
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
		StatusAuthorisation3DSRequired,
	},
	StatusAuthorisation3DSRequired: {
		StatusAuthorisation3DSReady,
		StatusUserCancelled,
		StatusExpired,
	},
	StatusAuthorisation3DSReady: {
		StatusAuthorisationSubmitted,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
		StatusAuthorisationCancelled,
	},
	StatusAuthorisationSuccess: {
		StatusCaptureApproved,
		StatusCaptureReady,
		StatusSystemCancelReady,
		StatusUserCancelReady,
		StatusExpireCancelReady,
	},
	StatusCaptureApproved: {
		StatusCaptureReady,
		StatusCaptureError,
	},
	StatusCaptureApprovedRetry: {
		StatusCaptureReady,
		StatusCaptureError,
	},
	StatusCaptureReady: {
		StatusCaptureSubmitted,
		StatusCaptureApprovedRetry,
		StatusCaptureError,
		StatusCaptured,
	},
	StatusCaptureSubmitted: {
		StatusCaptured,
	},
	StatusExpireCancelReady: {
		StatusExpired,
		StatusExpireCancelFailed,
	},
	StatusSystemCancelReady: {
		StatusSystemCancelled,
		StatusSystemCancelError,
	},
	StatusUserCancelReady: {
		StatusUserCancelled,
		StatusUserCancelError,
	},

	// Terminal statuses.
	StatusAuthorisationRejected:  {},
	StatusAuthorisationError:     {},
	StatusAuthorisationCancelled: {},
	StatusCaptureError:           {},
	StatusCaptured:               {},
	StatusExpireCancelFailed:     {},
	StatusExpired:                {},
	StatusSystemCancelError:      {},
	StatusSystemCancelled:        {},
	StatusUserCancelError:        {},
	StatusUserCancelled:          {},
}

// SyncTransitions is the transition table for synchronous gateways (the
// sandbox). The authorise and capture calls return terminal outcomes
// in-line, so AUTHORISATION_SUBMITTED does not exist in this graph and
// CAPTURE_READY can reach CAPTURED directly.
var SyncTransitions = TransitionTable{
	StatusCreated: {
		StatusEnteringCardDetails,
		StatusSystemCancelled,
		StatusExpired,
	},
	StatusEnteringCardDetails: {
		StatusAuthorisationReady,
		StatusSystemCancelled,
		StatusUserCancelled,
		StatusExpired,
	},
	StatusAuthorisationReady: {
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
		StatusAuthorisation3DSRequired,
		StatusAuthorisationCancelled,
	},
	StatusAuthorisation3DSRequired: {
		StatusAuthorisation3DSReady,
		StatusUserCancelled,
		StatusExpired,
	},
	StatusAuthorisation3DSReady: {
		StatusAuthorisationSuccess,
		StatusAuthorisationRejected,
		StatusAuthorisationError,
	},
	StatusAuthorisationSuccess: {
		StatusCaptureApproved,
		StatusCaptureReady,
		StatusSystemCancelReady,
		StatusUserCancelReady,
		StatusExpireCancelReady,
	},
	StatusCaptureApproved: {
		StatusCaptureReady,
		StatusCaptureError,
	},
	StatusCaptureApprovedRetry: {
		StatusCaptureReady,
		StatusCaptureError,
	},
	StatusCaptureReady: {
		StatusCaptured,
		StatusCaptureApprovedRetry,
		StatusCaptureError,
	},
	StatusExpireCancelReady: {
		StatusExpired,
		StatusExpireCancelFailed,
	},
	StatusSystemCancelReady: {
		StatusSystemCancelled,
		StatusSystemCancelError,
	},
	StatusUserCancelReady: {
		StatusUserCancelled,
		StatusUserCancelError,
	},

	// Terminal statuses.
	StatusAuthorisationRejected:  {},
	StatusAuthorisationError:     {},
	StatusAuthorisationCancelled: {},
	StatusCaptureError:           {},
	StatusCaptured:               {},
	StatusExpireCancelFailed:     {},
	StatusExpired:                {},
	StatusSystemCancelError:      {},
	StatusSystemCancelled:        {},
	StatusUserCancelError:        {},
	StatusUserCancelled:          {},
}

var variantTables = map[GatewayVariant]TransitionTable{
	VariantAsync: AsyncTransitions,
	VariantSync:  SyncTransitions,
}

// RefundTransitions is the single refund transition table; refunds behave
// the same way on every gateway.
var RefundTransitions = map[RefundStatus][]RefundStatus{
	RefundCreated: {
		RefundSubmitted,
		RefundError,
	},
	RefundSubmitted: {
		RefundSucceeded,
		RefundError,
	},
	RefundSucceeded: {},
	RefundError:     {},
}

// Table returns the transition table for a variant. Unknown variants get an
// empty table, so every transition check against them fails closed.
func Table(variant GatewayVariant) TransitionTable {
	if t, ok := variantTables[variant]; ok {
		return t
	}
	return TransitionTable{}
}

// CanTransition reports whether a charge on the given variant may move from
// one status to another in a single hop.
func CanTransition(variant GatewayVariant, from, to ChargeStatus) bool {
	allowed, exists := Table(variant)[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error if the transition is not allowed.
func ValidateTransition(variant GatewayVariant, from, to ChargeStatus) error {
	if !CanTransition(variant, from, to) {
		return NewInvalidTransitionError(string(from), string(to))
	}
	return nil
}

// IsTerminal reports whether no transition out of the status exists for the
// variant.
func IsTerminal(variant GatewayVariant, status ChargeStatus) bool {
	allowed, exists := Table(variant)[status]
	return !exists || len(allowed) == 0
}

// PredecessorsOf returns every status from which the given status is
// reachable in one hop on the variant. The reconciliation handler uses this
// as the expected-status set for conditional updates, because a notification
// does not know which intermediate state the record is currently in.
func PredecessorsOf(variant GatewayVariant, to ChargeStatus) []ChargeStatus {
	var from []ChargeStatus
	for _, s := range AllChargeStatuses {
		if CanTransition(variant, s, to) {
			from = append(from, s)
		}
	}
	return from
}

// CanTransitionRefund reports whether a refund may move from one status to
// another in a single hop.
func CanTransitionRefund(from, to RefundStatus) bool {
	allowed, exists := RefundTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateRefundTransition returns an error if the refund transition is not
// allowed.
func ValidateRefundTransition(from, to RefundStatus) error {
	if !CanTransitionRefund(from, to) {
		return NewInvalidTransitionError(string(from), string(to))
	}
	return nil
}

// RefundPredecessorsOf returns every refund status from which the given
// status is reachable in one hop.
func RefundPredecessorsOf(to RefundStatus) []RefundStatus {
	var from []RefundStatus
	for _, s := range AllRefundStatuses {
		if CanTransitionRefund(s, to) {
			from = append(from, s)
		}
	}
	return from
}
