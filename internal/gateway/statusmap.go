package gateway

import "payconnect/internal/domain"

// Per-provider notification status-code mappings. Plain data, loaded at
// init: a provider's code either maps to exactly one internal charge or
// refund status, or it is unknown and the notification is discarded.

var chargeStatusMaps = map[string]map[string]domain.ChargeStatus{
	domain.ProviderWorldpay: {
		"AUTHORISED":           domain.StatusAuthorisationSuccess,
		"REFUSED":              domain.StatusAuthorisationRejected,
		"ERROR":                domain.StatusAuthorisationError,
		"CAPTURED":             domain.StatusCaptured,
		"CANCELLED":            domain.StatusSystemCancelled,
		"EXPIRED":              domain.StatusExpired,
		"CAPTURE_FAILED":       domain.StatusCaptureError,
		"AUTHORISED_CANCELLED": domain.StatusAuthorisationCancelled,
	},
	domain.ProviderSmartpay: {
		"AUTHORISATION":  domain.StatusAuthorisationSuccess,
		"CAPTURE":        domain.StatusCaptured,
		"CANCELLATION":   domain.StatusSystemCancelled,
		"REFUSED":        domain.StatusAuthorisationRejected,
		"CAPTURE_FAILED": domain.StatusCaptureError,
	},
	domain.ProviderEpdq: {
		"5":  domain.StatusAuthorisationSuccess,
		"2":  domain.StatusAuthorisationRejected,
		"9":  domain.StatusCaptured,
		"6":  domain.StatusSystemCancelled,
		"93": domain.StatusCaptureError,
	},
	domain.ProviderSandbox: {
		"AUTHORISED": domain.StatusAuthorisationSuccess,
		"REFUSED":    domain.StatusAuthorisationRejected,
		"CAPTURED":   domain.StatusCaptured,
	},
}

var refundStatusMaps = map[string]map[string]domain.RefundStatus{
	domain.ProviderWorldpay: {
		"SENT_FOR_REFUND":      domain.RefundSubmitted,
		"REFUNDED":             domain.RefundSucceeded,
		"REFUND_FAILED":        domain.RefundError,
		"REFUNDED_BY_MERCHANT": domain.RefundSucceeded,
	},
	domain.ProviderSmartpay: {
		"REFUND":        domain.RefundSucceeded,
		"REFUND_FAILED": domain.RefundError,
	},
	domain.ProviderEpdq: {
		"8":  domain.RefundSucceeded,
		"83": domain.RefundError,
	},
	domain.ProviderSandbox: {
		"REFUNDED": domain.RefundSucceeded,
	},
}

// ChargeStatusFor maps a provider's notification code to an internal charge
// status. ok is false when the provider or code is unknown.
func ChargeStatusFor(provider, code string) (domain.ChargeStatus, bool) {
	codes, found := chargeStatusMaps[provider]
	if !found {
		return "", false
	}
	status, found := codes[code]
	return status, found
}

// RefundStatusFor maps a provider's notification code to an internal refund
// status. ok is false when the provider or code is unknown.
func RefundStatusFor(provider, code string) (domain.RefundStatus, bool) {
	codes, found := refundStatusMaps[provider]
	if !found {
		return "", false
	}
	status, found := codes[code]
	return status, found
}
