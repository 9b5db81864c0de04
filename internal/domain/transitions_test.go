package domain

import (
	"testing"
)

// expectedAsync restates the async transition graph independently of the
// production table, so an accidental edit to either shows up as a diff in
// the exhaustive cross-product below.
var expectedAsync = map[ChargeStatus][]ChargeStatus{
	StatusCreated:                  {StatusEnteringCardDetails, StatusSystemCancelled, StatusExpired},
	StatusEnteringCardDetails:      {StatusAuthorisationReady, StatusSystemCancelled, StatusUserCancelled, StatusExpired},
	StatusAuthorisationReady:       {StatusAuthorisationSubmitted, StatusAuthorisation3DSRequired, StatusAuthorisationCancelled, StatusAuthorisationError},
	StatusAuthorisationSubmitted:   {StatusAuthorisationSuccess, StatusAuthorisationRejected, StatusAuthorisationError, StatusAuthorisation3DSRequired},
	StatusAuthorisation3DSRequired: {StatusAuthorisation3DSReady, StatusUserCancelled, StatusExpired},
	StatusAuthorisation3DSReady:    {StatusAuthorisationSubmitted, StatusAuthorisationRejected, StatusAuthorisationError, StatusAuthorisationCancelled},
	StatusAuthorisationSuccess:     {StatusCaptureApproved, StatusCaptureReady, StatusSystemCancelReady, StatusUserCancelReady, StatusExpireCancelReady},
	StatusCaptureApproved:          {StatusCaptureReady, StatusCaptureError},
	StatusCaptureApprovedRetry:     {StatusCaptureReady, StatusCaptureError},
	StatusCaptureReady:             {StatusCaptureSubmitted, StatusCaptureApprovedRetry, StatusCaptureError, StatusCaptured},
	StatusCaptureSubmitted:         {StatusCaptured},
	StatusExpireCancelReady:        {StatusExpired, StatusExpireCancelFailed},
	StatusSystemCancelReady:        {StatusSystemCancelled, StatusSystemCancelError},
	StatusUserCancelReady:          {StatusUserCancelled, StatusUserCancelError},
}

// expectedSync restates the sync (sandbox) graph.
var expectedSync = map[ChargeStatus][]ChargeStatus{
	StatusCreated:                  {StatusEnteringCardDetails, StatusSystemCancelled, StatusExpired},
	StatusEnteringCardDetails:      {StatusAuthorisationReady, StatusSystemCancelled, StatusUserCancelled, StatusExpired},
	StatusAuthorisationReady:       {StatusAuthorisationSuccess, StatusAuthorisationRejected, StatusAuthorisationError, StatusAuthorisation3DSRequired, StatusAuthorisationCancelled},
	StatusAuthorisation3DSRequired: {StatusAuthorisation3DSReady, StatusUserCancelled, StatusExpired},
	StatusAuthorisation3DSReady:    {StatusAuthorisationSuccess, StatusAuthorisationRejected, StatusAuthorisationError},
	StatusAuthorisationSuccess:     {StatusCaptureApproved, StatusCaptureReady, StatusSystemCancelReady, StatusUserCancelReady, StatusExpireCancelReady},
	StatusCaptureApproved:          {StatusCaptureReady, StatusCaptureError},
	StatusCaptureApprovedRetry:     {StatusCaptureReady, StatusCaptureError},
	StatusCaptureReady:             {StatusCaptured, StatusCaptureApprovedRetry, StatusCaptureError},
	StatusExpireCancelReady:        {StatusExpired, StatusExpireCancelFailed},
	StatusSystemCancelReady:        {StatusSystemCancelled, StatusSystemCancelError},
	StatusUserCancelReady:          {StatusUserCancelled, StatusUserCancelError},
}

func contains(set []ChargeStatus, s ChargeStatus) bool {
	for _, member := range set {
		if member == s {
			return true
		}
	}
	return false
}

func TestCanTransition_ExhaustiveCrossProduct(t *testing.T) {
	variants := []struct {
		name     string
		variant  GatewayVariant
		expected map[ChargeStatus][]ChargeStatus
	}{
		{"async", VariantAsync, expectedAsync},
		{"sync", VariantSync, expectedSync},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			for _, from := range AllChargeStatuses {
				for _, to := range AllChargeStatuses {
					want := contains(v.expected[from], to)
					got := CanTransition(v.variant, from, to)
					if got != want {
						t.Errorf("CanTransition(%s, %s, %s) = %v, want %v", v.variant, from, to, got, want)
					}
				}
			}
		})
	}
}

func TestCanTransition_FailsClosed(t *testing.T) {
	if CanTransition(VariantAsync, "BOGUS", StatusCaptured) {
		t.Error("unknown from-status should not be allowed")
	}
	if CanTransition(VariantAsync, StatusCaptureSubmitted, "BOGUS") {
		t.Error("unknown to-status should not be allowed")
	}
	if CanTransition("martian", StatusCreated, StatusEnteringCardDetails) {
		t.Error("unknown variant should not be allowed")
	}
}

func TestCanTransition_SyncVariantSkipsSubmitted(t *testing.T) {
	// The sandbox answers authorise in-line: AUTHORISATION_SUBMITTED is not
	// part of its graph at all.
	if CanTransition(VariantSync, StatusAuthorisationReady, StatusAuthorisationSubmitted) {
		t.Error("sync variant should not enter AUTHORISATION_SUBMITTED")
	}
	if CanTransition(VariantSync, StatusAuthorisationSubmitted, StatusAuthorisationSuccess) {
		t.Error("sync variant should not leave AUTHORISATION_SUBMITTED")
	}
	if !CanTransition(VariantSync, StatusAuthorisationReady, StatusAuthorisationSuccess) {
		t.Error("sync variant should authorise directly from AUTHORISATION_READY")
	}
	if !CanTransition(VariantSync, StatusCaptureReady, StatusCaptured) {
		t.Error("sync variant should capture directly from CAPTURE_READY")
	}
	if CanTransition(VariantSync, StatusCaptureReady, StatusCaptureSubmitted) {
		t.Error("sync variant should not enter CAPTURE_SUBMITTED")
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []ChargeStatus{
		StatusAuthorisationRejected,
		StatusAuthorisationError,
		StatusAuthorisationCancelled,
		StatusCaptureError,
		StatusCaptured,
		StatusExpireCancelFailed,
		StatusExpired,
		StatusSystemCancelError,
		StatusSystemCancelled,
		StatusUserCancelError,
		StatusUserCancelled,
	}
	isTerminal := func(s ChargeStatus) bool {
		for _, term := range terminal {
			if term == s {
				return true
			}
		}
		return false
	}

	for _, variant := range []GatewayVariant{VariantAsync, VariantSync} {
		for _, s := range AllChargeStatuses {
			want := isTerminal(s)
			// AUTHORISATION_SUBMITTED has no entry in the sync table, which
			// also makes it terminal there by the fail-closed rule.
			if variant == VariantSync && s == StatusAuthorisationSubmitted {
				want = true
			}
			if got := IsTerminal(variant, s); got != want {
				t.Errorf("IsTerminal(%s, %s) = %v, want %v", variant, s, got, want)
			}
		}
	}
}

func TestValidateTransition(t *testing.T) {
	if err := ValidateTransition(VariantAsync, StatusCaptureSubmitted, StatusCaptured); err != nil {
		t.Errorf("legal transition returned error: %v", err)
	}

	err := ValidateTransition(VariantAsync, StatusCaptured, StatusAuthorisationSuccess)
	if err == nil {
		t.Fatal("illegal transition should return error")
	}
	if !IsInvalidTransition(err) {
		t.Errorf("error = %T, want *InvalidTransitionError", err)
	}
}

func TestPredecessorsOf(t *testing.T) {
	tests := []struct {
		variant GatewayVariant
		to      ChargeStatus
		want    []ChargeStatus
	}{
		{VariantAsync, StatusCaptured, []ChargeStatus{StatusCaptureReady, StatusCaptureSubmitted}},
		{VariantSync, StatusCaptured, []ChargeStatus{StatusCaptureReady}},
		{VariantAsync, StatusCaptureReady, []ChargeStatus{StatusAuthorisationSuccess, StatusCaptureApproved, StatusCaptureApprovedRetry}},
		{VariantAsync, StatusCreated, nil},
	}

	for _, tt := range tests {
		got := PredecessorsOf(tt.variant, tt.to)
		if len(got) != len(tt.want) {
			t.Errorf("PredecessorsOf(%s, %s) = %v, want %v", tt.variant, tt.to, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("PredecessorsOf(%s, %s) = %v, want %v", tt.variant, tt.to, got, tt.want)
				break
			}
		}
	}
}

func TestRefundTransitions_Exhaustive(t *testing.T) {
	expected := map[RefundStatus][]RefundStatus{
		RefundCreated:   {RefundSubmitted, RefundError},
		RefundSubmitted: {RefundSucceeded, RefundError},
	}

	for _, from := range AllRefundStatuses {
		for _, to := range AllRefundStatuses {
			want := false
			for _, s := range expected[from] {
				if s == to {
					want = true
				}
			}
			if got := CanTransitionRefund(from, to); got != want {
				t.Errorf("CanTransitionRefund(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestExternalStatus_TotalMapping(t *testing.T) {
	for _, s := range AllChargeStatuses {
		if !s.Valid() {
			t.Errorf("status %s missing from external mapping", s)
		}
	}
	if got := StatusCaptured.External(); got != ExternalSuccess {
		t.Errorf("CAPTURED external = %s, want %s", got, ExternalSuccess)
	}
	if got := StatusAuthorisationRejected.External(); got != ExternalDeclined {
		t.Errorf("AUTHORISATION_REJECTED external = %s, want %s", got, ExternalDeclined)
	}
	if got := RefundSucceeded.External(); got != ExternalSuccess {
		t.Errorf("REFUNDED external = %s, want %s", got, ExternalSuccess)
	}
}
