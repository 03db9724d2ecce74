// Package calllog turns the raw, multi-leg call list reported by the
// telephony event source into a clean list of logical calls. All functions
// in this package are pure: they never mutate their inputs and tolerate
// missing fields by treating them as empty.
package calllog

import (
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
)

// IsInbound reports whether the call direction is inbound.
func IsInbound(call *models.Call) bool {
	return call != nil && call.Direction == models.DirectionInbound
}

// IsOutbound reports whether the call direction is outbound.
func IsOutbound(call *models.Call) bool {
	return call != nil && call.Direction == models.DirectionOutbound
}

// IsRinging reports whether the call is currently ringing.
func IsRinging(call *models.Call) bool {
	return call != nil && call.TelephonyStatus == models.StatusRinging
}

// IsEnded reports whether the call has terminally ended.
func IsEnded(call *models.Call) bool {
	return call != nil &&
		call.TelephonyStatus == models.StatusNoCall &&
		call.TerminationType == models.TerminationFinal
}

// IsOnHold reports whether the call is on hold.
func IsOnHold(call *models.Call) bool {
	return call != nil && call.TelephonyStatus == models.StatusOnHold
}

// IsIntermediateCall reports whether the record is a transient end-of-call
// state that a later record for the same session identity supersedes.
func IsIntermediateCall(call *models.Call) bool {
	return call != nil &&
		call.TelephonyStatus == models.StatusNoCall &&
		call.TerminationType == models.TerminationIntermediate
}

// HasRingingCalls reports whether any call in the list is ringing.
func HasRingingCalls(calls []models.LogicalCall) bool {
	for i := range calls {
		if IsRinging(&calls[i].Call) {
			return true
		}
	}
	return false
}

// HasEndedCalls reports whether any call in the list has terminally ended.
func HasEndedCalls(calls []models.LogicalCall) bool {
	for i := range calls {
		if IsEnded(&calls[i].Call) {
			return true
		}
	}
	return false
}
