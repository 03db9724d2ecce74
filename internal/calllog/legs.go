package calllog

import (
	"strconv"

	"github.com/hamzaKhattat/calllog-production-system/internal/models"
	"github.com/hamzaKhattat/calllog-production-system/internal/phone"
)

// The source numbers the two legs of a ring-out call so that their session
// ids differ by exactly one of these values.
var legDistances = map[int64]bool{
	1000: true,
	2000: true,
	3000: true,
	4000: true,
}

func isRingOutAction(action models.CallAction) bool {
	switch action {
	case models.ActionRingOutWeb, models.ActionRingOutPC, models.ActionRingOutMobile:
		return true
	}
	return false
}

func sessionDistance(a, b string) (int64, bool) {
	idA, errA := strconv.ParseInt(a, 10, 64)
	idB, errB := strconv.ParseInt(b, 10, 64)
	if errA != nil || errB != nil {
		return 0, false
	}
	d := idA - idB
	if d < 0 {
		d = -d
	}
	return d, true
}

// AreTwoLegs decides whether two raw records are the inbound and outbound
// legs of one logical call. The session-distance rule rejects everything
// else outright; past that, the pair is accepted when either the presence
// shape (crossed from/to numbers) or the call-log shape (phone-call inbound
// against a ring-out outbound with aligned callers) matches. The two
// branches mirror the two upstream event shapes describing the same
// physical correlation.
func AreTwoLegs(inbound, outbound *models.Call) bool {
	if !IsInbound(inbound) || !IsOutbound(outbound) {
		return false
	}

	distance, ok := sessionDistance(inbound.SessionID, outbound.SessionID)
	if !ok || !legDistances[distance] {
		return false
	}

	// presence
	if inbound.From != nil && inbound.To != nil &&
		outbound.From != nil && outbound.To != nil &&
		phone.IsSameLocalNumber(inbound.From.PhoneNumber, outbound.To.PhoneNumber) &&
		phone.IsSameLocalNumber(inbound.To.PhoneNumber, outbound.From.PhoneNumber) {
		return true
	}

	// call-log
	if inbound.Action == models.ActionPhoneCall && isRingOutAction(outbound.Action) &&
		inbound.From != nil && inbound.To != nil &&
		outbound.From != nil && outbound.To != nil &&
		(inbound.From.PhoneNumber == outbound.From.PhoneNumber ||
			inbound.From.ExtensionNumber == outbound.From.ExtensionNumber) &&
		inbound.To.PhoneNumber == outbound.To.PhoneNumber {
		return true
	}

	return false
}

// RemoveInboundRingOutLegs pairs each inbound record with the first
// not-yet-claimed outbound record satisfying AreTwoLegs and merges the two
// into one logical call. Unmatched inbound and direction-less records pass
// through in input order, followed by unclaimed outbound records. The output
// never has more records than the input and never loses an unmatched one.
//
// When several outbound candidates match one inbound leg the first in
// iteration order wins. That is a heuristic limitation of the source's
// numbering convention, not something this function can correct.
func RemoveInboundRingOutLegs(calls []models.Call) []models.LogicalCall {
	output := make([]models.LogicalCall, 0, len(calls))

	var outbounds []models.Call
	for i := range calls {
		if IsOutbound(&calls[i]) {
			outbounds = append(outbounds, calls[i].Clone())
		}
	}
	claimed := make([]bool, len(outbounds))

	for i := range calls {
		if IsOutbound(&calls[i]) {
			continue
		}
		inbound := calls[i].Clone()
		if !IsInbound(&inbound) {
			// Direction-less records cannot be a leg; pass them through.
			output = append(output, models.LogicalCall{Call: inbound})
			continue
		}

		matched := -1
		for j := range outbounds {
			if !claimed[j] && AreTwoLegs(&inbound, &outbounds[j]) {
				matched = j
				break
			}
		}
		if matched == -1 {
			output = append(output, models.LogicalCall{Call: inbound})
			continue
		}

		claimed[matched] = true
		output = append(output, mergeLegs(inbound, outbounds[matched]))
	}

	for j := range outbounds {
		if !claimed[j] {
			output = append(output, models.LogicalCall{Call: outbounds[j]})
		}
	}

	return output
}

// mergeLegs builds the logical call for a correlated leg pair. Both legs
// are owned copies by the time they get here.
func mergeLegs(inbound, outbound models.Call) models.LogicalCall {
	if inbound.Action != "" && outbound.Action != "" {
		// Call-log shape: the outbound leg carries the canonical record but
		// reports the platform's own leg as from/to. The inbound leg has
		// the real parties crossed, so swap them in, and its result is the
		// one the user saw.
		merged := outbound.Clone()
		merged.From = inbound.To.Clone()
		merged.To = inbound.From.Clone()
		merged.Result = inbound.Result
		return models.LogicalCall{
			Call:        merged,
			InboundLeg:  &inbound,
			OutboundLeg: &outbound,
		}
	}

	// Presence shape: the outbound leg is the logical call as-is, except
	// that its to number may be missing the country code the inbound leg
	// has (e.g. "9072028624" against "+19072028624"). When the inbound from
	// is a valid number for the same local line, correct the merged to —
	// and the consumed outbound leg copy — to the fuller form.
	merged := outbound.Clone()
	if inbound.From != nil && phone.IsValidNumber(inbound.From.PhoneNumber) &&
		outbound.To != nil &&
		phone.IsSameLocalNumber(inbound.From.PhoneNumber, outbound.To.PhoneNumber) {
		to := outbound.To.Clone()
		to.PhoneNumber = inbound.From.PhoneNumber
		merged.To = to
		outbound.To = to.Clone()
	}
	if IsOnHold(&inbound) {
		merged.TelephonyStatus = models.StatusOnHold
	}
	return models.LogicalCall{
		Call:        merged,
		InboundLeg:  &inbound,
		OutboundLeg: &outbound,
	}
}
