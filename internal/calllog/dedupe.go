package calllog

import (
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
)

// RemoveDuplicateIntermediateCalls collapses records sharing a session
// identity down to the most final one. While the stored record for an
// identity is still an intermediate termination, a later record replaces
// it in place (even if that one is intermediate too); once a final record
// has been stored, later repeats are ignored.
func RemoveDuplicateIntermediateCalls(calls []models.LogicalCall) []models.LogicalCall {
	type seenEntry struct {
		index        int
		intermediate bool
	}

	result := make([]models.LogicalCall, 0, len(calls))
	seen := make(map[string]seenEntry)

	for _, call := range calls {
		intermediate := IsIntermediateCall(&call.Call)
		entry, ok := seen[call.SessionID]
		if !ok {
			seen[call.SessionID] = seenEntry{index: len(result), intermediate: intermediate}
			result = append(result, call)
			continue
		}
		if entry.intermediate {
			result[entry.index] = call
			seen[call.SessionID] = seenEntry{index: entry.index, intermediate: intermediate}
		}
	}

	return result
}
