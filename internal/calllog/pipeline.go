package calllog

import (
	"github.com/hamzaKhattat/calllog-production-system/internal/models"
)

// Reconcile transforms the raw call list into the logical call list:
// normalize field shapes, fold ring-out leg pairs into single calls, then
// drop superseded intermediate records. Pure end-to-end; reconciling the
// same input twice yields a value-equal output.
func Reconcile(raw []models.Call) []models.LogicalCall {
	normalized := make([]models.Call, len(raw))
	for i, call := range raw {
		normalized[i] = NormalizeFromTo(NormalizeStartTime(call))
	}
	return RemoveDuplicateIntermediateCalls(RemoveInboundRingOutLegs(normalized))
}

// LessBySessionID orders calls by ascending session id.
func LessBySessionID(a, b *models.Call) bool {
	return a.SessionID < b.SessionID
}

// LessByStartTime orders calls newest first.
func LessByStartTime(a, b *models.Call) bool {
	return a.StartTime > b.StartTime
}
