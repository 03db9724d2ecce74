package calllog

import (
	"strconv"
	"time"

	"github.com/hamzaKhattat/calllog-production-system/internal/models"
)

// Date layouts the event source has been observed to emit.
var startTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NormalizeStartTime returns a copy of the call with StartTime coerced to
// epoch milliseconds. A date string the source reported is parsed and
// folded in; an unparseable one yields models.InvalidStartTime rather than
// an error.
func NormalizeStartTime(call models.Call) models.Call {
	out := call.Clone()
	if out.RawStartTime == "" {
		return out
	}

	raw := out.RawStartTime
	out.RawStartTime = ""
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		out.StartTime = ms
		return out
	}
	for _, layout := range startTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			out.StartTime = t.UnixMilli()
			return out
		}
	}
	out.StartTime = models.InvalidStartTime
	return out
}

// NormalizeFromTo returns a copy of the call where a bare phone-number
// string reported for from/to is wrapped as a Party.
func NormalizeFromTo(call models.Call) models.Call {
	out := call.Clone()
	if out.From == nil && out.RawFrom != "" {
		out.From = &models.Party{PhoneNumber: out.RawFrom}
	}
	if out.To == nil && out.RawTo != "" {
		out.To = &models.Party{PhoneNumber: out.RawTo}
	}
	out.RawFrom = ""
	out.RawTo = ""
	return out
}
