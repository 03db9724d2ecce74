package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Call directions
type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
)

// Telephony statuses as reported by the event source
type TelephonyStatus string

const (
	StatusRinging       TelephonyStatus = "Ringing"
	StatusCallConnected TelephonyStatus = "CallConnected"
	StatusOnHold        TelephonyStatus = "OnHold"
	StatusParkedCall    TelephonyStatus = "ParkedCall"
	StatusNoCall        TelephonyStatus = "NoCall"
)

// Termination types, meaningful only when status is NoCall
type TerminationType string

const (
	TerminationIntermediate TerminationType = "intermediate"
	TerminationFinal        TerminationType = "final"
)

// Call actions describe how a call was initiated
type CallAction string

const (
	ActionPhoneCall     CallAction = "Phone Call"
	ActionRingOutWeb    CallAction = "RingOut Web"
	ActionRingOutPC     CallAction = "RingOut PC"
	ActionRingOutMobile CallAction = "RingOut Mobile"
)

// Party is one side of a call leg
type Party struct {
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	ExtensionNumber string `json:"extensionNumber,omitempty"`
	Name            string `json:"name,omitempty"`
}

func (p *Party) Clone() *Party {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// InvalidStartTime marks a start time that could not be parsed. The
// normalizer never fails; a malformed date yields this sentinel instead.
const InvalidStartTime int64 = -1

// Call is one telephony event record as emitted by the source. A raw Call
// may represent only one leg of what a human considers one call.
//
// The source reports startTime either as epoch milliseconds or as a date
// string, and from/to either as objects or as bare phone-number strings.
// The decoded form keeps the string shapes in RawStartTime/RawFrom/RawTo
// until the normalizers fold them into the typed fields.
type Call struct {
	SessionID       string          `json:"sessionId"`
	Direction       Direction       `json:"direction,omitempty"`
	TelephonyStatus TelephonyStatus `json:"telephonyStatus,omitempty"`
	TerminationType TerminationType `json:"terminationType,omitempty"`
	StartTime       int64           `json:"startTime,omitempty"`
	From            *Party          `json:"from,omitempty"`
	To              *Party          `json:"to,omitempty"`
	Action          CallAction      `json:"action,omitempty"`
	Result          string          `json:"result,omitempty"`
	Duration        *int64          `json:"duration,omitempty"`

	RawStartTime string `json:"-"`
	RawFrom      string `json:"-"`
	RawTo        string `json:"-"`
}

func (c *Call) UnmarshalJSON(data []byte) error {
	var raw struct {
		SessionID       json.RawMessage `json:"sessionId"`
		Direction       Direction       `json:"direction"`
		TelephonyStatus TelephonyStatus `json:"telephonyStatus"`
		TerminationType TerminationType `json:"terminationType"`
		StartTime       json.RawMessage `json:"startTime"`
		From            json.RawMessage `json:"from"`
		To              json.RawMessage `json:"to"`
		Action          CallAction      `json:"action"`
		Result          string          `json:"result"`
		Duration        *int64          `json:"duration"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Call{
		SessionID:       decodeFlexID(raw.SessionID),
		Direction:       raw.Direction,
		TelephonyStatus: raw.TelephonyStatus,
		TerminationType: raw.TerminationType,
		Action:          raw.Action,
		Result:          raw.Result,
		Duration:        raw.Duration,
	}

	if ms, s, ok := decodeFlexTime(raw.StartTime); ok {
		c.StartTime = ms
		c.RawStartTime = s
	}
	c.From, c.RawFrom = decodeFlexParty(raw.From)
	c.To, c.RawTo = decodeFlexParty(raw.To)

	return nil
}

// decodeFlexID accepts a session id as a JSON string or number.
func decodeFlexID(data json.RawMessage) string {
	if len(data) == 0 || string(data) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeFlexTime accepts epoch milliseconds or a date string. Strings are
// left for NormalizeStartTime to parse.
func decodeFlexTime(data json.RawMessage) (ms int64, s string, ok bool) {
	if len(data) == 0 || string(data) == "null" {
		return 0, "", false
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		return n, "", true
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if v, perr := strconv.ParseInt(str, 10, 64); perr == nil {
			return v, "", true
		}
		return 0, str, true
	}
	return 0, "", false
}

// decodeFlexParty accepts a Party object or a bare phone-number string.
func decodeFlexParty(data json.RawMessage) (*Party, string) {
	if len(data) == 0 || string(data) == "null" {
		return nil, ""
	}
	var p Party
	if err := json.Unmarshal(data, &p); err == nil {
		return &p, ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return nil, s
	}
	return nil, ""
}

// Clone returns a deep copy of the call.
func (c Call) Clone() Call {
	clone := c
	clone.From = c.From.Clone()
	clone.To = c.To.Clone()
	if c.Duration != nil {
		d := *c.Duration
		clone.Duration = &d
	}
	return clone
}

// StartedAt converts the normalized start time to a time.Time.
func (c *Call) StartedAt() time.Time {
	return time.UnixMilli(c.StartTime)
}

// LogicalCall is the reconciled, user-facing unit: a call optionally merged
// from two raw ring-out legs. The logical call owns its leg copies.
type LogicalCall struct {
	Call
	InboundLeg  *Call `json:"inboundLeg,omitempty"`
	OutboundLeg *Call `json:"outboundLeg,omitempty"`
}

// UnmarshalJSON decodes the call fields and the leg fields. Without this
// the embedded Call's decoder would be promoted and the legs silently
// dropped.
func (lc *LogicalCall) UnmarshalJSON(data []byte) error {
	if err := lc.Call.UnmarshalJSON(data); err != nil {
		return err
	}
	var legs struct {
		InboundLeg  *Call `json:"inboundLeg"`
		OutboundLeg *Call `json:"outboundLeg"`
	}
	if err := json.Unmarshal(data, &legs); err != nil {
		return err
	}
	lc.InboundLeg = legs.InboundLeg
	lc.OutboundLeg = legs.OutboundLeg
	return nil
}

// MatchEntity is a contact or activity record resolved by a matcher.
// These are references into the host's data, never owned by the engine.
type MatchEntity struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// LogEntry is what a log provider receives for one call transition.
type LogEntry struct {
	Call       LogicalCall  `json:"call"`
	Provider   string       `json:"provider"`
	FromEntity *MatchEntity `json:"fromEntity,omitempty"`
	ToEntity   *MatchEntity `json:"toEntity,omitempty"`
}

// LoggerSettings are the user-facing auto-log switches, persisted per
// controller storage key.
type LoggerSettings struct {
	AutoLog      bool `json:"autoLog"`
	LogOnRinging bool `json:"logOnRinging"`
}
