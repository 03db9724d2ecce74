package models

import (
	"encoding/json"
	"testing"
)

func TestCallUnmarshalFlexibleShapes(t *testing.T) {
	t.Run("canonical shape", func(t *testing.T) {
		data := `{
			"sessionId": "100001000",
			"direction": "Outbound",
			"telephonyStatus": "CallConnected",
			"startTime": 1620000000000,
			"from": {"phoneNumber": "+16505550100", "extensionNumber": "101"},
			"to": {"phoneNumber": "+19072028624", "name": "Bob"},
			"action": "RingOut Web",
			"duration": 42
		}`
		var call Call
		if err := json.Unmarshal([]byte(data), &call); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if call.SessionID != "100001000" {
			t.Errorf("sessionId = %q", call.SessionID)
		}
		if call.StartTime != 1620000000000 || call.RawStartTime != "" {
			t.Errorf("startTime = %d raw=%q", call.StartTime, call.RawStartTime)
		}
		if call.From == nil || call.From.ExtensionNumber != "101" {
			t.Errorf("from = %+v", call.From)
		}
		if call.To == nil || call.To.Name != "Bob" {
			t.Errorf("to = %+v", call.To)
		}
		if call.Duration == nil || *call.Duration != 42 {
			t.Errorf("duration = %v", call.Duration)
		}
	})

	t.Run("numeric session id", func(t *testing.T) {
		var call Call
		if err := json.Unmarshal([]byte(`{"sessionId": 100001000}`), &call); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if call.SessionID != "100001000" {
			t.Errorf("sessionId = %q, want string form of the number", call.SessionID)
		}
	})

	t.Run("date string start time staged raw", func(t *testing.T) {
		var call Call
		if err := json.Unmarshal([]byte(`{"sessionId": "1", "startTime": "2021-03-04T05:06:07Z"}`), &call); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if call.StartTime != 0 {
			t.Errorf("startTime = %d, want 0 until normalized", call.StartTime)
		}
		if call.RawStartTime != "2021-03-04T05:06:07Z" {
			t.Errorf("rawStartTime = %q", call.RawStartTime)
		}
	})

	t.Run("numeric string start time folds immediately", func(t *testing.T) {
		var call Call
		if err := json.Unmarshal([]byte(`{"sessionId": "1", "startTime": "1620000000000"}`), &call); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if call.StartTime != 1620000000000 || call.RawStartTime != "" {
			t.Errorf("startTime = %d raw=%q", call.StartTime, call.RawStartTime)
		}
	})

	t.Run("bare string parties staged raw", func(t *testing.T) {
		var call Call
		if err := json.Unmarshal([]byte(`{"sessionId": "1", "from": "6505550100", "to": "9072028624"}`), &call); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if call.From != nil || call.To != nil {
			t.Errorf("parties = %+v / %+v, want staged raw", call.From, call.To)
		}
		if call.RawFrom != "6505550100" || call.RawTo != "9072028624" {
			t.Errorf("raw parties = %q / %q", call.RawFrom, call.RawTo)
		}
	})

	t.Run("null fields tolerated", func(t *testing.T) {
		var call Call
		if err := json.Unmarshal([]byte(`{"sessionId": null, "startTime": null, "from": null}`), &call); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if call.SessionID != "" || call.StartTime != 0 || call.From != nil {
			t.Errorf("null fields not zeroed: %+v", call)
		}
	})
}

func TestLogicalCallUnmarshalKeepsLegs(t *testing.T) {
	data := `{
		"sessionId": "100001000",
		"direction": "Outbound",
		"inboundLeg": {"sessionId": "100002000", "direction": "Inbound"},
		"outboundLeg": {"sessionId": "100001000", "direction": "Outbound"}
	}`
	var call LogicalCall
	if err := json.Unmarshal([]byte(data), &call); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if call.SessionID != "100001000" {
		t.Errorf("sessionId = %q", call.SessionID)
	}
	if call.InboundLeg == nil || call.InboundLeg.SessionID != "100002000" {
		t.Errorf("inboundLeg = %+v", call.InboundLeg)
	}
	if call.OutboundLeg == nil || call.OutboundLeg.SessionID != "100001000" {
		t.Errorf("outboundLeg = %+v", call.OutboundLeg)
	}
}

func TestCallClone(t *testing.T) {
	duration := int64(30)
	original := Call{
		SessionID: "1",
		From:      &Party{PhoneNumber: "6505550100"},
		To:        &Party{PhoneNumber: "9072028624"},
		Duration:  &duration,
	}

	clone := original.Clone()
	clone.From.PhoneNumber = "changed"
	*clone.Duration = 99

	if original.From.PhoneNumber != "6505550100" {
		t.Error("clone shares the From party")
	}
	if *original.Duration != 30 {
		t.Error("clone shares the Duration pointer")
	}
}

func TestPartyCloneNil(t *testing.T) {
	var p *Party
	if p.Clone() != nil {
		t.Error("nil party must clone to nil")
	}
}
