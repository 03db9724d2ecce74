package calllog

import (
	"testing"
	"time"

	"github.com/hamzaKhattat/calllog-production-system/internal/models"
)

func TestNormalizeStartTime(t *testing.T) {
	tests := []struct {
		name string
		call models.Call
		want int64
	}{
		{
			name: "already numeric",
			call: models.Call{StartTime: 1620000000000},
			want: 1620000000000,
		},
		{
			name: "numeric string",
			call: models.Call{RawStartTime: "1620000000000"},
			want: 1620000000000,
		},
		{
			name: "rfc3339",
			call: models.Call{RawStartTime: "2021-03-04T05:06:07Z"},
			want: time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC).UnixMilli(),
		},
		{
			name: "space separated",
			call: models.Call{RawStartTime: "2021-03-04 05:06:07"},
			want: time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC).UnixMilli(),
		},
		{
			name: "date only",
			call: models.Call{RawStartTime: "2021-03-04"},
			want: time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC).UnixMilli(),
		},
		{
			name: "unparseable",
			call: models.Call{RawStartTime: "not a date"},
			want: models.InvalidStartTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeStartTime(tt.call)
			if got.StartTime != tt.want {
				t.Errorf("StartTime = %d, want %d", got.StartTime, tt.want)
			}
			if got.RawStartTime != "" {
				t.Errorf("RawStartTime not cleared: %q", got.RawStartTime)
			}
		})
	}
}

func TestNormalizeStartTimeDoesNotMutateInput(t *testing.T) {
	input := models.Call{SessionID: "1", RawStartTime: "2021-03-04"}
	NormalizeStartTime(input)
	if input.RawStartTime != "2021-03-04" || input.StartTime != 0 {
		t.Errorf("input mutated: %+v", input)
	}
}

func TestNormalizeFromTo(t *testing.T) {
	t.Run("bare strings wrapped", func(t *testing.T) {
		got := NormalizeFromTo(models.Call{RawFrom: "6505550100", RawTo: "9072028624"})
		if got.From == nil || got.From.PhoneNumber != "6505550100" {
			t.Errorf("From = %+v", got.From)
		}
		if got.To == nil || got.To.PhoneNumber != "9072028624" {
			t.Errorf("To = %+v", got.To)
		}
		if got.RawFrom != "" || got.RawTo != "" {
			t.Error("raw fields not cleared")
		}
	})

	t.Run("existing parties kept", func(t *testing.T) {
		from := &models.Party{PhoneNumber: "6505550100", Name: "Alice"}
		got := NormalizeFromTo(models.Call{From: from, RawFrom: "ignored"})
		if got.From.Name != "Alice" || got.From.PhoneNumber != "6505550100" {
			t.Errorf("From = %+v", got.From)
		}
	})

	t.Run("absent stays nil", func(t *testing.T) {
		got := NormalizeFromTo(models.Call{})
		if got.From != nil || got.To != nil {
			t.Errorf("expected nil parties, got %+v / %+v", got.From, got.To)
		}
	})
}
