package phone

import "testing"

func TestCleanNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"formatted", "(907) 202-8624", "9072028624"},
		{"formatted with plus", "+1 (907) 202-8624", "+19072028624"},
		{"star extension", "101*22", "101*22"},
		{"hash extension", "101#22", "101*22"},
		{"leading delimiter", "#123", "*123"},
		{"extra segments dropped", "101*22*33", "101*22"},
		{"interior plus dropped", "907+2028624", "9072028624"},
		{"letters dropped", "1-800-FLOWERS", "1800"},
		{"empty", "", ""},
		{"only junk", "abc-()", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanNumber(tt.input); got != tt.want {
				t.Errorf("CleanNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsSameLocalNumber(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "9072028624", "9072028624", true},
		{"country code prefix", "+19072028624", "9072028624", true},
		{"prefix either side", "9072028624", "+19072028624", true},
		{"formatting ignored", "(907) 202-8624", "+1 907-202-8624", true},
		{"different numbers", "9072028624", "9072028625", false},
		{"same length different", "+19072028624", "+29072028624", false},
		{"empty left", "", "9072028624", false},
		{"empty both", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSameLocalNumber(tt.a, tt.b); got != tt.want {
				t.Errorf("IsSameLocalNumber(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIsValidNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid e164", "+14155552671", true},
		{"valid national", "(415) 555-2671", true},
		{"too short", "123", false},
		{"empty", "", false},
		{"garbage", "not-a-number", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidNumber(tt.input); got != tt.want {
				t.Errorf("IsValidNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
