package textnorm

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jiří", "Jiri"},
		{"Černý", "Cerny"},
		{"café", "cafe"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := RemoveDiacritics(tt.input); got != tt.expected {
			t.Errorf("RemoveDiacritics(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jiří Novák", "jiri novak"},
		{"  spaced   out  ", "spaced out"},
		{"MiXeD CaSe", "mixed case"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestContains(t *testing.T) {
	if !Contains("photos/Jiří/beach.jpg", "jiri") {
		t.Error("expected normalized match on diacritics")
	}
	if Contains("photos/holiday.jpg", "beach") {
		t.Error("unexpected match")
	}
}
