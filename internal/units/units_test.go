package units

import (
	"math"
	"testing"
)

func TestConvertForce(t *testing.T) {
	tests := []struct {
		name     string
		kg       float64
		units    string
		expected float64
	}{
		{"10 kg to lb", 10.0, LB, 22.0462},
		{"10 kg to n", 10.0, N, 98.0665},
		{"10 kg to kg", 10.0, KG, 10.0},
		{"unknown units default to kg", 10.0, "unknown", 10.0},
		{"0 kg to lb", 0.0, LB, 0.0},
		{"bodyweight 72 kg to n", 72.0, N, 706.08},
		{"negative tare drift to lb", -0.5, LB, -1.1023},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertForce(tt.kg, tt.units)
			if math.Abs(result-tt.expected) > 0.01 {
				t.Errorf("ConvertForce(%f, %s) = %f, want %f", tt.kg, tt.units, result, tt.expected)
			}
		})
	}
}

func TestConvertLength(t *testing.T) {
	tests := []struct {
		cm       float64
		units    string
		expected float64
	}{
		{254, IN, 100},
		{150, M, 1.5},
		{3, CM, 3},
		{3, "", 3},
	}
	for _, tt := range tests {
		if got := ConvertLength(tt.cm, tt.units); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("ConvertLength(%v, %q) = %v, want %v", tt.cm, tt.units, got, tt.expected)
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid kg", KG, true},
		{"valid lb", LB, true},
		{"valid n", N, true},
		{"length is not force", CM, false},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "KG", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsValid(tt.unit); result != tt.expected {
				t.Errorf("IsValid(%q) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}

	if !IsValidLength(IN) || IsValidLength(LB) {
		t.Error("IsValidLength misclassified units")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(N); err != nil {
		t.Errorf("Validate(n) = %v", err)
	}
	err := Validate("stone")
	if err == nil {
		t.Fatal("expected error for stone")
	}
	if want := `invalid units "stone", must be one of: kg, lb, n`; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestLabel(t *testing.T) {
	for unit, want := range map[string]string{N: "N", KG: "kg", LB: "lb", CM: "cm", IN: "in"} {
		if got := Label(unit); got != want {
			t.Errorf("Label(%q) = %q, want %q", unit, got, want)
		}
	}
}
