package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalize_Defaults(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}
}

func TestPortOptions_Normalize_ExplicitValues(t *testing.T) {
	opts := PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}
	got, err := opts.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got != opts {
		t.Errorf("Normalize() = %+v, want %+v", got, opts)
	}
}

func TestPortOptions_Normalize_NegativeBaudRate(t *testing.T) {
	got, err := PortOptions{BaudRate: -5}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if got.BaudRate != DefaultBaudRate {
		t.Errorf("negative baud rate should default to %d, got %d", DefaultBaudRate, got.BaudRate)
	}
}

func TestPortOptions_Normalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts PortOptions
	}{
		{"data bits too low", PortOptions{DataBits: 4}},
		{"data bits too high", PortOptions{DataBits: 9}},
		{"stop bits", PortOptions{StopBits: 3}},
		{"parity", PortOptions{Parity: "X"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.opts.Normalize(); err == nil {
				t.Errorf("expected error for %+v, got nil", tc.opts)
			}
		})
	}
}

func TestPortOptions_Normalize_ParityVariations(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"N", "N"},
		{"none", "N"},
		{"e", "E"},
		{"EVEN", "E"},
		{"o", "O"},
		{"odd", "O"},
		{"  N  ", "N"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := PortOptions{Parity: tc.input}.Normalize()
			if err != nil {
				t.Fatalf("Normalize() with parity %q: unexpected error %v", tc.input, err)
			}
			if got.Parity != tc.want {
				t.Errorf("Normalize() with parity %q: got %q, want %q", tc.input, got.Parity, tc.want)
			}
		})
	}
}

func TestPortOptions_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b PortOptions
		want bool
	}{
		{"identical", PortOptions{BaudRate: 115200, Parity: "N"}, PortOptions{BaudRate: 115200, Parity: "N"}, true},
		{"defaults match explicit", PortOptions{}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "none"}, true},
		{"different baud", PortOptions{BaudRate: 9600}, PortOptions{BaudRate: 19200}, false},
		{"different parity", PortOptions{Parity: "E"}, PortOptions{Parity: "O"}, false},
		{"invalid", PortOptions{Parity: "X"}, PortOptions{Parity: "X"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Errorf("Equal() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	tests := []struct {
		name     string
		opts     PortOptions
		parity   serial.Parity
		stopBits serial.StopBits
	}{
		{"default", PortOptions{}, serial.NoParity, serial.OneStopBit},
		{"even", PortOptions{Parity: "E"}, serial.EvenParity, serial.OneStopBit},
		{"odd two stop bits", PortOptions{Parity: "O", StopBits: 2}, serial.OddParity, serial.TwoStopBits},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mode, err := tc.opts.SerialMode()
			if err != nil {
				t.Fatalf("SerialMode() error = %v", err)
			}
			if mode.BaudRate != DefaultBaudRate {
				t.Errorf("BaudRate = %d, want %d", mode.BaudRate, DefaultBaudRate)
			}
			if mode.DataBits != 8 {
				t.Errorf("DataBits = %d, want 8", mode.DataBits)
			}
			if mode.Parity != tc.parity {
				t.Errorf("Parity = %v, want %v", mode.Parity, tc.parity)
			}
			if mode.StopBits != tc.stopBits {
				t.Errorf("StopBits = %v, want %v", mode.StopBits, tc.stopBits)
			}
		})
	}

	if _, err := (PortOptions{DataBits: 9}).SerialMode(); err == nil {
		t.Error("expected error for invalid options, got nil")
	}
}
