// Package units provides display units for force and length readings.
package units

import (
	"fmt"
	"strings"
)

// Force units. Load cells report kilograms-force.
const (
	KG = "kg"
	LB = "lb"
	N  = "n"
)

// Length units. Sway displacement is computed in centimetres, jump height in
// metres.
const (
	CM = "cm"
	M  = "m"
	IN = "in"
)

// ValidForceUnits contains all valid force unit values
var ValidForceUnits = []string{KG, LB, N}

// ValidLengthUnits contains all valid length unit values
var ValidLengthUnits = []string{CM, M, IN}

const (
	standardGravity = 9.80665
	poundsPerKg     = 2.2046226218
	cmPerInch       = 2.54
)

// IsValid checks if the given unit is a valid force unit
func IsValid(unit string) bool {
	return contains(ValidForceUnits, unit)
}

// IsValidLength checks if the given unit is a valid length unit
func IsValidLength(unit string) bool {
	return contains(ValidLengthUnits, unit)
}

func contains(list []string, unit string) bool {
	for _, u := range list {
		if unit == u {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid force units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidForceUnits, ", ")
}

// Validate returns an error naming the accepted force units.
func Validate(unit string) error {
	if !IsValid(unit) {
		return fmt.Errorf("invalid units %q, must be one of: %s", unit, GetValidUnitsString())
	}
	return nil
}

// ConvertForce converts a load-cell reading in kilograms-force to the target
// units. Unknown units return the reading unchanged.
func ConvertForce(kg float64, targetUnits string) float64 {
	switch targetUnits {
	case LB:
		return kg * poundsPerKg
	case N:
		return kg * standardGravity
	default:
		return kg
	}
}

// ConvertLength converts centimetres to the target units. Unknown units
// return the value unchanged.
func ConvertLength(cm float64, targetUnits string) float64 {
	switch targetUnits {
	case M:
		return cm / 100
	case IN:
		return cm / cmPerInch
	default:
		return cm
	}
}

// Label returns the display suffix for a unit.
func Label(unit string) string {
	switch unit {
	case N:
		return "N"
	case LB:
		return "lb"
	case IN:
		return "in"
	default:
		return unit
	}
}
