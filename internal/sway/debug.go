package sway

import "github.com/banshee-data/biomech.report/internal/monitoring"

func diagf(format string, args ...interface{}) {
	monitoring.Diagf("[sway] "+format, args...)
}
