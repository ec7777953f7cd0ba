package serialmux

import "github.com/banshee-data/biomech.report/internal/monitoring"

func opsf(format string, args ...interface{}) {
	monitoring.Opsf("[serialmux] "+format, args...)
}
