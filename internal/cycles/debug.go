package cycles

import "github.com/banshee-data/biomech.report/internal/monitoring"

func diagf(format string, args ...interface{}) {
	monitoring.Diagf("[cycles] "+format, args...)
}

func tracef(format string, args ...interface{}) {
	monitoring.Tracef("[cycles] "+format, args...)
}
