package jump

import "github.com/banshee-data/biomech.report/internal/monitoring"

func tracef(format string, args ...interface{}) {
	monitoring.Tracef("[jump] "+format, args...)
}
