package cycles

// Sample is one timestamped reading in milliseconds.
type Sample struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Band is the position of a sample relative to the hysteresis band.
type Band int

const (
	Within Band = iota
	Above
	Below
)

func (b Band) String() string {
	switch b {
	case Above:
		return "above"
	case Below:
		return "below"
	default:
		return "within"
	}
}

func classify(v, midpoint, hysteresis float64) Band {
	switch {
	case v > midpoint+hysteresis:
		return Above
	case v < midpoint-hysteresis:
		return Below
	default:
		return Within
	}
}

// Cycle is one completed repetition. Times are epoch milliseconds.
type Cycle struct {
	Index      int     `json:"index"`
	StartTime  int64   `json:"start_time"`
	EndTime    int64   `json:"end_time"`
	DurationMs float64 `json:"duration_ms"`
	Amplitude  float64 `json:"amplitude"`
	PeakX      int64   `json:"peak_x"`
	PeakY      float64 `json:"peak_y"`
	MinX       int64   `json:"min_x"`
	MinY       float64 `json:"min_y"`
	// Velocity is amplitude per second.
	Velocity float64 `json:"velocity"`
	// SpeedRatio is the time between the extremes over the rest of the
	// cycle.
	SpeedRatio float64 `json:"speed_ratio"`
	// RelativeSpeedRatio is SpeedRatio over the baseline mean, 1 until a
	// baseline exists.
	RelativeSpeedRatio float64 `json:"relative_speed_ratio"`
	// WorkLoad is the external workload configured when the cycle closed.
	WorkLoad float64 `json:"work_load"`
}

func (c Cycle) normalized(v float64) float64 {
	if c.WorkLoad > 0 {
		return v / c.WorkLoad
	}
	return v
}

// NormalizedAmplitude is Amplitude per unit of external workload.
func (c Cycle) NormalizedAmplitude() float64 { return c.normalized(c.Amplitude) }

// NormalizedPeak is PeakY per unit of external workload.
func (c Cycle) NormalizedPeak() float64 { return c.normalized(c.PeakY) }

// NormalizedVelocity is Velocity per unit of external workload.
func (c Cycle) NormalizedVelocity() float64 { return c.normalized(c.Velocity) }

func newCycle(startTime, endTime int64, max, min Sample, workload float64) Cycle {
	c := Cycle{
		StartTime:  startTime,
		EndTime:    endTime,
		DurationMs: float64(endTime - startTime),
		Amplitude:  max.Value - min.Value,
		PeakX:      max.Timestamp,
		PeakY:      max.Value,
		MinX:       min.Timestamp,
		MinY:       min.Value,
		WorkLoad:   workload,

		RelativeSpeedRatio: 1,
	}
	if c.DurationMs > 0 {
		c.Velocity = c.Amplitude / (c.DurationMs / 1000)
	}
	between := float64(c.MinX - c.PeakX)
	if between < 0 {
		between = -between
	}
	if rest := c.DurationMs - between; rest > 0 {
		c.SpeedRatio = between / rest
	}
	return c
}
