package pipeline

// deviceClock extends the device's 32-bit microsecond counter into a
// monotonic millisecond timeline. A counter that goes backwards is treated as
// a wrap, which also covers a device restart mid-stream.
type deviceClock struct {
	last    uint32
	wraps   int64
	started bool
}

func (c *deviceClock) millis(micros uint32) int64 {
	if c.started && micros < c.last {
		c.wraps++
	}
	c.last = micros
	c.started = true
	return (c.wraps<<32 + int64(micros)) / 1000
}

