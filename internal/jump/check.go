package jump

import "gonum.org/v1/gonum/floats"

// JumpCheck is the breakdown of the quick-reject heuristic for one
// candidate.
type JumpCheck struct {
	Index          int     `json:"index"`
	Drop           float64 `json:"drop"`
	Rise           float64 `json:"rise"`
	MinAngleBefore float64 `json:"min_angle_before"`
	MinAngleAfter  float64 `json:"min_angle_after"`
	Swing          float64 `json:"swing"`

	DropOK       bool `json:"drop_ok"`
	RiseOK       bool `json:"rise_ok"`
	FlexedBefore bool `json:"flexed_before"`
	FlexedAfter  bool `json:"flexed_after"`
	SwingOK      bool `json:"swing_ok"`
	JumpLike     bool `json:"jump_like"`
}

// IsJumpLikeDetailed checks whether the candidate at idx looks like a jump:
// the joint moved up into it and back down by enough pixels, was flexed on
// both sides, and swung through enough angle.
func IsJumpLikeDetailed(frames []Frame, idx int, cfg Config) JumpCheck {
	c := JumpCheck{Index: idx}
	if idx <= 0 || idx >= len(frames)-1 {
		return c
	}
	lo := idx - cfg.CheckWindow
	if lo < 0 {
		lo = 0
	}
	hi := idx + cfg.CheckWindow
	if hi > len(frames)-1 {
		hi = len(frames) - 1
	}
	y := ys(frames[lo : hi+1])
	a := angles(frames[lo : hi+1])
	mid := idx - lo

	// Y grows downward, so the drop into the candidate is a decrease.
	c.Drop = floats.Max(y[:mid]) - y[mid]
	c.Rise = floats.Max(y[mid+1:]) - y[mid]
	c.MinAngleBefore = floats.Min(a[:mid])
	c.MinAngleAfter = floats.Min(a[mid+1:])
	c.Swing = floats.Max(a) - floats.Min(a)

	c.DropOK = c.Drop >= cfg.MinVerticalDrop
	c.RiseOK = c.Rise >= cfg.MinVerticalRise
	c.FlexedBefore = c.MinAngleBefore <= cfg.FlexedAngle
	c.FlexedAfter = c.MinAngleAfter <= cfg.FlexedAngle
	c.SwingOK = c.Swing >= cfg.MinAngleSwing
	c.JumpLike = c.DropOK && c.RiseOK && c.FlexedBefore && c.FlexedAfter && c.SwingOK
	return c
}

// IsJumpLike reports whether the candidate at idx passes the quick-reject
// heuristic.
func IsJumpLike(frames []Frame, idx int, cfg Config) bool {
	return IsJumpLikeDetailed(frames, idx, cfg).JumpLike
}
