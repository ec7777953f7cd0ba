package jump

import (
	"fmt"
	"math"
)

// Joint is a tracked joint.
type Joint string

const (
	JointHip  Joint = "hip"
	JointKnee Joint = "knee"
)

// Side is the body side of a tracked joint.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Keypoint is one named pose keypoint in image coordinates.
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Score float64 `json:"score"`
}

// PoseFrame is one frame of pose-estimation output. Angles holds joint
// angles already computed upstream, keyed like "left_knee".
type PoseFrame struct {
	Timestamp int64              `json:"timestamp"`
	Keypoints []Keypoint         `json:"keypoints"`
	Angles    map[string]float64 `json:"angles,omitempty"`
}

func (p PoseFrame) keypoint(name string, minScore float64) (Keypoint, bool) {
	for _, k := range p.Keypoints {
		if k.Name == name {
			return k, k.Score >= minScore
		}
	}
	return Keypoint{}, false
}

// segment returns the keypoints that form the angle at joint: the proximal
// point, the joint itself and the distal point.
func segment(joint Joint, side Side) ([3]string, error) {
	if side != SideLeft && side != SideRight {
		return [3]string{}, fmt.Errorf("unknown side %q", side)
	}
	s := string(side) + "_"
	switch joint {
	case JointHip:
		return [3]string{s + "shoulder", s + "hip", s + "knee"}, nil
	case JointKnee:
		return [3]string{s + "hip", s + "knee", s + "ankle"}, nil
	default:
		return [3]string{}, fmt.Errorf("unknown joint %q", joint)
	}
}

// JointAngle is the angle at b between a and c in degrees.
func JointAngle(a, b, c Keypoint) (float64, bool) {
	ux, uy := a.X-b.X, a.Y-b.Y
	vx, vy := c.X-b.X, c.Y-b.Y
	nu, nv := math.Hypot(ux, uy), math.Hypot(vx, vy)
	if nu == 0 || nv == 0 {
		return 0, false
	}
	cos := (ux*vx + uy*vy) / (nu * nv)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi, true
}

// FramesFromPose reduces pose frames to the angle and vertical position of
// one joint. An upstream angle wins over one computed from keypoints.
// Keypoints scored below minScore repeat the previous frame's value; frames
// before the first usable value are skipped.
func FramesFromPose(poses []PoseFrame, joint Joint, side Side, minScore float64) ([]Frame, error) {
	names, err := segment(joint, side)
	if err != nil {
		return nil, err
	}
	key := string(side) + "_" + string(joint)

	var out []Frame
	var angle, y float64
	var haveAngle, haveY bool
	for _, p := range poses {
		if v, ok := p.Angles[key]; ok {
			angle, haveAngle = v, true
		} else {
			a, okA := p.keypoint(names[0], minScore)
			b, okB := p.keypoint(names[1], minScore)
			c, okC := p.keypoint(names[2], minScore)
			if okA && okB && okC {
				if v, ok := JointAngle(a, b, c); ok {
					angle, haveAngle = v, true
				}
			}
		}
		if k, ok := p.keypoint(names[1], minScore); ok {
			y, haveY = k.Y, true
		}
		if !haveAngle || !haveY {
			continue
		}
		out = append(out, Frame{Timestamp: p.Timestamp, Angle: angle, Y: y})
	}
	return out, nil
}
