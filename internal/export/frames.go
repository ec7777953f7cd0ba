package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/biomech.report/internal/jump"
	"github.com/banshee-data/biomech.report/internal/sway"
)

// WritePoseJSON writes per-frame joint data as an indented JSON array.
func WritePoseJSON(w io.Writer, frames []jump.PoseFrame) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(frames)
}

// ReadPoseJSON reads a JSON array of pose frames.
func ReadPoseJSON(r io.Reader) ([]jump.PoseFrame, error) {
	var frames []jump.PoseFrame
	if err := json.NewDecoder(r).Decode(&frames); err != nil {
		return nil, fmt.Errorf("failed to decode pose frames: %w", err)
	}
	return frames, nil
}

// ReadFramesJSON reads a JSON array of angle/position frames.
func ReadFramesJSON(r io.Reader) ([]jump.Frame, error) {
	var frames []jump.Frame
	if err := json.NewDecoder(r).Decode(&frames); err != nil {
		return nil, fmt.Errorf("failed to decode frames: %w", err)
	}
	return frames, nil
}

// ReadMotionJSON reads a JSON array of motion sensor samples.
func ReadMotionJSON(r io.Reader) ([]sway.MotionSample, error) {
	var samples []sway.MotionSample
	if err := json.NewDecoder(r).Decode(&samples); err != nil {
		return nil, fmt.Errorf("failed to decode motion samples: %w", err)
	}
	return samples, nil
}

// WriteJSON writes any result value as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
