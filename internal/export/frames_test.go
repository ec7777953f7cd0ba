package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/biomech.report/internal/jump"
	"github.com/banshee-data/biomech.report/internal/sway"
)

func TestPoseJSONRoundTrip(t *testing.T) {
	in := []jump.PoseFrame{
		{
			Timestamp: 0,
			Keypoints: []jump.Keypoint{{Name: "left_hip", X: 1, Y: 2, Score: 0.9}},
		},
		{
			Timestamp: 33,
			Keypoints: []jump.Keypoint{{Name: "left_knee", X: 3, Y: 4, Score: 0.8}},
			Angles:    map[string]float64{"left_knee": 172},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WritePoseJSON(&buf, in))
	assert.Contains(t, buf.String(), `"name": "left_hip"`)

	out, err := ReadPoseJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadFramesJSON(t *testing.T) {
	frames, err := ReadFramesJSON(strings.NewReader(`[{"timestamp":0,"angle":170,"y":400},{"timestamp":20,"angle":165,"y":405}]`))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, jump.Frame{Timestamp: 20, Angle: 165, Y: 405}, frames[1])

	_, err = ReadFramesJSON(strings.NewReader(`{"timestamp":0}`))
	assert.Error(t, err)
}

func TestReadMotionJSON(t *testing.T) {
	in := `[{"acceleration_including_gravity":{"x":0.1,"y":9.8,"z":0.2},"acceleration":{"x":0.1,"y":0,"z":0.2},"interval":10}]`
	samples, err := ReadMotionJSON(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, sway.Vec3{X: 0.1, Y: 9.8, Z: 0.2}, samples[0].IncludingGravity)
	assert.Equal(t, 10.0, samples[0].IntervalMs)

	_, err = ReadMotionJSON(strings.NewReader(`not json`))
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"cycles": 4}))
	assert.Equal(t, "{\n  \"cycles\": 4\n}\n", buf.String())
}
