package cycles

import (
	"sort"
	"strings"
)

const (
	notEnoughCycles = "Not enough cycles to assess fatigue yet."
	noFatigue       = "No signs of fatigue. Keep going."
	manyIndicators  = "Several fatigue indicators at once. End the set and rest before continuing."
)

func tipKey(codes ...string) string {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

var tips = map[string]string{
	tipKey(CodeAmplitude):   "Range of motion is shrinking. Focus on full repetitions.",
	tipKey(CodeCycleTime):   "Repetitions are slowing down. Keep a steady tempo.",
	tipKey(CodePeakForce):   "Peak force is dropping compared to your best repetition.",
	tipKey(CodeVelocity):    "Movement speed is below your starting pace.",
	tipKey(CodeVariability): "Repetitions are becoming inconsistent. Check your form.",

	tipKey(CodeAmplitude, CodeCycleTime):   "Shorter and slower repetitions: early muscular fatigue.",
	tipKey(CodeAmplitude, CodePeakForce):   "Range and peak force are both dropping. Consider reducing the load.",
	tipKey(CodeAmplitude, CodeVelocity):    "Smaller, slower movements. Take a short break.",
	tipKey(CodeAmplitude, CodeVariability): "Range is shrinking and uneven. Slow down and control each repetition.",
	tipKey(CodeCycleTime, CodePeakForce):   "Slower repetitions with less force. Rest before the next set.",
	tipKey(CodeCycleTime, CodeVelocity):    "Pace has dropped well below the start of the set.",
	tipKey(CodeCycleTime, CodeVariability): "Tempo is slowing and becoming irregular.",
	tipKey(CodePeakForce, CodeVelocity):    "Force and speed are both down. Power output is fading.",
	tipKey(CodePeakForce, CodeVariability): "Peak force is lower and inconsistent between repetitions.",
	tipKey(CodeVelocity, CodeVariability):  "Speed is down and repetitions vary. Check technique.",

	tipKey(CodeAmplitude, CodeCycleTime, CodePeakForce):   "Shorter, slower and weaker repetitions. Stop the set.",
	tipKey(CodeAmplitude, CodeCycleTime, CodeVelocity):    "Movement is getting smaller and slower. Rest now.",
	tipKey(CodeAmplitude, CodeCycleTime, CodeVariability): "Range and tempo are breaking down. Rest before form fails.",
	tipKey(CodeAmplitude, CodePeakForce, CodeVelocity):    "Clear loss of power. Reduce the load or end the set.",
	tipKey(CodeAmplitude, CodePeakForce, CodeVariability): "Weaker, smaller and uneven repetitions. End the set.",
	tipKey(CodeAmplitude, CodeVelocity, CodeVariability):  "Smaller, slower and uneven repetitions. Technique is at risk.",
	tipKey(CodeCycleTime, CodePeakForce, CodeVelocity):    "Slower, weaker repetitions. Muscular fatigue is established.",
	tipKey(CodeCycleTime, CodePeakForce, CodeVariability): "Tempo and force are dropping unevenly. Rest now.",
	tipKey(CodeCycleTime, CodeVelocity, CodeVariability):  "Pace is falling and irregular. Stop and recover.",
	tipKey(CodePeakForce, CodeVelocity, CodeVariability):  "Power is fading and repetitions are inconsistent. End the set.",
}

// Interpret returns the coaching message for a set of reason codes.
func Interpret(reasons []string) string {
	switch {
	case len(reasons) == 0:
		return noFatigue
	case len(reasons) > 3:
		return manyIndicators
	}
	if tip, ok := tips[tipKey(reasons...)]; ok {
		return tip
	}
	return manyIndicators
}
