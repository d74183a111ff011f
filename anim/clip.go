package anim

// Interpolation selects how a Sampler's output values are blended
// between keyframes.
type Interpolation int

const (
	Linear Interpolation = iota
	Step
	CubicSpline
)

// TransformPath selects which part of a Node's transform a Channel
// drives.
type TransformPath int

const (
	PathTranslation TransformPath = iota
	PathRotation
	PathScale
)

// Channel routes one Sampler's output onto one node's transform path.
type Channel struct {
	TargetNode int32
	Sampler    int
	Path       TransformPath
}

// Sampler holds a clip's raw keyframe data: Inputs are ascending
// timestamps, Outputs is the matching value per timestamp (only the
// first three components are used for translation/scale; all four for a
// rotation quaternion).
type Sampler struct {
	Inputs        []float32
	Outputs       [][4]float32
	Interpolation Interpolation
}

// Clip is a playable animation: a duration and the channels/samplers
// that drive node transforms over it.
type Clip struct {
	Duration float32
	Channels []Channel
	Samplers []Sampler
}

// findKeyframeInterval returns the index i such that inputs[i] <= t <
// inputs[i+1], or false if t falls outside every interval.
func findKeyframeInterval(inputs []float32, t float32) (int, bool) {
	for i := 0; i+1 < len(inputs); i++ {
		if t >= inputs[i] && t < inputs[i+1] {
			return i, true
		}
	}
	return 0, false
}
