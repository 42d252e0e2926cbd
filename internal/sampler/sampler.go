// Package sampler decides how many frames to pull from a video and which
// frame indices they are.
package sampler

import "math"

// OptimalFrameCount is floor(duration * samplingFPS) clamped to
// [1, totalFrames].
func OptimalFrameCount(totalFrames int, samplingFPS, duration float64) int {
	if totalFrames < 1 {
		return 0
	}
	optimal := math.Floor(duration * samplingFPS)
	if math.IsNaN(optimal) || optimal < 1 {
		return 1
	}
	if optimal >= float64(totalFrames) {
		return totalFrames
	}
	return int(optimal)
}

// ResolveFrameCount returns the number of frames to extract. A nil request
// means automatic sizing from duration and sampling density. An explicit
// request is clamped into [1, totalFrames] instead of being rejected.
//
// totalFrames must be at least 1; 0 is returned otherwise.
func ResolveFrameCount(requested *int, totalFrames int, samplingFPS, duration float64) int {
	if totalFrames < 1 {
		return 0
	}
	if requested == nil {
		return OptimalFrameCount(totalFrames, samplingFPS, duration)
	}
	return clamp(*requested, 1, totalFrames)
}

// SelectIndices spreads frameCount indices evenly over [0, totalFrames-1],
// first and last included, rounding down. A single frame is the middle one.
// The result is non-decreasing and may contain repeats.
func SelectIndices(totalFrames, frameCount int) []int {
	if totalFrames < 1 || frameCount < 1 {
		return nil
	}
	if frameCount == 1 {
		return []int{totalFrames / 2}
	}

	last := int64(totalFrames - 1)
	steps := int64(frameCount - 1)
	indices := make([]int, frameCount)
	for i := range indices {
		indices[i] = int(int64(i) * last / steps)
	}
	return indices
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
