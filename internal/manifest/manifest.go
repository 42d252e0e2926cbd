// Package manifest records what an extraction run wrote, as YAML next to
// the frames.
package manifest

import "time"

const (
	Version  = "1.0"
	FileName = "manifest.yaml"
)

// Manifest describes one extraction run
type Manifest struct {
	Version   string    `yaml:"version"`
	RunID     string    `yaml:"run_id"`
	CreatedAt time.Time `yaml:"created_at"`
	Input     Input     `yaml:"input"`
	Output    Output    `yaml:"output"`
	Requested *int      `yaml:"requested,omitempty"` // nil when the count was automatic
	Effective int       `yaml:"effective"`
	Elapsed   float64   `yaml:"elapsed_seconds"`
	Frames    []Frame   `yaml:"frames"`
	Warnings  []Warning `yaml:"warnings,omitempty"`
}

// Input is the probed source video
type Input struct {
	Path        string  `yaml:"path"`
	Codec       string  `yaml:"codec"`
	TotalFrames int     `yaml:"total_frames"`
	FPS         float64 `yaml:"fps"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Duration    float64 `yaml:"duration"` // seconds
}

type Output struct {
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Quality int    `yaml:"quality"`
}

// Frame is one written file
type Frame struct {
	Seq       int     `yaml:"seq"`
	Index     int     `yaml:"index"`
	Timestamp float64 `yaml:"timestamp"` // seconds into the source
	File      string  `yaml:"file"`      // relative to Output.Dir
}

// Warning is a frame that was skipped
type Warning struct {
	Seq   int    `yaml:"seq"`
	Index int    `yaml:"index"`
	Stage string `yaml:"stage"`
	Error string `yaml:"error"`
}
