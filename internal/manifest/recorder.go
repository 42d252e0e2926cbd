package manifest

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/video2frames/internal/engine"
)

// Recorder is an engine.Observer that builds a Manifest during a run and
// writes it into the output directory when the run finishes.
type Recorder struct {
	quality int
	now     func() time.Time

	fps      float64
	manifest Manifest
	err      error
}

func NewRecorder(quality int) *Recorder {
	return &Recorder{quality: quality, now: time.Now}
}

func (r *Recorder) Start(p engine.Plan) {
	r.fps = p.Meta.FPS
	r.manifest = Manifest{
		Version:   Version,
		RunID:     uuid.NewString(),
		CreatedAt: r.now().UTC().Truncate(time.Second),
		Input: Input{
			Path:        p.Meta.Path,
			Codec:       p.Meta.Codec,
			TotalFrames: p.Meta.TotalFrames,
			FPS:         p.Meta.FPS,
			Width:       p.Meta.Width,
			Height:      p.Meta.Height,
			Duration:    p.Meta.Duration(),
		},
		Output: Output{
			Dir:     p.OutputDir,
			Format:  p.Format.Ext(),
			Width:   p.Width,
			Height:  p.Height,
			Quality: r.quality,
		},
		Requested: p.Requested,
		Effective: p.Effective,
	}
}

func (r *Recorder) FrameDone(ev engine.FrameEvent) {
	var ts float64
	if r.fps > 0 {
		ts = float64(ev.Index) / r.fps
	}
	r.manifest.Frames = append(r.manifest.Frames, Frame{
		Seq:       ev.Seq,
		Index:     ev.Index,
		Timestamp: ts,
		File:      filepath.Base(ev.Path),
	})
}

func (r *Recorder) FrameWarned(w engine.FrameWarning) {
	r.manifest.Warnings = append(r.manifest.Warnings, Warning{
		Seq:   w.Seq,
		Index: w.Index,
		Stage: w.Stage.String(),
		Error: w.Err.Error(),
	})
}

func (r *Recorder) Finish(res *engine.Result) {
	r.manifest.Elapsed = res.Elapsed.Seconds()
	sort.Slice(r.manifest.Frames, func(i, j int) bool { return r.manifest.Frames[i].Seq < r.manifest.Frames[j].Seq })
	sort.Slice(r.manifest.Warnings, func(i, j int) bool { return r.manifest.Warnings[i].Seq < r.manifest.Warnings[j].Seq })

	if len(r.manifest.Frames) == 0 {
		return
	}
	r.err = Write(&r.manifest, filepath.Join(r.manifest.Output.Dir, FileName))
}

// Manifest returns what has been recorded so far.
func (r *Recorder) Manifest() *Manifest {
	return &r.manifest
}

// Err reports a failure to write the manifest file.
func (r *Recorder) Err() error {
	return r.err
}
