package engine

import (
	"fmt"
	"time"

	"github.com/ivlev/video2frames/internal/config"
	"github.com/ivlev/video2frames/internal/source"
)

// Stage names the pipeline step a per-frame warning came from.
type Stage int

const (
	StageDecode Stage = iota
	StageCompose
	StageEncode
)

func (s Stage) String() string {
	switch s {
	case StageDecode:
		return "decode"
	case StageCompose:
		return "compose"
	case StageEncode:
		return "encode"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Plan is what a run is about to do, known once indices are selected.
type Plan struct {
	Meta      source.Metadata
	Requested *int
	Effective int
	Indices   []int
	OutputDir string
	Format    config.Format
	Width     int
	Height    int
	Workers   int
}

// FrameEvent reports one frame written to disk.
type FrameEvent struct {
	Seq     int
	Index   int
	Path    string
	Decode  time.Duration
	Compose time.Duration
	Encode  time.Duration
}

// FrameWarning is a non-fatal per-frame failure.
type FrameWarning struct {
	Seq   int
	Index int
	Stage Stage
	Err   error
}

func (w FrameWarning) Error() string {
	return fmt.Sprintf("frame %d (index %d): %s: %v", w.Seq, w.Index, w.Stage, w.Err)
}

func (w FrameWarning) Unwrap() error {
	return w.Err
}

// Observer receives progress from an Extractor. Calls are serialized, so
// implementations need no locking of their own. Finish is called exactly once
// after Start, whatever the outcome of the run.
type Observer interface {
	Start(Plan)
	FrameDone(FrameEvent)
	FrameWarned(FrameWarning)
	Finish(*Result)
}

// NopObserver ignores every event. Embed it to implement part of Observer.
type NopObserver struct{}

func (NopObserver) Start(Plan) {}
func (NopObserver) FrameDone(FrameEvent) {}
func (NopObserver) FrameWarned(FrameWarning) {}
func (NopObserver) Finish(*Result) {}

type multiObserver []Observer

// Observers fans events out to each non-nil observer in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multiObserver) Start(p Plan) {
	for _, o := range m {
		o.Start(p)
	}
}

func (m multiObserver) FrameDone(ev FrameEvent) {
	for _, o := range m {
		o.FrameDone(ev)
	}
}

func (m multiObserver) FrameWarned(w FrameWarning) {
	for _, o := range m {
		o.FrameWarned(w)
	}
}

func (m multiObserver) Finish(r *Result) {
	for _, o := range m {
		o.Finish(r)
	}
}
