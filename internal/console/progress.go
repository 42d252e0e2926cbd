package console

import (
	"fmt"
	"io"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/ivlev/video2frames/internal/engine"
)

// Progress is an engine.Observer drawing a progress bar. Skipped frames
// advance the bar too, so it always ends full.
type Progress struct {
	w       io.Writer
	bar     *progressbar.ProgressBar
	skipped int
}

// NewProgress draws on w; nil means the ANSI-aware stdout.
func NewProgress(w io.Writer) *Progress {
	if w == nil {
		w = ansi.NewAnsiStdout()
	}
	return &Progress{w: w}
}

func (p *Progress) Start(plan engine.Plan) {
	p.bar = progressbar.NewOptions(plan.Effective,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(0),
	)
}

func (p *Progress) FrameDone(engine.FrameEvent) {
	_ = p.bar.Add(1)
}

func (p *Progress) FrameWarned(engine.FrameWarning) {
	p.skipped++
	p.bar.Describe(fmt.Sprintf("Extracting (%d skipped)", p.skipped))
	_ = p.bar.Add(1)
}

// Finish completes the bar only when every frame was accounted for; an
// interrupted run leaves it where it stopped.
func (p *Progress) Finish(res *engine.Result) {
	if len(res.Paths)+p.skipped >= res.Effective {
		_ = p.bar.Finish()
	}
	fmt.Fprintln(p.w)
}
