// Package stats builds the performance report shown with --stats.
package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ivlev/video2frames/internal/engine"
	"github.com/ivlev/video2frames/internal/system"
)

// rssEvery is how often, in written frames, the process RSS is sampled.
const rssEvery = 16

var stages = []engine.Stage{engine.StageDecode, engine.StageCompose, engine.StageEncode}

// StageStats summarizes per-frame timings of one stage.
type StageStats struct {
	Stage  engine.Stage
	Total  time.Duration
	Mean   time.Duration
	StdDev time.Duration
	P95    time.Duration
}

type Report struct {
	Input        string
	Frames       int
	Warnings     int
	Workers      int
	Elapsed      time.Duration
	EffectiveFPS float64
	PeakRSS      uint64
	Stages       []StageStats
}

// Collector is an engine.Observer gathering timings for a Report.
type Collector struct {
	rss func() uint64

	input    string
	workers  int
	samples  map[engine.Stage][]float64
	warnings int
	peakRSS  uint64
	report   *Report
}

func NewCollector() *Collector {
	return &Collector{rss: system.ProcessRSS}
}

func (c *Collector) Start(p engine.Plan) {
	c.input = p.Meta.Path
	c.workers = p.Workers
	c.samples = make(map[engine.Stage][]float64, len(stages))
	c.sampleRSS()
}

func (c *Collector) FrameDone(ev engine.FrameEvent) {
	c.samples[engine.StageDecode] = append(c.samples[engine.StageDecode], ev.Decode.Seconds())
	c.samples[engine.StageCompose] = append(c.samples[engine.StageCompose], ev.Compose.Seconds())
	c.samples[engine.StageEncode] = append(c.samples[engine.StageEncode], ev.Encode.Seconds())
	if len(c.samples[engine.StageEncode])%rssEvery == 0 {
		c.sampleRSS()
	}
}

func (c *Collector) FrameWarned(engine.FrameWarning) {
	c.warnings++
}

func (c *Collector) Finish(res *engine.Result) {
	c.sampleRSS()

	r := &Report{
		Input:    c.input,
		Frames:   len(res.Paths),
		Warnings: c.warnings,
		Workers:  c.workers,
		Elapsed:  res.Elapsed,
		PeakRSS:  c.peakRSS,
	}
	if secs := res.Elapsed.Seconds(); secs > 0 {
		r.EffectiveFPS = float64(r.Frames) / secs
	}
	for _, s := range stages {
		r.Stages = append(r.Stages, summarize(s, c.samples[s]))
	}
	c.report = r
}

// Report is nil until the run has finished.
func (c *Collector) Report() *Report {
	return c.report
}

func (c *Collector) sampleRSS() {
	if rss := c.rss(); rss > c.peakRSS {
		c.peakRSS = rss
	}
}

func summarize(stage engine.Stage, xs []float64) StageStats {
	st := StageStats{Stage: stage}
	if len(xs) == 0 {
		return st
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 {
		std = 0
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	st.Total = seconds(floats.Sum(xs))
	st.Mean = seconds(mean)
	st.StdDev = seconds(std)
	st.P95 = seconds(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	return st
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// WriteTo prints the report block.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString("--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(&b, "Frames: %d (warnings: %d) | Workers: %d\n", r.Frames, r.Warnings, r.Workers)
	fmt.Fprintf(&b, "Total Time: %.2fs\n", r.Elapsed.Seconds())
	for _, s := range r.Stages {
		fmt.Fprintf(&b, "%-8s total %.2fs | mean %.1fms ± %.1fms | p95 %.1fms\n",
			strings.ToUpper(s.Stage.String()[:1])+s.Stage.String()[1:]+":",
			s.Total.Seconds(), ms(s.Mean), ms(s.StdDev), ms(s.P95))
	}
	fmt.Fprintf(&b, "Effective FPS: %.2f\n", r.EffectiveFPS)
	if r.PeakRSS > 0 {
		fmt.Fprintf(&b, "Peak RSS: %.1f MiB\n", float64(r.PeakRSS)/(1<<20))
	}
	b.WriteString("----------------------------\n")

	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// AppendLog appends a one-line summary of the report to a benchmark log.
func (r *Report) AppendLog(path string, now time.Time) error {
	stage := func(s engine.Stage) float64 {
		for _, st := range r.Stages {
			if st.Stage == s {
				return st.Total.Seconds()
			}
		}
		return 0
	}
	entry := fmt.Sprintf("[%s] Input: %s | Frames: %d | Total: %.2fs | Decode: %.2fs | Compose: %.2fs | Encode: %.2fs | FPS: %.2f\n",
		now.Format("2006-01-02 15:04:05"),
		filepath.Base(r.Input),
		r.Frames,
		r.Elapsed.Seconds(),
		stage(engine.StageDecode),
		stage(engine.StageCompose),
		stage(engine.StageEncode),
		r.EffectiveFPS,
	)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
