// Package metrics exposes extraction counters and timings in Prometheus
// text format, written to a file for the node_exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ivlev/video2frames/internal/engine"
)

// Collector is an engine.Observer backed by its own registry, so each run
// starts from zero.
type Collector struct {
	Registry *prometheus.Registry

	FramesPlanned  prometheus.Gauge
	FramesWritten  prometheus.Counter
	FrameWarnings  *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	RunDuration    prometheus.Gauge
	LastRunSuccess prometheus.Gauge
	Workers        prometheus.Gauge

	path string
	err  error
}

// New returns a Collector. When path is not empty the registry is written
// there on Finish.
func New(path string) *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		Registry: reg,
		FramesPlanned: f.NewGauge(prometheus.GaugeOpts{
			Name: "video2frames_frames_planned",
			Help: "Number of frames selected for extraction in the last run",
		}),
		FramesWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "video2frames_frames_written_total",
			Help: "Total number of frame files written",
		}),
		FrameWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "video2frames_frame_warnings_total",
			Help: "Total number of skipped frames, by pipeline stage",
		}, []string{"stage"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "video2frames_stage_duration_seconds",
			Help:    "Per-frame duration of each pipeline stage",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"stage"}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "video2frames_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		LastRunSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "video2frames_last_run_success",
			Help: "1 if the last run wrote at least one frame",
		}),
		Workers: f.NewGauge(prometheus.GaugeOpts{
			Name: "video2frames_workers",
			Help: "Number of compose/encode workers",
		}),
		path: path,
	}
}

func (c *Collector) Start(p engine.Plan) {
	c.FramesPlanned.Set(float64(p.Effective))
	c.Workers.Set(float64(p.Workers))
	for _, s := range []engine.Stage{engine.StageDecode, engine.StageCompose, engine.StageEncode} {
		c.FrameWarnings.WithLabelValues(s.String())
	}
}

func (c *Collector) FrameDone(ev engine.FrameEvent) {
	c.FramesWritten.Inc()
	c.StageDuration.WithLabelValues(engine.StageDecode.String()).Observe(ev.Decode.Seconds())
	c.StageDuration.WithLabelValues(engine.StageCompose.String()).Observe(ev.Compose.Seconds())
	c.StageDuration.WithLabelValues(engine.StageEncode.String()).Observe(ev.Encode.Seconds())
}

func (c *Collector) FrameWarned(w engine.FrameWarning) {
	c.FrameWarnings.WithLabelValues(w.Stage.String()).Inc()
}

func (c *Collector) Finish(res *engine.Result) {
	c.RunDuration.Set(res.Elapsed.Seconds())
	if len(res.Paths) > 0 {
		c.LastRunSuccess.Set(1)
	} else {
		c.LastRunSuccess.Set(0)
	}
	if c.path != "" {
		c.err = c.WriteTextfile(c.path)
	}
}

// WriteTextfile writes the registry in the Prometheus text format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.Registry)
}

// Err reports a failure to write the metrics file on Finish.
func (c *Collector) Err() error {
	return c.err
}
