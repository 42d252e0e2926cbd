package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/video2frames/internal/compositor"
	"github.com/ivlev/video2frames/internal/config"
	"github.com/ivlev/video2frames/internal/encoder"
	"github.com/ivlev/video2frames/internal/frame"
	"github.com/ivlev/video2frames/internal/sampler"
	"github.com/ivlev/video2frames/internal/source"
)

var (
	ErrEmptyVideo        = errors.New("video has no frames")
	ErrNoFramesExtracted = errors.New("no frames extracted")
	ErrInterrupted       = errors.New("extraction interrupted")
	ErrOutputDirGone     = errors.New("output directory is gone")
)

// Result summarizes a run. Paths are ordered by output sequence number.
type Result struct {
	Requested *int
	Effective int
	Indices   []int
	Paths     []string
	Warnings  []FrameWarning
	Elapsed   time.Duration
}

type Option func(*Extractor)

func WithWorkers(n int) Option {
	return func(e *Extractor) { e.workers = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Extractor) {
		if log != nil {
			e.log = log
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(e *Extractor) {
		if obs != nil {
			e.obs = obs
		}
	}
}

func WithPool(p *frame.Pool) Option {
	return func(e *Extractor) {
		if p != nil {
			e.pool = p
		}
	}
}

// Extractor drives decode -> compose -> encode for one video. Frames are
// decoded on the calling goroutine in increasing index order; composing and
// encoding run on a pool of workers.
type Extractor struct {
	cfg     config.Config
	src     source.Source
	enc     encoder.Encoder
	workers int
	log     *zap.Logger
	obs     Observer
	pool    *frame.Pool
	comp    *compositor.Compositor

	mu       sync.Mutex
	paths    []string
	warnings []FrameWarning
}

type job struct {
	seq    int
	index  int
	frame  *frame.RGB
	decode time.Duration
}

func NewExtractor(cfg config.Config, src source.Source, enc encoder.Encoder, opts ...Option) *Extractor {
	e := &Extractor{
		cfg:     cfg,
		src:     src,
		enc:     enc,
		workers: cfg.Workers,
		log:     zap.NewNop(),
		obs:     NopObserver{},
		pool:    frame.NewPool(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.comp = &compositor.Compositor{Pool: e.pool}
	return e
}

// Run extracts the frames. A cancelled ctx stops decoding; frames already
// handed to workers are still written and the partial Result is returned
// with an error wrapping ErrInterrupted and ctx.Err().
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	meta := e.src.Metadata()
	if meta.TotalFrames <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyVideo, meta.Path)
	}

	count := sampler.ResolveFrameCount(e.cfg.NumFrames, meta.TotalFrames, e.cfg.SamplingFPS, meta.Duration())
	indices := sampler.SelectIndices(meta.TotalFrames, count)

	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	workers := e.workers
	if workers < 1 {
		workers = 1
	}
	if workers > count {
		workers = count
	}

	e.paths = make([]string, count)
	e.warnings = nil

	e.notify(func(o Observer) {
		o.Start(Plan{
			Meta:      meta,
			Requested: e.cfg.NumFrames,
			Effective: count,
			Indices:   indices,
			OutputDir: e.cfg.OutputDir,
			Format:    e.enc.Format(),
			Width:     e.cfg.Width,
			Height:    e.cfg.Height,
			Workers:   workers,
		})
	})
	e.log.Debug("extraction planned",
		zap.String("input", meta.Path),
		zap.Int("total_frames", meta.TotalFrames),
		zap.Int("frames", count),
		zap.Int("workers", workers),
	)

	// Workers finish what they were handed even after cancellation. A worker
	// error cancels gctx, which also unblocks a decoder waiting to send.
	workCtx := context.WithoutCancel(ctx)
	jobs := make(chan job, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for j := range jobs {
				if err := e.process(workCtx, j); err != nil {
					return err
				}
			}
			return nil
		})
	}

	stopped := e.decode(gctx, indices, jobs)
	close(jobs)
	fatal := g.Wait()

	res := &Result{
		Requested: e.cfg.NumFrames,
		Effective: count,
		Indices:   indices,
		Elapsed:   time.Since(start),
	}
	for _, p := range e.paths {
		if p != "" {
			res.Paths = append(res.Paths, p)
		}
	}
	res.Warnings = e.warnings
	sort.SliceStable(res.Warnings, func(i, j int) bool { return res.Warnings[i].Seq < res.Warnings[j].Seq })

	e.notify(func(o Observer) { o.Finish(res) })

	if fatal != nil {
		return res, fatal
	}
	if stopped != nil {
		return res, fmt.Errorf("%w after %d of %d frames: %w", ErrInterrupted, len(res.Paths), count, ctx.Err())
	}
	if len(res.Paths) == 0 {
		return res, fmt.Errorf("%w: all %d frames failed", ErrNoFramesExtracted, count)
	}
	return res, nil
}

// decode feeds jobs in index order and returns ctx's error if it stopped
// early.
func (e *Extractor) decode(ctx context.Context, indices []int, jobs chan<- job) error {
	for seq, index := range indices {
		if err := ctx.Err(); err != nil {
			return err
		}

		t0 := time.Now()
		f, err := e.src.Frame(ctx, index)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			e.warn(FrameWarning{Seq: seq, Index: index, Stage: StageDecode, Err: err})
			continue
		}

		select {
		case jobs <- job{seq: seq, index: index, frame: f, decode: time.Since(t0)}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// process composes and writes one frame. Per-frame failures become
// warnings; only losing the output directory is returned as an error.
func (e *Extractor) process(ctx context.Context, j job) error {
	t0 := time.Now()
	canvas, err := e.comp.Compose(j.frame, e.cfg.Width, e.cfg.Height)
	if err != nil {
		e.warn(FrameWarning{Seq: j.seq, Index: j.index, Stage: StageCompose, Err: err})
		return nil
	}
	composeDur := time.Since(t0)

	path := filepath.Join(e.cfg.OutputDir, encoder.FrameName(j.seq, e.enc.Format()))
	t1 := time.Now()
	err = e.enc.Encode(ctx, canvas, path)
	encodeDur := time.Since(t1)
	e.pool.Put(canvas)
	if err != nil {
		if _, statErr := os.Stat(e.cfg.OutputDir); statErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrOutputDirGone, e.cfg.OutputDir, err)
		}
		e.warn(FrameWarning{Seq: j.seq, Index: j.index, Stage: StageEncode, Err: err})
		return nil
	}

	ev := FrameEvent{
		Seq:     j.seq,
		Index:   j.index,
		Path:    path,
		Decode:  j.decode,
		Compose: composeDur,
		Encode:  encodeDur,
	}
	e.log.Debug("frame written",
		zap.Int("seq", ev.Seq),
		zap.Int("index", ev.Index),
		zap.String("path", ev.Path),
		zap.Duration("decode", ev.Decode),
		zap.Duration("compose", ev.Compose),
		zap.Duration("encode", ev.Encode),
	)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths[j.seq] = path
	e.obs.FrameDone(ev)
	return nil
}

func (e *Extractor) warn(w FrameWarning) {
	e.log.Warn("frame skipped",
		zap.Int("seq", w.Seq),
		zap.Int("index", w.Index),
		zap.Stringer("stage", w.Stage),
		zap.Error(w.Err),
	)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.warnings = append(e.warnings, w)
	e.obs.FrameWarned(w)
}

func (e *Extractor) notify(fn func(Observer)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.obs)
}
