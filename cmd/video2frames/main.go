package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/video2frames/internal/config"
	"github.com/ivlev/video2frames/internal/console"
	"github.com/ivlev/video2frames/internal/encoder"
	"github.com/ivlev/video2frames/internal/engine"
	"github.com/ivlev/video2frames/internal/frame"
	"github.com/ivlev/video2frames/internal/logger"
	"github.com/ivlev/video2frames/internal/manifest"
	"github.com/ivlev/video2frames/internal/metrics"
	"github.com/ivlev/video2frames/internal/sampler"
	"github.com/ivlev/video2frames/internal/source"
	"github.com/ivlev/video2frames/internal/stats"
	"github.com/ivlev/video2frames/internal/system"
)

const (
	progName     = "video2frames"
	benchmarkLog = "benchmark.log"

	exitOK          = 0
	exitError       = 1
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// options holds the raw flag values before they are layered over the
// config file and environment.
type options struct {
	configPath  string
	numFrames   int
	width       int
	height      int
	output      string
	quality     int
	fps         float64
	format      string
	info        bool
	workers     int
	manifest    bool
	metricsFile string
	stats       bool
	sequenceFPS float64
	logLevel    string
	noColor     bool
}

func newFlagSet(o *options) *flag.FlagSet {
	d := config.Defaults()
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.IntVar(&o.numFrames, "n", 0, "")
	fs.IntVar(&o.numFrames, "num-frames", 0, "Number of frames to extract (automatic when omitted)")
	fs.IntVar(&o.width, "w", d.Width, "")
	fs.IntVar(&o.width, "width", d.Width, "Output image width in pixels")
	fs.IntVar(&o.height, "h", d.Height, "")
	fs.IntVar(&o.height, "height", d.Height, "Output image height in pixels")
	fs.StringVar(&o.output, "o", d.OutputDir, "")
	fs.StringVar(&o.output, "output", d.OutputDir, "Output directory")
	fs.IntVar(&o.quality, "q", d.Quality, "")
	fs.IntVar(&o.quality, "quality", d.Quality, "Image quality 0-100")
	fs.Float64Var(&o.fps, "fps", d.SamplingFPS, "Frames per second of video used for the automatic count")
	fs.StringVar(&o.format, "f", d.Format.Ext(), "")
	fs.StringVar(&o.format, "format", d.Format.Ext(), "Output format: jpg, png, webp")
	fs.BoolVar(&o.info, "info", false, "Only show video information")
	fs.IntVar(&o.workers, "workers", 0, "Compose/encode workers (0 = from CPU and memory)")
	fs.StringVar(&o.configPath, "config", "", "YAML file with default options")
	fs.BoolVar(&o.manifest, "manifest", false, "Write manifest.yaml into the output directory")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	fs.BoolVar(&o.stats, "stats", false, "Print a performance report and append it to "+benchmarkLog)
	fs.Float64Var(&o.sequenceFPS, "sequence-fps", d.SequenceFPS, "Frame rate assumed for a directory of images")
	fs.StringVar(&o.logLevel, "log-level", d.LogLevel, "Log level: debug, info, warn, error")
	fs.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	return fs
}

// flagHelp renders the documented flags, pairing each short alias with its
// long name.
func flagHelp(fs *flag.FlagSet) string {
	short := map[string]string{
		"num-frames": "n", "width": "w", "height": "h", "output": "o", "quality": "q", "format": "f",
	}
	var b strings.Builder
	fs.VisitAll(func(f *flag.Flag) {
		if f.Usage == "" {
			return
		}
		name := "--" + f.Name
		if s, ok := short[f.Name]; ok {
			name = "-" + s + ", " + name
		}
		fmt.Fprintf(&b, "  %-26s %s", name, f.Usage)
		if f.DefValue != "" && f.DefValue != "0" && f.DefValue != "false" {
			fmt.Fprintf(&b, " (default: %s)", f.DefValue)
		}
		b.WriteString("\n")
	})
	b.WriteString("  --help                     Show this help\n")
	return b.String()
}

func wantsHelp(args []string) bool {
	if len(args) == 0 {
		return true
	}
	for _, a := range args {
		if a == "--help" || a == "-help" {
			return true
		}
	}
	return false
}

// parseArgs builds the run configuration: defaults, then the config file,
// .env and environment, then the flags that were set explicitly.
func parseArgs(args []string) (config.Config, bool, error) {
	var o options
	fs := newFlagSet(&o)

	// flag stops at the first positional argument; resume after the input
	// so options may come before or after it.
	var input string
	for {
		if err := fs.Parse(args); err != nil {
			return config.Config{}, false, fmt.Errorf("%w: %v", config.ErrInvalidArgument, err)
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		if input != "" {
			return config.Config{}, false, fmt.Errorf("%w: unexpected argument %q", config.ErrInvalidArgument, args[0])
		}
		input, args = args[0], args[1:]
	}
	if input == "" {
		return config.Config{}, false, fmt.Errorf("%w: no video given", config.ErrInvalidArgument)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, false, err
	}
	cfg.InputPath = input

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n", "num-frames":
			n := o.numFrames
			cfg.NumFrames = &n
		case "w", "width":
			cfg.Width = o.width
		case "h", "height":
			cfg.Height = o.height
		case "o", "output":
			cfg.OutputDir = o.output
		case "q", "quality":
			cfg.Quality = o.quality
		case "fps":
			cfg.SamplingFPS = o.fps
		case "f", "format":
			format, err := config.ParseFormat(o.format)
			if err != nil {
				flagErr = err
			}
			cfg.Format = format
		case "info":
			cfg.InfoOnly = o.info
		case "workers":
			cfg.Workers = o.workers
		case "manifest":
			cfg.Manifest = o.manifest
		case "metrics-file":
			cfg.MetricsFile = o.metricsFile
		case "stats":
			cfg.ShowStats = o.stats
		case "sequence-fps":
			cfg.SequenceFPS = o.sequenceFPS
		case "log-level":
			cfg.LogLevel = o.logLevel
		}
	})
	if flagErr != nil {
		return cfg, false, flagErr
	}

	cfg, err = cfg.Normalize()
	return cfg, o.noColor, err
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if wantsHelp(args) {
		var o options
		console.New(stdout, stderr, true).Usage(progName, flagHelp(newFlagSet(&o)))
		return exitOK
	}

	cfg, noColor, err := parseArgs(args)
	con := console.New(stdout, stderr, noColor)
	if err != nil {
		con.Error(err)
		fmt.Fprintln(stderr, "Use --help to see the available options")
		return exitError
	}

	log, err := logger.NewWithWriter(cfg.LogLevel, stderr)
	if err != nil {
		con.Error(fmt.Errorf("%w: %v", config.ErrInvalidArgument, err))
		return exitError
	}
	defer log.Sync()

	if _, err := os.Stat(cfg.InputPath); err != nil {
		con.Error(fmt.Errorf("file %q does not exist", cfg.InputPath))
		return exitError
	}

	// Setup steps can be cut short by Ctrl-C before any frame is planned.
	fail := func(err error) int {
		if errors.Is(err, context.Canceled) {
			con.Interrupted(nil)
			return exitInterrupted
		}
		con.Error(err)
		return exitError
	}

	src, err := source.Open(ctx, cfg.InputPath, source.Options{SequenceFPS: cfg.SequenceFPS})
	if err != nil {
		return fail(err)
	}
	defer src.Close()

	meta := src.Metadata()
	con.VideoInfo(meta)
	if cfg.InfoOnly {
		con.InfoOnly()
		return exitOK
	}
	if meta.TotalFrames == 0 {
		con.Error(fmt.Errorf("%w: %s", engine.ErrEmptyVideo, meta.Path))
		return exitError
	}

	con.FrameCount(cfg.NumFrames, sampler.OptimalFrameCount(meta.TotalFrames, cfg.SamplingFPS, meta.Duration()), cfg.SamplingFPS)

	enc, err := encoder.New(ctx, cfg.Format, cfg.Quality)
	if err != nil {
		return fail(err)
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = system.DefaultWorkers(frame.FrameBytes(cfg.Width, cfg.Height))
	}

	var progressOut io.Writer
	if stdout != os.Stdout {
		progressOut = stdout
	}
	observers := []engine.Observer{console.NewProgress(progressOut)}

	var collector *metrics.Collector
	if cfg.MetricsFile != "" {
		collector = metrics.New(cfg.MetricsFile)
		observers = append(observers, collector)
	}
	var recorder *manifest.Recorder
	if cfg.Manifest {
		recorder = manifest.NewRecorder(cfg.Quality)
		observers = append(observers, recorder)
	}
	var perf *stats.Collector
	if cfg.ShowStats {
		perf = stats.NewCollector()
		observers = append(observers, perf)
	}

	log.Debug("starting extraction",
		zap.String("input", cfg.InputPath),
		zap.String("output", cfg.OutputDir),
		zap.Stringer("format", cfg.Format),
		zap.Int("workers", workers),
	)

	res, runErr := engine.NewExtractor(cfg, src, enc,
		engine.WithWorkers(workers),
		engine.WithLogger(log),
		engine.WithObserver(engine.Observers(observers...)),
	).Run(ctx)

	if collector != nil && collector.Err() != nil {
		con.Warn("metrics file: %v", collector.Err())
	}
	if recorder != nil && recorder.Err() != nil {
		con.Warn("manifest: %v", recorder.Err())
	}

	if runErr != nil {
		if console.IsInterrupt(runErr) {
			con.Interrupted(res)
			return exitInterrupted
		}
		return fail(runErr)
	}

	con.Summary(res, cfg.OutputDir)

	if perf != nil && perf.Report() != nil {
		report := perf.Report()
		_, _ = report.WriteTo(stdout)
		if err := report.AppendLog(benchmarkLog, time.Now()); err != nil {
			con.Warn("could not write %s: %v", benchmarkLog, err)
		}
	}

	return exitOK
}
