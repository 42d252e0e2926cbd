package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/video2frames/internal/frame"
)

const probeTimeout = 30 * time.Second

func init() {
	ffmpeg.LogCompiledCommand = false
}

// FFmpegSource decodes frames by piping rgb24 rawvideo out of ffmpeg. Forward
// requests are served from one long-running process; a request behind the
// stream position costs a separate single-frame seek.
type FFmpegSource struct {
	meta      Metadata
	frameSize int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr lockedBuffer
	cursor int
	broken error
	closed bool
}

func OpenFFmpeg(ctx context.Context, path string) (*FFmpegSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := probe(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: ffprobe %s: %v", ErrOpen, path, err)
	}
	meta, err := parseProbe([]byte(out), path)
	if err != nil {
		return nil, err
	}
	return &FFmpegSource{
		meta:      meta,
		frameSize: frame.FrameBytes(meta.Width, meta.Height),
	}, nil
}

// probe returns ffprobe's JSON for path, or ctx's error as soon as ctx ends.
// An abandoned ffprobe is still bounded by probeTimeout.
func probe(ctx context.Context, path string) (string, error) {
	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := ffmpeg.ProbeWithTimeout(path, probeTimeout, ffmpeg.KwArgs{})
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *FFmpegSource) Metadata() Metadata {
	return s.meta
}

func (s *FFmpegSource) Frame(ctx context.Context, index int) (*frame.RGB, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkIndex(s.meta, index); err != nil {
		return nil, err
	}

	if s.broken == nil && index >= s.cursor {
		f, err := s.streamFrame(ctx, index)
		if err == nil {
			return f, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.broken = err
	}
	return s.seekFrame(ctx, index)
}

func (s *FFmpegSource) startStream() error {
	cmd := ffmpeg.Input(s.meta.Path).
		Output("pipe:", s.rawOutputArgs(nil)).
		GlobalArgs("-loglevel", "error", "-nostdin").
		Compile()
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}
	s.cmd = cmd
	s.stdout = stdout
	s.cursor = 0
	return nil
}

func (s *FFmpegSource) streamFrame(ctx context.Context, index int) (*frame.RGB, error) {
	if s.cmd == nil {
		if err := s.startStream(); err != nil {
			return nil, err
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = s.cmd.Process.Kill() })
	defer stop()

	if skip := index - s.cursor; skip > 0 {
		n, err := io.CopyN(io.Discard, s.stdout, int64(skip)*int64(s.frameSize))
		s.cursor += int(n / int64(s.frameSize))
		if err != nil {
			return nil, s.streamError(fmt.Sprintf("skip to frame %d", index), err)
		}
	}

	f := frame.New(s.meta.Width, s.meta.Height)
	if _, err := io.ReadFull(s.stdout, f.Pix); err != nil {
		return nil, s.streamError(fmt.Sprintf("read frame %d", index), err)
	}
	s.cursor = index + 1
	return f, nil
}

func (s *FFmpegSource) streamError(op string, err error) error {
	if msg := strings.TrimSpace(s.stderr.String()); msg != "" {
		return fmt.Errorf("%s: %w: %s", op, err, msg)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *FFmpegSource) seekFrame(ctx context.Context, index int) (*frame.RGB, error) {
	var out, errOut bytes.Buffer
	cmd := ffmpeg.Input(s.meta.Path).
		Output("pipe:", s.rawOutputArgs(ffmpeg.KwArgs{
			"vf":       fmt.Sprintf("select=gte(n\\,%d)", index),
			"frames:v": 1,
		})).
		GlobalArgs("-loglevel", "error", "-nostdin").
		Compile()
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := runContext(ctx, cmd); err != nil {
		return nil, fmt.Errorf("seek frame %d: %w: %s", index, err, strings.TrimSpace(errOut.String()))
	}
	if out.Len() < s.frameSize {
		return nil, fmt.Errorf("seek frame %d: got %d of %d bytes", index, out.Len(), s.frameSize)
	}

	return &frame.RGB{
		Width:  s.meta.Width,
		Height: s.meta.Height,
		Pix:    out.Bytes()[:s.frameSize],
	}, nil
}

// rawOutputArgs forces packed rgb24 at the probed size so every frame on the
// pipe is exactly frameSize bytes.
func (s *FFmpegSource) rawOutputArgs(extra ffmpeg.KwArgs) ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{
		"f":        "rawvideo",
		"pix_fmt":  "rgb24",
		"fps_mode": "passthrough",
		"s":        fmt.Sprintf("%dx%d", s.meta.Width, s.meta.Height),
	}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

func (s *FFmpegSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cmd == nil {
		return nil
	}
	s.stdout.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil
	return nil
}

func runContext(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = cmd.Process.Kill() })
	defer stop()

	err := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecName    string            `json:"codec_name"`
	CodecType    string            `json:"codec_type"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	AvgFrameRate string            `json:"avg_frame_rate"`
	RFrameRate   string            `json:"r_frame_rate"`
	NbFrames     string            `json:"nb_frames"`
	Duration     string            `json:"duration"`
	Tags         map[string]string `json:"tags"`
	SideDataList []ffprobeSideData `json:"side_data_list"`
	Disposition  ffprobeDisp       `json:"disposition"`
}

type ffprobeSideData struct {
	Rotation float64 `json:"rotation"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeDisp struct {
	AttachedPic int `json:"attached_pic"`
}

func parseProbe(data []byte, path string) (Metadata, error) {
	var ff ffprobeOutput
	if err := json.Unmarshal(data, &ff); err != nil {
		return Metadata{}, fmt.Errorf("%w: parse ffprobe output: %v", ErrOpen, err)
	}

	var video *ffprobeStream
	for i := range ff.Streams {
		s := &ff.Streams[i]
		if s.CodecType == "video" && s.Disposition.AttachedPic == 0 {
			video = s
			break
		}
	}
	if video == nil {
		return Metadata{}, fmt.Errorf("%w: %s has no video stream", ErrOpen, path)
	}
	if video.Width <= 0 || video.Height <= 0 {
		return Metadata{}, fmt.Errorf("%w: %s reports %dx%d", ErrOpen, path, video.Width, video.Height)
	}

	fps := parseFrameRate(video.AvgFrameRate)
	if fps <= 0 {
		fps = parseFrameRate(video.RFrameRate)
	}

	total, _ := strconv.Atoi(video.NbFrames)
	if total <= 0 {
		duration := parseFloat(video.Duration)
		if duration <= 0 {
			duration = parseFloat(ff.Format.Duration)
		}
		total = int(math.Round(duration * fps))
	}

	width, height := video.Width, video.Height
	if quarterTurn(video) {
		width, height = height, width
	}

	return Metadata{
		Path:        path,
		Codec:       video.CodecName,
		TotalFrames: total,
		FPS:         fps,
		Width:       width,
		Height:      height,
	}, nil
}

// quarterTurn reports whether the stream carries a ±90° display rotation,
// which ffmpeg applies on decode.
func quarterTurn(s *ffprobeStream) bool {
	rotation := parseFloat(s.Tags["rotate"])
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			rotation = sd.Rotation
		}
	}
	r := int(math.Abs(rotation)) % 180
	return r == 90
}

func parseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return parseFloat(s)
	}
	num, _ := strconv.ParseFloat(parts[0], 64)
	den, _ := strconv.ParseFloat(parts[1], 64)
	if den == 0 {
		return 0
	}
	return num / den
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// lockedBuffer collects ffmpeg's stderr, which exec copies from its own
// goroutine while the decoder may read it for error messages.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
