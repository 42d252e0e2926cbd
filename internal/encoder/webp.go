package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/ivlev/video2frames/internal/config"
	"github.com/ivlev/video2frames/internal/frame"
)

const webpCodec = "libwebp"

// WebPEncoder pipes the raw rgb24 frame into ffmpeg's libwebp encoder.
type WebPEncoder struct {
	params Params
}

func (e *WebPEncoder) Format() config.Format {
	return config.WEBP
}

func (e *WebPEncoder) Encode(ctx context.Context, f *frame.RGB, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f.Valid() {
		return fmt.Errorf("encode %s: invalid frame", path)
	}

	tmp := path + ".part"
	var errOut bytes.Buffer
	cmd := ffmpeg.Input("pipe:", ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgb24",
		"s":       fmt.Sprintf("%dx%d", f.Width, f.Height),
	}).
		Output(tmp, ffmpeg.KwArgs{
			"c:v":      webpCodec,
			"quality":  e.params.WebPQuality,
			"frames:v": 1,
			"f":        "webp",
		}).
		GlobalArgs("-loglevel", "error").
		OverWriteOutput().
		WithInput(bytes.NewReader(f.Pix[:frame.FrameBytes(f.Width, f.Height)])).
		WithErrorOutput(&errOut).
		Compile()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = cmd.Process.Kill() })
	err := cmd.Wait()
	stop()

	if err != nil {
		os.Remove(tmp)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ffmpeg webp: %w: %s", err, strings.TrimSpace(errOut.String()))
	}
	return os.Rename(tmp, path)
}
