package system

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFitMemory(t *testing.T) {
	frame := 1200 * 680 * 3

	assert.Equal(t, 8, fitMemory(8, frame, 1<<34), "plenty of memory keeps one worker per CPU")
	assert.Equal(t, 2, fitMemory(8, frame, uint64(frame)*buffersPerWorker*2))
	assert.Equal(t, 1, fitMemory(8, frame, 0), "never below one worker")
}

func TestDefaultWorkersIsPositive(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultWorkers(1200*680*3), 1)
	assert.GreaterOrEqual(t, DefaultWorkers(0), 1)
}

const encodersOutput = `Encoders:
 V..... = Video
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D libwebp_anim         libwebp WebP image (codec webp)
 V....D libwebp              libwebp WebP image (codec webp)
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestListsEncoder(t *testing.T) {
	assert.True(t, listsEncoder(encodersOutput, "libwebp"))
	assert.True(t, listsEncoder(encodersOutput, "aac"))
	assert.False(t, listsEncoder(encodersOutput, "h264_nvenc"))
	assert.False(t, listsEncoder(encodersOutput, "Video"), "legend rows are not encoders")
	assert.False(t, listsEncoder("", "libwebp"))
}

func TestHasEncoderWithoutFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err == nil {
		t.Skip("ffmpeg is installed")
	}
	ok, err := HasEncoder(context.Background(), "libwebp")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestHasEncoderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := HasEncoder(ctx, "libwebp")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestProcessRSS(t *testing.T) {
	// Not every platform exposes RSS; when it does it is non-zero.
	if rss := ProcessRSS(); rss != 0 {
		assert.Greater(t, rss, uint64(1<<10))
	}
}
