package main

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/video2frames/internal/config"
	"github.com/ivlev/video2frames/internal/manifest"
)

// imageDir writes n small PNGs that the CLI reads as a video.
func imageDir(t *testing.T, n int) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "clip")
	require.NoError(t, os.Mkdir(dir, 0o755))
	for i := 0; i < n; i++ {
		img := imaging.New(64, 36, color.NRGBA{uint8(i * 10), 100, 200, 255})
		require.NoError(t, imaging.Save(img, filepath.Join(dir, fmt.Sprintf("img%02d.png", i))))
	}
	return dir
}

func runCLI(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func files(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRunUsage(t *testing.T) {
	chdir(t, t.TempDir())

	code, out, _ := runCLI(t, context.Background())
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "Usage: video2frames")
	assert.Contains(t, out, "-n, --num-frames")
	assert.Contains(t, out, "-h, --height")

	code, out, _ = runCLI(t, context.Background(), "video.mp4", "--help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "Usage: video2frames")
}

func TestRunInvalidArguments(t *testing.T) {
	chdir(t, t.TempDir())

	tests := map[string][]string{
		"unknown flag":    {"video.mp4", "--bogus"},
		"bad number":      {"video.mp4", "-n", "many"},
		"missing value":   {"video.mp4", "-w"},
		"unknown format":  {"video.mp4", "-f", "gif"},
		"zero width":      {"video.mp4", "-w", "0"},
		"extra argument":  {"video.mp4", "other.mp4"},
		"bad log level":   {"video.mp4", "--log-level", "loud"},
		"flags, no video": {"-n", "3"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			code, out, errOut := runCLI(t, context.Background(), args...)
			assert.Equal(t, exitError, code)
			assert.Empty(t, out, "nothing is printed before the arguments are valid")
			assert.Contains(t, errOut, "[-] Error:")
		})
	}
}

func TestRunMissingFile(t *testing.T) {
	chdir(t, t.TempDir())

	code, _, errOut := runCLI(t, context.Background(), "nope.mp4")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, `"nope.mp4" does not exist`)
}

func TestRunInfoOnly(t *testing.T) {
	chdir(t, t.TempDir())
	dir := imageDir(t, 5)
	out := filepath.Join(t.TempDir(), "out")

	code, stdout, _ := runCLI(t, context.Background(), dir, "--info", "-o", out, "--no-color")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Total frames: 5")
	assert.Contains(t, stdout, "Resolution:   64x36")
	assert.Contains(t, stdout, "Info mode")
	assert.NoDirExists(t, out)
}

func TestRunExtractsFrames(t *testing.T) {
	chdir(t, t.TempDir())
	dir := imageDir(t, 10)
	out := filepath.Join(t.TempDir(), "out")

	code, stdout, errOut := runCLI(t, context.Background(), dir, "-n", "4", "-w", "32", "-h", "32", "-o", out,
		"--manifest", "--metrics-file", filepath.Join(out, "metrics.prom"), "--stats", "--no-color")
	require.Equal(t, exitOK, code, errOut)

	assert.Equal(t, []string{
		"frame000000.jpg", "frame000001.jpg", "frame000002.jpg", "frame000003.jpg",
		manifest.FileName, "metrics.prom",
	}, files(t, out))

	img, err := imaging.Open(filepath.Join(out, "frame000000.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())

	m, err := manifest.Read(filepath.Join(out, manifest.FileName))
	require.NoError(t, err)
	assert.Equal(t, 4, m.Effective)
	require.Len(t, m.Frames, 4)
	assert.Equal(t, []int{0, 3, 6, 9}, []int{m.Frames[0].Index, m.Frames[1].Index, m.Frames[2].Index, m.Frames[3].Index})

	assert.Contains(t, stdout, "Requested frames: 4")
	assert.Contains(t, stdout, "Extracted 4/4 frames")
	assert.Contains(t, stdout, "... and 1 more")
	assert.Contains(t, stdout, "PERFORMANCE REPORT")
	assert.FileExists(t, benchmarkLog)
}

func TestRunSingleFrameAsPNG(t *testing.T) {
	chdir(t, t.TempDir())
	dir := imageDir(t, 3)
	out := filepath.Join(t.TempDir(), "out")

	code, _, errOut := runCLI(t, context.Background(), dir, "-n", "1", "-f", "png", "-o", out)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, []string{"frame000000.png"}, files(t, out))
}

func TestRunUsesConfigFileAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	dir := imageDir(t, 6)
	out := filepath.Join(t.TempDir(), "out")

	cfgPath := filepath.Join(t.TempDir(), "video2frames.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("format: png\nnum_frames: 2\nwidth: 20\nheight: 20\n"), 0o644))
	t.Setenv(config.EnvPrefix+"OUTPUT", out)

	// The flag wins over the file.
	code, _, errOut := runCLI(t, context.Background(), dir, "--config", cfgPath, "-n", "3")
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, []string{"frame000000.png", "frame000001.png", "frame000002.png"}, files(t, out))
}

func TestRunEmptyVideo(t *testing.T) {
	chdir(t, t.TempDir())
	dir := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.Mkdir(dir, 0o755))
	out := filepath.Join(t.TempDir(), "out")

	code, _, errOut := runCLI(t, context.Background(), dir, "-o", out)
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "video has no frames")
	assert.NoDirExists(t, out)
}

func TestRunInterrupted(t *testing.T) {
	chdir(t, t.TempDir())
	dir := imageDir(t, 4)
	out := filepath.Join(t.TempDir(), "out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _, errOut := runCLI(t, ctx, dir, "-o", out)
	assert.Equal(t, exitInterrupted, code)
	assert.Contains(t, errOut, "Interrupted by user, 0 frames kept")
}

func TestRunInterruptedWhileCheckingWebP(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg is a shell script")
	}
	chdir(t, t.TempDir())
	dir := imageDir(t, 4)
	out := filepath.Join(t.TempDir(), "out")

	bin := t.TempDir()
	script := "#!/bin/sh\necho ' V....D libwebp              libwebp WebP image (codec webp)'\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, "ffmpeg"), []byte(script), 0o755))
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _, errOut := runCLI(t, ctx, dir, "-f", "webp", "-o", out)
	assert.Equal(t, exitInterrupted, code)
	assert.Contains(t, errOut, "Interrupted by user, 0 frames kept")
	assert.NotContains(t, errOut, "libwebp")
	assert.NoDirExists(t, out)
}

func TestRunAcceptsOptionsAroundInput(t *testing.T) {
	chdir(t, t.TempDir())
	dir := imageDir(t, 5)
	out := filepath.Join(t.TempDir(), "out")

	code, _, errOut := runCLI(t, context.Background(), "-n", "2", dir, "-f", "png", "-o", out)
	require.Equal(t, exitOK, code, errOut)
	assert.Equal(t, []string{"frame000000.png", "frame000001.png"}, files(t, out))
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
