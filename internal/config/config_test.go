package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampQuality(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-20, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{250, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampQuality(tt.in), "quality %d", tt.in)
	}
}

func TestNormalize(t *testing.T) {
	cfg := Defaults()
	cfg.Quality = 140
	got, err := cfg.Normalize()
	require.NoError(t, err)
	assert.Equal(t, 100, got.Quality)

	bad := []func(c *Config){
		func(c *Config) { c.Width = 0 },
		func(c *Config) { c.Height = -1 },
		func(c *Config) { c.SamplingFPS = 0 },
		func(c *Config) { c.SequenceFPS = -2 },
		func(c *Config) { c.Workers = -1 },
		func(c *Config) { c.Format = Format(42) },
		func(c *Config) { c.OutputDir = "" },
	}
	for i, mutate := range bad {
		c := Defaults()
		mutate(&c)
		_, err := c.Normalize()
		assert.ErrorIs(t, err, ErrInvalidArgument, "case %d", i)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"jpg", JPEG, false},
		{"JPEG", JPEG, false},
		{".png", PNG, false},
		{"webp", WEBP, false},
		{"gif", JPEG, true},
		{"", JPEG, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatExt(t *testing.T) {
	assert.Equal(t, "jpg", JPEG.Ext())
	assert.Equal(t, "png", PNG.Ext())
	assert.Equal(t, "webp", WEBP.Ext())
	assert.False(t, Format(9).Valid())
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "video2frames.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 640\nheight: 360\nformat: png\nnum_frames: 12\n"), 0644))
	t.Setenv(EnvPrefix+"QUALITY", "80")
	t.Setenv(EnvPrefix+"HEIGHT", "480")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height, "env overrides file")
	assert.Equal(t, 80, cfg.Quality)
	assert.Equal(t, PNG, cfg.Format)
	require.NotNil(t, cfg.NumFrames)
	assert.Equal(t, 12, *cfg.NumFrames)
	assert.Equal(t, "frames_output", cfg.OutputDir)
}

func TestLoadRejectsBadFormat(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: tiff\n"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLoadWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg.NumFrames)
	assert.Equal(t, Defaults().Width, cfg.Width)
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
