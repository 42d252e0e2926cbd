package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/video2frames/internal/engine"
)

func TestCollectorCountsFrames(t *testing.T) {
	c := New("")

	c.Start(engine.Plan{Effective: 4, Workers: 2})
	c.FrameDone(engine.FrameEvent{Seq: 0, Decode: 10 * time.Millisecond, Compose: 5 * time.Millisecond, Encode: 20 * time.Millisecond})
	c.FrameDone(engine.FrameEvent{Seq: 1})
	c.FrameDone(engine.FrameEvent{Seq: 3})
	c.FrameWarned(engine.FrameWarning{Seq: 2, Stage: engine.StageDecode, Err: errors.New("eof")})
	c.Finish(&engine.Result{Paths: []string{"a", "b", "c"}, Elapsed: 2 * time.Second})

	assert.Equal(t, 4.0, testutil.ToFloat64(c.FramesPlanned))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Workers))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.FramesWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FrameWarnings.WithLabelValues("decode")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.FrameWarnings.WithLabelValues("encode")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.RunDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.LastRunSuccess))
	assert.Equal(t, 3, testutil.CollectAndCount(c.StageDuration))
	require.NoError(t, c.Err())
}

func TestCollectorWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video2frames.prom")
	c := New(path)

	c.Start(engine.Plan{Effective: 1, Workers: 1})
	c.FrameWarned(engine.FrameWarning{Stage: engine.StageEncode, Err: errors.New("disk full")})
	c.Finish(&engine.Result{})
	require.NoError(t, c.Err())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "video2frames_last_run_success 0")
	assert.Contains(t, text, `video2frames_frame_warnings_total{stage="encode"} 1`)

	expected := `
# HELP video2frames_frames_planned Number of frames selected for extraction in the last run
# TYPE video2frames_frames_planned gauge
video2frames_frames_planned 1
`
	assert.NoError(t, testutil.GatherAndCompare(c.Registry, strings.NewReader(expected), "video2frames_frames_planned"))
}

func TestCollectorReportsWriteFailure(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "missing", "metrics.prom"))
	c.Start(engine.Plan{})
	c.Finish(&engine.Result{})
	assert.Error(t, c.Err())
}
