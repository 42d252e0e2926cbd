// Package console renders everything the CLI shows a person: the video
// panel, progress, the run summary and error lines.
package console

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/colorstring"

	"github.com/ivlev/video2frames/internal/engine"
	"github.com/ivlev/video2frames/internal/source"
)

const (
	rule        = "============================================================"
	sampleFiles = 3
)

type Console struct {
	Out io.Writer
	Err io.Writer

	colors colorstring.Colorize
	red    *color.Color
	yellow *color.Color
}

// New writes to out and errw. Colors follow fatih/color's terminal
// detection unless noColor is set.
func New(out, errw io.Writer, noColor bool) *Console {
	c := &Console{
		Out: out,
		Err: errw,
		colors: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Reset:   true,
			Disable: noColor || color.NoColor,
		},
		red:    color.New(color.FgRed, color.Bold),
		yellow: color.New(color.FgYellow),
	}
	if noColor {
		c.red.DisableColor()
		c.yellow.DisableColor()
	}
	return c
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprint(c.Out, c.colors.Color(fmt.Sprintf(format, args...)))
}

// VideoInfo prints the metadata panel.
func (c *Console) VideoInfo(meta source.Metadata) {
	c.printf("\n%s\n", rule)
	c.printf("[bold]VIDEO INFO\n")
	c.printf("%s\n", rule)
	c.printf("[*] File:         %s\n", filepath.Base(meta.Path))
	c.printf("[*] Duration:     %s\n", FormatDuration(meta.Duration()))
	c.printf("[*] FPS:          %.2f\n", meta.FPS)
	c.printf("[*] Total frames: %s\n", FormatCount(meta.TotalFrames))
	c.printf("[*] Resolution:   %s\n", FormatSize(meta.Width, meta.Height))
	if meta.Codec != "" {
		c.printf("[*] Codec:        %s\n", meta.Codec)
	}
	c.printf("%s\n", rule)
}

func (c *Console) InfoOnly() {
	c.printf("\n[cyan][*][reset] Info mode: no frames extracted.\n")
}

// FrameCount explains where the number of frames comes from.
func (c *Console) FrameCount(requested *int, optimal int, samplingFPS float64) {
	if requested == nil {
		c.printf("\n[yellow][*][reset] Optimal frame count: %d frames\n", optimal)
		c.printf("    (based on %g fps)\n", samplingFPS)
		return
	}
	c.printf("\n[yellow][*][reset] Requested frames: %d\n", *requested)
	c.printf("    (suggested optimal value: %d frames)\n", optimal)
}

// Summary lists what a finished run wrote.
func (c *Console) Summary(res *engine.Result, outputDir string) {
	c.printf("\n[green][+][reset] Extracted %d/%d frames\n", len(res.Paths), res.Effective)
	c.printf("[*] Frames are in: %s%c\n", filepath.Clean(outputDir), filepath.Separator)
	c.printf("[*] Files created: %d\n", len(res.Paths))
	if len(res.Paths) == 0 {
		return
	}

	c.printf("\n[*] Sample files:\n")
	for i, p := range res.Paths {
		if i == sampleFiles {
			break
		}
		c.printf("    - %s\n", filepath.Base(p))
	}
	if more := len(res.Paths) - sampleFiles; more > 0 {
		c.printf("    ... and %d more\n", more)
	}
}

// Error prints a fatal error line.
func (c *Console) Error(err error) {
	c.red.Fprintf(c.Err, "[-] Error: %v\n", err)
}

func (c *Console) Warn(format string, args ...any) {
	c.yellow.Fprintf(c.Err, "[!] "+format+"\n", args...)
}

// Interrupted reports a cancelled run and how much of it made it to disk.
func (c *Console) Interrupted(res *engine.Result) {
	written := 0
	if res != nil {
		written = len(res.Paths)
	}
	c.yellow.Fprintf(c.Err, "\n[!] Interrupted by user, %d frames kept\n", written)
}

// Usage prints the command help.
func (c *Console) Usage(prog, flags string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage: %s <video|image-dir> [options]\n\n", prog)
	b.WriteString("Extracts evenly spaced frames from a video and writes them as\n")
	b.WriteString("letterboxed images of a fixed size.\n\n")
	b.WriteString("Options:\n")
	b.WriteString(flags)
	b.WriteString("\nExamples:\n")
	fmt.Fprintf(&b, "  %s video.mp4                       optimal automatic extraction\n", prog)
	fmt.Fprintf(&b, "  %s video.mp4 -n 100                exactly 100 frames\n", prog)
	fmt.Fprintf(&b, "  %s video.mp4 -n 50 -w 1920 -h 1080 -q 100\n", prog)
	fmt.Fprintf(&b, "  %s video.mp4 --info                only show video info\n", prog)
	fmt.Fprintf(&b, "  %s video.mp4 --fps 30 -f webp      denser sampling, WebP output\n", prog)
	fmt.Fprint(c.Out, b.String())
}

// IsInterrupt reports whether err comes from a cancelled run.
func IsInterrupt(err error) bool {
	return errors.Is(err, engine.ErrInterrupted)
}
