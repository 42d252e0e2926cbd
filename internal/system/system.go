package system

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// buffersPerWorker counts the frames a compose/encode worker can hold at
// once: the decoded source, the resized copy and the composed canvas.
const buffersPerWorker = 3

// DefaultWorkers sizes the compose/encode pool: one worker per logical CPU,
// reduced while the in-flight buffers would not fit in a quarter of the
// available memory. Never below 1.
func DefaultWorkers(frameBytes int) int {
	workers, err := cpu.Counts(true)
	if err != nil || workers < 1 {
		workers = 1
	}

	vm, err := mem.VirtualMemory()
	if err != nil || frameBytes <= 0 {
		return workers
	}
	return fitMemory(workers, frameBytes, vm.Available/4)
}

func fitMemory(workers, frameBytes int, budget uint64) int {
	perWorker := uint64(frameBytes) * buffersPerWorker
	for workers > 1 && uint64(workers)*perWorker > budget {
		workers--
	}
	return workers
}

// HasEncoder reports whether the ffmpeg on PATH was built with the named
// encoder (e.g. "libwebp"). A missing or failing ffmpeg counts as false; the
// error is only set when ctx ended before ffmpeg could answer.
func HasEncoder(ctx context.Context, name string) (bool, error) {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").Output()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return false, nil
	}
	return listsEncoder(string(out), name), nil
}

// listsEncoder scans `ffmpeg -encoders` output, whose rows look like
// " V....D libwebp   libwebp WebP image (codec webp)".
func listsEncoder(out, name string) bool {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && len(fields[0]) == 6 && fields[1] == name {
			return true
		}
	}
	return false
}

// ProcessRSS returns the resident set size of this process in bytes, or 0
// if the platform does not report it.
func ProcessRSS() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := p.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS
}
