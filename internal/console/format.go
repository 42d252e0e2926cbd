package console

import (
	"fmt"
	"math"
	"strconv"
)

// FormatDuration renders seconds as "1m 5.0s", or "5.0s" under a minute.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	minutes := int(seconds / 60)
	secs := seconds - float64(minutes)*60
	if minutes > 0 {
		return fmt.Sprintf("%dm %.1fs", minutes, secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}

// FormatCount adds thousands separators: 1234567 -> "1,234,567".
func FormatCount(n int) string {
	s := strconv.Itoa(n)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

func FormatSize(width, height int) string {
	return fmt.Sprintf("%dx%d", width, height)
}
