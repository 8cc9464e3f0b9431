// Package footage converts stock length into screen time for the supported
// 2-perf, 24 fps format.
package footage

import (
	"fmt"
	"math"
)

// FeetPerMinute is the fixed 2-perf ratio: 45 ft of stock run for 60 seconds.
const FeetPerMinute = 45

const zeroDuration = "00:00 min"

// Duration renders ft as "MM:SS min". Zero, negative and NaN input all render
// as "00:00 min". The total seconds are truncated once; minutes and seconds are
// derived from that value.
func Duration(ft float64) string {
	if math.IsNaN(ft) || ft <= 0 {
		return zeroDuration
	}
	totalSeconds := int64(math.Floor(ft * 60 / FeetPerMinute))
	return fmt.Sprintf("%02d:%02d min", totalSeconds/60, totalSeconds%60)
}

// DurationOf is Duration for optional lengths; nil renders as "00:00 min".
func DurationOf(ft *float64) string {
	if ft == nil {
		return zeroDuration
	}
	return Duration(*ft)
}
