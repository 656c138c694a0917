// Package playback holds the two playback controllers: per-line preview
// playback and the assembled podcast track with transport controls.
package playback

import (
	"fmt"
	"math"
)

// FormatTime renders a position in seconds as "m:ss". Minutes are
// unbounded, seconds are zero-padded. Non-finite or negative inputs
// render as "0:00".
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	return fmt.Sprintf("%d:%02d", whole/60, whole%60)
}
