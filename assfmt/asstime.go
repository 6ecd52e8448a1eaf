package assfmt

import (
	"fmt"
	"math"
)

// asstime formats seconds as ASS's H:MM:SS.CC timestamp: hours unpadded,
// minutes/seconds zero-padded to two digits, two centisecond digits.
func asstime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalCentis := int64(math.Round(seconds * 100))

	cs := totalCentis % 100
	totalSeconds := totalCentis / 100
	s := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	m := totalMinutes % 60
	h := totalMinutes / 60

	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}
