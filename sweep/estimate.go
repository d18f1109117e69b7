package sweep

import (
	"math"
	"time"
)

// ProbeCount is the number of probes a plan runs, skipped tokens included
func (p Plan) ProbeCount() int {
	return len(p.Tokens) * len(p.BaudRates)
}

// Estimate is the worst-case run time: every probe waits its full timeout
func (p Plan) Estimate() time.Duration {
	return time.Duration(p.ProbeCount()) * p.Timeout
}

// Minutes converts d to minutes rounded to two decimals
func Minutes(d time.Duration) float64 {
	return math.Round(d.Minutes()*100) / 100
}
