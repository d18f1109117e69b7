package output

import (
	"fmt"
	"time"
)

// BuildHeader constructs a transcript line header in the format:
// [RUNID][TOKEN][BAUD][YYYY-MM-DD HH:MM:SS.mmm]
func BuildHeader(runID, token string, baudRate int, timestamp time.Time) string {
	// Format: [3f2a9c1e][8N1][9600][2025-12-03 15:04:05.123]
	return fmt.Sprintf("[%s][%s][%d][%s] ",
		shortRunID(runID),
		token,
		baudRate,
		FormatTimestamp(timestamp))
}

// FormatTimestamp formats a timestamp in the required format with milliseconds
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000")
}

// shortRunID keeps the first UUID group, enough to tell runs apart in a file
func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
