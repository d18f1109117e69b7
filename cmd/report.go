package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"baudsniffer/sweep"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color("240"))

	cellStyle = lipgloss.NewStyle().
			PaddingRight(2)

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// summary is the end-of-run report, rendered as a table or as JSON
type summary struct {
	RunID        string              `json:"run_id"`
	Port         string              `json:"port"`
	Combinations []sweep.Combination `json:"combinations"`
	Best         *sweep.Combination  `json:"best"`
	Skipped      []string            `json:"skipped,omitempty"`
	Probes       int                 `json:"probes"`
	Planned      int                 `json:"planned"`
	Failures     int                 `json:"failures"`
	Unreachable  bool                `json:"unreachable"`
	Interrupted  bool                `json:"interrupted"`
	EstimateMin  float64             `json:"estimate_min"`
	ElapsedMin   float64             `json:"elapsed_min"`
	Transcript   string              `json:"transcript,omitempty"`
}

func newSummary(res *sweep.Result, report sweep.Report, plan sweep.Plan, interrupted bool) summary {
	combos := report.Combinations
	if combos == nil {
		combos = []sweep.Combination{}
	}
	return summary{
		RunID:        res.RunID,
		Port:         res.Port,
		Combinations: combos,
		Best:         report.Best,
		Skipped:      res.Skipped,
		Probes:       res.Probes,
		Planned:      plan.ProbeCount(),
		Failures:     res.Failures,
		Unreachable:  res.Unreachable,
		Interrupted:  interrupted,
		EstimateMin:  sweep.Minutes(plan.Estimate()),
		ElapsedMin:   sweep.Minutes(res.Elapsed()),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderReport prints the found combinations in a static table
func renderReport(w io.Writer, s summary) {
	fmt.Fprintln(w)
	if s.Interrupted {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Sweep interrupted after %d of %d probes, results are partial", s.Probes, s.Planned)))
	}
	if s.Unreachable {
		fmt.Fprintln(w, warnStyle.Render("The port could not be opened on the first probe; check the cable and the port name"))
	}

	if len(s.Combinations) == 0 {
		fmt.Fprintln(w, errStyle.Render("No connection found"))
	} else {
		settingWidth := 16
		baudWidth := 10

		fmt.Fprintln(w, "Found the following settings:")
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-*s %*s", settingWidth, "Serial Settings", baudWidth, "Baudrate")))
		for _, c := range s.Combinations {
			row := fmt.Sprintf("%-*s %*d", settingWidth, c.Token, baudWidth, c.BaudRate)
			if s.Best != nil && c == *s.Best {
				fmt.Fprintln(w, okStyle.Render(row))
				continue
			}
			fmt.Fprintln(w, cellStyle.Render(row))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Best connection: "+okStyle.Render(s.Best.String()))
	}

	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped line settings: %v\n", s.Skipped)
	}
	if s.Failures > 0 {
		fmt.Fprintf(w, "Probes with read errors: %d\n", s.Failures)
	}
	if s.Transcript != "" {
		fmt.Fprintf(w, "Transcript: %s\n", s.Transcript)
	}
	fmt.Fprintf(w, "Runtime: %.2f min\n", s.ElapsedMin)
}
