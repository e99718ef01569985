package eval

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// PrintProgress writes one case line as it completes. Suitable for
// Runner.WithProgress.
func PrintProgress(w io.Writer) func(i, total int, res CaseResult) {
	return func(i, total int, res CaseResult) {
		status := color.GreenString("PASS")
		score := "-"
		if res.Score != nil {
			score = fmt.Sprintf("%.1f", res.Score.Overall)
		}
		if !res.Passed {
			status = color.RedString("FAIL")
		}
		fmt.Fprintf(w, "[%d/%d] %s: %s\n", i, total, res.Case.ID, res.Case.Name)
		fmt.Fprintf(w, "  Score: %s/10 (min %.1f) %s\n", score, res.Case.MinScore, status)
		if res.Err != "" {
			fmt.Fprintf(w, "  Error: %s\n", truncateLine(res.Err, 80))
		}
	}
}

// PrintSummary writes the final run report.
func PrintSummary(w io.Writer, summary *Summary) {
	line := strings.Repeat("=", 60)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "EVALUATION SUMMARY")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Cases:     %d\n", len(summary.Results))
	fmt.Fprintf(w, "Passed:    %s\n", color.GreenString("%d", summary.PassCount))
	fmt.Fprintf(w, "Failed:    %s\n", color.RedString("%d", summary.FailCount))
	fmt.Fprintf(w, "Aggregate: %.1f/10 (threshold %.1f)\n", summary.Aggregate, summary.Threshold)

	for _, res := range summary.Results {
		if res.Passed {
			continue
		}
		fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("✗"), res.Case.ID, res.Case.Name)
		if res.Score != nil && len(res.Score.Improvements) > 0 {
			fmt.Fprintf(w, "    Improve: %s\n", truncateLine(res.Score.Improvements[0], 70))
		}
	}

	fmt.Fprintln(w, line)
	if summary.Passed {
		fmt.Fprintf(w, "%s aggregate score meets the threshold\n", color.GreenString("✓"))
	} else {
		fmt.Fprintf(w, "%s aggregate score below the threshold\n", color.RedString("✗"))
	}
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
