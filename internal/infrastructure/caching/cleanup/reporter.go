// Package cleanup provides ascii reporter
package cleanup

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	cyan       = "\033[38;2;86;182;194m"  // One Dark Cyan: #56B6C2
	cyanBright = "\033[38;2;97;228;240m"  // Brighter Cyan: #61E4F0
	dimCyan    = "\033[38;2;47;91;102m"   // Dim Cyan: #2F5B66
	grey       = "\033[38;2;110;118;129m" // Brighter Grey: #6E7681
	dimGrey    = "\033[38;2;75;82;99m"    // Darker Grey: #4B5263
	success    = "\033[38;2;62;130;144m"  // Dim Cyan: #3E8290
	warning    = "\033[38;2;229;192;123m" // One Dark Yellow: #E5C07B
	errorRed   = "\033[38;2;224;108;117m" // One Dark Red: #E06C75
	white      = "\033[38;2;171;178;191m" // One Dark Foreground: #ABB2BF
	reset      = "\033[0m"
	bold       = "\033[1m"
)

// Reporter prints human-facing progress lines for startup and cleanup.
type Reporter struct {
	out io.Writer
}

func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{out: out}
}

func (r *Reporter) LogHeader(title string) {
	fmt.Fprintf(r.out, "%s%s✓ %s %s\n", bold, cyan, strings.ToUpper(title), reset)
}

func (r *Reporter) LogSubHeader(text string) {
	fmt.Fprintf(r.out, "%s%s░▒▓ %s %s\n", bold, dimCyan, text, reset)
}

func (r *Reporter) LogStepSuccess(message string, args ...any) {
	fmt.Fprintf(r.out, "%s⚡ %s%s...%s\n", dimGrey, grey, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogStage(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s✦ %s%s%s\n", success, bold, grey, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogSuccess(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s✦ %s%s%s\n", success, bold, white, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogError(message string, err error) {
	fmt.Fprintf(r.out, "%s%s✖ ERROR: %s%s: %v%s\n", bold, errorRed, grey, message, err, reset)
}

func (r *Reporter) LogWarning(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s⚠ WARNING: %s%s%s\n", bold, warning, grey, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogInfo(message string, args ...any) {
	fmt.Fprintf(r.out, "%s▶ %s%s%s\n", dimGrey, grey, fmt.Sprintf(message, args...), reset)
}

// GenerateReport renders one line per task result of a cleanup pass.
func (r *Reporter) GenerateReport(results []TaskResult) string {
	var report strings.Builder
	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 MST")
	report.WriteString(fmt.Sprintf("%s%s▓ %s | cleanup pass%s\n", bold, dimCyan, timestamp, reset))

	var line strings.Builder
	line.WriteString(fmt.Sprintf("%s✦ removed:%s", cyanBright, reset))
	for _, res := range results {
		line.WriteString(" ")
		switch {
		case res.Err != nil:
			line.WriteString(fmt.Sprintf("%s%s:%sfailed", dimGrey, res.Name, errorRed))
		case res.Removed > 0:
			line.WriteString(fmt.Sprintf("%s%s:%s%d", dimCyan, res.Name, cyan, res.Removed))
		default:
			line.WriteString(fmt.Sprintf("%s%s:%s--", dimGrey, res.Name, dimGrey))
		}
	}
	report.WriteString(line.String() + reset + "\n")
	return report.String()
}
