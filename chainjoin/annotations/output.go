package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter, enabling color when w is a terminal.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd())
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// NewPlainFormatter creates a formatter that never emits color codes
func NewPlainFormatter(w io.Writer) *OutputFormatter {
	return &OutputFormatter{writer: w}
}

// Handle prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case QueryInvoked:
		return fmt.Sprintf("%s Chain: %s", latency, truncate(fmt.Sprint(event.Data["chain"])))

	case QueryCompiled:
		return fmt.Sprintf("%s %s compiled %s",
			latency,
			f.colorize("===", color.FgYellow),
			f.colorizeCount("stages", intData(event, "stages.count")))

	case RelationLoaded:
		return fmt.Sprintf("%s Loaded %s with %s",
			latency,
			f.colorize(fmt.Sprint(event.Data["relation"]), color.FgCyan),
			f.colorizeCount("tuples", intData(event, "tuples.count")))

	case RelationIndexed:
		return fmt.Sprintf("%s Indexed %s on column %d: %s, largest bucket %d",
			latency,
			f.colorize(fmt.Sprint(event.Data["relation"]), color.FgCyan),
			intData(event, "key.column"),
			f.colorizeCount("keys", intData(event, "keys.count")),
			intData(event, "bucket.max"))

	case StageComplete:
		candidates := intData(event, "candidates")
		passed := intData(event, "passed")
		line := fmt.Sprintf("%s Stage %d %s: %s → %s",
			latency,
			intData(event, "stage"),
			f.colorize(fmt.Sprint(event.Data["relation"]), color.FgCyan),
			f.colorizeCount("candidates", candidates),
			f.colorizeCount("passed", passed))
		if probes := intData(event, "probes"); probes > 0 {
			line += fmt.Sprintf(" (%d probes, %d misses)", probes, intData(event, "misses"))
		}
		return line

	case BatchComplete:
		return fmt.Sprintf("%s Batch %d: rows %d-%d → %s",
			latency,
			intData(event, "batch"),
			intData(event, "rows.start"),
			intData(event, "rows.end"),
			f.colorizeCount("results", intData(event, "results.count")))

	case QueryComplete:
		if success, _ := event.Data["success"].(bool); !success {
			return fmt.Sprintf("%s %s Query failed: %v",
				latency,
				f.colorize("✗", color.FgRed),
				event.Data["error"])
		}
		return fmt.Sprintf("%s %s Query done with %s from %s.",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("results", intData(event, "results.count")),
			f.colorizeCount("driving", intData(event, "driving.count")))

	case ErrorInput, ErrorConfiguration:
		return fmt.Sprintf("%s %s %s: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Name,
			event.Data["error"])

	default:
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

func intData(event Event, key string) int {
	switch v := event.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	}
	return 0
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch label {
	case "tuples", "candidates":
		return color.MagentaString(text)
	case "results", "passed":
		return color.GreenString(text)
	case "keys", "stages", "driving":
		return color.CyanString(text)
	default:
		return text
	}
}

func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// truncate shortens long chain descriptions for display.
func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")

	const maxLen = 100
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// ConsoleHandler creates a handler that prints formatted events to stderr.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}
