// Package status implements the builder's StatusSink: a terminal progress
// printer driven by a NINJA_STATUS-style format string.
package status

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-wordwrap"

	"forge/internal/graph"
)

// defaultFormat matches ninja's own built-in default.
const defaultFormat = "[%f/%t] "

// kMargin is how many columns of slack a smart-terminal elision leaves so
// a line never wraps mid-word when the terminal is narrower than the text.
const kMargin = 3

// Printer is a builder.StatusSink implementation that renders one
// progress line per started/finished edge, eliding to terminal width on
// a smart terminal and otherwise printing one line per event.
type Printer struct {
	out    io.Writer
	width  int
	smart  bool
	format string
	runID  string

	mu           sync.Mutex
	totalEdges   int
	startedEdges int
	finishedEdges int
	runningEdges int
	startTime    time.Time
	lastLineLen  int
}

// New constructs a Printer writing to w. format defaults to ninja's own
// "[%f/%t] " unless the NINJA_STATUS environment variable overrides it.
// width is the terminal width to elide to (0 disables elision, i.e. a
// dumb terminal or explicit TERM=dumb).
func New(w io.Writer, width int) *Printer {
	format := os.Getenv("NINJA_STATUS")
	if format == "" {
		format = defaultFormat
	}
	smart := width > 0 && os.Getenv("TERM") != "dumb"
	if os.Getenv("CLICOLOR_FORCE") == "1" {
		smart = true
	}
	return &Printer{out: w, width: width, smart: smart, format: format, runID: uuid.NewString()}
}

// RunID returns this invocation's unique identifier. The printer does not
// include it in any status line.
func (p *Printer) RunID() string { return p.runID }

func (p *Printer) BuildStarted() {
	p.mu.Lock()
	p.startTime = time.Now()
	p.mu.Unlock()
}

func (p *Printer) PlanHasTotalEdges(n int) {
	p.mu.Lock()
	p.totalEdges = n
	p.mu.Unlock()
	p.printProgress()
}

func (p *Printer) EdgeStarted(edge *graph.Edge, elapsedMS int64) {
	p.mu.Lock()
	p.startedEdges++
	p.runningEdges++
	p.mu.Unlock()
	p.printProgress()
}

func (p *Printer) EdgeFinished(edge *graph.Edge, elapsedMS int64, ok bool, output []byte) {
	p.mu.Lock()
	p.finishedEdges++
	p.runningEdges--
	p.mu.Unlock()

	if !ok || len(output) > 0 {
		p.clearLine()
		fmt.Fprintln(p.out, edge.Description())
		if len(output) > 0 {
			p.out.Write(output)
			if output[len(output)-1] != '\n' {
				fmt.Fprintln(p.out)
			}
		}
	}
	p.printProgress()
}

func (p *Printer) BuildFinished() {
	p.clearLine()
}

func (p *Printer) printProgress() {
	p.mu.Lock()
	line := p.formatProgress()
	p.mu.Unlock()

	if !p.smart {
		fmt.Fprintln(p.out, line)
		return
	}
	if p.width > 0 && len(line) > p.width-kMargin {
		line = wordwrap.WrapString(line, uint(p.width-kMargin))
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
	}
	p.clearLine()
	fmt.Fprint(p.out, line)
	p.lastLineLen = len(line)
}

func (p *Printer) clearLine() {
	if p.smart && p.lastLineLen > 0 {
		fmt.Fprint(p.out, "\r"+strings.Repeat(" ", p.lastLineLen)+"\r")
		p.lastLineLen = 0
	}
}

// formatProgress expands p.format per the %s/%t/%r/%u/%f/%o/%c/%p/%e
// placeholder table. Caller holds p.mu.
func (p *Printer) formatProgress() string {
	elapsedMS := time.Since(p.startTime).Milliseconds()
	var b strings.Builder
	for i := 0; i < len(p.format); i++ {
		c := p.format[i]
		if c != '%' || i == len(p.format)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch p.format[i] {
		case '%':
			b.WriteByte('%')
		case 's':
			fmt.Fprintf(&b, "%d", p.startedEdges)
		case 't':
			fmt.Fprintf(&b, "%d", p.totalEdges)
		case 'r':
			fmt.Fprintf(&b, "%d", p.runningEdges)
		case 'u':
			fmt.Fprintf(&b, "%d", p.totalEdges-p.startedEdges)
		case 'f':
			fmt.Fprintf(&b, "%d", p.finishedEdges)
		case 'o':
			fmt.Fprintf(&b, "%s", rate(p.finishedEdges, elapsedMS))
		case 'c':
			fmt.Fprintf(&b, "%s", rate(p.finishedEdges, elapsedMS))
		case 'p':
			pct := 0
			if p.totalEdges > 0 {
				pct = (100 * p.finishedEdges) / p.totalEdges
			}
			fmt.Fprintf(&b, "%3d%%", pct)
		case 'e':
			fmt.Fprintf(&b, "%.3f", float64(elapsedMS)/1e3)
		default:
			b.WriteByte('%')
			b.WriteByte(p.format[i])
		}
	}
	return b.String()
}

func rate(finished int, elapsedMS int64) string {
	if elapsedMS <= 0 {
		return "?"
	}
	return fmt.Sprintf("%.1f", float64(finished)/(float64(elapsedMS)/1e3))
}
