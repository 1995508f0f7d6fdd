// Package output renders live run progress and the end-of-run summary to
// a terminal or a plain stream.
package output

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/gabsload/internal/metrics"
	"github.com/wesleyorama2/gabsload/internal/scheduler"
)

// ANSI cursor control for the live display
const (
	cursorUp  = "\033[%dA"
	clearLine = "\033[2K"
)

const (
	ruleWidth      = 56
	boxWidth       = 55
	progressWidth  = 40
	progressFilled = "█"
	progressEmpty  = "░"
	boxHorizontal  = "━"
	boxVertical    = "│"
)

// Progress is one live sample of a running test.
type Progress struct {
	Snapshot metrics.Snapshot
	Status   scheduler.Status
	Target   int
	Total    time.Duration
	Stages   int
}

// Fraction is elapsed over the planned duration, capped at 1.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Snapshot.Elapsed) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Header describes the run being started.
type Header struct {
	RunID       string
	TestType    string
	Description string
	BaseURL     string
	Stages      []scheduler.Stage
	TokenMode   string
}

// ConsoleConfig configures a Console.
type ConsoleConfig struct {
	Writer   io.Writer
	NoColor  bool
	ForceTTY bool
	Quiet    bool

	// Interval between live updates, default one second.
	Interval time.Duration
}

// Console writes progress and summaries. It redraws a live box on a
// terminal and prints one line per update otherwise.
type Console struct {
	w        io.Writer
	isTTY    bool
	quiet    bool
	interval time.Duration
	scheme   *ColorScheme

	mu    sync.Mutex
	lines int
}

// NewConsole creates a console for cfg.Writer, stdout by default.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)
	scheme := NoColorScheme()
	if !cfg.NoColor && isTTY && supportsColors() {
		scheme = forcedColorScheme()
	}

	return &Console{
		w:        cfg.Writer,
		isTTY:    isTTY,
		quiet:    cfg.Quiet,
		interval: cfg.Interval,
		scheme:   scheme,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// Scheme returns the colors in use.
func (c *Console) Scheme() *ColorScheme {
	return c.scheme
}

// PrintHeader prints the banner for a run.
func (c *Console) PrintHeader(h Header) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rule := c.scheme.Rule.Sprint(strings.Repeat(boxHorizontal, ruleWidth))
	c.writeln(rule)
	c.writeln(c.scheme.Title.Sprintf("%s test - Running", h.TestType))
	c.writeln(rule)
	if h.Description != "" {
		c.writeln(c.scheme.Dim.Sprint(h.Description))
	}
	c.writeln(fmt.Sprintf("%s %s", c.scheme.Label.Sprint("Run ID:    "), h.RunID))
	c.writeln(fmt.Sprintf("%s %s", c.scheme.Label.Sprint("Target:    "), h.BaseURL))
	c.writeln(fmt.Sprintf("%s %s", c.scheme.Label.Sprint("Stages:    "), scheduler.FormatStages(h.Stages)))
	if h.TokenMode != "" {
		c.writeln(fmt.Sprintf("%s %s", c.scheme.Label.Sprint("Tokens:    "), h.TokenMode))
	}
	c.writeln("")
}

// Update shows p, either as a redrawn box or as a single line.
func (c *Console) Update(p Progress) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isTTY {
		c.writeln(c.statusLine(p))
		return
	}

	c.clearLive()
	lines := c.renderLive(p)
	c.lines = len(lines)
	for _, line := range lines {
		c.writeln(line)
	}
}

// Watch calls source every interval and shows the result until ctx is done.
func (c *Console) Watch(ctx context.Context, source func() Progress) error {
	if c.quiet {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Update(source())
		}
	}
}

func (c *Console) statusLine(p Progress) string {
	s := p.Snapshot
	return fmt.Sprintf("[%s] %s | Progress: %.0f%% | VUs: %d/%d | Reqs: %d | RPS: %.1f | Errors: %.1f%% | P95: %s | Iterations: %d",
		formatDuration(s.Elapsed),
		p.Status,
		p.Fraction()*100,
		s.ActiveVUs, p.Target,
		s.TotalRequests,
		s.RPS,
		s.ErrorRate*100,
		formatMs(s.Latency.P95),
		s.Iterations)
}

func (c *Console) renderLive(p Progress) []string {
	s := p.Snapshot
	sc := c.scheme
	var lines []string

	lines = append(lines, fmt.Sprintf("Progress: %s %s | %s",
		sc.Good.Sprint(renderProgressBar(p.Fraction(), progressWidth)),
		sc.Title.Sprintf("%.0f%%", p.Fraction()*100),
		sc.Dim.Sprintf("%s / %s", formatDuration(s.Elapsed), formatDuration(p.Total))))

	phase := p.Status.State.String()
	if p.Status.State == scheduler.StateRamping || p.Status.State == scheduler.StateSustaining {
		phase = fmt.Sprintf("%s (%d/%d)", phase, p.Status.Stage+1, p.Stages)
	}
	lines = append(lines, fmt.Sprintf("Stage:    %s", sc.Phase.Sprint(phase)))
	lines = append(lines, "")

	lines = append(lines, sc.Dim.Sprint("┌"+strings.Repeat(boxHorizontal, boxWidth-2)+"┐"))
	lines = append(lines, c.boxRow(
		fmt.Sprintf("VUs:     %s / %d", sc.Value.Sprint(s.ActiveVUs), p.Target),
		fmt.Sprintf("Requests:    %s", sc.Value.Sprint(formatNumber(s.TotalRequests)))))

	errColor := sc.Level(s.ErrorRate, 0.01, 0.05)
	lines = append(lines, c.boxRow(
		fmt.Sprintf("RPS:     %s", sc.Good.Sprintf("%.1f", s.RPS)),
		fmt.Sprintf("Errors:      %s", errColor.Sprintf("%.1f%%", s.ErrorRate*100))))
	lines = append(lines, c.boxRow(
		fmt.Sprintf("P95:     %s", sc.Value.Sprint(formatMs(s.Latency.P95))),
		fmt.Sprintf("Journeys:    %s", sc.Value.Sprint(formatNumber(s.Iterations)))))
	lines = append(lines, sc.Dim.Sprint("└"+strings.Repeat(boxHorizontal, boxWidth-2)+"┘"))

	return lines
}

// boxRow formats a row inside the stats box with two columns.
func (c *Console) boxRow(left, right string) string {
	colWidth := (boxWidth - 4) / 2

	pad := func(s string) string {
		n := colWidth - len([]rune(stripANSI(s)))
		if n < 0 {
			n = 0
		}
		return s + strings.Repeat(" ", n)
	}

	bar := c.scheme.Dim.Sprint(boxVertical)
	return fmt.Sprintf("%s %s%s %s%s", bar, pad(left), bar, pad(right), bar)
}

func renderProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))
	return "[" + strings.Repeat(progressFilled, filled) + strings.Repeat(progressEmpty, width-filled) + "]"
}

// clearLive erases the previous live box. Callers hold mu.
func (c *Console) clearLive() {
	if !c.isTTY || c.lines == 0 {
		return
	}
	c.write(fmt.Sprintf(cursorUp, c.lines))
	for i := 0; i < c.lines; i++ {
		c.write(clearLine + "\n")
	}
	c.write(fmt.Sprintf(cursorUp, c.lines))
	c.lines = 0
}

func (c *Console) write(s string) {
	fmt.Fprint(c.w, s)
}

func (c *Console) writeln(s string) {
	fmt.Fprintln(c.w, s)
}
