package output

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/metrics"
	"github.com/wesleyorama2/gabsload/internal/profile"
	"github.com/wesleyorama2/gabsload/internal/report"
	"github.com/wesleyorama2/gabsload/internal/scheduler"
	"github.com/wesleyorama2/gabsload/internal/threshold"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		ms       float64
		expected string
	}{
		{0, "0ms"},
		{0.5, "500µs"},
		{50, "50ms"},
		{1500, "1.50s"},
		{90000, "1.5m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatMs(tt.ms); got != tt.expected {
				t.Errorf("formatMs(%v) = %q, want %q", tt.ms, got, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatNumber(tt.number); got != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.number, got, tt.expected)
			}
		})
	}
}

func TestStripANSI(t *testing.T) {
	scheme := forcedColorScheme()
	colored := scheme.Bad.Sprint("FAILED")

	assert.NotEqual(t, "FAILED", colored)
	assert.Equal(t, "FAILED", stripANSI(colored))
}

func TestColorScheme(t *testing.T) {
	scheme := NoColorScheme()

	assert.Equal(t, "✓", scheme.PassIcon(true))
	assert.Equal(t, "✗", scheme.PassIcon(false))
	assert.Same(t, scheme.Good, scheme.Level(0.001, 0.01, 0.05))
	assert.Same(t, scheme.Warn, scheme.Level(0.02, 0.01, 0.05))
	assert.Same(t, scheme.Bad, scheme.Level(0.2, 0.01, 0.05))
	assert.Same(t, scheme.Good, scheme.ForGrade("B"))
	assert.Same(t, scheme.Warn, scheme.ForGrade("C"))
	assert.Same(t, scheme.Bad, scheme.ForGrade("F"))
}

func TestProgress_Fraction(t *testing.T) {
	p := Progress{Snapshot: metrics.Snapshot{Elapsed: 30 * time.Second}, Total: 2 * time.Minute}
	assert.InDelta(t, 0.25, p.Fraction(), 1e-9)

	p.Snapshot.Elapsed = 3 * time.Minute
	assert.Equal(t, 1.0, p.Fraction())

	assert.Equal(t, 0.0, Progress{}.Fraction())
}

func TestConsole_NonTTYUpdate(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})
	require.False(t, c.IsTTY())

	c.Update(Progress{
		Snapshot: metrics.Snapshot{
			Elapsed:       time.Minute,
			ActiveVUs:     7,
			TotalRequests: 1200,
			RPS:           20,
			ErrorRate:     0.02,
			Latency:       metrics.LiveStats{P95: 340},
			Iterations:    55,
		},
		Status: scheduler.Status{State: scheduler.StateSustaining, Stage: 1},
		Target: 10,
		Total:  2 * time.Minute,
	})

	line := buf.String()
	assert.Equal(t, 1, strings.Count(line, "\n"))
	for _, want := range []string{"sustaining(1)", "50%", "VUs: 7/10", "Reqs: 1200", "Errors: 2.0%", "P95: 340ms", "Iterations: 55"} {
		assert.Contains(t, line, want)
	}
}

func TestConsole_TTYRedraw(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, ForceTTY: true, NoColor: true})

	p := Progress{Status: scheduler.Status{State: scheduler.StateRamping}, Target: 5, Total: time.Minute, Stages: 3}
	c.Update(p)
	first := buf.String()
	assert.Contains(t, first, "ramping (1/3)")
	assert.NotContains(t, first, "\033[")

	c.Update(p)
	assert.Contains(t, buf.String(), "\033[8A", "second update moves the cursor over the previous box")
}

func TestConsole_Quiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, Quiet: true})

	c.PrintHeader(Header{RunID: "r1", TestType: "smoke"})
	c.Update(Progress{})
	assert.Empty(t, buf.String())

	c.PrintSummary(&report.Report{Passed: true, Grade: "A", Score: 100})
	assert.Equal(t, "PASSED grade A (100/100)\n", buf.String())
}

func TestConsole_Watch(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	calls := 0
	err := c.Watch(ctx, func() Progress {
		calls++
		return Progress{}
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 2)
	assert.Equal(t, calls, strings.Count(buf.String(), "\n"))
}

func TestConsole_PrintHeader(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})

	c.PrintHeader(Header{
		RunID:     "run-42",
		TestType:  "load",
		BaseURL:   "http://localhost:3000/api",
		Stages:    []scheduler.Stage{{Duration: time.Minute, Target: 10}},
		TokenMode: "shared",
	})

	out := buf.String()
	assert.Contains(t, out, "load test - Running")
	assert.Contains(t, out, "run-42")
	assert.Contains(t, out, "http://localhost:3000/api")
	assert.Contains(t, out, "1m0s:10")
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf})

	r := &report.Report{
		RunID:    "run-7",
		TestType: "smoke",
		Duration: 2 * time.Minute,
		Requests: report.Requests{Total: 1500, Errors: 15, ErrorRate: 1, AvgMs: 120, P95Ms: 450},
		Business: report.Business{
			OrderSuccess: report.Rate{Percent: 97.5, Observed: true},
			OrdersPlaced: 40,
		},
		Journeys: map[actor.Kind]report.Journey{
			actor.Customer: {Count: 40, AvgMs: 12000, P95Ms: 15000, Observed: true},
		},
		Thresholds: threshold.Results{
			{Metric: "http_req_failed", Expression: "rate<0.05", Passed: true, Value: 0.01},
			{Metric: "delivery_completion_rate", Expression: "rate>0.90", Passed: true, Skipped: true},
		},
		Passed:          true,
		Score:           100,
		Grade:           "A",
		Recommendations: []string{"Performance is within acceptable limits. Continue monitoring."},
	}
	c.PrintSummary(r)

	out := buf.String()
	for _, want := range []string{
		"smoke test - PASSED",
		"run-7",
		"1,500",
		"15 (1.00%)",
		"97.50%",
		"customer",
		"12.00s",
		"no samples",
		"Grade: A (100/100)",
		"Continue monitoring",
	} {
		assert.Contains(t, out, want)
	}
}

func TestPrintProfiles(t *testing.T) {
	var buf bytes.Buffer
	PrintProfiles(&buf, profile.All())

	out := buf.String()
	for _, name := range profile.Names() {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "5000")

	buf.Reset()
	p, err := profile.Lookup(profile.Smoke)
	require.NoError(t, err)
	PrintThresholds(&buf, p)
	assert.Contains(t, buf.String(), "p(95)<1000, p(99)<2000")
}
