// Package monitor implements a read-only Bubble Tea dashboard for
// operators: one row per configured backend showing liveness, queue
// depth, and forward-latency percentiles. Grounded on the teacher's
// internal/tui.DashModel, which polls a shared report on a ticker and
// redraws a lipgloss-framed view; here the polled source is the
// proxy's own queue.Accountant, prober.Prober and stats.Tracker
// instead of a load-test report.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/thibautrey/ollama-proxy-server/internal/configstore"
	"github.com/thibautrey/ollama-proxy-server/internal/prober"
	"github.com/thibautrey/ollama-proxy-server/internal/queue"
	"github.com/thibautrey/ollama-proxy-server/internal/stats"
)

// pollInterval matches the teacher dashboard's one-second redraw tick.
const pollInterval = time.Second

// row is one backend's rendered state for a single tick.
type row struct {
	name   string
	url    string
	alive  bool
	depth  int64
	p50    time.Duration
	p95    time.Duration
	p99    time.Duration
	hasLat bool
}

type tickMsg time.Time

// Model is the Bubble Tea model for the operator monitor.
type Model struct {
	refresher  *configstore.Refresher
	accountant *queue.Accountant
	prober     *prober.Prober
	latency    *stats.Tracker

	rows    []row
	started time.Time
}

// New builds a Model. All four collaborators are read-only from the
// monitor's perspective; it never mutates shared proxy state.
func New(refresher *configstore.Refresher, accountant *queue.Accountant, p *prober.Prober, latency *stats.Tracker) Model {
	return Model{
		refresher:  refresher,
		accountant: accountant,
		prober:     p,
		latency:    latency,
		started:    time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		m.rows = m.collectRows()
		return m, tick()
	}
	return m, nil
}

// collectRows probes every configured backend and reads its current
// queue depth and latency percentiles. Probing on every tick keeps the
// dashboard's liveness column independent of whether any live traffic
// has recently exercised that backend.
func (m Model) collectRows() []row {
	snap := m.refresher.Current()
	if snap == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), prober.Deadline)
	defer cancel()

	rows := make([]row, 0, len(snap.Backends))
	for _, b := range snap.Backends {
		r := row{
			name:  b.Name,
			url:   b.URL,
			alive: m.prober.Probe(ctx, b),
			depth: m.accountant.Depth(b.Name),
		}
		if m.latency != nil {
			if p50, p95, p99, ok := m.latency.Snapshot(b.Name); ok {
				r.p50, r.p95, r.p99, r.hasLat = p50, p95, p99, true
			}
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })
	return rows
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("⚡ ollama-proxy-server — backend monitor"))
	b.WriteString("\n")
	b.WriteString(subStyle.Render(fmt.Sprintf("uptime %s · q to quit", time.Since(m.started).Round(time.Second))))
	b.WriteString("\n\n")

	if len(m.rows) == 0 {
		b.WriteString(subStyle.Render("waiting for first poll...\n"))
		return borderStyle.Render(b.String())
	}

	for _, r := range m.rows {
		status := liveStyle.Render("UP  ")
		if !r.alive {
			status = deadStyle.Render("DOWN")
		}

		latency := subStyle.Render("no samples yet")
		if r.hasLat {
			latency = fmt.Sprintf("p50=%s p95=%s p99=%s", r.p50.Round(time.Millisecond), r.p95.Round(time.Millisecond), r.p99.Round(time.Millisecond))
		}

		queueText := fmt.Sprintf("queued=%d", r.depth)
		if r.depth > 0 {
			queueText = warnStyle.Render(queueText)
		}

		fmt.Fprintf(&b, "%s  %-16s %-28s %s  %s\n", status, r.name, r.url, queueText, latency)
	}

	return borderStyle.Render(b.String())
}
