// Package tui shows the progress of a strain-map computation in the
// terminal.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/latticesim/internal/dynamo"
	"github.com/san-kum/latticesim/internal/phonon"
)

const historyLen = 48

type progressMsg struct {
	t       float64
	maxDisp float64
	steps   int
}

type doneMsg struct {
	res *phonon.Result
	err error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Observer forwards solver steps to a running program, at most frameRate
// times per second. It is safe for use from the solver goroutine.
type Observer struct {
	send      func(tea.Msg)
	frameRate int

	mu        sync.Mutex
	lastFrame time.Time
	steps     int
}

func NewObserver(send func(tea.Msg), frameRate int) *Observer {
	if frameRate <= 0 {
		frameRate = 20
	}
	return &Observer{send: send, frameRate: frameRate}
}

func (o *Observer) OnStep(x dynamo.State, t float64) {
	o.mu.Lock()
	o.steps++
	steps := o.steps
	if time.Since(o.lastFrame) < time.Second/time.Duration(o.frameRate) {
		o.mu.Unlock()
		return
	}
	o.lastFrame = time.Now()
	o.mu.Unlock()

	pos, _ := x.Halves()
	peak := 0.0
	for _, v := range pos {
		peak = math.Max(peak, math.Abs(v))
	}
	o.send(progressMsg{t: t, maxDisp: peak, steps: steps})
}

type phase int

const (
	phaseRunning phase = iota
	phaseDone
	phaseFailed
)

type model struct {
	title      string
	start, end float64
	cancel     context.CancelFunc

	phase   phase
	t       float64
	steps   int
	history []float64
	frame   int
	began   time.Time

	res *phonon.Result
	err error
}

func newModel(title string, delays []float64, cancel context.CancelFunc) model {
	m := model{title: title, cancel: cancel, began: time.Now()}
	if len(delays) > 0 {
		m.start, m.end = delays[0], delays[len(delays)-1]
		m.t = m.start
	}
	return m
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.phase == phaseRunning && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tickMsg:
		if m.phase != phaseRunning {
			return m, nil
		}
		m.frame++
		return m, tick()
	case progressMsg:
		m.t = msg.t
		m.steps = msg.steps
		m.history = append(m.history, msg.maxDisp)
		if len(m.history) > historyLen {
			m.history = m.history[len(m.history)-historyLen:]
		}
	case doneMsg:
		m.res, m.err = msg.res, msg.err
		m.phase = phaseDone
		if msg.err != nil {
			m.phase = phaseFailed
		} else {
			m.t = m.end
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m model) fraction() float64 {
	if m.end <= m.start {
		if m.phase == phaseDone {
			return 1
		}
		return 0
	}
	return (m.t - m.start) / (m.end - m.start)
}

func (m model) View() string {
	var sb strings.Builder
	sb.WriteString(Title.Render(m.title))
	sb.WriteString("\n")
	sb.WriteString(Subtle.Render(fmt.Sprintf("delays %.3f to %.3f ps", m.start*1e12, m.end*1e12)))
	sb.WriteString("\n\n")

	switch m.phase {
	case phaseRunning:
		sb.WriteString(StatusRunning.Render(Spinner(m.frame) + " computing"))
	case phaseDone:
		status := "done"
		if m.res != nil && m.res.FromCache {
			status = "done (cached)"
		}
		sb.WriteString(StatusDone.Render(status))
	case phaseFailed:
		sb.WriteString(StatusFailed.Render("failed: " + m.err.Error()))
	}
	sb.WriteString("\n")

	sb.WriteString(ProgressBar(m.fraction(), 40))
	sb.WriteString(fmt.Sprintf(" %5.1f%%\n", 100*m.fraction()))

	sb.WriteString(MetricLabel.Render("delay  "))
	sb.WriteString(MetricValue.Render(fmt.Sprintf("%.3f ps", m.t*1e12)))
	sb.WriteString(MetricLabel.Render("   steps  "))
	sb.WriteString(MetricValue.Render(fmt.Sprintf("%d", m.steps)))
	sb.WriteString(MetricLabel.Render("   elapsed  "))
	sb.WriteString(MetricValue.Render(time.Since(m.began).Round(100 * time.Millisecond).String()))
	sb.WriteString("\n")

	sb.WriteString(MetricLabel.Render("max |u|  "))
	sb.WriteString(Sparkline(m.history, historyLen))
	sb.WriteString("\n\n")
	sb.WriteString(KeyHint.Render("q to abort"))

	return Panel.Render(sb.String())
}

// RunFunc performs the computation, reporting solver steps to obs.
type RunFunc func(ctx context.Context, obs dynamo.Observer) (*phonon.Result, error)

// Run drives run under a progress display and returns its result. Quitting
// the display cancels ctx for run.
func Run(ctx context.Context, title string, delays []float64, run RunFunc, opts ...tea.ProgramOption) (*phonon.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(title, delays, cancel), opts...)
	obs := NewObserver(p.Send, 20)

	done := make(chan doneMsg, 1)
	go func() {
		res, err := run(ctx, obs)
		done <- doneMsg{res: res, err: err}
		p.Send(doneMsg{res: res, err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("tui: %w", err)
	}
	cancel()
	out := <-done
	return out.res, out.err
}
