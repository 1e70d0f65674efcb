package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgallion1/pdfbrief/internal/chunker"
	"github.com/dgallion1/pdfbrief/internal/summarize"
	"github.com/fatih/color"
)

// lineReporter prints one coloured line per event.
type lineReporter struct {
	w    io.Writer
	step *color.Color
	warn *color.Color
}

func newLineReporter(w io.Writer) *lineReporter {
	return &lineReporter{
		w:    w,
		step: color.New(color.FgCyan),
		warn: color.New(color.FgYellow),
	}
}

func (r *lineReporter) Observe(e summarize.Event) {
	switch e.Kind {
	case summarize.EventChunkStarted:
		r.step.Fprintf(r.w, "Summarizing chunk %d/%d...\n", e.Chunk, e.Total)
	case summarize.EventChunkFailed:
		r.warn.Fprintf(r.w, "Warning: skipping chunk %d/%d: %v\n", e.Chunk, e.Total, cause(e.Err))
	case summarize.EventContextOverflow:
		r.warn.Fprintf(r.w, "Warning: the combined summaries (~%d tokens) may not fit the model context\n", e.Tokens)
	case summarize.EventCombineStarted:
		r.step.Fprintln(r.w, "Combining partial summaries...")
	case summarize.EventCombineFailed:
		r.warn.Fprintf(r.w, "Warning: final summary failed: %v\n", cause(e.Err))
	}
}

// cause strips the chunk/combine wrapper, whose position is already in the message.
func cause(err error) error {
	switch e := err.(type) {
	case *summarize.ChunkError:
		return e.Err
	case *summarize.CombineError:
		return e.Err
	}
	return err
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	phaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type eventMsg summarize.Event

type doneMsg struct{}

// progressModel draws a spinner, a bar over chunks plus the combine step, and any warnings.
type progressModel struct {
	file     string
	total    int
	done     int
	phase    string
	warnings []string
	finished bool
	cancel   context.CancelFunc

	spinner spinner.Model
	bar     progress.Model
}

func newProgressModel(file string, total int, cancel context.CancelFunc) progressModel {
	return progressModel{
		file:    filepath.Base(file),
		total:   total,
		phase:   "Starting...",
		cancel:  cancel,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (m progressModel) Init() tea.Cmd { return m.spinner.Tick }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.phase = "Cancelling..."
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-20, 10), 60)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		m.apply(summarize.Event(msg))
		return m, nil
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) apply(e summarize.Event) {
	switch e.Kind {
	case summarize.EventChunkStarted:
		m.total = e.Total
		m.phase = fmt.Sprintf("Summarizing chunk %d/%d", e.Chunk, e.Total)
	case summarize.EventChunkDone:
		m.done++
	case summarize.EventChunkFailed:
		m.done++
		m.warnings = append(m.warnings, fmt.Sprintf("skipped chunk %d/%d: %v", e.Chunk, e.Total, cause(e.Err)))
	case summarize.EventContextOverflow:
		m.warnings = append(m.warnings, fmt.Sprintf("combined summaries (~%d tokens) may not fit the model context", e.Tokens))
	case summarize.EventCombineStarted:
		m.phase = "Combining partial summaries"
	case summarize.EventCombineDone:
		m.done++
		m.phase = "Done"
	case summarize.EventCombineFailed:
		m.done++
		m.phase = "Done with partial summaries"
		m.warnings = append(m.warnings, fmt.Sprintf("final summary failed: %v", cause(e.Err)))
	}
}

// percent counts the combine call as one more step.
func (m progressModel) percent() float64 {
	steps := m.total + 1
	if steps <= 1 {
		return 0
	}
	return min(float64(m.done)/float64(steps), 1)
}

func (m progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Summarizing " + m.file))
	b.WriteString("\n")
	if m.finished {
		b.WriteString("  ")
	} else {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(phaseStyle.Render(m.phase))
	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(m.percent()))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d/%d", min(m.done, m.total+1), m.total+1)))
	b.WriteString("\n")
	for _, w := range m.warnings {
		b.WriteString(warnStyle.Render("! " + w))
		b.WriteString("\n")
	}
	return b.String()
}

type result struct {
	out *summarize.Outcome
	err error
}

// runInteractive runs the summarizer behind the progress view. Ctrl-C cancels the run.
func runInteractive(ctx context.Context, s *summarize.Summarizer, text, file string, w io.Writer) (*summarize.Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := chunker.Count(text, s.Params().ChunkSize)
	p := tea.NewProgram(newProgressModel(file, total, cancel), tea.WithOutput(w))

	results := make(chan result, 1)
	go func() {
		out, err := s.Summarize(ctx, text, summarize.ObserverFunc(func(e summarize.Event) {
			p.Send(eventMsg(e))
		}))
		results <- result{out: out, err: err}
		p.Send(doneMsg{})
	}()

	// A failed view leaves the run going without progress output.
	_, _ = p.Run()
	r := <-results
	return r.out, r.err
}
