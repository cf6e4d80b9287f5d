package timing

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vk/bozogo/internal/hclconfig"
	"github.com/vk/bozogo/internal/registry"
	"github.com/vk/bozogo/internal/stage"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Record is the measured span of one phase.
type Record struct {
	Phase  stage.Phase
	Start  time.Time
	End    time.Time
	Failed bool
}

// Duration is the time between Start and End.
func (r Record) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Recorder measures phases from their before hook to their after hook and
// prints a report when the build ends.
type Recorder struct {
	mu      sync.Mutex
	now     func() time.Time
	out     io.Writer
	order   []stage.Phase
	records map[stage.Phase]*Record
}

// NewRecorder creates a recorder that reports to out.
func NewRecorder(out io.Writer, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{out: out, now: now, records: make(map[stage.Phase]*Record)}
}

func (r *Recorder) start(p stage.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[p]; !ok {
		r.order = append(r.order, p)
	}
	r.records[p] = &Record{Phase: p, Start: r.now()}
}

func (r *Recorder) stop(p stage.Phase, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[p]; ok && rec.End.IsZero() {
		rec.End = r.now()
		rec.Failed = failed
	}
}

// Records returns the finished records, build last.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	var build *Record
	for _, p := range r.order {
		rec := r.records[p]
		if rec.End.IsZero() {
			continue
		}
		if p == stage.Build {
			build = rec
			continue
		}
		out = append(out, *rec)
	}
	if build != nil {
		out = append(out, *build)
	}
	return out
}

var (
	labelStyle = lipgloss.NewStyle().Width(14)
	timeStyle  = lipgloss.NewStyle().Width(12).Align(lipgloss.Right)
	buildStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

// Report renders the timing table.
func (r *Recorder) Report() string {
	var rows []string
	for _, rec := range r.Records() {
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(string(rec.Phase)),
			timeStyle.Render(formatDuration(rec.Duration())),
		)
		switch {
		case rec.Failed:
			row = failStyle.Render(row + " failed")
		case rec.Phase == stage.Build:
			row = buildStyle.Render(row)
		}
		rows = append(rows, row)
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// Hooks returns the recorder's hook table.
func (r *Recorder) Hooks() stage.HookTable {
	table := stage.HookTable{}
	for _, p := range append([]stage.Phase{stage.Build}, stage.Sequence...) {
		table[stage.Before(p)] = func(ctx context.Context, ev stage.Event) error {
			r.start(p)
			return nil
		}
		table[stage.After(p)] = func(ctx context.Context, ev stage.Event) error {
			r.stop(p, false)
			if p == stage.Build {
				fmt.Fprintln(r.out, r.Report())
			}
			return nil
		}
	}
	table[stage.OnFailure] = func(ctx context.Context, ev stage.Event) error {
		r.stop(ev.Failure.Phase, true)
		r.stop(stage.Build, true)
		fmt.Fprintln(r.out, r.Report())
		return nil
	}
	return table
}

// New builds the hook table for a timing step.
func New(ctx context.Context, decl hclconfig.StepDecl, deps registry.Deps) (stage.HookTable, error) {
	var in struct{}
	if err := decl.Decode(deps.EvalCtx, &in); err != nil {
		return nil, err
	}
	return NewRecorder(deps.Out, nil).Hooks(), nil
}

// Register registers the step kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind("timing", &registry.RegisteredKind{
		Roles: []string{hclconfig.RoleHook},
		New:   New,
	})
}
