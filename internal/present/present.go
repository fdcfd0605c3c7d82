// Package present renders task events as terminal lines.
package present

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/CZERTAINLY/congregation/internal/model"
)

type ColorMode int

const (
	ColorAuto ColorMode = iota
	ColorNever
	ColorAlways
)

const (
	stdoutBar = "│"
	stderrBar = "┃"
	footer    = "└"
)

type Options struct {
	Mode  model.Mode
	Color ColorMode
}

// Presenter writes one or more lines per event. It holds no process state
// and is not safe for concurrent use.
type Presenter struct {
	w     io.Writer
	mode  model.Mode
	width int

	label  []lipgloss.Style
	faint  lipgloss.Style
	stderr lipgloss.Style
	ok     lipgloss.Style
	fail   lipgloss.Style
}

// New creates a Presenter for the given tasks. Labels are padded to the
// widest one so interleaved output lines up.
func New(w io.Writer, specs []model.TaskSpec, opts Options) *Presenter {
	r := lipgloss.NewRenderer(w)
	switch opts.Color {
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI256)
	}

	p := &Presenter{
		w:      w,
		mode:   opts.Mode,
		label:  make([]lipgloss.Style, len(specs)),
		faint:  r.NewStyle().Faint(true),
		stderr: r.NewStyle().Foreground(lipgloss.Color("9")).TabWidth(lipgloss.NoTabConversion),
		ok:     r.NewStyle().Foreground(lipgloss.Color("2")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("1")),
	}
	for i, spec := range specs {
		p.label[i] = r.NewStyle().Bold(true).Foreground(lipgloss.Color(spec.Color))
		p.width = max(p.width, lipgloss.Width(spec.Label()))
	}
	return p
}

// ResolveMode picks interleaved output for terminals and grouped output
// otherwise when mode is auto.
func ResolveMode(mode model.Mode, w io.Writer) model.Mode {
	if mode != model.ModeAuto {
		return mode
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return model.ModeInterleaved
	}
	return model.ModeGrouped
}

// Present renders ev.
func (p *Presenter) Present(ev model.Event) error {
	if p.mode == model.ModeGrouped {
		return p.block(ev)
	}
	return p.prefixed(ev)
}

// prefixed renders "label │ text" lines.
func (p *Presenter) prefixed(ev model.Event) error {
	label := p.labelOf(ev.Task, true)
	var line string
	switch ev.Kind {
	case model.EventStarted:
		line = label + " " + p.faint.Render(stdoutBar+" $ "+ev.Task.Command)
	case model.EventLine:
		line = label + " " + p.text(ev)
	case model.EventExited:
		line = label + " " + p.status(ev.Exit)
	default:
		return fmt.Errorf("unknown event kind %s", ev.Kind)
	}
	return p.println(line)
}

// block renders the framed layout used for grouped output:
//
//	name
//	│ line
//	└ completed
func (p *Presenter) block(ev model.Event) error {
	switch ev.Kind {
	case model.EventStarted:
		return p.println(p.labelOf(ev.Task, false))
	case model.EventLine:
		return p.println(p.text(ev))
	case model.EventExited:
		if !ev.Exit.Started {
			// no header was printed for a task which never ran
			if err := p.println(p.labelOf(ev.Task, false)); err != nil {
				return err
			}
		}
		return p.println(p.status(ev.Exit))
	default:
		return fmt.Errorf("unknown event kind %s", ev.Kind)
	}
}

// Summary writes one status line per task.
func (p *Presenter) Summary(res model.AggregateResult) error {
	if res.Status == model.StatusCancelled {
		if err := p.println(p.fail.Render("interrupted")); err != nil {
			return err
		}
	}
	for _, o := range res.Outcomes {
		if err := p.println(p.labelOf(o.Task, true) + " " + p.status(o.Exit)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Presenter) labelOf(spec model.TaskSpec, pad bool) string {
	name := spec.Label()
	if pad {
		if n := p.width - lipgloss.Width(name); n > 0 {
			name += strings.Repeat(" ", n)
		}
	}
	if spec.Index >= 0 && spec.Index < len(p.label) {
		return p.label[spec.Index].Render(name)
	}
	return name
}

func (p *Presenter) text(ev model.Event) string {
	if ev.Stream == model.Stderr {
		return p.faint.Render(stderrBar+" ") + p.stderr.Render(ev.Text)
	}
	return p.faint.Render(stdoutBar+" ") + ev.Text
}

func (p *Presenter) status(exit model.Exit) string {
	prefix := p.faint.Render(footer + " ")
	return prefix + Status(exit, p.ok, p.fail)
}

// Status describes how a task ended, styled with ok or fail.
func Status(exit model.Exit, ok, fail lipgloss.Style) string {
	var spawnErr *model.SpawnError
	switch {
	case exit.Success():
		return ok.Render("completed")
	case errors.As(exit.Err, &spawnErr):
		return fail.Render("failed to start: " + spawnErr.Err.Error())
	case errors.Is(exit.Err, model.ErrTerminationTimeout):
		return fail.Render("killed (did not exit within the grace period)")
	case exit.Killed && !exit.Started:
		return fail.Render("not started")
	case exit.Killed || exit.Signaled:
		return fail.Render("terminated")
	case exit.Err != nil:
		return fail.Render(fmt.Sprintf("failed (code %d): %v", exit.Code, exit.Err))
	default:
		return fail.Render(fmt.Sprintf("failed (code %d)", exit.Code))
	}
}

func (p *Presenter) println(line string) error {
	_, err := io.WriteString(p.w, line+"\n")
	return err
}
