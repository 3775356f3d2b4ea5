package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/inkwell-md/inkwell/internal/diff"
	"github.com/inkwell-md/inkwell/internal/preview"
	"github.com/inkwell-md/inkwell/internal/render"
	"github.com/inkwell-md/inkwell/internal/tabs"
)

// ANSI sequences, emptied when stdout is not a terminal.
type palette struct {
	reset   string
	bold    string
	dim     string
	green   string
	red     string
	cyan    string
	inverse string
}

func newPalette(isTTY bool) palette {
	if !isTTY {
		return palette{}
	}
	return palette{
		reset:   "\x1b[0m",
		bold:    "\x1b[1m",
		dim:     "\x1b[2m",
		green:   "\x1b[32m",
		red:     "\x1b[31m",
		cyan:    "\x1b[36m",
		inverse: "\x1b[7m",
	}
}

// terminalSink renders panes as plain terminal output. Render calls arrive
// from debounce timer goroutines as well as the command loop, so every
// write is serialized.
type terminalSink struct {
	mu  sync.Mutex
	out io.Writer
	pal palette
	pv  *preview.Renderer
}

func newTerminalSink(out io.Writer, isTTY bool) *terminalSink {
	return &terminalSink{
		out: out,
		pal: newPalette(isTTY),
		pv:  preview.New(),
	}
}

func (s *terminalSink) width() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

func (s *terminalSink) rule() string {
	return s.pal.dim + strings.Repeat("─", s.width()) + s.pal.reset
}

func (s *terminalSink) RenderPreview(markdown string) {
	html, err := s.pv.Render(markdown)
	if err != nil {
		html = fmt.Sprintf("<!-- render error: %v -->", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, s.rule())
	fmt.Fprintf(s.out, "%spreview%s\n", s.pal.bold, s.pal.reset)
	fmt.Fprintln(s.out, html)
	fmt.Fprintln(s.out, s.rule())
}

func (s *terminalSink) RenderDiff(r diff.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, s.rule())
	if !r.HasChanges() {
		fmt.Fprintf(s.out, "%sno changes since last save%s\n", s.pal.dim, s.pal.reset)
		fmt.Fprintln(s.out, s.rule())
		return
	}
	fmt.Fprintf(s.out, "%sdiff%s %s+%d%s %s-%d%s\n",
		s.pal.bold, s.pal.reset,
		s.pal.green, r.AddedLines(), s.pal.reset,
		s.pal.red, r.RemovedLines(), s.pal.reset)

	for _, h := range r.Hunks {
		fmt.Fprintf(s.out, "%s@@ -%d,%d +%d,%d @@%s\n",
			s.pal.cyan, h.OldStart, h.OldCount, h.NewStart, h.NewCount, s.pal.reset)
		for _, line := range h.Lines {
			switch line.Kind {
			case diff.LineAdded:
				fmt.Fprintf(s.out, "%s+%s%s\n", s.pal.green, line.Text, s.pal.reset)
			case diff.LineRemoved:
				fmt.Fprintf(s.out, "%s-%s%s\n", s.pal.red, line.Text, s.pal.reset)
			default:
				fmt.Fprintf(s.out, " %s\n", line.Text)
			}
		}
	}
	fmt.Fprintln(s.out, s.rule())
}

func (s *terminalSink) RenderTabs(infos []render.TabInfo, active tabs.TabID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts := make([]string, 0, len(infos))
	for _, info := range infos {
		label := fmt.Sprintf("%d:%s", info.ID, info.Name)
		if info.Dirty {
			label += "●"
		}
		if info.ID == active {
			label = s.pal.inverse + " " + label + " " + s.pal.reset
		} else {
			label = " " + label + " "
		}
		parts = append(parts, label)
	}
	fmt.Fprintln(s.out, strings.Join(parts, s.pal.dim+"|"+s.pal.reset))
}

// stdinConfirmer asks on the terminal before a dirty tab closes. It
// consumes lines from the shared input channel: it only ever runs while
// the command loop is blocked inside a close command, so the next line is
// the answer.
type stdinConfirmer struct {
	lines <-chan string
	out   io.Writer
}

func (c *stdinConfirmer) ConfirmDiscard(t *tabs.Tab) bool {
	fmt.Fprintf(c.out, "discard unsaved changes in %s? [y/N] ", t.Name)
	line, ok := <-c.lines
	if !ok {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
