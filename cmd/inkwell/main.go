// Command inkwell is a line-oriented frontend for the session core: a
// markdown editing session with tabs, live preview, diff-vs-saved, and
// crash-safe persistence.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/inkwell-md/inkwell/internal/app"
	"github.com/inkwell-md/inkwell/internal/render"
	"github.com/inkwell-md/inkwell/internal/tabs"
)

const version = "0.3.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "path to TOML configuration file")
		stateDir    = flag.String("state", "", "override session state directory")
		logLevel    = flag.String("log-level", "", "log level: debug, info, warn, error")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: inkwell [flags] [file ...]\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("inkwell %s\n", version)
		return 0
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	sink := newTerminalSink(os.Stdout, isTTY)

	// One goroutine owns stdin; the command loop and the dirty-close
	// confirmer both draw lines from this channel.
	lines := make(chan string)
	go func() {
		defer close(lines)
		stdin := bufio.NewReader(os.Stdin)
		for {
			line, err := stdin.ReadString('\n')
			if line != "" {
				lines <- strings.TrimRight(line, "\n")
			}
			if err != nil {
				return
			}
		}
	}()

	a, err := app.New(app.Options{
		ConfigPath: *configPath,
		StateDir:   *stateDir,
		Files:      flag.Args(),
		LogLevel:   *logLevel,
		Sink:       sink,
		Confirm:    &stdinConfirmer{lines: lines, out: os.Stdout},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "inkwell: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := commandLoop(ctx, a, lines)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "inkwell: shutdown: %v\n", err)
		return 1
	}
	return code
}

// commandLoop reads commands until quit, EOF, or a signal. The session
// saver runs throughout, so an abrupt exit loses at most the debounce
// window.
func commandLoop(ctx context.Context, a *app.App, lines <-chan string) int {
	fmt.Print("> ")
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return 0
		case line, ok := <-lines:
			if !ok {
				return 0
			}
			if quit := execute(a, line); quit {
				return 0
			}
			fmt.Print("> ")
		}
	}
}

// execute runs one command line. Returns true to quit.
func execute(a *app.App, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "":
	case "help", "?":
		printHelp()
	case "tabs":
		printTabs(a)
	case "new":
		_, err = a.NewTab()
	case "open":
		if arg == "" {
			err = fmt.Errorf("usage: open <path>")
			break
		}
		_, err = a.OpenFile(arg)
	case "go":
		var id int
		if id, err = strconv.Atoi(arg); err != nil {
			err = fmt.Errorf("usage: go <tab-id>")
			break
		}
		err = a.ActivateTab(tabs.TabID(id))
	case "next":
		err = a.NextTab()
	case "prev":
		err = a.PrevTab()
	case "close":
		err = a.CloseActive()
	case "append":
		err = a.AppendLine(arg)
	case "insert":
		err = a.Insert(arg)
	case "save":
		err = a.Save()
	case "saveas":
		if arg == "" {
			err = fmt.Errorf("usage: saveas <path>")
			break
		}
		err = a.SaveAs(arg)
	case "mode":
		var m render.Mode
		if m, err = render.ParseMode(arg); err != nil {
			break
		}
		a.SetViewMode(m)
	case "diff":
		printDiff(a)
	case "export":
		err = exportHTML(a, arg)
	case "undo":
		err = a.Undo()
	case "redo":
		err = a.Redo()
	case "refresh":
		a.RefreshView()
	case "stats":
		printStats(a)
	case "quit", "exit", "q":
		return confirmQuit(a)
	default:
		err = fmt.Errorf("unknown command %q (try help)", cmd)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "inkwell: %v\n", err)
	}
	return false
}

// confirmQuit warns once when unsaved changes exist; the session snapshot
// keeps them either way.
func confirmQuit(a *app.App) bool {
	dirty := a.DirtyTabs()
	if len(dirty) > 0 {
		names := make([]string, 0, len(dirty))
		for _, t := range dirty {
			names = append(names, t.Name)
		}
		fmt.Printf("unsaved changes in %s (kept in the session)\n", strings.Join(names, ", "))
	}
	return true
}

func printTabs(a *app.App) {
	active := a.Store().ActiveID()
	for _, t := range a.Store().All() {
		marker := " "
		if t.ID == active {
			marker = "*"
		}
		dirty := " "
		if t.Dirty {
			dirty = "●"
		}
		path := t.FilePath
		if path == "" {
			path = "(draft)"
		}
		fmt.Printf("%s %s %3d  %-24s %s\n", marker, dirty, t.ID, t.Name, path)
	}
}

func printDiff(a *app.App) {
	r, err := a.ActiveDiff()
	if err != nil {
		fmt.Fprintf(os.Stderr, "inkwell: %v\n", err)
		return
	}
	a.Sink().RenderDiff(r)
}

func exportHTML(a *app.App, arg string) error {
	if arg == "" {
		return a.ExportPreview(os.Stdout)
	}
	f, err := os.Create(arg)
	if err != nil {
		return err
	}
	if err := a.ExportPreview(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStats(a *app.App) {
	s := a.Metrics().Snapshot()
	fmt.Printf("uptime              %s\n", s.Uptime.Round(time.Second))
	fmt.Printf("tabs open           %d (%d live)\n", a.Store().Len(), a.Store().LiveCount())
	fmt.Printf("diffs computed      %d (%d fallback)\n", s.DiffsComputed, s.FallbackDiffs)
	fmt.Printf("previews rendered   %d (%d suppressed)\n", s.PreviewsRendered, s.PreviewsSuppressed)
	fmt.Printf("renders scheduled   %d\n", s.RendersScheduled)
	fmt.Printf("live evictions      %d\n", s.Evictions)
	fmt.Printf("session saves       %d\n", s.SessionSaves)
	fmt.Printf("session restores    %d\n", s.SessionRestores)
}

func printHelp() {
	fmt.Print(`commands:
  tabs                list open tabs
  new                 open a fresh draft
  open <path>         open a file (activates if already open)
  go <id>             activate a tab by ID
  next / prev         cycle tabs
  close               close the active tab
  insert <text>       insert text at the caret
  append <text>       append a line to the document
  undo / redo         step the edit history
  save                save the active tab
  saveas <path>       bind the active tab to a path and save
  mode <m>            view mode: single, preview, diff
  diff                show changes since last save
  refresh             recompute the visible pane now
  export [path]       write the preview as a standalone HTML document
  stats               show session counters
  quit                exit (session state is preserved)
`)
}
