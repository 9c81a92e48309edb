package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/forPelevin/tredit/internal/app"
	"github.com/forPelevin/tredit/internal/types"
)

var errQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, rest string) error
}

// repl maps typed commands to store operations.
type repl struct {
	s    *app.Session
	view *tableView
	out  io.Writer
	cmds map[string]command

	// background re-transcriptions
	wg sync.WaitGroup
}

func newREPL(s *app.Session, view *tableView, out io.Writer) *repl {
	r := &repl{s: s, view: view, out: out}
	r.cmds = map[string]command{
		"help":       {"help", "list commands", r.help},
		"show":       {"show", "print the segment table", r.show},
		"full":       {"full", "print the full text, active segment in brackets", r.full},
		"text":       {"text <i> <text>", "set the text of segment i", r.text},
		"start":      {"start <i> <sec>", "set the start of segment i", r.boundary(types.FieldStart)},
		"end":        {"end <i> <sec>", "set the end of segment i", r.boundary(types.FieldEnd)},
		"add":        {"add", "add a segment after the selected one", r.add},
		"rm":         {"rm <i>", "remove segment i", r.remove},
		"sort":       {"sort", "sort segments by start", r.sort},
		"retr":       {"retr <i> [prompt]", "re-transcribe segment i in the background", r.retranscribe},
		"select":     {"select <i>", "select segment i and play it", r.selectIndex},
		"at":         {"at <offset>", "select the segment at a full-text offset", r.selectAt},
		"clear":      {"clear", "clear the selection", r.clear},
		"autoplay":   {"autoplay on|off", "loop the selected segment", r.autoplay},
		"time":       {"time", "print the playhead", r.time},
		"flush":      {"flush", "save pending edits now", r.flush},
		"download":   {"download srt|txt|csv [dir]", "save an export", r.download},
		"transcribe": {"transcribe <url> [prompt]", "start over with another video", r.transcribe},
		"quit":       {"quit", "save pending edits and exit", r.quit},
	}
	r.cmds["exit"] = r.cmds["quit"]
	return r
}

// Run reads commands until EOF, quit or ctx is done.
func (r *repl) Run(ctx context.Context, in io.Reader) error {
	defer r.wg.Wait()
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(r.out)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		err := r.exec(ctx, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	name, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	if name == "" {
		return nil
	}
	c, ok := r.cmds[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try 'help')", name)
	}
	return c.run(ctx, strings.TrimSpace(rest))
}

func (r *repl) help(context.Context, string) error {
	names := make([]string, 0, len(r.cmds))
	for n := range r.cmds {
		if n != "exit" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	for _, n := range names {
		c := r.cmds[n]
		fmt.Fprintf(r.out, "  %-28s %s\n", c.usage, c.help)
	}
	return nil
}

func (r *repl) show(context.Context, string) error {
	r.view.Print(r.s.Store.Snapshot())
	return nil
}

func (r *repl) full(context.Context, string) error {
	r.view.PrintFull(r.s.Store.Snapshot())
	return nil
}

func (r *repl) text(_ context.Context, rest string) error {
	idx, txt, _ := strings.Cut(rest, " ")
	i, err := parseIndex(idx)
	if err != nil {
		return err
	}
	return r.s.Store.EditText(i, txt)
}

func (r *repl) boundary(f types.Field) func(context.Context, string) error {
	return func(_ context.Context, rest string) error {
		args := strings.Fields(rest)
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <i> <sec>", f)
		}
		i, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		// NaN keeps the current value.
		sec, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			sec = math.NaN()
		}
		seg, err := r.s.Store.EditBoundary(i, f, sec)
		if err != nil {
			return err
		}
		label, _ := r.s.Store.DurationLabel(i)
		fmt.Fprintf(r.out, "#%d %.2f-%.2f (%s)\n", i, seg.Start, seg.End, label)
		return nil
	}
}

func (r *repl) add(ctx context.Context, _ string) error {
	if err := r.s.Store.AddSegment(ctx); err != nil {
		return err
	}
	r.view.Print(r.s.Store.Snapshot())
	return nil
}

func (r *repl) remove(ctx context.Context, rest string) error {
	i, err := parseIndex(rest)
	if err != nil {
		return err
	}
	if err := r.s.Store.RemoveSegment(ctx, i); err != nil {
		return err
	}
	r.view.Print(r.s.Store.Snapshot())
	return nil
}

func (r *repl) sort(ctx context.Context, _ string) error {
	if err := r.s.Store.SortSegments(ctx); err != nil {
		return err
	}
	r.view.Print(r.s.Store.Snapshot())
	return nil
}

func (r *repl) retranscribe(ctx context.Context, rest string) error {
	idx, prompt, _ := strings.Cut(rest, " ")
	i, err := parseIndex(idx)
	if err != nil {
		return err
	}
	if r.s.Store.Retranscribing(i) {
		return fmt.Errorf("segment %d is already being re-transcribed", i)
	}
	fmt.Fprintf(r.out, "re-transcribing #%d...\n", i)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.s.Store.RetranscribeSegment(context.WithoutCancel(ctx), i, strings.TrimSpace(prompt)); err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
			return
		}
		if segs := r.s.Store.Snapshot().Transcription.Segments; i < len(segs) {
			fmt.Fprintf(r.out, "#%d re-transcribed: %s\n", i, segs[i].Text)
		}
	}()
	return nil
}

func (r *repl) selectIndex(_ context.Context, rest string) error {
	i, err := parseIndex(rest)
	if err != nil {
		return err
	}
	return r.s.Store.Select(i)
}

func (r *repl) selectAt(_ context.Context, rest string) error {
	off, err := strconv.Atoi(rest)
	if err != nil {
		return fmt.Errorf("invalid offset %q", rest)
	}
	i, err := r.s.Store.SelectAtOffset(off)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "selected #%d\n", i)
	return nil
}

func (r *repl) clear(context.Context, string) error {
	r.s.Store.ClearSelection()
	return nil
}

func (r *repl) autoplay(_ context.Context, rest string) error {
	switch rest {
	case "on":
		r.s.Store.SetAutoContinue(true)
	case "off":
		r.s.Store.SetAutoContinue(false)
	case "":
		fmt.Fprintf(r.out, "autoplay %s\n", onOff(r.s.Store.AutoContinue()))
	default:
		return errors.New("usage: autoplay on|off")
	}
	return nil
}

func (r *repl) time(context.Context, string) error {
	fmt.Fprintf(r.out, "%.2fs %s\n", r.s.Player.CurrentTime(), r.s.Player.State())
	return nil
}

func (r *repl) flush(context.Context, string) error {
	r.s.Store.Flush()
	return nil
}

func (r *repl) download(ctx context.Context, rest string) error {
	args := strings.Fields(rest)
	if len(args) == 0 || len(args) > 2 {
		return errors.New("usage: download srt|txt|csv [dir]")
	}
	f, ok := types.ParseFormat(args[0])
	if !ok {
		return fmt.Errorf("unknown format %q", args[0])
	}
	dir := "."
	if len(args) == 2 {
		dir = args[1]
	}
	b, err := r.s.Store.Download(ctx, f)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, f.Filename())
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "saved %s (%d bytes)\n", path, len(b))
	return nil
}

func (r *repl) transcribe(ctx context.Context, rest string) error {
	u, prompt, _ := strings.Cut(rest, " ")
	if u == "" {
		return errors.New("usage: transcribe <url> [prompt]")
	}
	fmt.Fprintln(r.out, "transcribing...")
	if err := r.s.Open(ctx, u, strings.TrimSpace(prompt)); err != nil {
		return err
	}
	r.view.Print(r.s.Store.Snapshot())
	return nil
}

func (r *repl) quit(context.Context, string) error {
	r.s.Store.Flush()
	return errQuit
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid segment index %q", s)
	}
	return i, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
