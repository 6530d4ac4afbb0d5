package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	memexfuse "github.com/systemshift/memex-workspace/internal/fuse"
	"github.com/systemshift/memex-workspace/internal/graph"
	"github.com/systemshift/memex-workspace/internal/kv"
	"github.com/systemshift/memex-workspace/internal/overlay"
	"github.com/systemshift/memex-workspace/internal/render"
	"github.com/systemshift/memex-workspace/internal/workspace"
)

var errUsage = errors.New("wrong number of arguments")

func runStatus(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	s := a.engine.State()
	cur := s.Current()
	fmt.Printf("tab:     %s\n", a.engine.Tab())
	fmt.Printf("branch:  %s (%s)\n", cur.Name, shortID(cur.ID))
	if head := s.Head(cur.ID); head != nil {
		fmt.Printf("head:    %s %s\n", shortID(head.ID), firstLine(head.Message))
	}
	if a.engine.Dirty() {
		fmt.Println("overlay: modified")
	} else {
		fmt.Println("overlay: clean")
	}
	fmt.Printf("branches: %d, commits: %d\n", len(s.Branches), len(s.Commits))
	return nil
}

func runLog(ctx context.Context, a *app, args []string) error {
	n := 10
	switch len(args) {
	case 0:
	case 1:
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		n = v
	default:
		return errUsage
	}
	for _, c := range a.engine.Log(a.engine.CurrentBranch().ID, n) {
		fmt.Printf("%s  %s  %s\n", shortID(c.ID), c.CreatedAt.Local().Format("2006-01-02 15:04"), firstLine(c.Message))
	}
	return nil
}

func runBranches(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	s := a.engine.State()
	for _, b := range s.SortedBranches() {
		mark := " "
		if b.ID == s.CurrentBranchID {
			mark = "*"
		}
		origin := ""
		if id, ok := workspace.ResolveForkOrigin(s, b, a.cfg.MaxDepth); ok {
			origin = " from " + shortID(id)
		}
		fmt.Printf("%s %-20s %s%s\n", mark, b.Name, shortID(b.ID), origin)
	}
	return nil
}

func runSet(ctx context.Context, a *app, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	doc, err := overlay.ParseDoc(args[0])
	if err != nil {
		return err
	}
	var value any
	if err := workspace.DecodeJSON([]byte(args[2]), &value); err != nil {
		return fmt.Errorf("value for %s is not JSON: %w", args[1], err)
	}
	return a.overlay.Set(ctx, doc, args[1], value)
}

func runUnset(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	doc, err := overlay.ParseDoc(args[0])
	if err != nil {
		return err
	}
	return a.overlay.Unset(ctx, doc, args[1])
}

// messageFlags parses a command's -m/--message option.
func messageFlags(name string, args []string) (string, []string, error) {
	var message string
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(&message, "message", "m", "", "Commit message")
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}
	return message, fs.Args(), nil
}

func runCommit(ctx context.Context, a *app, args []string) error {
	message, rest, err := messageFlags("commit", args)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return errUsage
	}
	id, ok := a.engine.CommitToCurrent(ctx, a.engine.Live(), message)
	if !ok {
		fmt.Println("nothing to commit")
		return nil
	}
	fmt.Printf("committed %s on %s\n", shortID(id), a.engine.CurrentBranch().Name)
	return nil
}

func runFork(ctx context.Context, a *app, args []string) error {
	message, rest, err := messageFlags("fork", args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return errUsage
	}
	id, ok, err := a.engine.ForkAndCommit(ctx, rest[0], a.engine.Live(), message)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("nothing to fork: overlay matches the current head")
		return nil
	}
	fmt.Printf("forked %s (%s)\n", rest[0], shortID(id))
	return nil
}

func runCheckout(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if a.engine.Dirty() {
		log.Printf("mxws: warning: discarding uncommitted overlay changes")
	}
	ok, err := a.engine.Checkout(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no branch %q", args[0])
	}
	fmt.Printf("switched to %s\n", a.engine.CurrentBranch().Name)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if args[0] == workspace.MainBranchID {
		return errors.New("main cannot be deleted")
	}
	ok, err := a.engine.DeleteBranch(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no branch %q", args[0])
	}
	fmt.Printf("deleted %s, now on %s\n", args[0], a.engine.CurrentBranch().Name)
	return nil
}

func runGC(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	removed, err := a.engine.Compact(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d commits\n", removed)
	if fs, ok := a.store.(*kv.FileStore); ok {
		n, err := fs.Compact(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d objects\n", n)
	}
	return nil
}

func runGraph(ctx context.Context, a *app, args []string) error {
	var (
		raw    bool
		show   string
		target string
	)
	fs := pflag.NewFlagSet("graph", pflag.ContinueOnError)
	fs.BoolVar(&raw, "raw", false, "Print the graph script instead of drawing it")
	fs.StringVar(&show, "show", "", "Print the full message behind a commit label")
	fs.StringVar(&target, "switch", "", "Check out the branch drawn under this identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return errUsage
	}

	p := graph.Project(a.engine.State(), a.cfg.MaxDepth)
	if raw {
		fmt.Print(p.Script)
		return nil
	}

	var switchErr error
	handlers := render.Handlers{
		SwitchBranch: func(branchID string) {
			_, switchErr = a.engine.Checkout(ctx, branchID)
		},
	}
	// Box-drawing glyphs only when a terminal is reading them.
	unicode := a.cfg.Unicode && term.IsTerminal(int(os.Stdout.Fd()))
	v := render.Show(ctx, &render.TextRenderer{Unicode: unicode}, p, handlers, a.cfg.RenderTimeoutDuration())
	if v.Err != nil {
		log.Printf("mxws: render warning: %v (showing script)", v.Err)
	}

	switch {
	case show != "":
		msg, ok := v.Hover(show)
		if !ok {
			return fmt.Errorf("no commit labelled %q", show)
		}
		fmt.Println(msg)
	case target != "":
		if !v.SwitchBranch(target) {
			return fmt.Errorf("no branch drawn as %q", target)
		}
		if switchErr != nil {
			return switchErr
		}
		fmt.Printf("switched to %s\n", a.engine.CurrentBranch().Name)
	default:
		fmt.Print(v.Text())
	}
	return nil
}

func runMount(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	mountpoint := args[0]
	if err := os.MkdirAll(mountpoint, 0755); err != nil {
		return fmt.Errorf("create mountpoint: %w", err)
	}

	tasks := []workspace.CompactFunc{workspace.EngineTask(a.engine)}
	if fs, ok := a.store.(*kv.FileStore); ok {
		tasks = append(tasks, func(ctx context.Context) error {
			_, err := fs.Compact(ctx)
			return err
		})
	}
	compactor := workspace.NewCompactor(a.cfg.CompactEvery(), tasks...)
	compactor.Start()
	log.Printf("mxws: compactor started (interval %s)", a.cfg.CompactEvery())

	log.Printf("mxws: mounting at %s", mountpoint)
	server, err := memexfuse.MountFS(mountpoint, a.engine, a.cfg.MaxDepth, os.Getenv("MXWS_FUSE_DEBUG") != "")
	if err != nil {
		compactor.Stop()
		return fmt.Errorf("mount failed: %w", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-done
		log.Println("mxws: shutting down...")
		compactor.Stop()
		server.Unmount()
	}()

	log.Printf("mxws: ready (pid %d)", os.Getpid())
	server.Wait()
	log.Println("mxws: stopped")
	return nil
}
