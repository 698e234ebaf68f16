// Command draftctl manages drafts from the shell, against the same draft
// directory and page store as the server. It runs without authentication and
// is meant for the wiki's administrator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/debemdeboas/wikidraft/internal/config"
	"github.com/debemdeboas/wikidraft/internal/diff"
	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/draft"
	"github.com/debemdeboas/wikidraft/internal/logger"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/publish"
	"github.com/debemdeboas/wikidraft/internal/repository"
)

const usage = `usage: draftctl [-config file] <command> [args]

commands:
  list                      list drafts, most recent first
  show <page>               print a draft with its header
  save [-f file] <page>     save a draft from file or stdin
  delete <page>             discard a draft
  publish <page>            publish unless the page changed, else print the diff
  force <page>              publish without the conflict check
`

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 64
	exitConflict = 2
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	hunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("37"))
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type app struct {
	coord  *publish.Coordinator
	stdin  io.Reader
	stdout io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("draftctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	defaultConfig := os.Getenv(config.EnvConfigPath)
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	configPath := fs.String("config", defaultConfig, "configuration file")
	level := fs.String("log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	log := logger.NewWithWriter(*level, stderr)
	config.SetLogger(log)
	draft.SetLogger(log)
	repository.SetLogger(log)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render(err.Error()))
		return exitError
	}

	drafts, err := draft.NewStore(cfg.Storage.DraftDir, draft.WithReadOnly(cfg.Features.ReadOnly))
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render(err.Error()))
		return exitError
	}
	pages, closePages, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render(err.Error()))
		return exitError
	}
	defer closePages()

	a := &app{
		coord: publish.NewCoordinator(drafts, pages, diff.NewUnified(cfg.Diff.Context),
			publish.WithReadOnly(cfg.Features.ReadOnly),
			publish.WithLogger(log),
		),
		stdin:  stdin,
		stdout: stdout,
	}

	code, err := a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render(err.Error()))
		if code == exitOK {
			code = exitError
		}
	}
	return code
}

var errUsage = errors.New("invalid arguments, see draftctl -h")

func (a *app) dispatch(ctx context.Context, cmd string, args []string) (int, error) {
	switch cmd {
	case "list":
		return exitOK, a.list(ctx)
	case "save":
		return a.save(ctx, args)
	}

	if len(args) != 1 {
		return exitUsage, errUsage
	}
	key := model.PageKey(args[0])

	switch cmd {
	case "show":
		return exitOK, a.show(ctx, key)
	case "delete":
		if err := a.coord.Delete(ctx, key); err != nil {
			return exitError, err
		}
		fmt.Fprintln(a.stdout, okStyle.Render("Deleted draft of "+string(key)))
		return exitOK, nil
	case "publish":
		return a.publish(ctx, key, false)
	case "force":
		return a.publish(ctx, key, true)
	default:
		return exitUsage, fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) list(ctx context.Context) error {
	entries, err := a.coord.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, mutedStyle.Render("No drafts."))
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PAGE", "SAVED")
	for _, e := range entries {
		t.Row(string(e.Key), e.ModifiedDate.Local().Format(time.DateTime))
	}
	fmt.Fprintln(a.stdout, t.String())
	return nil
}

func (a *app) show(ctx context.Context, key model.PageKey) error {
	d, err := a.coord.Get(ctx, key)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, titleStyle.Render(string(d.Key)))
	saved := "unknown"
	if d.Meta.HasSavedAt() {
		saved = d.Meta.SavedAt.Local().Format(time.DateTime)
	}
	digest := "none"
	if d.Meta.HasDigest() {
		digest = d.Meta.Digest
	}
	fmt.Fprintln(a.stdout, mutedStyle.Render("saved: "+saved+"  digest: "+digest))
	fmt.Fprintln(a.stdout)
	fmt.Fprint(a.stdout, d.Body)
	return nil
}

func (a *app) save(ctx context.Context, args []string) (int, error) {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	file := fs.String("f", "", "read the draft from file instead of stdin")
	digest := fs.String("digest", "", "digest of the page the draft is based on")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return exitUsage, errUsage
	}

	var in io.Reader = a.stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			return exitError, err
		}
		defer f.Close()
		in = f
	}
	body, err := io.ReadAll(in)
	if err != nil {
		return exitError, err
	}

	key := model.PageKey(fs.Arg(0))
	if err := a.coord.Save(ctx, publish.SaveRequest{Key: key, Body: string(body), BaseDigest: *digest}); err != nil {
		return exitError, err
	}
	fmt.Fprintln(a.stdout, okStyle.Render("Saved draft of "+string(key)))
	return exitOK, nil
}

func (a *app) publish(ctx context.Context, key model.PageKey, force bool) (int, error) {
	var res *publish.Result
	var err error
	if force {
		res, err = a.coord.ForcePublish(ctx, key)
	} else {
		res, err = a.coord.Publish(ctx, key)
	}

	if errors.Is(err, domain.ErrNotFound) && res != nil && res.State == publish.StateDraftMissing {
		return exitError, fmt.Errorf("%s has no draft", key)
	}
	if err != nil {
		if res != nil && res.State == publish.StatePublished {
			fmt.Fprintln(a.stdout, okStyle.Render("Published "+string(key)))
		}
		return exitError, err
	}

	if !res.Conflicted() {
		fmt.Fprintln(a.stdout, okStyle.Render("Published "+string(key)))
		return exitOK, nil
	}

	fmt.Fprintln(a.stdout, errorStyle.Render(string(key)+" changed after the draft was saved."))
	fmt.Fprintln(a.stdout, renderDiff(res.Diff))
	fmt.Fprintln(a.stdout, mutedStyle.Render("Run `draftctl force "+string(key)+"` to publish anyway."))
	return exitConflict, nil
}

func renderDiff(res *diff.Result) string {
	if res.Empty() {
		return mutedStyle.Render("(no textual difference)")
	}

	var b strings.Builder
	for _, line := range res.Lines {
		text := strings.TrimSuffix(line.Text, "\n")
		switch line.Kind {
		case diff.LineAdded:
			text = addedStyle.Render(text)
		case diff.LineRemoved:
			text = removedStyle.Render(text)
		case diff.LineHunk:
			text = hunkStyle.Render(text)
		case diff.LineHeader:
			text = titleStyle.Render(text)
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%s %s", addedStyle.Render(fmt.Sprintf("+%d", res.Added)), removedStyle.Render(fmt.Sprintf("-%d", res.Removed)))
	return b.String()
}
