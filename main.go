// Package main provides the refcrawl CLI entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/phuslu/log"

	"github.com/lukemcguire/refcrawl/config"
)

const (
	exitOK     = 0
	exitBroken = 1
	exitError  = 2
)

// errBrokenLinks marks a completed run that found references answering >= 400.
var errBrokenLinks = errors.New("broken reference links found")

// CLI is the kong grammar. Settings are global so they can follow any command.
type CLI struct {
	config.Config `embed:""`

	ConfigFile kong.ConfigFlag `name:"config" help:"Load settings from a TOML or YAML file."`

	Run      RunCmd      `cmd:"" default:"withargs" help:"Audit the blog's reference links (default)."`
	Classify ClassifyCmd `cmd:"" help:"Explain how URLs are classified as articles."`
	Missing  MissingCmd  `cmd:"" help:"List site articles a saved HTML report does not mention."`
}

// app is bound into every command's Run method.
type app struct {
	ctx    context.Context
	cfg    config.Config
	logger *log.Logger
	stdout io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("refcrawl"),
		kong.Description("Audit the References sections of a blog for broken links."),
		kong.Configuration(config.Loader),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	if err := cli.Config.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	logger, closeLog := newLogger(cli.Config, cli.Run.TUI && kctx.Command() == "run", stderr)
	defer closeLog()

	a := &app{ctx: ctx, cfg: cli.Config, logger: logger, stdout: stdout}
	err = kctx.Run(a)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errBrokenLinks):
		return exitBroken
	default:
		logger.Error().Err(err).Str("command", kctx.Command()).Msg("refcrawl failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
}

// newLogger writes console logs to stderr. While the TUI owns the terminal
// the logs go to a file in the report directory instead.
func newLogger(cfg config.Config, tui bool, stderr io.Writer) (*log.Logger, func()) {
	if tui {
		fw := &log.FileWriter{
			Filename:     filepath.Join(cfg.ReportDir, "refcrawl.log"),
			EnsureFolder: true,
			MaxBackups:   3,
		}
		return &log.Logger{Level: cfg.Level(), Writer: fw}, func() { _ = fw.Close() }
	}

	writer := &log.ConsoleWriter{Writer: stderr, ColorOutput: stderr == io.Writer(os.Stderr) && log.IsTerminal(os.Stderr.Fd())}
	return &log.Logger{Level: cfg.Level(), Writer: writer}, func() {}
}
