package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"allora/internal/clipboard"
	"allora/internal/completion"
	"allora/internal/config"
	"allora/internal/export"
	"allora/internal/history"
	"allora/internal/logging"
	"allora/internal/prompt"
	"allora/internal/session"
	"allora/internal/splice"
	"allora/internal/ui"
)

const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitRequestError = 2
)

var version = "dev"

type CLI struct {
	ConfigPath string
	Mode       string
	Text       string
	Clipboard  string
	Stream     bool
	MaxTokens  int
	TUI        bool
}

func parseArgs(args []string) (*CLI, error) {
	cli := &CLI{}
	fs := flag.NewFlagSet("allora", flag.ContinueOnError)

	fs.StringVar(&cli.ConfigPath, "config", "", "Use alternate config file")
	fs.StringVar(&cli.ConfigPath, "c", "", "Use alternate config file (shorthand)")
	fs.StringVar(&cli.Mode, "mode", "both", "Mode: both, text, clipboard or continue")
	fs.StringVar(&cli.Text, "text", "", "Text field contents (default: read stdin)")
	fs.StringVar(&cli.Clipboard, "clipboard", "", "Use this instead of the system clipboard")
	fs.BoolVar(&cli.Stream, "stream", false, "Stream the completion")
	fs.IntVar(&cli.MaxTokens, "max-tokens", 0, "Override max tokens (1-500)")
	fs.BoolVar(&cli.TUI, "tui", false, "Start the terminal keyboard even when -text is given")
	showVersion := fs.Bool("version", false, "Show version")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: allora [flags]\n")
		fmt.Fprintf(os.Stderr, "       allora history [-n N] [-export file]\n\n")
		fmt.Fprintf(os.Stderr, "Complete text with an LLM endpoint, from a terminal keyboard or a pipe.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *showVersion {
		fmt.Printf("allora %s\n", version)
		os.Exit(ExitSuccess)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return cli, nil
}

func isTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := dispatch(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func dispatch(ctx context.Context, args []string) int {
	if len(args) > 0 && args[0] == "history" {
		return runHistory(args[1:])
	}

	cli, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	return run(ctx, cli)
}

func run(ctx context.Context, cli *CLI) int {
	cfg, err := loadConfig(cli.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
		return ExitConfigError
	}

	mode, err := prompt.ParseMode(cli.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	if cli.Stream {
		cfg.Generation.Stream = true
	}
	if cli.MaxTokens != 0 {
		cfg.Generation.MaxTokens = cli.MaxTokens
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}

	tui := cli.TUI || (cli.Text == "" && isTTY(os.Stdin))

	// The terminal UI owns the screen, so its logs go to a file.
	logOpts := logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File}
	if tui {
		logOpts.File = cfg.LogPath()
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: logging: %v\n", err)
		return ExitConfigError
	}
	defer closeLog()

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.HistoryPath())
		if err != nil {
			// History is optional; keep going without it.
			logger.WithError(err).Warn("history disabled")
		} else {
			defer store.Close()
		}
	}

	client := completion.NewClient(
		completion.WithRetry(cfg.Retry()),
		completion.WithTimeout(cfg.Timeout()),
		completion.WithLogger(logger),
	)

	var clip clipboard.Reader = clipboard.System{Log: logger}
	if cli.Clipboard != "" {
		clip = clipboard.Static(cli.Clipboard)
	}

	if tui {
		return runTUI(ctx, cfg, client, clip, store, cli.Text, logger)
	}

	text := cli.Text
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: reading stdin: %v\n", err)
			return ExitConfigError
		}
		text = strings.TrimRight(string(data), "\n")
	}
	return runHeadless(ctx, os.Stdout, cfg, client, clip, store, mode, text, logger)
}

func sessionOptions(cfg *config.Config, store *history.Store, logger logrus.FieldLogger) []session.Option {
	opts := []session.Option{session.WithConfig(cfg), session.WithLogger(logger)}
	if store != nil {
		opts = append(opts, session.WithHistory(store))
	}
	return opts
}

func runTUI(ctx context.Context, cfg *config.Config, client *completion.Client, clip clipboard.Reader, store *history.Store, text string, logger logrus.FieldLogger) int {
	buf := splice.NewTextBuffer(text)
	sess := session.New(client, clip, buf, sessionOptions(cfg, store, logger)...)
	defer sess.Close()

	uiOpts := ui.Options{Context: ctx, Log: logger}
	if store != nil {
		uiOpts.History = store
	}
	if err := ui.Run(ctx, ui.New(sess, buf, uiOpts)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitRequestError
	}
	return ExitSuccess
}

// runHeadless completes once and prints the resulting field text.
func runHeadless(ctx context.Context, out io.Writer, cfg *config.Config, client *completion.Client, clip clipboard.Reader, store *history.Store, mode prompt.Mode, text string, logger logrus.FieldLogger) int {
	buf := splice.NewTextBuffer(text)
	sess := session.New(client, clip, buf, sessionOptions(cfg, store, logger)...)
	defer sess.Close()

	if _, err := sess.Run(ctx, mode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ce *completion.ConfigError
		if errors.As(err, &ce) {
			return ExitConfigError
		}
		return ExitRequestError
	}
	fmt.Fprintln(out, buf.String())
	return ExitSuccess
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("allora history", flag.ContinueOnError)
	configPath := fs.String("config", "", "Use alternate config file")
	limit := fs.Int("n", 20, "Number of requests to show")
	exportPath := fs.String("export", "", "Write the history as markdown to this file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitConfigError
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
		return ExitConfigError
	}

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitConfigError
	}
	defer store.Close()

	records, err := store.List(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitRequestError
	}

	if *exportPath != "" {
		if err := export.WriteHistory(records, *exportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitRequestError
		}
		fmt.Fprintf(os.Stderr, "Wrote %d requests to %s\n", len(records), *exportPath)
		return ExitSuccess
	}

	md := export.ExportHistory(records)
	if !isTTY(os.Stdout) {
		fmt.Print(md)
		return ExitSuccess
	}

	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	out, err := export.Render(md, width)
	if err != nil {
		fmt.Print(md)
		return ExitSuccess
	}
	fmt.Print(out)
	return ExitSuccess
}
