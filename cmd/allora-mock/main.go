package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"allora/internal/logging"
	"allora/internal/mockserver"
)

type CLI struct {
	Server mockserver.Options
	Log    logging.Options
}

func parseArgs(args []string) (*CLI, error) {
	fs := flag.NewFlagSet("allora-mock", flag.ContinueOnError)

	addr := fs.String("addr", "127.0.0.1:7860", "Listen address")
	text := fs.String("text", mockserver.DefaultText, "Completion returned to every request")
	chunks := fs.String("chunks", "", "Comma-separated stream chunks (overrides -text)")
	delay := fs.Int("delay", 0, "Milliseconds to wait before each chunk")
	failFirst := fs.Int("fail-first", 0, "Answer the first N requests with 503")
	logLevel := fs.String("log-level", "info", "Log level")
	logFormat := fs.String("log-format", "text", "Log format: text or json")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: allora-mock [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Serve fake /v1/completions and /run/textgen responses.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if *delay < 0 {
		return nil, fmt.Errorf("-delay must not be negative")
	}
	if *failFirst < 0 {
		return nil, fmt.Errorf("-fail-first must not be negative")
	}

	cli := &CLI{
		Server: mockserver.Options{
			Addr:      *addr,
			Text:      *text,
			Delay:     time.Duration(*delay) * time.Millisecond,
			FailFirst: *failFirst,
		},
		Log: logging.Options{Level: *logLevel, Format: *logFormat},
	}
	if *chunks != "" {
		cli.Server.Chunks = strings.Split(*chunks, ",")
		cli.Server.Text = ""
	}
	return cli, nil
}

func main() {
	cli, err := parseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.New(cli.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = mockserver.New(cli.Server, logger).Run(ctx)
	stop()
	if err != nil {
		logger.WithError(err).Error("server stopped")
		closeLog()
		os.Exit(1)
	}
	closeLog()
}
