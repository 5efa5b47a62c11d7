// Command sentence-splitter writes the sentences of each input line, one per
// line, with a blank line after every document.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/go-sentsplit/internal/cli"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Execute(ctx, os.Args[1:],
		cli.Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr},
		cli.BuildInfo{Version: version, Commit: commit, Date: date},
	)
}
