// Package cli implements the sentence-splitter command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/go-sentsplit/inference"
	"github.com/jamesainslie/go-sentsplit/internal/config"
	"github.com/jamesainslie/go-sentsplit/internal/input"
	"github.com/jamesainslie/go-sentsplit/internal/progress"
	"github.com/jamesainslie/go-sentsplit/internal/runner"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// EnvFile is the optional dotenv file read from the working directory.
const EnvFile = ".env"

const flagConfig = "config"

// Streams are the standard streams of the process.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// BuildInfo is reported by --version.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) String() string {
	v := b.Version
	if v == "" {
		v = "dev"
	}
	if b.Commit == "" {
		return v
	}
	return fmt.Sprintf("%s (commit %s, built %s)", v, b.Commit, b.Date)
}

// NewRootCommand returns the sentence-splitter command.
func NewRootCommand(streams Streams, info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentence-splitter [FILE]",
		Short: "Split documents into sentences, one per line",
		Long: `sentence-splitter reads FILE (or standard input when FILE is "-" or
missing), treats every line as a document and writes each sentence on its
own line, followed by a blank line after every document.

Every flag can also be set with a SENTSPLIT_* environment variable
(for example SENTSPLIT_N_PROCESS=4), in a .env file in the working
directory, or in a YAML file passed with --config.`,
		Args:          usageArgs(cobra.MaximumNArgs(1)),
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, streams)
		},
	}
	cmd.SetIn(streams.In)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.Err)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", config.ErrInvalidArgument, err)
	})

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().String(flagConfig, "", "YAML config file")
	cmd.Flags().SortFlags = false

	return cmd
}

// Execute runs the command with args and returns the process exit code.
func Execute(ctx context.Context, args []string, streams Streams, info BuildInfo) int {
	cmd := NewRootCommand(streams, info)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrInvalidArgument):
		_, _ = fmt.Fprintf(streams.Err, "Error: %v\n\n%s", err, cmd.UsageString())
		return ExitUsage
	default:
		_, _ = fmt.Fprintf(streams.Err, "Error: %v\n", err)
		return ExitError
	}
}

func run(cmd *cobra.Command, args []string, streams Streams) error {
	path := input.Stdin
	if len(args) == 1 {
		path = args[0]
	}

	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return err
	}
	configFile, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := config.Load(v, path, config.LoadOptions{ConfigFile: configFile, EnvFile: EnvFile})
	if err != nil {
		return err
	}
	if cmd.Flags().Changed(config.KeyBufferSize) && cfg.BufferSize == 0 {
		return fmt.Errorf("%w: %s: must be positive", config.ErrInvalidArgument, config.KeyBufferSize)
	}

	logger := newLogger(streams.Err, cfg.LogLevel)
	if cfg.ORTLibrary != "" {
		inference.SetLibraryPath(cfg.ORTLibrary)
	}

	r := &runner.Runner{
		Stdin:    streams.In,
		Stdout:   streams.Out,
		Stderr:   streams.Err,
		Logger:   logger,
		Progress: !cfg.NoProgress && progress.IsTerminal(streams.Err),
	}
	return r.Run(cmd.Context(), cfg)
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", config.ErrInvalidArgument, err)
		}
		return nil
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
