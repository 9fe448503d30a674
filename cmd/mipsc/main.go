// Package main implements the mipsc back end binary.
//
// It reads an IR module in JSON form and writes MIPS32 assembly for MARS.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/GriffinCanCode/mipsc/pkg/codegen"
	"github.com/GriffinCanCode/mipsc/pkg/ir"
	"github.com/GriffinCanCode/mipsc/pkg/logger"
)

const version = "0.1.0"

type logOptions struct {
	level  string
	format string
	file   string
}

type compileOptions struct {
	output   string
	config   string
	entry    string
	validate bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logOpts logOptions
	cmd := &cobra.Command{
		Use:           "mipsc",
		Short:         "Compile IR modules to MIPS32 assembly",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging(logOpts)
		},
	}
	addLogFlags(cmd.PersistentFlags(), &logOpts)
	cmd.AddCommand(newCompileCommand(), newVersionCommand())
	return cmd
}

func addLogFlags(flags *pflag.FlagSet, opts *logOptions) {
	flags.StringVar(&opts.level, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.format, "log-format", "text", "Log format (text, json)")
	flags.StringVar(&opts.file, "log-file", "", "Write logs to a file instead of stderr")
}

func initLogging(opts logOptions) error {
	level, err := logger.ParseLevel(opts.level)
	if err != nil {
		return err
	}
	if opts.format != "text" && opts.format != "json" {
		return errors.Errorf("unknown log format %q", opts.format)
	}
	cfg := logger.DefaultConfig()
	cfg.Level = level
	cfg.Format = opts.format
	cfg.LogFile = opts.file
	return logger.Init(cfg)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show compiler version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mipsc version %s\n", version)
		},
	}
}

func newCompileCommand() *cobra.Command {
	var opts compileOptions
	cmd := &cobra.Command{
		Use:   "compile MODULE.json",
		Short: "Compile an IR module to assembly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0], opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Output file, '-' for stdout (default: input with .asm)")
	flags.StringVar(&opts.config, "config", "", "TOML configuration file")
	flags.StringVar(&opts.entry, "entry", "", "Entry function (overrides the configuration)")
	flags.BoolVar(&opts.validate, "validate", false, "Validate the generated assembly")
	return cmd
}

func runCompile(cmd *cobra.Command, input string, opts compileOptions) error {
	start := time.Now()
	logger.LogCompilerStart(os.Args)
	logger.LogFileProcessing(input)

	err := compile(cmd, input, opts)
	logger.LogCompilerComplete(err == nil, time.Since(start).String())
	return err
}

func compile(cmd *cobra.Command, input string, opts compileOptions) error {
	cfg := codegen.DefaultConfig()
	if opts.config != "" {
		loaded, err := codegen.LoadConfig(opts.config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.entry != "" {
		cfg.Entry = opts.entry
	}
	if opts.validate {
		cfg.Validate = true
	}

	f, err := os.Open(input)
	if err != nil {
		return errors.Wrap(err, "open module")
	}
	defer f.Close()

	logger.LogPhase("decode")
	mod, err := ir.Decode(f)
	if err != nil {
		return err
	}
	logger.LogPhaseComplete("decode")

	if opts.output == "-" {
		return codegen.Compile(mod, cfg, cmd.OutOrStdout())
	}

	var sb strings.Builder
	if err := codegen.Compile(mod, cfg, &sb); err != nil {
		return err
	}
	out := opts.output
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + ".asm"
	}
	if err := os.WriteFile(out, []byte(sb.String()), 0644); err != nil {
		return errors.Wrap(err, "write output")
	}
	return nil
}
