// Package cmd implements the analyser command line.
package cmd

import (
	"fmt"
	"io"

	"analyser/internal/config"
	applog "analyser/internal/log"
	"analyser/pkg/build"

	"github.com/spf13/cobra"
)

// options collects the flags shared by every subcommand.
type options struct {
	configPath string
	verbose    bool
	logLevel   string
	logFile    string

	cfg *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	buildInfo := build.Get()
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path to a YAML configuration file (default: ./config.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false,
		"Show verbose output")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level: debug, info, warn or error (overrides the configuration)")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "analyser.log",
		"File receiving log output while the terminal UI is active")

	rootCmd.AddCommand(
		newPlayCommand(opts),
		newLiveCommand(opts),
		newDevicesCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

// load reads the configuration and applies the logging flags.
func (o *options) load() error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg

	level := cfg.Level()
	if o.logLevel != "" {
		parsed, ok := applog.ParseLevel(o.logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", o.logLevel)
		}
		level = parsed
	}
	if o.verbose {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// No configuration needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), build.Get())
			return err
		},
	}
}

// Execute runs the command line with args and the given output writers.
func Execute(args []string, stdout, stderr io.Writer) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.Execute()
}
