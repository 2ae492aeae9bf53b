package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/osbuild/bootspec/internal/logging"
)

// app holds the state shared by all subcommands.
type app struct {
	fs  afero.Fs
	out io.Writer

	configPath    string
	logLevel      string
	strict        bool
	allowComments bool

	config *ConfigFile
}

func newRootCmd(fs afero.Fs, out io.Writer) *cobra.Command {
	a := &app{fs: fs, out: out}

	root := &cobra.Command{
		Use:           "bootspec",
		Short:         "Inspect, validate and synthesize boot specification documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", DefaultConfigFile, "configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (overrides the configuration file)")
	flags.BoolVar(&a.strict, "strict", false, "reject fields unknown to the document's schema version")
	flags.BoolVar(&a.allowComments, "allow-comments", false, "accept // and /* */ comments in input documents")

	root.AddCommand(
		a.validateCmd(),
		a.showCmd(),
		a.queryCmd(),
		a.extensionCmd(),
		a.extensionsCmd(),
		a.schemaCmd(),
		a.synthesizeCmd(),
	)
	return root
}

// setup loads the configuration and applies flag overrides. A missing
// default configuration file is not an error.
func (a *app) setup(cmd *cobra.Command) error {
	config, err := LoadConfig(a.fs, a.configPath)
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		config = GetDefaultConfig()
	} else if err != nil {
		return fmt.Errorf("could not load config file '%s': %w", a.configPath, err)
	}

	if cmd.Flags().Changed("strict") {
		config.Decode.Strict = a.strict
	}
	if cmd.Flags().Changed("allow-comments") {
		config.Decode.AllowComments = a.allowComments
	}
	if a.logLevel != "" {
		config.LogLevel = a.logLevel
	}

	err = logging.Setup(logging.Options{
		Level:   config.LogLevel,
		Output:  cmd.ErrOrStderr(),
		Journal: config.LogJournal,
	})
	if err != nil {
		return err
	}

	a.config = config
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		var dump strings.Builder
		if err := DumpConfig(config, &dump); err != nil {
			return err
		}
		logrus.Debugf("bootspec configuration:\n%s", dump.String())
	}
	return nil
}

func main() {
	if err := newRootCmd(afero.NewOsFs(), os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
