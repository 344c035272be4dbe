package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pikawatch/pika-sonar/detector/config"
	"github.com/pikawatch/pika-sonar/logging"
)

type globalOptions struct {
	dbPath     string
	preset     string
	configPath string
	logLevel   string
	debug      bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "pika",
		Short:        "Find pika calls in long field recordings",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "pika.db", "SQLite database path")
	flags.StringVar(&opts.preset, "preset", string(config.PresetJoint), "detector preset")
	flags.StringVar(&opts.configPath, "config", "", "YAML detector config (overrides --preset)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&opts.debug, "debug", false, "log per-frame scoring details")

	root.AddCommand(
		newDetectCommand(opts),
		newVerifyCommand(opts),
		newAnalyzeCommand(opts),
		newInitDBCommand(opts),
		newAddRecordingCommand(opts),
		newPresetsCommand(),
	)
	return root
}

func setupLogging(opts *globalOptions) error {
	logger := logging.NewDefaultLogger()

	level := logging.InfoLevel
	if opts.logLevel != "" {
		parsed, err := logging.ParseLevel(opts.logLevel)
		if err != nil {
			return err
		}
		level = parsed
	}
	if opts.debug {
		level = logging.DebugLevel
	}
	logger.SetLevel(level)

	logging.SetGlobalLogger(logger)
	return nil
}

// loadConfig resolves the detector config from --config or --preset
func loadConfig(opts *globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.Preset(config.PresetName(opts.preset))
	}
	if err != nil {
		return nil, err
	}

	if opts.debug {
		cfg.Debug = true
	}
	if opts.logLevel == "" && !opts.debug && cfg.LogLevel != "" {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		logging.SetLevel(level)
	}
	return cfg, nil
}
