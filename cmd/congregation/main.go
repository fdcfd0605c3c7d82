package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/CZERTAINLY/congregation/internal/args"
	"github.com/CZERTAINLY/congregation/internal/log"
	"github.com/CZERTAINLY/congregation/internal/model"
)

var (
	userConfigPath string // /default/config/path/congregation on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagMode           string
	flagGrace          string
	flagMaxParallel    int
	flagNoColor        bool

	exitCode int
)

const (
	name      = "congregation"
	exitUsage = 2
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		d = "."
	}
	userConfigPath = filepath.Join(d, name)
}

func main() {
	// root flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is "+name+".yaml in current directory or in "+userConfigPath)
	pf.BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	pf.StringVar(&flagMode, "mode", "", "output mode: auto, grouped or interleaved")
	pf.StringVar(&flagGrace, "grace", "", "how long tasks get to exit after an interrupt, e.g. 5s or 1500ms")
	pf.IntVar(&flagMaxParallel, "max-parallel", 0, "maximum number of tasks running at once, 0 is unlimited")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colors")

	// everything after the first task belongs to the task parser
	rootCmd.Flags().SetInterspersed(false)

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initCongregation

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		var diag *args.Error
		if errors.As(err, &diag) {
			fmt.Fprint(os.Stderr, diag.Render(lipgloss.NewRenderer(os.Stderr)))
			os.Exit(exitUsage)
		}
		slog.Error(name+" failed", "err", err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

var rootCmd = &cobra.Command{
	Use:          name + " [flags] run <command> [-n <name>] [-d <dir>] [-c <rrggbb>] [run ...]",
	Short:        "Run multiple parallel tasks with grouped output",
	Long:         args.Usage(name),
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of " + name,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Fprintln(out, name+": version info not available")
			return
		}

		if configPath != "" {
			fmt.Fprintf(out, "config:       %s\n", configPath)
		}
		fmt.Fprintf(out, "congregation: %s\n", info.Main.Version)
		fmt.Fprintf(out, "go:           %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Fprintf(out, "commit:       %s\n", s.Value)
			case "vcs.time":
				fmt.Fprintf(out, "date:         %s\n", s.Value)
			case "vcs.modified":
				fmt.Fprintf(out, "dirty:        %s\n", s.Value)
			}
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "config prints the effective configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(config); err != nil {
			return fmt.Errorf("encoding configuration: %w", err)
		}
		return enc.Close()
	},
}

func initCongregation(cmd *cobra.Command, _ []string) error {
	configPath = findConfig()

	if configPath == "" {
		config = model.DefaultConfig(context.Background())
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.ConfigErrDetails(err) {
				slog.Error("invalid config", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config %s: %w", configPath, err)
		}
	}

	if err := applyFlags(cmd, &config); err != nil {
		return err
	}

	slog.SetDefault(log.New(os.Stderr, config.Verbose))

	slog.Debug(name, "configPath", configPath)
	slog.Debug(name, "config", config)
	return nil
}

// findConfig returns the config file to load, or "" when none exists.
func findConfig() string {
	if envConfig, ok := os.LookupEnv("CONGREGATIONCONFIG"); ok {
		return envConfig
	}
	if flagConfigFilePath != "" {
		return flagConfigFilePath
	}
	for _, d := range []string{".", userConfigPath} {
		path := filepath.Join(d, name+".yaml")
		if exists(path) {
			return path
		}
	}
	return ""
}

// applyFlags lets command line flags override the config file.
func applyFlags(cmd *cobra.Command, cfg *model.Config) error {
	flags := cmd.Flags()
	if flagVerbose {
		cfg.Verbose = true
	}
	if flags.Changed("no-color") {
		cfg.NoColor = flagNoColor
	}
	if flags.Changed("mode") {
		m, err := model.ParseMode(flagMode)
		if err != nil {
			return err
		}
		cfg.Mode = m
	}
	if flags.Changed("grace") {
		if _, err := model.ParseDuration(flagGrace); err != nil {
			return fmt.Errorf("--grace: %w", err)
		}
		cfg.GracePeriod = flagGrace
	}
	if flags.Changed("max-parallel") {
		if flagMaxParallel < 0 {
			return fmt.Errorf("--max-parallel must not be negative, got %d", flagMaxParallel)
		}
		cfg.MaxParallel = flagMaxParallel
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
