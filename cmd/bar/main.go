package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/global-bar/bar-web/internal/config"
	"github.com/global-bar/bar-web/internal/errors"
	"github.com/global-bar/bar-web/internal/logging"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌┐ ┌─┐┬─┐
  ├┴┐├─┤├┬┘
  └─┘┴ ┴┴└─
`

// globals holds state shared by every subcommand once the root pre-run has
// completed.
type globals struct {
	configPath string
	envFile    string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "bar",
		Short: "Client for the global bar presence rooms",
		Long: `bar joins a shared room on a presence server, walks an avatar
around it and chats with the other people there.

Settings come from bar.json, then the environment (BAR_BASE_URL,
BAR_ROOM, BAR_NICKNAME, BAR_LOG_LEVEL, BAR_MAP, optionally from a .env
file), then command-line flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to bar.json or its directory (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "Environment file to load if present")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		joinCmd(g),
		swarmCmd(g),
		mapCmd(g),
		configCmd(g),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the environment file, configuration and logger.
func (g *globals) setup() error {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !os.IsNotExist(err) {
			return errors.New("E140").Wrap(err).WithDetail("Cannot read " + g.envFile)
		}
	}

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return errors.New("E103").Wrap(err)
	}
	slog.SetDefault(logger)

	g.cfg = cfg
	g.logger = logger
	return nil
}

// loadConfig reads bar.json when one exists and falls back to defaults.
// An explicit --config must exist.
func (g *globals) loadConfig() (*config.Config, error) {
	if g.configPath == "" {
		if !config.Exists(".") {
			return config.New(), nil
		}
		return config.Load(".")
	}
	info, err := os.Stat(g.configPath)
	if err == nil && info.IsDir() {
		return config.Load(g.configPath)
	}
	return config.LoadFile(g.configPath)
}

// configFile returns the bar.json path that `config init` writes.
func (g *globals) configFile() string {
	if g.configPath == "" {
		return config.ConfigFileName
	}
	if info, err := os.Stat(g.configPath); err == nil && info.IsDir() {
		return filepath.Join(g.configPath, config.ConfigFileName)
	}
	return g.configPath
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
