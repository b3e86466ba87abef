package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	commands "github.com/urfave/cli/v3"

	"github.com/st3v3nmw/replcheck/internal/config"
	"github.com/st3v3nmw/replcheck/internal/fixture"
	"github.com/st3v3nmw/replcheck/internal/registry"
	_ "github.com/st3v3nmw/replcheck/scenarios"
)

var bold = color.New(color.Bold).SprintFunc()

func Init(ctx context.Context, cmd *commands.Command) error {
	targetPath := "."
	if cmd.NArg() > 0 {
		targetPath = cmd.Args().First()
	}

	// Create directory if specified
	if targetPath != "." {
		if err := os.MkdirAll(targetPath, 0755); err != nil {
			return fmt.Errorf("Failed to create directory %s: %w", targetPath, err)
		}
	}

	configPath := filepath.Join(targetPath, config.DefaultPath)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	if err := config.SaveTo(config.Default(), configPath); err != nil {
		return fmt.Errorf("Failed to create %s: %w", config.DefaultPath, err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println()
	fmt.Println("The default runs the smoke scenario against an embedded two-node cluster.")
	fmt.Println("Set cluster.mode to external and list your nodes under endpoints to verify a real cluster,")
	fmt.Println("then run 'replcheck run'.")

	return nil
}

func Run(ctx context.Context, cmd *commands.Command) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	scenario, err := registry.Get(cfg.Scenario)
	if err != nil {
		msg := "\nAvailable scenarios:\n"
		for _, s := range registry.All() {
			msg += fmt.Sprintf("- %s\n", s.Key)
		}
		return fmt.Errorf("%w\n%s", err, msg)
	}

	logger := newLogger(os.Stderr, runLevel(cmd.Bool("verbose")))

	fx, err := fixture.New(cfg, logger)
	if err != nil {
		return err
	}

	suite := scenario.Fn(cfg, fx, logger)
	if err := suite.Run(ctx); err != nil {
		return commands.Exit("", 1)
	}

	return nil
}

// resolveConfig loads the configuration, applies flags and the scenario
// argument over it, and validates the result once.
func resolveConfig(cmd *commands.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	applyFlags(cmd, cfg)

	switch cmd.NArg() {
	case 0:
	case 1:
		// replcheck run <scenario>
		cfg.Scenario = cmd.Args().First()
	default:
		return nil, fmt.Errorf("Too many arguments\nUsage: replcheck run [scenario]")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func List(ctx context.Context, cmd *commands.Command) error {
	listScenarios(os.Stdout)
	return nil
}

// listScenarios prints every registered scenario with its summary.
func listScenarios(w io.Writer) {
	fmt.Fprintln(w, "Available scenarios:")
	fmt.Fprintln(w)

	for _, scenario := range registry.All() {
		fmt.Fprintf(w, "  %-14s - %s\n", bold(scenario.Key), scenario.Name)
		if scenario.Summary != "" {
			fmt.Fprintf(w, "\n%s\n\n", indent(scenario.Summary, "      "))
		}
	}

	fmt.Fprintln(w, "Run one with: replcheck run <scenario>")
}

func indent(text, prefix string) string {
	return prefix + strings.ReplaceAll(text, "\n", "\n"+prefix)
}

// loadConfig reads --config, else replcheck.yaml when present, else defaults.
func loadConfig(cmd *commands.Command) (*config.Config, error) {
	if path := cmd.String("config"); path != "" {
		return config.LoadFrom(path)
	}

	if _, err := os.Stat(config.DefaultPath); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}

	return config.Load()
}

// applyFlags overrides file values with the flags that were set.
func applyFlags(cmd *commands.Command, cfg *config.Config) {
	if cmd.IsSet("endpoint") {
		cfg.Endpoints = cmd.StringSlice("endpoint")
		cfg.Cluster.Mode = config.ModeExternal
	}

	if cmd.IsSet("mode") {
		cfg.Cluster.Mode = cmd.String("mode")
	}

	if cmd.IsSet("nodes") {
		cfg.Cluster.Nodes = cmd.Int("nodes")
	}

	if cmd.IsSet("handler-path") {
		cfg.HandlerPath = cmd.String("handler-path")
	}

	if cmd.IsSet("rounds") {
		cfg.Schedule.Rounds = cmd.Int("rounds")
	}

	if cmd.IsSet("burst") {
		cfg.Schedule.Burst = cmd.Int("burst")
	}

	if cmd.IsSet("grace") {
		cfg.GracePeriod = cmd.Duration("grace")
	}

	if cmd.IsSet("timeout") {
		cfg.RequestTimeout = cmd.Duration("timeout")
	}

	if cmd.Bool("no-cookies") {
		cfg.Cookies = false
	}

	if cmd.IsSet("server-command") {
		cfg.Cluster.ServerCommand = cmd.String("server-command")
	}

	if cmd.IsSet("store") {
		cfg.Cluster.Store.Driver = cmd.String("store")
	}

	if cmd.IsSet("store-dsn") {
		cfg.Cluster.Store.DSN = cmd.String("store-dsn")
	}

	if cmd.IsSet("admin-user") {
		cfg.Cluster.AdminUser = cmd.String("admin-user")
	}

	if cmd.IsSet("admin-password") {
		cfg.Cluster.AdminPassword = cmd.String("admin-password")
	}
}
