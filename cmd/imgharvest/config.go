package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"imgharvest/pkg/config"
	imgerrors "imgharvest/pkg/errors"
	"imgharvest/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage imgharvest configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IMGHARVEST_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write every option with its default value to a YAML file.

The file is created in the current directory as 'imgharvest.yaml'
unless a different path is given with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from all sources and check it.

This command checks:
  - YAML syntax
  - Value types and ranges
  - That the output and log folders can be created`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = "imgharvest.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return imgerrors.New(imgerrors.ErrorTypeConfig,
			fmt.Sprintf("configuration file already exists: %s (remove it first to overwrite)", configPath), nil)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return imgerrors.New(imgerrors.ErrorTypeConfig, "failed to create configuration file", err)
	}

	out := cmd.OutOrStdout()
	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Edit the search URL, selector and target count")
	fmt.Fprintln(out, "2. Run 'imgharvest config validate' to check the configuration")
	fmt.Fprintln(out, "3. Start harvesting with 'imgharvest harvest'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return imgerrors.New(imgerrors.ErrorTypeConfig, "failed to load configuration", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))

	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (IMGHARVEST_*)")
	if configFile != "" {
		fmt.Fprintf(out, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "3. Configuration file: (first of ./imgharvest.yaml, ~/.imgharvest.yaml)")
	}
	fmt.Fprintln(out, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return imgerrors.New(imgerrors.ErrorTypeConfig, "configuration validation failed", err)
	}

	problems := checkPaths(cfg)
	out := cmd.OutOrStdout()
	if len(problems) > 0 {
		for _, p := range problems {
			fmt.Fprintf(out, "  - %s\n", p)
		}
		return imgerrors.New(imgerrors.ErrorTypeConfig, "configuration has errors", nil)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Search URL: %s\n", cfg.Search.URL)
	fmt.Fprintf(out, "  Renderer: %s\n", cfg.Search.Renderer)
	fmt.Fprintf(out, "  Target count: %d\n", cfg.Harvest.TargetCount)
	fmt.Fprintf(out, "  Stability limit: %d\n", cfg.Harvest.StabilityLimit)
	fmt.Fprintf(out, "  Output folder: %s\n", cfg.Output.TargetFolder)
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}

// checkPaths reports folders the run would fail to create. Nothing is
// created: an existing directory or an absent path with an existing parent
// passes.
func checkPaths(cfg *config.Config) []string {
	var problems []string
	if info, err := os.Stat(cfg.Output.TargetFolder); err == nil && !info.IsDir() {
		problems = append(problems, fmt.Sprintf("output folder %s is a file", cfg.Output.TargetFolder))
	}
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			problems = append(problems, fmt.Sprintf("log folder %s is a file", dir))
		}
	}
	return problems
}
