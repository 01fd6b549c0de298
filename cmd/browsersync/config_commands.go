package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/browsersync/pkg/config"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	configPath string
	stdout     io.Writer
	stdin      io.Reader
}

// Execute runs the config command with given arguments.
func (c *configCommand) Execute(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "show":
		return c.runShow(subargs)
	case "path":
		return c.runPath()
	case "reset":
		return c.runReset(subargs)
	case "help":
		return c.showHelp()
	default:
		return fmt.Errorf("unknown config subcommand: %s", subcommand)
	}
}

// runShow displays the effective configuration.
func (c *configCommand) runShow(args []string) error {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	format := fs.String("format", "yaml", "output format (yaml, json)")

	if err := parseFlags(fs, args); err != nil {
		return ignoreHelp(err)
	}

	cfg, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}

	switch *format {
	case "json":
		return c.showJSON(cfg)
	case "yaml":
		return c.showYAML(cfg)
	default:
		return fmt.Errorf("unknown format: %s (want yaml or json)", *format)
	}
}

// showYAML displays configuration in YAML format.
func (c *configCommand) showYAML(cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Fprintln(c.stdout, "# Current Configuration")
	fmt.Fprintln(c.stdout, "# Source:", c.source())
	fmt.Fprintln(c.stdout)
	_, err = c.stdout.Write(data)
	return err
}

// showJSON displays configuration in JSON format.
func (c *configCommand) showJSON(cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = fmt.Fprintln(c.stdout, string(data))
	return err
}

// runPath shows the configuration file search order.
func (c *configCommand) runPath() error {
	paths := []string{
		"./browsersync.yaml",
		config.DefaultConfigPath(),
	}

	fmt.Fprintln(c.stdout, "Configuration file search paths (in order of precedence):")
	fmt.Fprintln(c.stdout)

	if env := os.Getenv(config.EnvConfig); env != "" {
		fmt.Fprintf(c.stdout, "  %s=%s\n", config.EnvConfig, env)
	}
	for i, p := range paths {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Fprintf(c.stdout, "  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Active configuration:", c.source())
	return nil
}

// runReset writes the default configuration.
func (c *configCommand) runReset(args []string) error {
	fs := flag.NewFlagSet("config reset", flag.ContinueOnError)
	fs.SetOutput(c.stdout)
	force := fs.Bool("force", false, "skip confirmation prompt")
	output := fs.String("output", "", "output path for config file (default: ~/.config/browsersync/config.yaml)")

	if err := parseFlags(fs, args); err != nil {
		return ignoreHelp(err)
	}

	outputPath := *output
	if outputPath == "" {
		outputPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(outputPath); err == nil && !*force {
		fmt.Fprintf(c.stdout, "Configuration file already exists at: %s\n", outputPath)
		fmt.Fprint(c.stdout, "Overwrite? [y/N]: ")

		// A read error leaves response empty, which cancels.
		response, _ := bufio.NewReader(c.stdin).ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(c.stdout, "Reset cancelled.")
			return nil
		}
	}

	if err := config.Save(config.Default(), outputPath); err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Configuration reset to defaults at: %s\n", outputPath)
	return nil
}

// source returns the path of the active configuration file.
func (c *configCommand) source() string {
	if p := config.NewLoader(c.configPath).Path(); p != "" {
		return p
	}
	return "defaults (no config file found)"
}

// showHelp displays help for config command.
func (c *configCommand) showHelp() error {
	help := `Config - Configuration management

Usage:
  browsersync config <subcommand> [flags]

Subcommands:
  show      Display the effective configuration
  path      Show configuration file paths
  reset     Write the default configuration

Show Flags:
  -format   Output format (yaml, json) (default: yaml)

Reset Flags:
  -force    Skip confirmation prompt
  -output   Output path for config file

Examples:
  # Show current configuration
  browsersync config show

  # Show configuration in JSON format
  browsersync config show -format json

  # Write defaults next to the project
  browsersync config reset -output ./browsersync.yaml
`
	_, err := fmt.Fprint(c.stdout, help)
	return err
}
