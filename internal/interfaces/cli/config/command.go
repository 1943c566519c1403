// Package config implements the config CLI commands.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/typeworld/typeworld-go/internal/infrastructure/config"
)

var force bool

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the client configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runShow,
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}

func starterConfig() map[string]any {
	return map[string]any{
		"client": map[string]any{
			"mothership":         config.Mothership,
			"app_id":             "world.type.headless",
			"commercial":         false,
			"fonts_folder":       "",
			"online":             true,
			"push_notifications": false,
		},
		"preferences": map[string]any{
			"backend": "json",
			"path":    filepath.Join(config.DefaultDir(), "preferences.json"),
		},
		"control": map[string]any{
			"enabled":  false,
			"host":     "127.0.0.1",
			"port":     8743,
			"auth_key": "",
		},
		"logger": map[string]any{
			"level":       "info",
			"format":      "console",
			"output_path": "stderr",
		},
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := config.DefaultDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	data, err := yaml.Marshal(starterConfig())
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	// Never print the control auth key.
	redacted := *cfg
	if redacted.Control.AuthKey != "" {
		redacted.Control.AuthKey = "********"
	}

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
