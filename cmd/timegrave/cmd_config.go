package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/render"
)

var (
	configBaseURL string
	configStorage string
	configForce   bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the config file",
	// Config commands must work before a backend or keyring is reachable.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&configBaseURL, "base-url", "", "Backend URL (empty uses the local mock)")
	configInitCmd.Flags().StringVar(&configStorage, "storage", "", "Session storage: keyring, sqlite or memory")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	c, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	say(cmd, render.HelpStyle.Render("# "+cfgPath))
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgPath); err == nil && !configForce {
		return fmt.Errorf("%s already exists; use --force to overwrite", cfgPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	c := model.DefaultAppConfig()
	if configBaseURL != "" {
		c.API.BaseURL = configBaseURL
	}
	if configStorage != "" {
		c.Storage.Backend = configStorage
	}

	if err := model.SaveConfig(cfgPath, c); err != nil {
		return err
	}
	// Read it back so invalid flag values are rejected now.
	if _, err := model.LoadConfig(cfgPath); err != nil {
		return err
	}
	say(cmd, render.SuccessStyle.Render("Wrote "+cfgPath))
	return nil
}
