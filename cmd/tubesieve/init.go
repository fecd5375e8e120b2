// This file contains workspace initialization.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tubesieve/internal/config"
	"tubesieve/internal/filter"
)

var forceInit bool

// initCmd sets up a fresh workspace
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize tubesieve in the current workspace",
	Long: `Creates the .tubesieve/ directory with a default config and an empty
rules file, ready to edit.

Run this once per workspace; an existing setup is left alone unless
--force is given.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite the existing config")
}

func runInit(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfgPath := config.DefaultPath(ws)

	if _, err := os.Stat(cfgPath); err == nil && !forceInit {
		fmt.Println("Workspace already initialized. Edit .tubesieve/config.yaml to adjust.")
		fmt.Println("To start over, use 'tubesieve init --force'.")
		return nil
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(cfgPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// Never clobber a rules file the user already curated.
	rulesPath := resolvePath(ws, cfg.Filter.RulesPath)
	if _, err := os.Stat(rulesPath); os.IsNotExist(err) {
		if err := filter.SaveRules(rulesPath, filter.DefaultRules()); err != nil {
			return fmt.Errorf("failed to write rules: %w", err)
		}
	}

	fmt.Println("Workspace initialized.")
	fmt.Printf("  Config: %s\n", cfgPath)
	fmt.Printf("  Rules:  %s\n", rulesPath)
	fmt.Println()
	fmt.Println("Next: tubesieve run <watch-page-url>")
	return nil
}
