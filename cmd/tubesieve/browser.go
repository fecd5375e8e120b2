// This file contains browser lifecycle commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tubesieve/internal/browser"
	"tubesieve/internal/config"
)

// browserCmd groups browser lifecycle commands.
var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Browser lifecycle commands",
}

var browserLaunchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch a browser for other commands to share",
	Long: `Starts the browser, records its control URL under the workspace,
and keeps it alive until Ctrl+C.

While it runs, 'tubesieve run' connects to this browser instead of
launching its own, so tabs survive between invocations.`,
	RunE: runBrowserLaunch,
}

func init() {
	browserCmd.AddCommand(browserLaunchCmd)
}

// browserConfig maps the app config onto the browser package's config
// and pins the session store under the workspace.
func browserConfig(cfg *config.Config, ws string) browser.Config {
	bcfg := browser.DefaultConfig()
	bcfg.ControlURL = cfg.Browser.ControlURL
	bcfg.Bin = cfg.Browser.Bin
	bcfg.Headless = cfg.Browser.Headless
	bcfg.ViewportWidth = cfg.Browser.ViewportWidth
	bcfg.ViewportHeight = cfg.Browser.ViewportHeight
	bcfg.NavigationTimeoutMs = cfg.Browser.NavigationTimeoutMs
	bcfg.EventThrottleMs = cfg.Browser.EventThrottleMs
	bcfg.SessionStore = filepath.Join(ws, ".tubesieve", "browser", "sessions.json")
	return bcfg
}

func controlFilePath(ws string) string {
	return filepath.Join(ws, ".tubesieve", "browser", "control.txt")
}

// readControlFile returns the control URL a 'browser launch' left
// behind, or "" when none is recorded.
func readControlFile(ws string) string {
	data, err := os.ReadFile(controlFilePath(ws))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// runBrowserLaunch launches the shared browser instance
func runBrowserLaunch(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfg, err := loadAppConfig(ws)
	if err != nil {
		return err
	}

	bcfg := browserConfig(cfg, ws)
	sm := browser.NewSessionManager(bcfg)
	if err := sm.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	// Write the control URL so other commands can find this browser.
	controlFile := controlFilePath(ws)
	if err := os.MkdirAll(filepath.Dir(controlFile), 0o755); err == nil {
		if err := os.WriteFile(controlFile, []byte(sm.ControlURL()), 0o644); err != nil {
			logger.Warn("failed to write control file", zap.Error(err))
		}
	}

	fmt.Printf("Browser launched. Control URL: %s\n", sm.ControlURL())
	fmt.Printf("Session store: %s\n", bcfg.SessionStore)
	fmt.Println("Press Ctrl+C to shut down")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := os.Remove(controlFile); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove control file", zap.Error(err))
	}
	return sm.Shutdown(context.Background())
}
