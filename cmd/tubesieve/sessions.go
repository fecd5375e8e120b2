// This file contains session listing.
package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tubesieve/internal/browser"
)

// sessionsCmd lists recorded browser sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded browser sessions",
	Long: `Lists the browser sessions recorded in the workspace session store.

Detached sessions are history from earlier runs; their target ids can
be handed to 'tubesieve run --attach' while the browser that owns them
is still alive.`,
	RunE: runSessionsList,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfg, err := loadAppConfig(ws)
	if err != nil {
		return err
	}

	// Read the store directly; listing must never launch a browser.
	sessions, err := browser.LoadPersisted(browserConfig(cfg, ws).SessionStore)
	if err != nil {
		return fmt.Errorf("failed to read session store: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		fmt.Println("Use: tubesieve run <url> to start one")
		return nil
	}

	fmt.Println("Browser sessions")
	fmt.Println(strings.Repeat("─", 72))
	for _, s := range sessions {
		age := time.Since(s.LastActive).Round(time.Minute)
		fmt.Printf("  %s  [%s]  target=%s\n      %s  (%s ago)\n",
			s.ID, s.Status, s.TargetID, s.URL, age)
	}
	fmt.Println(strings.Repeat("─", 72))
	fmt.Printf("Total: %d sessions\n", len(sessions))
	return nil
}
