// This file contains audit history queries.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tubesieve/internal/store"
)

var (
	historyLimit   int
	historySession string
)

// historyCmd shows recently hidden comments
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently hidden comments from the audit log",
	Long: `Queries the audit database for comments the filter hid, newest first.

The log is advisory: turning it off (store.enabled: false) changes
nothing about filtering, only about what this command can show.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Rows to show")
	historyCmd.Flags().StringVar(&historySession, "session", "", "Only rows from this session id")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfg, err := loadAppConfig(ws)
	if err != nil {
		return err
	}
	if !cfg.Store.Enabled {
		fmt.Println("Audit store is disabled (store.enabled: false).")
		return nil
	}

	st, err := store.Open(resolvePath(ws, cfg.Store.Path))
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	var rows []store.HiddenComment
	if historySession != "" {
		rows, err = st.HidesForSession(ctx, historySession, historyLimit)
	} else {
		rows, err = st.RecentHides(ctx, historyLimit)
	}
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Println("No hidden comments recorded yet.")
		return nil
	}

	total, err := st.CountHides(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Recently hidden comments (%d recorded)\n", total)
	fmt.Println(strings.Repeat("─", 72))
	for _, r := range rows {
		fmt.Printf("  %s  %-20s  %-16s  %s\n",
			r.HiddenAt.Format("2006-01-02 15:04"), r.Author, r.Rule, r.Excerpt)
	}
	fmt.Println(strings.Repeat("─", 72))
	return nil
}
