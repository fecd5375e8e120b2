// This file contains the offline rules check.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tubesieve/internal/filter"
	"tubesieve/internal/htmldom"
)

var (
	checkRulesPath string
	checkJSON      bool
)

// checkCmd dry-runs the rules against a saved page.
var checkCmd = &cobra.Command{
	Use:   "check <page.html>",
	Short: "Dry-run the filter rules against a saved page",
	Long: `Parses a saved watch page and reports which comments the current
rules would hide, without touching any browser.

Save the page from your browser ("Save page as"), then:
  tubesieve check watch.html
  tubesieve check watch.html --rules my-rules.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkRulesPath, "rules", "", "Rules file (default: the workspace rules)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Emit verdicts as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfg, err := loadAppConfig(ws)
	if err != nil {
		return err
	}

	rulesPath := checkRulesPath
	if rulesPath == "" {
		rulesPath = resolvePath(ws, cfg.Filter.RulesPath)
	}
	rules, err := filter.LoadRules(rulesPath)
	if err != nil {
		logger.Warn("rules file unreadable, using defaults",
			zap.String("path", rulesPath), zap.Error(err))
	}

	doc, err := htmldom.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	eng := filter.NewEngine(rules, nil)
	verdicts, err := eng.Evaluate(context.Background(), doc, cfg.Selectors)
	if err != nil {
		return err
	}

	if checkJSON {
		data, err := json.MarshalIndent(verdicts, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}

	hidden := 0
	for _, v := range verdicts {
		kind := "thread"
		if v.Reply {
			kind = "reply"
		}
		if v.Hidden {
			hidden++
			fmt.Printf("  [x] %-6s %-20s %s (%s)\n", kind, v.Author, v.Excerpt, v.Rule)
		} else {
			fmt.Printf("  [ ] %-6s %-20s %s\n", kind, v.Author, v.Excerpt)
		}
	}
	fmt.Printf("\n%d of %d comments would be hidden\n", hidden, len(verdicts))
	return nil
}
