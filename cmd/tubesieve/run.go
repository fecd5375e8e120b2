// This file contains the live filtering loop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tubesieve/internal/browser"
	"tubesieve/internal/config"
	"tubesieve/internal/dom"
	"tubesieve/internal/filter"
	"tubesieve/internal/i18n"
	"tubesieve/internal/logging"
	"tubesieve/internal/overlay"
	"tubesieve/internal/store"
)

var (
	runAttachTarget string
	runControlURL   string
	runHeadless     bool
	runFor          time.Duration
)

// runCmd drives the filtering loop on a live watch page.
var runCmd = &cobra.Command{
	Use:   "run [url]",
	Short: "Filter the comment section of a live watch page",
	Long: `Opens (or attaches to) a browser tab, waits for the comment section
to render, injects the control panel, and keeps applying the filter
rules until interrupted.

The rules file reloads live: edit it while running and the page updates
on the next pass.

Examples:
  tubesieve run https://video.example/watch?v=abc123
  tubesieve run --attach <target-id>     (target ids: 'tubesieve sessions')`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFilterLoop,
}

func init() {
	runCmd.Flags().StringVar(&runAttachTarget, "attach", "", "Attach to an existing tab by target id")
	runCmd.Flags().StringVar(&runControlURL, "control-url", "", "DevTools control URL of a running browser")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Launch the browser headless")
	runCmd.Flags().DurationVar(&runFor, "for", 0, "Stop after this long (0 = until interrupted)")
}

func runFilterLoop(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && runAttachTarget == "" {
		return fmt.Errorf("a watch page URL is required unless --attach is given")
	}

	ws := resolveWorkspace()
	cfg, err := loadAppConfig(ws)
	if err != nil {
		return err
	}
	if runControlURL != "" {
		cfg.Browser.ControlURL = runControlURL
	}
	if runHeadless {
		cfg.Browser.Headless = true
	}

	msgs, err := i18n.Load(cfg.Locale)
	if err != nil {
		return fmt.Errorf("load locale %q: %w", cfg.Locale, err)
	}

	rulesPath := resolvePath(ws, cfg.Filter.RulesPath)
	rules, err := filter.LoadRules(rulesPath)
	if err != nil {
		logger.Warn("rules file unreadable, starting with defaults",
			zap.String("path", rulesPath), zap.Error(err))
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if runFor > 0 {
		ctx, cancel = context.WithTimeout(ctx, runFor)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// The audit store is advisory; filtering proceeds without it.
	var auditStore *store.AuditStore
	if cfg.Store.Enabled {
		auditStore, err = store.Open(resolvePath(ws, cfg.Store.Path))
		if err != nil {
			logger.Warn("audit store unavailable", zap.Error(err))
		}
	}
	var eng *filter.Engine
	if auditStore != nil {
		defer auditStore.Close()
		if n, err := auditStore.PurgeOlderThan(ctx, cfg.Store.KeepDays); err == nil && n > 0 {
			logger.Debug("purged aged audit rows", zap.Int64("rows", n))
		}
		eng = filter.NewEngine(rules, auditStore)
	} else {
		eng = filter.NewEngine(rules, nil)
	}
	eng.SetParallelism(cfg.Filter.Parallelism)

	bcfg := browserConfig(cfg, ws)
	if bcfg.ControlURL == "" {
		if url := readControlFile(ws); url != "" {
			bcfg.ControlURL = url
			logger.Info("connecting to running browser", zap.String("control_url", url))
		}
	}
	launched := bcfg.ControlURL == ""

	sm := browser.NewSessionManager(bcfg)
	if err := sm.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		// Only tear down a browser we launched ourselves.
		if launched {
			_ = sm.Shutdown(context.Background())
		}
	}()

	var sess *browser.Session
	if runAttachTarget != "" {
		sess, err = sm.Attach(ctx, runAttachTarget)
	} else {
		sess, err = sm.CreateSession(ctx, args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to open watch page: %w", err)
	}
	logger.Info("session ready", zap.String("session", sess.ID), zap.String("url", sess.URL))

	doc, err := sm.Document(sess.ID)
	if err != nil {
		return err
	}
	defer doc.StopEvents()

	eng.SetSession(sess.ID)

	// Wait for the comment section before placing the panel. Apply
	// re-queries every pass, so a miss here only means empty passes
	// until the page catches up.
	sectionCh := make(chan dom.Element, 1)
	dom.DiscoverWithin(doc, cfg.Selectors.CommentSection,
		cfg.Discover.Timeout(), cfg.Discover.Interval(),
		func(el dom.Element) { sectionCh <- el })
	if section := <-sectionCh; section == nil {
		logger.Warn("comment section not found within budget",
			zap.String("selector", cfg.Selectors.CommentSection))
	}

	applyCh := make(chan struct{}, 1)
	kick := func() {
		select {
		case applyCh <- struct{}{}:
		default:
		}
	}
	saveRules := func() {
		if err := filter.SaveRules(rulesPath, eng.Rules()); err != nil {
			logger.Warn("could not save rules", zap.Error(err))
		}
	}

	// Panel events arrive on the pump goroutine; everything they touch
	// is mutex-guarded and kick never blocks.
	cb := overlay.PanelCallbacks{
		OnToggle: func() {
			eng.Toggle()
			saveRules()
			kick()
		},
		OnHideLinks: func(v bool) {
			eng.Update(func(r *filter.Rules) { r.HideLinks = v })
			saveRules()
			kick()
		},
		OnMatchCase: func(v bool) {
			eng.Update(func(r *filter.Rules) { r.MatchCase = v })
			saveRules()
			kick()
		},
		OnIncludeReplies: func(v bool) {
			eng.Update(func(r *filter.Rules) { r.IncludeReplies = v })
			saveRules()
			kick()
		},
		OnAddWord: func(w string) {
			if eng.AddWord(w) {
				saveRules()
			}
			kick()
		},
		OnApply: kick,
		OnClear: func() {
			eng.Update(func(r *filter.Rules) { r.Words = nil })
			saveRules()
			kick()
		},
	}

	panel, err := overlay.Panel(doc, cfg, msgs, eng.Rules(), cb)
	if err != nil {
		return fmt.Errorf("failed to build panel: %w", err)
	}
	mount, err := dom.Find(doc, cfg.Selectors.PanelMount)
	if err != nil {
		return fmt.Errorf("panel mount lookup: %w", err)
	}
	if mount == nil {
		mount, err = dom.Get(doc, "body")
		if err != nil {
			return fmt.Errorf("panel mount fallback: %w", err)
		}
	}
	if err := mount.AppendChild(panel); err != nil {
		return fmt.Errorf("failed to inject panel: %w", err)
	}
	logging.Overlay("panel injected for session %s", sess.ID)

	// Reload rules when the file changes on disk.
	rw, err := filter.NewRulesWatcher(rulesPath, eng)
	if err != nil {
		logger.Warn("rules watcher unavailable", zap.Error(err))
	} else {
		rw.SetOnReload(func(filter.Rules) { kick() })
		if err := rw.Start(ctx); err != nil {
			logger.Warn("rules watcher failed to start", zap.Error(err))
		} else {
			defer rw.Stop()
		}
	}

	pageURL := sess.URL
	applyOnce := func() {
		stats, err := eng.Apply(ctx, doc, cfg.Selectors, pageURL)
		if err != nil {
			logger.Warn("filter pass failed", zap.Error(err))
			return
		}
		updateStatus(doc, cfg, msgs, stats)
		if stats.Newly > 0 || stats.Restored > 0 {
			logger.Info("filter pass",
				zap.Int("scanned", stats.Scanned),
				zap.Int("hidden", stats.Hidden),
				zap.Int("newly", stats.Newly),
				zap.Int("restored", stats.Restored))
		}
	}

	fmt.Printf("Filtering comments on %s\n", pageURL)
	fmt.Printf("Rules: %s (edit to update live)\n", rulesPath)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	applyOnce()
	ticker := time.NewTicker(cfg.Filter.ApplyThrottle())
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal")
			return nil
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logger.Info("run duration elapsed")
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			applyOnce()
		case <-applyCh:
			applyOnce()
		}
	}
}

// updateStatus rewrites the status span's single text node in place.
func updateStatus(doc dom.Document, cfg *config.Config, msgs *i18n.Bundle, stats filter.ApplyStats) {
	status, err := dom.FindByID(doc, cfg.IDs.FilterStatus)
	if err != nil || status == nil {
		return
	}
	text := msgs.Get("status_idle")
	if stats.Hidden > 0 {
		text = fmt.Sprintf(msgs.Get("status_hidden"), stats.Hidden)
	}
	if err := dom.ReplaceText(status, text); err != nil {
		logging.OverlayDebug("status update failed: %v", err)
	}
}
