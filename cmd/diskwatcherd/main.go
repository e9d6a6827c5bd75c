// Command diskwatcherd wires the Catalog Store, Watcher Supervisor,
// Auto-Discovery Loop, and Progress Monitor into a single long-running
// process: load configuration, open the catalog, mark stale jobs, start
// live watching, and run the discovery loop (which attaches the mounted
// children of the configured roots) until signaled. Grounded on cmd/server/main.go's
// config-load -> service-init -> signal-wait -> graceful-shutdown shape.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/asalt/diskwatcher/internal/catalog"
	"github.com/asalt/diskwatcher/internal/config"
	"github.com/asalt/diskwatcher/internal/discovery"
	"github.com/asalt/diskwatcher/internal/jobs"
	"github.com/asalt/diskwatcher/internal/mountprobe"
	"github.com/asalt/diskwatcher/internal/progress"
	"github.com/asalt/diskwatcher/internal/supervisor"
	"github.com/asalt/diskwatcher/internal/version"
	"github.com/asalt/diskwatcher/internal/watcher"
)

func main() {
	cfg := config.Load()
	if cfg.Log.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.FilePath), 0o755); err != nil {
			log.Printf("[WARN] diskwatcherd: could not create log directory %s: %v", filepath.Dir(cfg.Log.FilePath), err)
		} else if f, err := os.OpenFile(cfg.Log.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err != nil {
			log.Printf("[WARN] diskwatcherd: could not open log file %s: %v", cfg.Log.FilePath, err)
		} else {
			defer f.Close()
			log.SetOutput(f)
		}
	}
	log.Printf("[INFO] %s starting (go=%s)", version.String(), version.Get().GoVersion)

	catCfg := catalog.DefaultConfig(cfg.Catalog.Path)
	catCfg.BusyTimeout = cfg.Catalog.BusyTimeout
	db, err := catalog.Open(catCfg)
	if err != nil {
		log.Fatalf("[ERROR] diskwatcherd: failed to open catalog: %v", err)
	}
	defer db.Close()

	tracker := jobs.New(db)
	if n, err := tracker.CleanupStaleJobs(); err != nil {
		log.Printf("[WARN] diskwatcherd: stale job cleanup failed: %v", err)
	} else if n > 0 {
		log.Printf("[INFO] diskwatcherd: marked %d stale job(s) from a prior run", n)
	}

	retention := catalog.NewRetentionService(db, catalog.RetentionConfig{
		Enabled:      cfg.Retention.Enabled,
		EventTTLDays: cfg.Retention.EventTTLDays,
		JobTTLDays:   cfg.Retention.JobTTLDays,
		Interval:     cfg.Retention.Interval,
		InitialDelay: cfg.Retention.InitialDelay,
	})
	retention.Start()

	excludes := watcher.NewExcludeSet(cfg.Run.ExcludePatterns)
	super := supervisor.New(supervisor.Config{
		Excludes:        excludes,
		PollingInterval: cfg.Run.PollingInterval,
		MaxScanWorkers:  cfg.Run.MaxScanWorkers,
	}, db, tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, root := range cfg.Run.AutoDiscoverRoots {
		if _, err := os.Stat(root); err != nil {
			log.Printf("[WARN] diskwatcherd: auto-discover root %s unavailable: %v", root, err)
		}
	}

	if cfg.Run.AutoScan {
		if _, err := super.RunInitialScans(ctx, supervisor.ScanTarget{Parallel: true}); err != nil {
			log.Printf("[WARN] diskwatcherd: initial scan pass reported errors: %v", err)
		}
	}

	if err := super.StartAll(ctx); err != nil {
		log.Printf("[WARN] diskwatcherd: %v", err)
	}

	var discoveryLoop *discovery.Loop
	if len(cfg.Run.AutoDiscoverRoots) > 0 {
		discoveryLoop = discovery.New(discovery.Config{
			Roots:        cfg.Run.AutoDiscoverRoots,
			ScanNew:      cfg.Run.AutoDiscoverScan,
			Interval:     cfg.Run.DiscoveryInterval,
			ScanParallel: true,
		}, super, mountprobe.NewHostMountSet())
		discoveryLoop.Start(ctx)
	}

	monitor := progress.NewBatchRunner(db, time.Second, progress.Options{
		Interactive: cfg.Run.ProgressInteractive,
		Out:         os.Stdout,
	})
	monitorCtx, monitorCancel := context.WithCancel(ctx)
	go monitor.Run(monitorCtx)

	log.Printf("[INFO] diskwatcherd: running (catalog=%s watchers=%d)", db.Path(), len(super.CurrentPaths()))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[INFO] diskwatcherd: shutting down")

	monitorCancel()
	if discoveryLoop != nil {
		discoveryLoop.Stop()
	}
	super.StopAll()
	retention.Stop()
	cancel()

	log.Println("[INFO] diskwatcherd: exited")
}
