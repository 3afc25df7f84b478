/*
Package cli implements the toolvault commands.

The serve command runs the HTTP API; the history, prefs, cleanup, and
version commands operate on the same settings file and history database from
the terminal.
*/
package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/toolvault/toolvault/internal/config"
	"github.com/toolvault/toolvault/internal/history"
	"github.com/toolvault/toolvault/internal/prefs"
	"github.com/toolvault/toolvault/internal/registry"
	"github.com/toolvault/toolvault/internal/search"
	"github.com/toolvault/toolvault/internal/server"
	"github.com/toolvault/toolvault/internal/storage"
	"github.com/toolvault/toolvault/internal/thumbs"
)

// retentionSchedule is when the daily history cleanup sweep runs.
const retentionSchedule = "0 3 * * *"

// NewServeCmd creates the 'serve' command for running the HTTP API.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the toolvault HTTP API",
		Long: `Start the toolvault server.

The server exposes usage history, per-tool logging preferences, tool
metadata, history search, and the thumbnail worker over HTTP. Settings
changes made on disk are picked up live.`,
		Example: `  # Serve on the default address
  toolvault serve

  # Custom address and external metadata endpoint
  toolvault serve --addr :9090 --metadata-url https://tools.example.com

  # With a thumbnail worker process
  toolvault serve --thumbnailer "toolvault-thumbnailer --quality 80"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8787", "HTTP listen address")
	flags.String("db", "", "History database path (default ~/.toolvault/history.db)")
	flags.String("metadata-url", "", "Base URL for per-tool default preference metadata")
	flags.String("thumbnailer", "", "Thumbnail worker command line")
	flags.Int("retention", 0, "Delete history entries unused for this many days (0 disables)")

	viper.SetEnvPrefix("TOOLVAULT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"addr", "db", "metadata-url", "thumbnailer", "retention"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	return cmd
}

// runServe wires the service objects together and blocks until a signal or
// a listener error.
func runServe() error {
	settingsPath, err := config.DefaultPath()
	if err != nil {
		return fmt.Errorf("failed to resolve settings path: %w", err)
	}
	settings, err := config.NewStore(settingsPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// Pick up edits made to the settings file while the server runs.
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	if err := config.Watch(settings, stopWatch); err != nil {
		log.Printf("Warning: settings file watch unavailable: %v", err)
	}

	var store *storage.SQLiteStorage
	if dbPath := viper.GetString("db"); dbPath != "" {
		store = storage.NewStorageAt(dbPath)
	} else {
		store = storage.NewStorage()
	}
	if err := store.Init(); err != nil {
		log.Printf("Warning: history storage unavailable, continuing without persistence: %v", err)
	}
	defer store.Close()

	reg := registry.Default()
	resolver := prefs.NewResolver(settings, viper.GetString("metadata-url"), reg.Directive)
	for _, tool := range reg.Tools() {
		resolver.SeedDefault(tool.Route, tool.DefaultLogging)
	}

	hist := history.NewStore(store, resolver, settings)

	indexer, err := search.NewIndexer()
	if err != nil {
		log.Printf("Warning: history search unavailable: %v", err)
		indexer = nil
	} else {
		defer indexer.Close()
		if err := indexer.Rebuild(hist.List()); err != nil {
			log.Printf("Warning: initial search index build failed: %v", err)
		}
		revisions, subID := hist.Subscribe()
		defer hist.Unsubscribe(subID)
		go indexer.Follow(revisions)
	}

	var broker *thumbs.Broker
	if cmdline := viper.GetString("thumbnailer"); cmdline != "" {
		parts := strings.Fields(cmdline)
		broker = thumbs.NewBroker(thumbs.NewProcessWorker(parts[0], parts[1:]...), 0)
		defer broker.Close()
	}

	sweeper, err := startRetentionSweep(store, viper.GetInt("retention"))
	if err != nil {
		return err
	}
	if sweeper != nil {
		defer sweeper.Stop()
	}

	srv := server.New(server.Options{
		History:  hist,
		Resolver: resolver,
		Settings: settings,
		Registry: reg,
		Indexer:  indexer,
		Broker:   broker,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run(viper.GetString("addr"))
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down gracefully...", sig)
		return nil
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// startRetentionSweep schedules the daily cleanup of stale history entries.
// Returns nil when retention is disabled.
func startRetentionSweep(store *storage.SQLiteStorage, days int) (*cron.Cron, error) {
	if days <= 0 {
		return nil, nil
	}
	if !store.Enabled() {
		log.Printf("Warning: retention sweep disabled, history storage unavailable")
		return nil, nil
	}

	retention := time.Duration(days) * 24 * time.Hour
	c := cron.New()
	_, err := c.AddFunc(retentionSchedule, func() {
		if err := store.Cleanup(retention); err != nil {
			log.Printf("Warning: history retention sweep failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule retention sweep: %w", err)
	}
	c.Start()
	log.Printf("History retention: entries unused for %d days are removed daily", days)
	return c, nil
}
