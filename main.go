package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/example/khutwa/internal/catalog"
	"github.com/example/khutwa/internal/config"
	"github.com/example/khutwa/internal/logging"
	"github.com/example/khutwa/internal/progress"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	debug      bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "khutwa",
	Short: "Khutwa - Arabic alphabet lessons for young children",
	Long: `Khutwa teaches the Arabic alphabet one letter at a time through short
guided lessons and mini-games, delivered over a Telegram bot.

Use 'khutwa [command] --help' for more information.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(unitsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(progressCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the components shared by every command
type app struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	catalog *catalog.Catalog
	store   *progress.Store
	closer  io.Closer
}

func (a *app) Close() {
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			a.log.Warnw("failed to close storage", "error", err)
		}
	}
	_ = a.log.Sync()
}

// setup loads the configuration and opens the catalog and progress store
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Logging.Mode, cfg.Logging.Debug || debug)
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	backend, closer, err := progress.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store := progress.NewStore(backend,
		progress.WithKeyPrefix(cfg.Storage.KeyPrefix),
		progress.WithKnownUnits(cat.Has),
		progress.WithLogger(log))

	log.Debugw("storage opened", "driver", cfg.Storage.Driver, "units", cat.Len())
	return &app{cfg: cfg, log: log, catalog: cat, store: store, closer: closer}, nil
}

// loadCatalog reads the configured catalog file or falls back to the
// built-in alphabet when no file is configured or it does not exist yet
func loadCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.Default(), nil
	}
	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.Path)
}
