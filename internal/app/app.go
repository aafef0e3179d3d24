// Package app assembles the stores and services from a Config.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/marketlabel/internal/catalog"
	"github.com/vbonduro/marketlabel/internal/config"
	"github.com/vbonduro/marketlabel/internal/db"
	"github.com/vbonduro/marketlabel/internal/gdrive"
	"github.com/vbonduro/marketlabel/internal/metrics"
	"github.com/vbonduro/marketlabel/internal/photostore"
	"github.com/vbonduro/marketlabel/internal/service"
	"github.com/vbonduro/marketlabel/internal/session"
	"github.com/vbonduro/marketlabel/internal/store"
	"github.com/vbonduro/marketlabel/internal/tablestore"
	"github.com/vbonduro/marketlabel/internal/tablestore/drive"
	"github.com/vbonduro/marketlabel/internal/tablestore/local"
	"github.com/vbonduro/marketlabel/internal/tablestore/sqlite"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Catalog  *catalog.Loader
	Photos   photostore.PhotoStore
	Labels   *service.LabelService
	Accounts *service.AccountService
	Sessions *session.Manager

	database *sql.DB
}

// New opens the configured backends. Callers must Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	m, err := metrics.New()
	if err != nil {
		return nil, err
	}

	root, err := openFileStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	files := tablestore.Instrument(root, cfg.StoreBackend, m, logger).(tablestore.FileStore)

	a := &App{Config: cfg, Logger: logger, Metrics: m}

	var records tablestore.Store = files
	if cfg.RecordsBackend == config.BackendSQLite {
		a.database, err = db.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		records = tablestore.Instrument(sqlite.NewSQLiteStore(a.database), config.BackendSQLite, m, logger)
	}

	a.Catalog = catalog.NewLoader(files, cfg.DatasetName, cfg.CatalogCacheTTL)
	a.Photos = photostore.NewFolderPhotoStore(a.Catalog, cfg.ImageCacheTTL)
	a.Labels = service.NewLabelService(store.NewLabelStore(records), a.Catalog, m, logger)
	a.Accounts = service.NewAccountService(store.NewUserStore(records), store.NewCompanyStore(records), m, logger)
	a.Sessions = session.NewManager([]byte(cfg.SessionSecret), cfg.SecureCookies, cfg.SessionMaxAge)

	logger.Info("stores ready",
		"store_backend", cfg.StoreBackend,
		"records_backend", recordsBackendName(cfg),
		"dataset", cfg.DatasetName,
	)
	return a, nil
}

func (a *App) Close() error {
	if a.database == nil {
		return nil
	}
	if err := a.database.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func openFileStore(ctx context.Context, cfg *config.Config) (tablestore.FileStore, error) {
	switch cfg.StoreBackend {
	case config.BackendDrive:
		client, err := gdrive.New(ctx, cfg.DriveCredentialsFile, cfg.DriveKey)
		if err != nil {
			return nil, err
		}
		return drive.OpenRoot(ctx, client, cfg.DriveRootFolder)
	case config.BackendLocal:
		return local.NewLocalStore(cfg.LocalDataPath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func recordsBackendName(cfg *config.Config) string {
	if cfg.RecordsBackend != "" {
		return cfg.RecordsBackend
	}
	return cfg.StoreBackend
}
