package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/datallboy/levelkeep/internal/dispatch"
	"github.com/datallboy/levelkeep/internal/download"
	"github.com/datallboy/levelkeep/internal/extraction"
	"github.com/datallboy/levelkeep/internal/fileops"
	"github.com/datallboy/levelkeep/internal/infra/config"
	"github.com/datallboy/levelkeep/internal/infra/logger"
	"github.com/datallboy/levelkeep/internal/level"
	"github.com/datallboy/levelkeep/internal/platform"
	"github.com/datallboy/levelkeep/internal/runner"
	"github.com/datallboy/levelkeep/internal/store"
	"github.com/datallboy/levelkeep/internal/store/catalogfile"
	"github.com/datallboy/levelkeep/internal/store/postgres"
)

// Context hold the core environment and shared resources for levelkeep.
// The CLI and the HTTP API both drive levels through it.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Catalog    store.Catalog
	FileOps    *fileops.FileOps
	Dispatcher *dispatch.Dispatcher
	Levels     *level.Machine

	// WineAvailable is false when the configured wine binary is missing;
	// installs still work but Play will fail
	WineAvailable bool

	cancel context.CancelFunc
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}

// Init opens the catalog and wires the level machine. The dispatcher runs
// until Close is called.
func (a *Context) Init(ctx context.Context) error {
	catalog, err := OpenCatalog(ctx, a.Config.Catalog)
	if err != nil {
		return err
	}
	a.Catalog = catalog

	descs, err := catalog.Descriptors(ctx)
	if err != nil {
		catalog.Close()
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	a.FileOps = fileops.New(a.Config.LevelRoot, a.Config.GameRoot, a.Logger.With("fileops"))
	budget := a.Config.Extract.TickBudget
	if budget <= 0 {
		budget = extraction.DefaultBudget
	}
	extractors := extraction.NewManager(budget)
	a.FileOps.UseExtractors(extractors)
	if err := a.FileOps.InitRoots(); err != nil {
		catalog.Close()
		return err
	}

	disp, err := dispatch.New(a.Logger.With("dispatch"), dispatch.DefaultBuffer)
	if err != nil {
		catalog.Close()
		return err
	}
	a.Dispatcher = disp

	wine := a.Config.Runner.WineBinary
	if err := platform.ValidateDependencies(wine, a.Logger); err != nil {
		a.Logger.Warn("%v. Levels can be installed but not played.", err)
	} else {
		a.WineAvailable = true
	}
	a.Logger.Info("Available extractors: %s", strings.Join(extractors.AvailableExtractors(), ", "))
	if wine == "" {
		wine = platform.DefaultWine
	}

	dl := download.NewHTTP(download.Options{
		Timeout:   a.Config.Download.Timeout,
		UserAgent: a.Config.Download.UserAgent,
		RateLimit: a.Config.Download.RateLimit,
	}, a.Logger.With("download"))
	run := runner.NewWine(wine, a.Config.Runner.Prefix, a.Logger.With("runner"))

	machine, err := level.New(a.FileOps, descs, dl, run, disp, a.Logger.With("level"),
		level.WithWorkers(a.Config.Workers))
	if err != nil {
		catalog.Close()
		return err
	}
	a.Levels = machine

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go disp.Run(runCtx)

	a.Logger.Info("Loaded %d levels from %s catalog", len(descs), a.Config.Catalog.Driver)
	return nil
}

// Close stops in-flight downloads, the dispatcher and the catalog
func (a *Context) Close() error {
	if a.Levels != nil {
		a.Levels.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.Catalog != nil {
		return a.Catalog.Close()
	}
	return nil
}

// OpenCatalog opens the descriptor catalog selected by cfg.Driver
func OpenCatalog(ctx context.Context, cfg config.CatalogConfig) (store.Catalog, error) {
	switch cfg.Driver {
	case "sqlite":
		return store.NewPersistentStore(cfg.SQLitePath)
	case "postgres":
		return postgres.New(ctx, cfg.PostgresDSN)
	case "file":
		return catalogfile.Open(cfg.File)
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
}
