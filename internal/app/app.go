package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"quantscraper/internal/alerting"
	"quantscraper/internal/analysis"
	"quantscraper/internal/api"
	"quantscraper/internal/config"
	"quantscraper/internal/exchange"
	"quantscraper/internal/funding"
	"quantscraper/internal/history"
	"quantscraper/internal/lock"
	"quantscraper/internal/publish"
	"quantscraper/internal/retry"
	"quantscraper/internal/scheduler"
	"quantscraper/internal/service"
	"quantscraper/internal/storage"
	"quantscraper/internal/universe"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	fs     afero.Fs
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		fs:     afero.NewOsFs(),
	}
}

func (a *App) newClient(name string) (exchange.Client, error) {
	cfg := a.Config.Exchange(name)
	var client exchange.Client
	switch name {
	case exchange.Binance:
		client = exchange.NewBinance(exchange.BinanceOptions{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, a.Logger)
	case exchange.Bybit:
		client = exchange.NewBybit(exchange.BybitOptions{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout}, a.Logger)
	default:
		return nil, fmt.Errorf("unknown exchange %q", name)
	}
	return exchange.NewLimited(client, cfg.RPS, cfg.Burst), nil
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	telegram := alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	return alerting.NewThrottled(telegram, a.Config.Alerting.Cooldown, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newLocker(store *storage.Store) (lock.Locker, error) {
	switch a.Config.Lock.Backend {
	case "postgres":
		if store == nil {
			return nil, errors.New("lock.backend=postgres requires database.dsn")
		}
		return lock.NewPostgresLocker(store, a.Config.Lock.AdvisoryBase), nil
	case "none":
		return lock.Noop{}, nil
	default:
		return lock.NewFileLocker(a.Config.Lock.Dir), nil
	}
}

func (a *App) newMirrors(ctx context.Context) ([]publish.Mirror, func(), error) {
	var (
		mirrors []publish.Mirror
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if s3cfg := a.Config.Mirror.S3; s3cfg.Enabled {
		m, err := publish.NewS3Mirror(ctx, publish.S3Options{
			Bucket:          s3cfg.Bucket,
			Prefix:          s3cfg.Prefix,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			PathStyle:       s3cfg.UsePathStyle,
			AccessKeyID:     s3cfg.AccessKey,
			SecretAccessKey: s3cfg.SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		mirrors = append(mirrors, m)
	}

	if rcfg := a.Config.Mirror.Redis; rcfg.Enabled {
		m, err := publish.NewRedisMirror(ctx, publish.RedisOptions{
			Addr:      rcfg.Addr,
			Password:  rcfg.Password,
			DB:        rcfg.DB,
			KeyPrefix: rcfg.KeyPrefix,
			TTL:       rcfg.TTL,
			Channel:   rcfg.Channel,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		mirrors = append(mirrors, m)
		closers = append(closers, func() { _ = m.Close() })
	}

	return mirrors, closeAll, nil
}

func (a *App) newPublisher(mirrors []publish.Mirror) (*publish.Publisher, error) {
	format, err := publish.ParseFormat(a.Config.Publish.Format)
	if err != nil {
		return nil, err
	}
	return publish.NewPublisher(publish.NewWriter(a.fs), publish.Options{
		DataDir:            a.Config.Publish.DataDir,
		Format:             format,
		TradeableMinVolume: a.Config.Publish.TradeableMinVolume,
		LegacyExchange:     a.Config.Publish.LegacyExchange,
		MirrorTimeout:      a.Config.Publish.MirrorTimeout,
	}, mirrors, a.Logger), nil
}

// sharedDeps holds the collaborators shared by every exchange loop.
type sharedDeps struct {
	publisher *publish.Publisher
	locker    lock.Locker
	store     storage.CycleStore
	notifier  alerting.Notifier
	hook      service.TableHook
	close     func()
}

func (a *App) newShared(ctx context.Context) (*sharedDeps, error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; cycle history disabled")
	}

	locker, err := a.newLocker(store)
	if err != nil {
		if closeStore != nil {
			closeStore()
		}
		return nil, err
	}

	mirrors, closeMirrors, err := a.newMirrors(ctx)
	if err != nil {
		if closeStore != nil {
			closeStore()
		}
		return nil, err
	}

	publisher, err := a.newPublisher(mirrors)
	if err != nil {
		closeMirrors()
		if closeStore != nil {
			closeStore()
		}
		return nil, err
	}

	rt := &sharedDeps{
		publisher: publisher,
		locker:    locker,
		notifier:  a.newNotifier(),
		close: func() {
			closeMirrors()
			if closeStore != nil {
				closeStore()
			}
		},
	}
	if store != nil {
		rt.store = store
	}
	if a.Config.Combine.Enabled {
		rt.hook = service.NewCombiner(a.Config.Combine.Primary, a.Config.Combine.Secondary, publisher, a.Logger)
	}
	return rt, nil
}

func (a *App) newScraper(name string, rt *sharedDeps) (*service.Scraper, error) {
	client, err := a.newClient(name)
	if err != nil {
		return nil, err
	}
	logger := a.Logger.With().Str("exchange", name).Logger()
	sc := a.Config.Scraper

	cache := funding.New(client, funding.Options{TTL: sc.FundingTTL}, logger)
	analyzer := analysis.NewAnalyzer(client, cache, analysis.AnalyzerOptions{Lookback: sc.Lookback})
	pool := analysis.NewPool(analyzer, analysis.PoolOptions{
		MaxWorkers: sc.MaxWorkers,
		Retry:      retry.Policy{Attempts: sc.RetryAttempts, Delay: sc.RetryDelay},
	}, logger)

	return service.New(service.Options{
		Exchange:        name,
		Filters:         universe.Filters{QuoteSymbols: sc.QuoteSymbols, TopVolume: sc.TopVolume},
		HistoryInterval: sc.HistoryInterval,
		HistoryLimit:    sc.HistoryLimit,
		Retention:       a.Config.Database.Retention,
	}, service.Deps{
		Universe:  universe.NewBuilder(name, client, logger),
		Analyzer:  pool,
		Publisher: rt.publisher,
		History:   history.New(client, sc.HistoryWorkers, logger),
		Locker:    rt.locker,
		Store:     rt.store,
		Notifier:  rt.notifier,
		Hook:      rt.hook,
		Scheduler: scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, logger),
	}, a.Logger), nil
}

// newScrapers builds every configured loop; none is started on error.
func (a *App) newScrapers(rt *sharedDeps) ([]*service.Scraper, error) {
	scrapers := make([]*service.Scraper, 0, len(a.Config.Scraper.Exchanges))
	for _, name := range a.Config.Scraper.Exchanges {
		scraper, err := a.newScraper(name, rt)
		if err != nil {
			return nil, err
		}
		scrapers = append(scrapers, scraper)
	}
	return scrapers, nil
}

func (a *App) newAPI() *api.Server {
	return api.New(api.Options{Addr: a.Config.API.Addr, DataDir: a.Config.Publish.DataDir}, a.fs, a.Logger)
}

// Run executes one scraper loop per configured exchange until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := a.newShared(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	scrapers, err := a.newScrapers(rt)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, scraper := range scrapers {
		g.Go(func() error {
			return scraper.Run(gctx)
		})
	}
	if a.Config.API.Enabled {
		server := a.newAPI()
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	a.Logger.Info().Strs("exchanges", a.Config.Scraper.Exchanges).Msg("starting scraper loops")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("scraper terminated with error")
		return err
	}

	a.Logger.Info().Msg("scraper stopped")
	return nil
}

// Once runs a single cycle for one exchange.
func (a *App) Once(ctx context.Context, name string) (service.CycleReport, error) {
	rt, err := a.newShared(ctx)
	if err != nil {
		return service.CycleReport{}, err
	}
	defer rt.close()

	scraper, err := a.newScraper(name, rt)
	if err != nil {
		return service.CycleReport{}, err
	}
	report := scraper.RunOnce(ctx)
	return report, report.Err
}

// Serve runs only the HTTP API.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return a.newAPI().Run(ctx)
}

// ExportOptions hold parameters for exporting a published table.
type ExportOptions struct {
	Exchange string
	Column   string
	TopN     int
	PNGPath  string
	CSVPath  string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit    int
	Exchange string
}

// CombineOptions configure the offline combine command.
type CombineOptions struct {
	Primary   string
	Secondary string
	Out       string
}
