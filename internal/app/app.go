package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davicafu/catalogsync/internal/catalog/application"
	"github.com/davicafu/catalogsync/internal/catalog/domain"
	catalogEvents "github.com/davicafu/catalogsync/internal/catalog/infra/inbound/events"
	catalogHttp "github.com/davicafu/catalogsync/internal/catalog/infra/inbound/http"
	"github.com/davicafu/catalogsync/internal/catalog/infra/outbound/db/sqlstore"
	"github.com/davicafu/catalogsync/internal/catalog/infra/outbound/eventstore/clickhouse"
	"github.com/davicafu/catalogsync/internal/catalog/infra/outbound/memory"
	"github.com/davicafu/catalogsync/internal/catalog/infra/outbound/projection/mongodb"
	"github.com/davicafu/catalogsync/internal/catalog/infra/outbound/search/elastic"
	"github.com/davicafu/catalogsync/internal/config"
	domainEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	sharedEvents "github.com/davicafu/catalogsync/internal/shared/infra/events"
	sharedBus "github.com/davicafu/catalogsync/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/catalogsync/internal/shared/infra/platform/cache"
	"github.com/davicafu/catalogsync/internal/shared/infra/platform/db/sqldb"
	"github.com/davicafu/catalogsync/internal/shared/infra/relayer"
)

type Component string

const (
	ComponentAPI        Component = "api"
	ComponentRelay      Component = "relay"
	ComponentProjector  Component = "project"
	ComponentReconciler Component = "reconcile"
)

func AllComponents() []Component {
	return []Component{ComponentAPI, ComponentRelay, ComponentProjector, ComponentReconciler}
}

const (
	memoryBusBuffer   = 1024
	projectionTimeout = 30 * time.Second
	shutdownTimeout   = 10 * time.Second
	pingTimeout       = 3 * time.Second
)

// App agrupa las dependencias de un proceso. Cada subcomando arranca solo los
// componentes que necesita sobre el mismo grafo.
type App struct {
	cfg *config.Config
	log *zap.Logger

	db       *sql.DB
	repo     *sqlstore.CatalogRepo
	outbox   *sqldb.OutboxRepo
	registry *domainEvents.Registry

	games      domain.GameProjectionStore
	promotions domain.PromotionProjectionStore
	search     domain.SearchIndex
	facts      domain.EventStore

	publisher sharedBus.Publisher
	bus       *sharedEvents.InMemoryBus
	streams   rueidis.Client

	Service    *application.CatalogService
	Projector  *application.Projector
	Reconciler *application.Reconciler
	Relay      *relayer.Worker

	closers []func() error
}

// New abre las conexiones según cfg.Deployment y cfg.Transport. Si algo falla a
// mitad, cierra lo ya abierto.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log, registry: domain.NewEventRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err = a.openPrimary(ctx); err != nil {
		return nil, err
	}
	if err = a.openProjections(ctx); err != nil {
		return nil, err
	}
	if err = a.openTransport(); err != nil {
		return nil, err
	}
	cache := a.openCache(ctx)

	a.Projector = application.NewProjector(a.games, a.promotions, a.search, a.facts, log)
	a.Service = application.NewCatalogService(
		sqldb.NewTxManager(a.db), a.repo, a.outbox, a.games, a.promotions, a.search, log,
		application.WithCache(cache, domain.NewCacheKeys(cfg.CachePrefix)),
	)
	a.Reconciler = application.NewReconciler(a.repo, a.games, a.promotions, a.search, a.Projector, application.ReconcilerConfig{
		GracePeriod:     cfg.SyncGracePeriod,
		InitialAttempts: cfg.SyncInitialAttempts,
		InitialBackoff:  cfg.SyncInitialBackoff,
		Interval:        cfg.SyncInterval,
		DriftThreshold:  cfg.DriftThreshold,
		VerifyAttempts:  cfg.VerifyAttempts,
		VerifyBaseDelay: cfg.VerifyBaseDelay,
	}, log)
	a.Relay = relayer.NewOutboxWorker(a.outbox, a.publisher, a.registry, cfg.EventDestination, cfg.OutboxPeriod, cfg.OutboxLimit, log)

	return a, nil
}

func (a *App) openPrimary(ctx context.Context) error {
	dialect, dsn := sqldb.SQLite, a.cfg.SQLitePath
	if a.cfg.Deployment == config.DeploymentCloud {
		dialect, dsn = sqldb.Postgres, a.cfg.PostgresDSN
	}

	db, err := sqldb.Open(dialect, dsn)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := sqlstore.InitSchema(ctx, db, dialect); err != nil {
		return err
	}

	a.repo = sqlstore.NewCatalogRepo(db, dialect)
	a.outbox = sqldb.NewOutboxRepo(db, dialect)
	a.log.Info("✅ Primary store ready", zap.String("dialect", string(dialect)))
	return nil
}

func (a *App) openProjections(ctx context.Context) error {
	if a.cfg.Deployment == config.DeploymentLocal {
		a.games = memory.NewGameStore()
		a.promotions = memory.NewPromotionStore()
		a.search = memory.NewSearchIndex()
		a.facts = memory.NewEventStore()
		a.log.Info("⚡️ Proyecciones en memoria (deployment local)")
		return nil
	}

	client, err := mongodb.Connect(ctx, a.cfg.MongoURI)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })

	games := mongodb.NewGameStore(client, a.cfg.MongoDatabase)
	if err := games.EnsureIndexes(ctx); err != nil {
		return err
	}
	a.games = games
	a.promotions = mongodb.NewPromotionStore(client, a.cfg.MongoDatabase)

	es, err := elastic.NewClient(a.cfg.ElasticURLs)
	if err != nil {
		return err
	}
	index := elastic.NewSearchIndex(es, a.cfg.ElasticIndex)
	if err := index.EnsureIndex(ctx); err != nil {
		return err
	}
	a.search = index

	// El event store es opcional: sin él los hechos simplemente no se registran.
	facts, err := clickhouse.Open(ctx, a.cfg.ClickHouseAddr, a.cfg.ClickHouseDB)
	if err != nil {
		a.log.Warn("⚠️ ClickHouse no disponible, sin registro de hechos", zap.Error(err))
	} else {
		a.facts = facts
		a.closers = append(a.closers, facts.Close)
	}
	return nil
}

func (a *App) openTransport() error {
	switch a.cfg.Transport {
	case config.TransportKafka:
		writer := sharedEvents.NewKafkaWriter(a.cfg.KafkaBrokers)
		a.closers = append(a.closers, writer.Close)
		a.publisher = sharedEvents.NewKafkaPublisher(writer, a.log)
		a.log.Info("🚀 Usando Kafka como transporte", zap.Strings("brokers", a.cfg.KafkaBrokers))

	case config.TransportRedis:
		client, err := rueidis.NewClient(rueidis.ClientOption{InitAddress: []string{a.cfg.RedisAddr}})
		if err != nil {
			return fmt.Errorf("redis streams: %w", err)
		}
		a.closers = append(a.closers, func() error { client.Close(); return nil })
		a.streams = client
		a.publisher = sharedEvents.NewStreamPublisher(client, a.log)
		a.log.Info("🚀 Usando Redis Streams como transporte", zap.String("addr", a.cfg.RedisAddr))

	default:
		a.bus = sharedEvents.NewInMemoryBus(memoryBusBuffer, a.log)
		a.publisher = a.bus
		a.log.Info("⚡️ Usando transporte en memoria (canales de Go)")
	}
	return nil
}

// openCache usa Redis como nivel compartido si responde; si no, solo el nivel local.
func (a *App) openCache(ctx context.Context) sharedCache.Cache {
	local := sharedCache.NewLocalStore(a.cfg.LocalCacheTTL, 2*a.cfg.LocalCacheTTL)
	a.closers = append(a.closers, func() error { local.Stop(); return nil })

	rdb := redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		a.log.Warn("⚠️ Redis no disponible, cache solo en memoria", zap.Error(err))
		_ = rdb.Close()
		return sharedCache.NewTwoTier(local, nil, a.cfg.LocalCacheTTL, a.cfg.CacheTTL, a.log)
	}

	a.closers = append(a.closers, rdb.Close)
	a.log.Info("✅ Redis conectado, cache de dos niveles habilitada")
	return sharedCache.NewTwoTier(local, sharedCache.NewRedisStore(rdb, a.cfg.CacheTTL), a.cfg.LocalCacheTTL, a.cfg.CacheTTL, a.log)
}

// Close libera los recursos en orden inverso de apertura.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Seed carga el catálogo inicial si el almacén primario está vacío.
func (a *App) Seed(ctx context.Context) (bool, error) {
	return application.Seed(ctx, a.Service, a.repo, a.log)
}

// Run arranca los componentes pedidos y bloquea hasta que ctx se cancele o uno falle.
func (a *App) Run(ctx context.Context, components ...Component) error {
	enabled := make(map[Component]bool, len(components))
	for _, c := range components {
		enabled[c] = true
	}

	if a.bus != nil && enabled[ComponentRelay] != enabled[ComponentProjector] {
		a.log.Warn("⚠️ Transporte en memoria: relay y project deben ejecutarse en el mismo proceso")
	}
	if a.cfg.Deployment == config.DeploymentLocal && enabled[ComponentAPI] && !enabled[ComponentProjector] {
		a.log.Warn("⚠️ Proyecciones en memoria: la API no verá cambios sin project en el mismo proceso")
	}

	g, gctx := errgroup.WithContext(ctx)

	if enabled[ComponentRelay] {
		g.Go(func() error {
			a.Relay.Start(gctx)
			return nil
		})
	}
	if enabled[ComponentProjector] {
		g.Go(func() error { return a.runProjector(gctx) })
	}
	if enabled[ComponentReconciler] {
		g.Go(func() error { return a.Reconciler.Run(gctx) })
	}
	if enabled[ComponentAPI] {
		g.Go(func() error { return a.runAPI(gctx, enabled) })
	}

	return g.Wait()
}

func (a *App) newDispatcher() (*sharedEvents.Dispatcher, error) {
	d := sharedEvents.NewDispatcher(a.registry, a.publisher, a.cfg.FailureDestination(), a.log,
		sharedEvents.WithMaxAttempts(a.cfg.HandlerAttempts),
		sharedEvents.WithBackoff(a.cfg.HandlerBackoff),
	)
	if err := catalogEvents.NewProjectionConsumer(a.Projector, projectionTimeout, a.log).Register(d); err != nil {
		return nil, fmt.Errorf("register projection handlers: %w", err)
	}
	return d, nil
}

func (a *App) runProjector(ctx context.Context) error {
	d, err := a.newDispatcher()
	if err != nil {
		return err
	}

	switch a.cfg.Transport {
	case config.TransportKafka:
		reader := sharedEvents.NewKafkaReader(a.cfg.KafkaBrokers, a.cfg.EventDestination, a.cfg.ConsumerGroup)
		defer reader.Close()
		return sharedEvents.NewKafkaConsumer(reader, d, a.log).Start(ctx)

	case config.TransportRedis:
		return sharedEvents.NewStreamConsumer(a.streams, a.cfg.EventDestination, a.cfg.ConsumerGroup, a.cfg.ConsumerName, d, a.log).Start(ctx)

	default:
		// En memoria nadie más lee el canal de fallidos: se drena al log.
		go a.bus.Consume(ctx, a.cfg.FailureDestination(), sharedBus.HandlerFunc(a.logDeadLetter))
		a.bus.Consume(ctx, a.cfg.EventDestination, d)
		return nil
	}
}

func (a *App) logDeadLetter(_ context.Context, env domainEvents.Envelope) error {
	a.log.Error("☠️ Dead letter",
		zap.String("message_id", env.ID.String()),
		zap.String("key", env.Key),
		zap.ByteString("payload", env.Payload),
	)
	return nil
}

func (a *App) runAPI(ctx context.Context, enabled map[Component]bool) error {
	var (
		components []catalogHttp.HealthReporter
		state      func() string
	)
	if enabled[ComponentRelay] {
		components = append(components, a.Relay.Health())
	}
	if enabled[ComponentReconciler] {
		components = append(components, a.Reconciler.Health())
		state = func() string { return string(a.Reconciler.State()) }
	}

	router := gin.Default()
	catalogHttp.RegisterCatalogRoutes(router, catalogHttp.NewCatalogHandler(a.Service, a.log))
	catalogHttp.RegisterHealthRoutes(router, catalogHttp.NewHealthHandler(a.outbox, state, components...))

	srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("🚀 Server running", zap.String("url", "http://localhost:"+a.cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	a.log.Info("Apagando servidor HTTP...")
	return srv.Shutdown(shutdownCtx)
}
