package main

import (
	"boardsync/internal/auth"
	"boardsync/internal/config"
	"boardsync/internal/database/db_client"
	"boardsync/internal/http/http_server"
	"boardsync/internal/http/roomhandler"
	"boardsync/internal/redis/cachekeeper"
	"boardsync/internal/redis/ingest"
	"boardsync/internal/redis/redis_client"
	"boardsync/internal/redis/roomcache"
	"boardsync/internal/services/board"
	"boardsync/internal/store/chatlog"
	"boardsync/internal/ws"
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//go:generate go tool swag init --outputTypes json,yaml --output api_specs

//	@title						boardsync API
//	@version					1.0
//	@description				History and membership endpoints of the collaborative board. Live traffic uses the /ws socket.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization

func main() {
	// 1. Load configuration (the logger is not configured yet, so use a
	//    bootstrap one for config errors)
	boot, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(boot)

	cfg, err := config.LoadConfig()
	if err != nil {
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}

	Log, err := config.NewLogger(cfg.LogFormat)
	if err != nil {
		boot.Fatal("Failed to build logger", zap.Error(err))
	}
	defer Log.Sync()
	zap.ReplaceGlobals(Log)
	Log.Debug("Configuration loaded successfully",
		zap.String("store", cfg.StoreBackend),
		zap.String("fanout", cfg.FanoutMode),
		zap.Bool("redis", cfg.RedisEnabled))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Room log
	roomLog, closeLog := openLog(ctx, cfg)
	defer closeLog()

	// 4. Redis: history cache, cross-instance fan-out, ingest stream
	var redisClient *redis.Client
	var cache *roomcache.Cache
	if cfg.RedisEnabled {
		redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort), cfg.RedisPassword, cfg.RedisDb)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
		cache = roomcache.New(redisClient, cfg.HistoryMaxLimit, cfg.CacheTTL)
		Log.Debug("Redis client created successfully")
	}

	// 5. Registry + fan-out
	registry := ws.NewRegistry(cfg.WsSendBuffer)
	hub := ws.NewHub(registry)
	var fanout board.Fanout = hub
	if cfg.FanoutMode == config.FanoutRedis {
		rf := ws.NewRedisFanout(redisClient, hub, registry)
		defer rf.Close()
		fanout = rf
	}

	// 6. Board service
	var boardCache board.Cache
	if cache != nil {
		boardCache = cache
	}
	boardService := board.NewBoardService(roomLog, boardCache, fanout, board.Options{
		PersistTimeout:  cfg.PersistTimeout,
		HistoryCapacity: cfg.HistoryMaxLimit,
	})

	// 7. WS + HTTP servers
	verifier := auth.NewJwtVerifier(cfg.JwtSecret)
	wsSrv := ws.NewWsServer(registry, verifier, boardService, ws.Options{
		ReadLimit:  cfg.WsReadLimit,
		SendBuffer: cfg.WsSendBuffer,
	})
	roomHandler := roomhandler.New(boardService, registry, verifier, cfg.HistoryLimit, cfg.HistoryMaxLimit)
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, roomHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		return httpServer.Dispose()
	})

	// 8. Background: keep occupied rooms' history cached
	if cache != nil {
		g.Go(func() error {
			cachekeeper.Run(gctx, registry, cache, cfg.CacheKeepEvery)
			return nil
		})
	}

	// 9. Background: shapes injected through the ingest stream
	if cfg.IngestEnabled {
		name := cfg.InstanceName
		if name == "" {
			name, _ = os.Hostname()
		}
		consumer := ingest.NewConsumer(redisClient, boardService, name)
		g.Go(func() error { return consumer.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		Log.Error("server stopped", zap.Error(err))
		return
	}
	Log.Info("server stopped")
}

func openLog(ctx context.Context, cfg *config.Config) (chatlog.ILog, func()) {
	var db *sql.DB
	var err error

	switch cfg.StoreBackend {
	case config.StoreMemory:
		zap.L().Warn("room log kept in memory; history is lost on restart")
		return chatlog.NewMemoryLog(), func() {}

	case config.StoreSQLite:
		if db, err = db_client.OpenSQLite(cfg.SqlitePath); err != nil {
			zap.L().Fatal("sqlite-open", zap.Error(err))
		}
		if err = db_client.MigrateSQLite(ctx, db); err != nil {
			zap.L().Fatal("sqlite-migrate", zap.Error(err))
		}
		return chatlog.NewSQLiteLog(db), func() { db.Close() }

	default:
		db, err = db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			zap.L().Fatal("pg-open", zap.Error(err))
		}
		if err = db_client.Migrate(ctx, db); err != nil {
			zap.L().Fatal("pg-migrate", zap.Error(err))
		}
		return chatlog.NewPostgresLog(db), func() { db.Close() }
	}
}
