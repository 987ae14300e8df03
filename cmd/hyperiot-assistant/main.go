package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/config"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/httpapi"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/hyperiot"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/knowledge"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/observability"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/projects"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/ratelimit"
	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/tools"
)

func main() {
	configPath := flag.String("config", os.Getenv("HYPERIOT_ASSISTANT_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	shutdownObs, promHandler, tracer, err := observability.SetupObservability(cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to set up observability", "error", err)
		os.Exit(1)
	}
	defer shutdownObs()

	kb, err := knowledge.Load(cfg.KnowledgePath)
	if err != nil {
		slog.Error("failed to load knowledge", "path", cfg.KnowledgePath, "error", err)
		os.Exit(1)
	}

	client := hyperiot.New(cfg.HyperIoTBaseURL,
		hyperiot.WithTimeout(cfg.RequestTimeout),
		hyperiot.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
	)

	var store projects.Store
	rdb := newRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
		store = projects.NewRedisStore(rdb, cfg.RedisPrefix)
	}
	limiter := ratelimit.New(rdb, cfg.RedisPrefix, cfg.RateLimitRPS, cfg.RateLimitBurst)

	registry := tools.NewRegistry(projects.NewIndex(client, store), client, kb)
	handler := httpapi.NewHandler(registry, cfg.ServiceName)
	router := httpapi.NewRouter(handler, promHandler, tracer, limiter.Middleware(ratelimit.KeyByUserOrIP))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// tool calls wait on the platform, so leave room for a full upstream timeout
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("hyperiot-assistant started", "port", cfg.Port, "hyperiot", cfg.HyperIoTBaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newRedis connects to Redis when an address is configured. A server that
// does not answer at startup is treated as absent.
func newRedis(cfg *config.Config) *redis.Client {
	if !cfg.UseRedis() {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, using in-memory project index", "addr", cfg.RedisAddr, "error", err)
		_ = rdb.Close()
		return nil
	}
	slog.Info("redis connected", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
	return rdb
}

func setupLogging(level, format string) {
	lvl := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
