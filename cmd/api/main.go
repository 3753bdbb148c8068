package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/hemanthhhhhh/API-Server/internal/broker"
	"github.com/hemanthhhhhh/API-Server/internal/dispatch"
	"github.com/hemanthhhhhh/API-Server/internal/dispatch/docker"
	"github.com/hemanthhhhhh/API-Server/internal/dispatch/ecs"
	httpx "github.com/hemanthhhhhh/API-Server/internal/http"
	"github.com/hemanthhhhhh/API-Server/internal/relay"
	"github.com/hemanthhhhhh/API-Server/internal/ws"
	"github.com/hemanthhhhhh/API-Server/pkg/config"
	"github.com/hemanthhhhhh/API-Server/pkg/logger"
)

func main() {
	// a missing .env is fine outside local development
	_ = godotenv.Load()
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	subscriber, err := broker.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Error("invalid redis url", "error", err)
		os.Exit(1)
	}
	defer subscriber.Close()
	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	if err := subscriber.Ping(pingCtx); err != nil {
		log.Warn("redis ping failed, relay will keep retrying", "error", err)
	} else {
		log.Info("connected to redis")
	}
	cancelPing()

	runner, closeRunner, err := newTaskRunner(ctx, cfg, log)
	if err != nil {
		log.Error("failed to configure task runner", "backend", cfg.ExecutorBackend, "error", err)
		os.Exit(1)
	}
	defer closeRunner()

	dispatchCfg := dispatch.Config{
		ClusterID:        cfg.ClusterID,
		TaskTemplateID:   cfg.TaskTemplateID,
		SubnetIDs:        cfg.SubnetIDs,
		SecurityGroupIDs: cfg.SecurityGroupIDs,
		Credentials: dispatch.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Region:          cfg.AWSRegion,
		},
	}
	deploySvc := dispatch.New(runner, dispatchCfg, cfg.TrackingURLTemplate, cfg.DispatchTimeout, log)

	hub := ws.NewHub()
	logRelay := relay.New(subscriber, hub, relay.Options{
		Pattern:        cfg.LogChannelPattern,
		InitialBackoff: cfg.RelayBackoffInitial,
		MaxBackoff:     cfg.RelayBackoffMax,
	}, log)
	gateway := ws.NewGateway(hub, log, logRelay.Prefix(), cfg.WSPingInterval)

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		logRelay.Run(ctx)
	}()

	limiter := httpx.NewMemoryRateLimiter()
	if cfg.RateLimitRedis {
		limiter.Close()
		limiter = httpx.NewRedisRateLimiter(subscriber.Client(), log)
	}

	router := httpx.NewRouter(log, deploySvc, gateway, limiter, subscriber.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors.AllowAll().Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv.RegisterOnShutdown(router.StopStreams)

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "executor", cfg.ExecutorBackend)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		<-relayDone
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func newTaskRunner(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (dispatch.TaskRunner, func(), error) {
	switch strings.ToLower(cfg.ExecutorBackend) {
	case "", "ecs":
		runner, err := ecs.New(ctx, dispatch.Credentials{
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Region:          cfg.AWSRegion,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return runner, func() {}, nil
	case "docker":
		client, err := docker.New(cfg.DockerHost)
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			log.Warn("docker daemon unreachable", "error", err)
		}
		return docker.NewRunner(client, cfg.DockerImage, log), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown executor backend %q", cfg.ExecutorBackend)
	}
}
