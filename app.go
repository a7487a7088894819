package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/licito/backend/config"
	"github.com/licito/backend/middleware"
	"github.com/licito/backend/service"
	"github.com/licito/backend/store"
)

// openStore connects the configured store. The returned close func is never nil.
func openStore(cfg *config.DatabaseConfig) (store.Store, *sql.DB, func(), error) {
	switch cfg.Driver {
	case "memory":
		slog.Warn("using in-memory store, data is lost on restart")
		return store.NewMemory(), nil, func() {}, nil
	case "postgres":
		db, err := store.OpenPostgres(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		return store.NewPostgres(db), db, func() { db.Close() }, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// newLimiter shares counters through redis when configured, otherwise
// keeps them in process memory.
func newLimiter(ctx context.Context, cfg *config.Config) (middleware.Limiter, func()) {
	window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	if cfg.Redis.Addr == "" {
		return middleware.NewRateLimiter(cfg.RateLimit.Requests, window), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, rate limiting in memory", "addr", cfg.Redis.Addr, "error", err)
		client.Close()
		return middleware.NewRateLimiter(cfg.RateLimit.Requests, window), func() {}
	}
	slog.Info("rate limiting through redis", "addr", cfg.Redis.Addr)
	return middleware.NewRedisRateLimiter(client, cfg.RateLimit.Requests, window), func() { client.Close() }
}

// services holds everything the router serves
type services struct {
	users     *service.UserService
	contracts *service.ContractService
	checklist *service.ChecklistService
	notices   *service.NoticeService
	chats     *service.ChatService
	assistant *service.Assistant
	reports   *service.ReportService
	notify    *service.Dispatcher
}

func newServices(ctx context.Context, cfg *config.Config, s store.Store) (*services, error) {
	contracts := service.NewContractService(s)
	checklist := service.NewChecklistService(s)
	dispatcher := service.NewDispatcher(s, service.NewEmailClient(&cfg.Email), service.NewWhatsAppClient(&cfg.WhatsApp))

	var chatModel service.ChatModel = service.UnavailableModel{}
	gemini, err := service.NewGeminiModel(ctx, &cfg.Assistant)
	switch {
	case err == nil:
		chatModel = gemini
		slog.Info("assistant model configured", "model", cfg.Assistant.Model)
	case errors.Is(err, service.ErrNotConfigured):
		slog.Warn("assistant model not configured, chat is disabled")
	default:
		return nil, fmt.Errorf("failed to initialize assistant model: %w", err)
	}

	var storage service.ObjectStorage
	minioStorage, err := service.NewMinioStorage(&cfg.Minio)
	switch {
	case err == nil:
		if err := minioStorage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure MINIO bucket: %w", err)
		}
		storage = minioStorage
	case errors.Is(err, service.ErrNotConfigured):
		slog.Warn("object storage not configured, report publishing is disabled")
	default:
		return nil, fmt.Errorf("failed to initialize MINIO storage: %w", err)
	}

	return &services{
		users:     service.NewUserService(s),
		contracts: contracts,
		checklist: checklist,
		notices:   service.NewNoticeService(s, dispatcher),
		chats:     service.NewChatService(s),
		assistant: service.NewAssistant(chatModel, dispatcher, service.NewQueryService(contracts, checklist), &cfg.Assistant),
		reports:   service.NewReportService(contracts, checklist, storage, cfg.Minio.ExpireDays),
		notify:    dispatcher,
	}, nil
}
