// Package main wires up the Yajutter search companion service: an API
// client, the post/user caches, the progressive search engine, credential
// storage, and the HTTP facade that streams search output.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"yajutter-search/api"
	"yajutter-search/cache"
	"yajutter-search/credstore"
	"yajutter-search/search"
	"yajutter-search/server"
)

type config struct {
	Port                  string        `env:"PORT" envDefault:"8080"`
	APIBaseURL            string        `env:"YAJUTTER_API_BASE"`
	StorageBucket         string        `env:"STORAGE_BUCKET"`
	LocalStorage          string        `env:"LOCAL_STORAGE"`
	GoogleCredentialsJSON string        `env:"GOOGLE_CREDENTIALS_JSON"`
	CacheTTL              time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	AllowedOrigins        []string      `env:"ALLOWED_ORIGINS" envDefault:"https://yajutter.yajuvideo.in"`
}

func main() {
	ctx := context.Background()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, relying on environment variables")
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Error("Failed to parse configuration", "error", err)
		os.Exit(1)
	}

	// Default to local development mode if no bucket specified.
	if cfg.StorageBucket == "" && cfg.LocalStorage == "" {
		cfg.LocalStorage = "./data"
		logger.Info("No STORAGE_BUCKET set, defaulting to local development mode", "storage_path", cfg.LocalStorage)
	}

	var storageClient *storage.Client
	if cfg.LocalStorage != "" {
		if err := os.MkdirAll(cfg.LocalStorage, 0o755); err != nil {
			logger.Error("Failed to create local storage directory", "error", err)
			os.Exit(1)
		}
	} else {
		var opts []option.ClientOption
		if cfg.GoogleCredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleCredentialsJSON)))
		}
		var err error
		storageClient, err = storage.NewClient(ctx, opts...)
		if err != nil {
			logger.Error("Failed to initialize storage client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := storageClient.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}()
	}

	creds := credstore.New(storageClient, cfg.StorageBucket, cfg.LocalStorage, logger)

	postsCache := cache.NewPostsCache(cfg.CacheTTL)
	userCache := cache.NewUserCache()
	creds.OnChange(func() {
		postsCache.Clear()
		userCache.Clear()
		logger.Info("Credential changed, caches cleared")
	})

	httpClient := &http.Client{Timeout: 30 * time.Second}
	transport := api.New(httpClient, cfg.APIBaseURL, logger)
	engine := search.New(transport, postsCache, userCache, logger)
	controller := search.NewController(engine, logger)

	srv := server.New(&server.Config{
		Searcher:       controller,
		Credentials:    creds,
		Users:          userCache,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	if err := srv.ListenAndServe(cfg.Port); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
