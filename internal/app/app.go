package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"openchat/backend/internal/api"
	"openchat/backend/internal/config"
	"openchat/backend/internal/database"
	"openchat/backend/internal/event"
	"openchat/backend/internal/llm"
	"openchat/backend/internal/repository"
	"openchat/backend/internal/service"
	"openchat/backend/internal/stopstore"
	"openchat/backend/internal/ws"
)

// App holds the wired application: storage, services, transports and the
// HTTP server, ready to run.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Server *http.Server

	redisClient *redis.Client
}

// NewApp builds the full dependency graph from configuration.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("could not initialize database: %w", err)
	}
	slog.Info("Successfully connected to SQLite database.")

	a := &App{Config: cfg, DB: db}

	// A Redis address means multiple processes share stop markers; without
	// one the in-memory store is enough.
	var stops stopstore.Store
	if cfg.RedisAddr != "" {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		stops = stopstore.NewRedisStore(a.redisClient, cfg.StopTTL())
		slog.Info("Using Redis stop-request store", "addr", cfg.RedisAddr)
	} else {
		stops = stopstore.NewMemoryStore(cfg.StopTTL())
		slog.Info("Using in-memory stop-request store")
	}

	repo := repository.NewSQLiteRepository(db)
	settingsService := service.NewSettingsService(db, repo)

	appSettings, err := settingsService.InitAndGet(context.Background(), cfg.InitialSystemPrompt)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not initialize application settings: %w", err)
	}
	slog.Info("Loaded application settings", "default_model", appSettings.DefaultModel)

	assembler := service.NewContextAssembler(service.AssemblerConfig{
		ImageStrategy: cfg.ImageContextStrategy,
		MaxImages:     cfg.MaxImagesInContext,
		UploadDir:     cfg.UploadDir,
	})
	provider := llm.NewClient(cfg.ProviderTimeout())
	generationService := service.NewGenerationService(repo, provider, stops, assembler, service.GenerationConfig{
		HeartbeatInterval: cfg.HeartbeatInterval(),
		InterChunkTimeout: cfg.InterChunkTimeout(),
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff(),
	})
	chatService := service.NewChatService(repo, settingsService, cfg.UploadDir)

	broker := event.NewBroker()
	chatHandler := api.NewChatHandler(chatService, generationService, settingsService, broker)
	wsHandler := ws.NewHandler(chatService, generationService, stops, broker)
	router := api.NewRouter(chatHandler, wsHandler)

	a.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}
	return a, nil
}

// Close releases the app's long-lived resources.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
	}
	if err := a.DB.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}
}

// Run loads configuration, builds the app and serves until the listener
// fails. The return value is the process exit code.
func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)
	logConfigSource()

	a, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to build application", "error", err)
		return 1
	}
	defer a.Close()

	slog.Info("Starting server", "port", cfg.AppPort)
	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		return 1
	}
	return 0
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
