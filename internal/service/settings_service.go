package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	app_errors "openchat/backend/internal/errors"
	"openchat/backend/internal/repository"
)

const (
	settingSystemPrompt = "system_prompt"
	settingDefaultModel = "default_model"
)

// Settings holds the dynamic application settings stored in the database.
type Settings struct {
	SystemPrompt string `json:"system_prompt"`
	DefaultModel string `json:"default_model"`
}

// SettingsService reads and writes the settings table. It keeps a direct
// database handle since settings are a flat key/value set that none of the
// repository's domain methods fit.
type SettingsService struct {
	db   *sql.DB
	repo repository.Repository
}

func NewSettingsService(db *sql.DB, repo repository.Repository) *SettingsService {
	return &SettingsService{db: db, repo: repo}
}

// InitAndGet returns the stored settings, initializing any missing key on
// first run: the system prompt from configuration, the default model from
// the first configured model.
func (s *SettingsService) InitAndGet(ctx context.Context, initialSystemPrompt string) (*Settings, error) {
	settings, found, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := found[settingSystemPrompt]; !ok {
		settings.SystemPrompt = initialSystemPrompt
		if err := s.store(ctx, settingSystemPrompt, settings.SystemPrompt); err != nil {
			return nil, err
		}
	}
	if _, ok := found[settingDefaultModel]; !ok {
		models, err := s.repo.GetModels(ctx)
		if err != nil {
			slog.Warn("Could not list models during settings init", "error", err)
		} else if len(models) > 0 {
			settings.DefaultModel = models[0].ID
			slog.Info("Selected default model", "model_id", settings.DefaultModel)
		}
		if err := s.store(ctx, settingDefaultModel, settings.DefaultModel); err != nil {
			return nil, err
		}
	}
	return settings, nil
}

// Get retrieves the current settings.
func (s *SettingsService) Get(ctx context.Context) (*Settings, error) {
	settings, _, err := s.load(ctx)
	return settings, err
}

// Save validates and persists the settings. The default model must exist
// when set.
func (s *SettingsService) Save(ctx context.Context, settings *Settings) error {
	if settings.DefaultModel != "" {
		if _, err := s.repo.GetModel(ctx, settings.DefaultModel); err != nil {
			return fmt.Errorf("%w: unknown model %q", app_errors.ErrValidation, settings.DefaultModel)
		}
	}
	if err := s.store(ctx, settingSystemPrompt, settings.SystemPrompt); err != nil {
		return err
	}
	return s.store(ctx, settingDefaultModel, settings.DefaultModel)
}

func (s *SettingsService) load(ctx context.Context) (*Settings, map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, nil, fmt.Errorf("could not read settings: %w", err)
	}
	defer rows.Close()

	settings := &Settings{}
	found := make(map[string]bool)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, nil, fmt.Errorf("could not scan setting: %w", err)
		}
		found[key] = true
		switch key {
		case settingSystemPrompt:
			settings.SystemPrompt = value
		case settingDefaultModel:
			settings.DefaultModel = value
		}
	}
	return settings, found, rows.Err()
}

func (s *SettingsService) store(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("could not store setting %s: %w", key, err)
	}
	return nil
}
