package service_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "openchat/backend/internal/errors"
	"openchat/backend/internal/model"
	mock_repo "openchat/backend/internal/repository/mocks"
	"openchat/backend/internal/service"
)

func setupSettingsService(t *testing.T) (*service.SettingsService, *mock_repo.MockRepository, sqlmock.Sqlmock) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := mock_repo.NewMockRepository(t)
	return service.NewSettingsService(db, repo), repo, mockDB
}

func TestSettingsService_Get(t *testing.T) {
	svc, _, mockDB := setupSettingsService(t)

	mockDB.ExpectQuery("SELECT key, value FROM settings").
		WillReturnRows(settingsRows("be helpful", "m1"))

	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "be helpful", settings.SystemPrompt)
	assert.Equal(t, "m1", settings.DefaultModel)
}

func TestSettingsService_InitAndGet(t *testing.T) {
	t.Run("AlreadyInitialized", func(t *testing.T) {
		svc, _, mockDB := setupSettingsService(t)

		mockDB.ExpectQuery("SELECT key, value FROM settings").
			WillReturnRows(settingsRows("stored prompt", "m2"))

		settings, err := svc.InitAndGet(context.Background(), "config prompt")
		require.NoError(t, err)
		assert.Equal(t, "stored prompt", settings.SystemPrompt)
		assert.Equal(t, "m2", settings.DefaultModel)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("FirstRunPicksFirstModel", func(t *testing.T) {
		svc, repo, mockDB := setupSettingsService(t)

		mockDB.ExpectQuery("SELECT key, value FROM settings").
			WillReturnRows(sqlmock.NewRows([]string{"key", "value"}))
		mockDB.ExpectExec("INSERT INTO settings").
			WithArgs("system_prompt", "config prompt").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mockDB.ExpectExec("INSERT INTO settings").
			WithArgs("default_model", "m1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		repo.On("GetModels", mock.Anything).Return([]*model.AIModel{
			{ID: "m1", ModelName: "first"},
			{ID: "m2", ModelName: "second"},
		}, nil).Once()

		settings, err := svc.InitAndGet(context.Background(), "config prompt")
		require.NoError(t, err)
		assert.Equal(t, "config prompt", settings.SystemPrompt)
		assert.Equal(t, "m1", settings.DefaultModel)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})
}

func TestSettingsService_Save(t *testing.T) {
	t.Run("ValidModel", func(t *testing.T) {
		svc, repo, mockDB := setupSettingsService(t)

		repo.On("GetModel", mock.Anything, "m1").Return(&model.AIModel{ID: "m1"}, nil).Once()
		mockDB.ExpectExec("INSERT INTO settings").
			WithArgs("system_prompt", "new prompt").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mockDB.ExpectExec("INSERT INTO settings").
			WithArgs("default_model", "m1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := svc.Save(context.Background(), &service.Settings{SystemPrompt: "new prompt", DefaultModel: "m1"})
		assert.NoError(t, err)
		assert.NoError(t, mockDB.ExpectationsWereMet())
	})

	t.Run("UnknownModel", func(t *testing.T) {
		svc, repo, _ := setupSettingsService(t)

		repo.On("GetModel", mock.Anything, "ghost").
			Return(nil, app_errors.ErrNotFound).Once()

		err := svc.Save(context.Background(), &service.Settings{DefaultModel: "ghost"})
		assert.ErrorIs(t, err, app_errors.ErrValidation)
	})
}
