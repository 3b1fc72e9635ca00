package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"openchat/backend/internal/model"
)

type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) Repository {
	return &sqliteRepository{db: db}
}

func (r *sqliteRepository) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	query := `INSERT INTO conversations (id, user_id, title, model_id, system_prompt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		conv.ID, conv.UserID, conv.Title, conv.ModelID, conv.SystemPrompt, conv.CreatedAt, conv.UpdatedAt)
	return err
}

func (r *sqliteRepository) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	query := `SELECT id, user_id, title, model_id, system_prompt, current_generation_id, created_at, updated_at
		FROM conversations WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, conversationID)

	var conv model.Conversation
	var systemPrompt, currentGen sql.NullString
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.ModelID,
		&systemPrompt, &currentGen, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if systemPrompt.Valid {
		conv.SystemPrompt = systemPrompt.String
	}
	if currentGen.Valid {
		conv.CurrentGenerationID = &currentGen.String
	}
	return &conv, nil
}

func (r *sqliteRepository) GetConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	query := `SELECT id, user_id, title, model_id, system_prompt, current_generation_id, created_at, updated_at
		FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*model.Conversation
	for rows.Next() {
		var conv model.Conversation
		var systemPrompt, currentGen sql.NullString
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.ModelID,
			&systemPrompt, &currentGen, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		if systemPrompt.Valid {
			conv.SystemPrompt = systemPrompt.String
		}
		if currentGen.Valid {
			conv.CurrentGenerationID = &currentGen.String
		}
		convs = append(convs, &conv)
	}
	return convs, rows.Err()
}

func (r *sqliteRepository) UpdateConversationTitle(ctx context.Context, conversationID, newTitle string) error {
	query := "UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, newTitle, time.Now().UTC(), conversationID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	query := "DELETE FROM conversations WHERE id = ?"
	_, err := r.db.ExecContext(ctx, query, conversationID)
	return err
}

func (r *sqliteRepository) SetCurrentGeneration(ctx context.Context, conversationID, generationID string) error {
	query := "UPDATE conversations SET current_generation_id = ? WHERE id = ?"
	_, err := r.db.ExecContext(ctx, query, generationID, conversationID)
	return err
}

// ClearCurrentGeneration only resets the column while it still holds
// generationID. A later generation that already replaced the value is left
// untouched.
func (r *sqliteRepository) ClearCurrentGeneration(ctx context.Context, conversationID, generationID string) error {
	query := "UPDATE conversations SET current_generation_id = NULL WHERE id = ? AND current_generation_id = ?"
	_, err := r.db.ExecContext(ctx, query, conversationID, generationID)
	return err
}

// AddMessage inserts the message and bumps the conversation timestamp in one
// transaction.
func (r *sqliteRepository) AddMessage(ctx context.Context, msg *model.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertQuery := `INSERT INTO messages (id, conversation_id, role, content, model_id, generation_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, insertQuery,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.ModelID, msg.GenerationID, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}

	updateQuery := "UPDATE conversations SET updated_at = ? WHERE id = ?"
	if _, err = tx.ExecContext(ctx, updateQuery, time.Now().UTC(), msg.ConversationID); err != nil {
		return fmt.Errorf("could not update conversation timestamp: %w", err)
	}

	return tx.Commit()
}

func (r *sqliteRepository) GetMessage(ctx context.Context, messageID string) (*model.Message, error) {
	query := `SELECT id, conversation_id, role, content, model_id, generation_id, timestamp
		FROM messages WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, messageID)

	msg, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (r *sqliteRepository) GetMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	query := `SELECT id, conversation_id, role, content, model_id, generation_id, timestamp
		FROM messages WHERE conversation_id = ? ORDER BY timestamp ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

func (r *sqliteRepository) UpdateMessageContent(ctx context.Context, messageID, content string) error {
	query := "UPDATE messages SET content = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, content, messageID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteRepository) DeleteMessage(ctx context.Context, messageID string) error {
	query := "DELETE FROM messages WHERE id = ?"
	_, err := r.db.ExecContext(ctx, query, messageID)
	return err
}

// DeleteAssistantMessagesAfter removes assistant turns newer than the given
// timestamp. Used by regenerate so the replacement answer does not coexist
// with the superseded one.
func (r *sqliteRepository) DeleteAssistantMessagesAfter(ctx context.Context, conversationID string, after time.Time) error {
	query := "DELETE FROM messages WHERE conversation_id = ? AND role = 'assistant' AND timestamp > ?"
	_, err := r.db.ExecContext(ctx, query, conversationID, after)
	return err
}

func (r *sqliteRepository) GetModel(ctx context.Context, modelID string) (*model.AIModel, error) {
	query := `SELECT id, model_name, display_name, base_url, api_key, max_history_messages, default_params, is_active
		FROM models WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, modelID)

	m, err := scanModel(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *sqliteRepository) GetModels(ctx context.Context) ([]*model.AIModel, error) {
	query := `SELECT id, model_name, display_name, base_url, api_key, max_history_messages, default_params, is_active
		FROM models WHERE is_active = TRUE ORDER BY display_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []*model.AIModel
	for rows.Next() {
		m, err := scanModel(rows.Scan)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

func scanMessage(scan func(dest ...any) error) (*model.Message, error) {
	var msg model.Message
	var modelID, generationID sql.NullString
	if err := scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
		&modelID, &generationID, &msg.Timestamp); err != nil {
		return nil, err
	}
	if modelID.Valid {
		msg.ModelID = &modelID.String
	}
	if generationID.Valid {
		msg.GenerationID = &generationID.String
	}
	return &msg, nil
}

func scanModel(scan func(dest ...any) error) (*model.AIModel, error) {
	var m model.AIModel
	var params sql.NullString
	if err := scan(&m.ID, &m.ModelName, &m.DisplayName, &m.BaseURL, &m.APIKey,
		&m.MaxHistoryMessages, &params, &m.IsActive); err != nil {
		return nil, err
	}
	if params.Valid {
		m.DefaultParams = []byte(params.String)
	}
	return &m, nil
}
