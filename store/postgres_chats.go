package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/licito/backend/model"
)

func (p *Postgres) CreateChat(ctx context.Context, c *model.Chat) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO chats (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt,
	)
	return translate(err)
}

func (p *Postgres) GetChat(ctx context.Context, id string) (*model.Chat, error) {
	var c model.Chat
	err := p.db.QueryRowContext(ctx, `
		SELECT id::text, user_id::text, title, created_at, updated_at
		FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (p *Postgres) ListChats(ctx context.Context, userID string) ([]*model.Chat, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id::text, user_id::text, title, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var chats []*model.Chat
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, &c)
	}
	return chats, rows.Err()
}

func (p *Postgres) SaveMessage(ctx context.Context, m *model.ChatMessage) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	parts := sql.NullString{String: string(m.Parts), Valid: len(m.Parts) > 0}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, chat_id, role, content, parts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chat_id, id) DO NOTHING`,
		m.ID, m.ChatID, m.Role, m.Content, parts, m.CreatedAt,
	)
	if err != nil {
		return false, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = $2 WHERE id = $1`, m.ChatID, m.CreatedAt,
	); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (p *Postgres) ListMessages(ctx context.Context, chatID string) ([]model.ChatMessage, error) {
	if _, err := p.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, chat_id::text, role, content, parts, created_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY created_at, id`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []model.ChatMessage{}
	for rows.Next() {
		var m model.ChatMessage
		var parts sql.NullString
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &parts, &m.CreatedAt); err != nil {
			return nil, err
		}
		if parts.Valid {
			m.Parts = json.RawMessage(parts.String)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
