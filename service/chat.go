package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/licito/backend/model"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/store"
)

const (
	defaultChatTitle = "Nova conversa"
	maxChatTitle     = 80
)

// ChatService persists assistant conversations. Chats are private to their owner.
type ChatService struct {
	chats store.Chats
	clock clock
}

func NewChatService(chats store.Chats) *ChatService {
	return &ChatService{chats: chats}
}

// SaveMessageInput is one assembled message posted by the client after streaming
type SaveMessageInput struct {
	ChatID  string        `json:"chatId"`
	Message ClientMessage `json:"message"`
}

// ClientMessage is a chat message as the client holds it
type ClientMessage struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Parts   json.RawMessage `json:"parts,omitempty"`
}

// SaveResult reports whether the message was stored by this call
type SaveResult struct {
	Success   bool   `json:"success"`
	Saved     bool   `json:"saved"`
	MessageID string `json:"messageId"`
}

func (s *ChatService) Create(ctx context.Context, actor Actor, title string) (*model.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultChatTitle
	}
	if r := []rune(title); len(r) > maxChatTitle {
		title = string(r[:maxChatTitle])
	}

	now := s.clock.now()
	chat := &model.Chat{
		ID:        newID(),
		UserID:    actor.ID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.chats.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ChatService) List(ctx context.Context, actor Actor) ([]*model.Chat, error) {
	chats, err := s.chats.ListChats(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []*model.Chat{}
	}
	return chats, nil
}

// owned loads the chat, reporting chats of other users as missing
func (s *ChatService) owned(ctx context.Context, actor Actor, chatID string) (*model.Chat, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != actor.ID {
		return nil, store.ErrNotFound
	}
	return chat, nil
}

func (s *ChatService) Messages(ctx context.Context, actor Actor, chatID string) ([]model.ChatMessage, error) {
	if _, err := s.owned(ctx, actor, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return msgs, nil
}

// SaveMessage stores one message. Saving an id that is already stored
// succeeds without writing.
func (s *ChatService) SaveMessage(ctx context.Context, actor Actor, in SaveMessageInput) (SaveResult, error) {
	msg := in.Message
	msg.ID = strings.TrimSpace(msg.ID)
	if in.ChatID == "" || msg.ID == "" {
		return SaveResult{}, invalid("Conversa e identificador da mensagem são obrigatórios")
	}
	if msg.Role != model.MessageUser && msg.Role != model.MessageAssistant {
		return SaveResult{}, invalid("Papel da mensagem inválido")
	}
	if len(msg.Parts) > 0 && !json.Valid(msg.Parts) {
		return SaveResult{}, invalid("Conteúdo da mensagem inválido")
	}
	if _, err := s.owned(ctx, actor, in.ChatID); err != nil {
		return SaveResult{}, err
	}

	saved, err := s.chats.SaveMessage(ctx, &model.ChatMessage{
		ID:        msg.ID,
		ChatID:    in.ChatID,
		Role:      msg.Role,
		Content:   msg.Content,
		Parts:     msg.Parts,
		CreatedAt: s.clock.now(),
	})
	if err != nil {
		return SaveResult{}, err
	}
	if !saved {
		logger.Debug(ctx, "chat message already stored", "chat_id", in.ChatID, "message_id", msg.ID)
	}
	return SaveResult{Success: true, Saved: saved, MessageID: msg.ID}, nil
}
