// Package store persists contracts, users, checklists, notices and chats.
// Memory backs tests and local development; Postgres backs production.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/licito/backend/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrDuplicate = errors.New("duplicate")
)

type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	UpdateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

type Contracts interface {
	CreateContract(ctx context.Context, c *model.Contract) error
	UpdateContract(ctx context.Context, c *model.Contract) error
	DeleteContract(ctx context.Context, id string) error
	GetContract(ctx context.Context, id string) (*model.Contract, error)
	GetContractByNumber(ctx context.Context, number string) (*model.Contract, error)
	ListContracts(ctx context.Context, f model.ContractFilter) ([]*model.Contract, error)
}

type Checklists interface {
	CreateDefinition(ctx context.Context, d *model.ChecklistDefinition) error
	ListDefinitions(ctx context.Context, t model.FiscalType) ([]model.ChecklistDefinition, error)
	// EnsureItems creates the missing items of a contract, one per definition.
	EnsureItems(ctx context.Context, contractID string, at time.Time) error
	// ListItems returns items with definition, history and clarifications
	// in chronological order. An empty type lists both categories.
	ListItems(ctx context.Context, contractID string, t model.FiscalType) ([]model.ChecklistItem, error)
	GetItem(ctx context.Context, id string) (*model.ChecklistItem, error)
	// RecordObservation appends the entry and sets the item's status,
	// current observation and updated_at from it, atomically.
	RecordObservation(ctx context.Context, e model.ObservationEntry) error
	CreateClarification(ctx context.Context, c *model.Clarification) error
	GetClarification(ctx context.Context, id string) (*model.Clarification, error)
	// AnswerClarification fails with ErrConflict when already answered.
	AnswerClarification(ctx context.Context, id, answer string, by model.UserRef, at time.Time) error
}

type Notices interface {
	CreateNotice(ctx context.Context, n *model.ClarificationNotice) error
	ListNotices(ctx context.Context, contractID string) ([]model.ClarificationNotice, error)
}

type Chats interface {
	CreateChat(ctx context.Context, c *model.Chat) error
	GetChat(ctx context.Context, id string) (*model.Chat, error)
	ListChats(ctx context.Context, userID string) ([]*model.Chat, error)
	// SaveMessage reports false when a message with the same id already exists.
	SaveMessage(ctx context.Context, m *model.ChatMessage) (bool, error)
	ListMessages(ctx context.Context, chatID string) ([]model.ChatMessage, error)
}

// Store is the full persistence surface
type Store interface {
	Users
	Contracts
	Checklists
	Notices
	Chats
}
