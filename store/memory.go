package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/licito/backend/model"
)

// Memory is an in-memory Store. It is used by tests and by the "memory"
// database driver for local development; data is lost on restart.
type Memory struct {
	mu sync.RWMutex

	users          map[string]*model.User
	contracts      map[string]*model.Contract
	definitions    map[string]*model.ChecklistDefinition
	items          map[string]*model.ChecklistItem
	history        map[string][]model.ObservationEntry
	clarifications map[string]*model.Clarification
	itemClars      map[string][]string
	notices        map[string][]model.ClarificationNotice
	chats          map[string]*model.Chat
	messages       map[string][]model.ChatMessage
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	slog.Info("memory store initialized")
	return &Memory{
		users:          make(map[string]*model.User),
		contracts:      make(map[string]*model.Contract),
		definitions:    make(map[string]*model.ChecklistDefinition),
		items:          make(map[string]*model.ChecklistItem),
		history:        make(map[string][]model.ObservationEntry),
		clarifications: make(map[string]*model.Clarification),
		itemClars:      make(map[string][]string),
		notices:        make(map[string][]model.ClarificationNotice),
		chats:          make(map[string]*model.Chat),
		messages:       make(map[string][]model.ChatMessage),
	}
}

// Users

func (s *Memory) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Memory) UpdateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.users {
		if id != u.ID && existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *Memory) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)

	// Mirror ON DELETE SET NULL / CASCADE of the relational schema
	for _, c := range s.contracts {
		for _, r := range responsibles(c) {
			if r.Assigned(id) {
				r.UserID = nil
			}
		}
	}
	for chatID, chat := range s.chats {
		if chat.UserID == id {
			delete(s.chats, chatID)
			delete(s.messages, chatID)
		}
	}
	return nil
}

func (s *Memory) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Memory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) ListUsers(_ context.Context) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Memory) TouchLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	t := at
	u.LastLogin = &t
	return nil
}

// Contracts

func (s *Memory) CreateContract(_ context.Context, c *model.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.contracts {
		if existing.Number == c.Number {
			return ErrDuplicate
		}
	}
	s.contracts[c.ID] = cloneContract(c)
	return nil
}

func (s *Memory) UpdateContract(_ context.Context, c *model.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[c.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.contracts {
		if id != c.ID && existing.Number == c.Number {
			return ErrDuplicate
		}
	}
	s.contracts[c.ID] = cloneContract(c)
	return nil
}

func (s *Memory) DeleteContract(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[id]; !ok {
		return ErrNotFound
	}
	delete(s.contracts, id)
	for itemID, it := range s.items {
		if it.ContractID != id {
			continue
		}
		for _, cid := range s.itemClars[itemID] {
			delete(s.clarifications, cid)
		}
		delete(s.itemClars, itemID)
		delete(s.history, itemID)
		delete(s.items, itemID)
	}
	delete(s.notices, id)
	return nil
}

func (s *Memory) GetContract(_ context.Context, id string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.hydrate(c), nil
}

func (s *Memory) GetContractByNumber(_ context.Context, number string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.contracts {
		if c.Number == number {
			return s.hydrate(c), nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) ListContracts(_ context.Context, f model.ContractFilter) ([]*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.Contract
	for _, c := range s.contracts {
		if !c.MatchesSearch(f.Search) {
			continue
		}
		if f.ResponsibleID != "" && !c.AssignedTo(f.ResponsibleID, f.ResponsibleRole) {
			continue
		}
		result = append(result, s.hydrate(c))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// hydrate copies the contract and attaches linked users. Must be called with lock held
func (s *Memory) hydrate(c *model.Contract) *model.Contract {
	cp := cloneContract(c)
	for _, r := range responsibles(cp) {
		r.User = nil
		if r.UserID == nil {
			continue
		}
		if u, ok := s.users[*r.UserID]; ok {
			uc := *u
			r.User = &uc
		}
	}
	return cp
}

func cloneContract(c *model.Contract) *model.Contract {
	cp := *c
	for _, r := range responsibles(&cp) {
		if r.UserID != nil {
			id := *r.UserID
			r.UserID = &id
		}
		r.User = nil
	}
	return &cp
}

// Checklists

func (s *Memory) CreateDefinition(_ context.Context, d *model.ChecklistDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.definitions {
		if existing.Type == d.Type && existing.Text == d.Text {
			return ErrDuplicate
		}
	}
	cp := *d
	s.definitions[d.ID] = &cp
	return nil
}

func (s *Memory) ListDefinitions(_ context.Context, t model.FiscalType) ([]model.ChecklistDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedDefinitions(t), nil
}

// sortedDefinitions must be called with lock held
func (s *Memory) sortedDefinitions(t model.FiscalType) []model.ChecklistDefinition {
	result := make([]model.ChecklistDefinition, 0, len(s.definitions))
	for _, d := range s.definitions {
		if t == "" || d.Type == t {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Type != result[j].Type {
			return result[i].Type < result[j].Type
		}
		if result[i].Position != result[j].Position {
			return result[i].Position < result[j].Position
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (s *Memory) EnsureItems(_ context.Context, contractID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[contractID]; !ok {
		return ErrNotFound
	}
	have := make(map[string]bool)
	for _, it := range s.items {
		if it.ContractID == contractID {
			have[it.DefinitionID] = true
		}
	}
	for _, d := range s.definitions {
		if have[d.ID] {
			continue
		}
		id := newID()
		s.items[id] = &model.ChecklistItem{
			ID:           id,
			ContractID:   contractID,
			DefinitionID: d.ID,
			Status:       model.ItemPending,
			CreatedAt:    at,
			UpdatedAt:    at,
		}
	}
	return nil
}

func (s *Memory) ListItems(_ context.Context, contractID string, t model.FiscalType) ([]model.ChecklistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDefinition := make(map[string]*model.ChecklistItem)
	for _, it := range s.items {
		if it.ContractID == contractID {
			byDefinition[it.DefinitionID] = it
		}
	}

	var result []model.ChecklistItem
	for _, d := range s.sortedDefinitions(t) {
		it, ok := byDefinition[d.ID]
		if !ok {
			continue
		}
		result = append(result, s.assemble(it))
	}
	return result, nil
}

func (s *Memory) GetItem(_ context.Context, id string) (*model.ChecklistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	item := s.assemble(it)
	return &item, nil
}

// assemble attaches definition, history and clarifications. Must be called with lock held
func (s *Memory) assemble(it *model.ChecklistItem) model.ChecklistItem {
	item := *it
	if d, ok := s.definitions[it.DefinitionID]; ok {
		dc := *d
		item.Definition = &dc
	}
	item.History = append([]model.ObservationEntry{}, s.history[it.ID]...)
	item.Clarifications = make([]model.Clarification, 0, len(s.itemClars[it.ID]))
	for _, cid := range s.itemClars[it.ID] {
		item.Clarifications = append(item.Clarifications, cloneClarification(s.clarifications[cid]))
	}
	return item
}

func (s *Memory) RecordObservation(_ context.Context, e model.ObservationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[e.ItemID]
	if !ok {
		return ErrNotFound
	}
	s.history[e.ItemID] = append(s.history[e.ItemID], e)
	it.Status = e.Status
	it.CurrentObservation = e.Observation
	it.UpdatedAt = e.CreatedAt
	return nil
}

func (s *Memory) CreateClarification(_ context.Context, c *model.Clarification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[c.ItemID]; !ok {
		return ErrNotFound
	}
	cp := cloneClarification(c)
	s.clarifications[c.ID] = &cp
	s.itemClars[c.ItemID] = append(s.itemClars[c.ItemID], c.ID)
	return nil
}

func (s *Memory) GetClarification(_ context.Context, id string) (*model.Clarification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clarifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneClarification(c)
	return &cp, nil
}

func (s *Memory) AnswerClarification(_ context.Context, id, answer string, by model.UserRef, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clarifications[id]
	if !ok {
		return ErrNotFound
	}
	if c.Answered() {
		return ErrConflict
	}
	a, who, when := answer, by, at
	c.Answer = &a
	c.AnsweredBy = &who
	c.AnsweredAt = &when
	return nil
}

func cloneClarification(c *model.Clarification) model.Clarification {
	cp := *c
	if c.Answer != nil {
		a := *c.Answer
		cp.Answer = &a
	}
	if c.AnsweredBy != nil {
		who := *c.AnsweredBy
		cp.AnsweredBy = &who
	}
	if c.AnsweredAt != nil {
		when := *c.AnsweredAt
		cp.AnsweredAt = &when
	}
	return cp
}

// Notices

func (s *Memory) CreateNotice(_ context.Context, n *model.ClarificationNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[n.ContractID]; !ok {
		return ErrNotFound
	}
	s.notices[n.ContractID] = append(s.notices[n.ContractID], *n)
	return nil
}

func (s *Memory) ListNotices(_ context.Context, contractID string) ([]model.ClarificationNotice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ClarificationNotice{}, s.notices[contractID]...), nil
}

// Chats

func (s *Memory) CreateChat(_ context.Context, c *model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.chats[c.ID] = &cp
	return nil
}

func (s *Memory) GetChat(_ context.Context, id string) (*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Memory) ListChats(_ context.Context, userID string) ([]*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.Chat
	for _, c := range s.chats {
		if c.UserID == userID {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Memory) SaveMessage(_ context.Context, m *model.ChatMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[m.ChatID]
	if !ok {
		return false, ErrNotFound
	}
	for _, existing := range s.messages[m.ChatID] {
		if existing.ID == m.ID {
			return false, nil
		}
	}
	s.messages[m.ChatID] = append(s.messages[m.ChatID], *m)
	chat.UpdatedAt = m.CreatedAt
	return true, nil
}

func (s *Memory) ListMessages(_ context.Context, chatID string) ([]model.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.chats[chatID]; !ok {
		return nil, ErrNotFound
	}
	return append([]model.ChatMessage{}, s.messages[chatID]...), nil
}

// Count returns the number of contracts in the store
func (s *Memory) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}
