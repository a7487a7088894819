package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/licito/backend/model"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/policy"
	"github.com/licito/backend/store"
)

// ChecklistService runs the compliance checklist workflow: item status,
// observation history and clarification threads.
type ChecklistService struct {
	store store.Store
	clock clock
}

func NewChecklistService(s store.Store) *ChecklistService {
	return &ChecklistService{store: s}
}

// ProgressReport is the share of verified items per fiscal type
type ProgressReport struct {
	Administrative int `json:"administrative"`
	Technical      int `json:"technical"`
	Overall        int `json:"overall"`
}

// PendingClarification is an open question with the item it refers to
type PendingClarification struct {
	model.Clarification
	ItemText   string           `json:"item_text"`
	FiscalType model.FiscalType `json:"fiscal_type"`
}

func (s *ChecklistService) visibleContract(ctx context.Context, actor Actor, contractID string) (*model.Contract, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, c) {
		return nil, store.ErrNotFound
	}
	return c, nil
}

// loadItem fetches the item and checks the actor may perform action on it
func (s *ChecklistService) loadItem(ctx context.Context, actor Actor, itemID string, action policy.Action) (*model.ChecklistItem, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleContract(ctx, actor, item.ContractID); err != nil {
		return nil, err
	}
	if !policy.Allow(actor.Role, action, itemType(item)) {
		return nil, ErrForbidden
	}
	return item, nil
}

func itemType(item *model.ChecklistItem) model.FiscalType {
	if item.Definition == nil {
		return ""
	}
	return item.Definition.Type
}

// author resolves the acting user's identity as stored in the audit trail
func (s *ChecklistService) author(ctx context.Context, actor Actor) (model.UserRef, error) {
	u, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return model.UserRef{}, fmt.Errorf("failed to resolve author: %w", err)
	}
	return u.Ref(), nil
}

// ListItems returns the contract's items of the given type, creating any
// that are missing first. An empty type lists both categories.
func (s *ChecklistService) ListItems(ctx context.Context, actor Actor, contractID string, t model.FiscalType) ([]model.ChecklistItem, error) {
	if t == "" {
		if !policy.Allow(actor.Role, policy.ViewChecklist, actor.Role.FiscalType()) {
			return nil, ErrForbidden
		}
		t = actor.Role.FiscalType()
	} else if !policy.Allow(actor.Role, policy.ViewChecklist, t) {
		return nil, ErrForbidden
	}
	if _, err := s.visibleContract(ctx, actor, contractID); err != nil {
		return nil, err
	}

	if err := s.store.EnsureItems(ctx, contractID, s.clock.now()); err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx, contractID, t)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.ChecklistItem{}
	}
	return items, nil
}

// UpdateStatus sets the item status. Any status other than pending needs
// an observation; the change and its history row are written together.
func (s *ChecklistService) UpdateStatus(ctx context.Context, actor Actor, itemID string, status model.ItemStatus, observation string) (*model.ChecklistItem, error) {
	if !status.Valid() {
		return nil, invalid("Status inválido")
	}
	observation = strings.TrimSpace(observation)
	if status != model.ItemPending && observation == "" {
		return nil, invalid("Observação é obrigatória ao alterar o status")
	}

	item, err := s.loadItem(ctx, actor, itemID, policy.UpdateChecklist)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, actor, item.ID, status, observation); err != nil {
		return nil, err
	}

	logger.Info(ctx, "checklist item status updated", "item_id", item.ID, "from", item.Status, "to", status)
	return s.store.GetItem(ctx, item.ID)
}

// AddObservation appends a note without changing the status
func (s *ChecklistService) AddObservation(ctx context.Context, actor Actor, itemID, observation string) (*model.ChecklistItem, error) {
	observation = strings.TrimSpace(observation)
	if observation == "" {
		return nil, invalid("Por favor, digite uma observação")
	}

	item, err := s.loadItem(ctx, actor, itemID, policy.UpdateChecklist)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, actor, item.ID, item.Status, observation); err != nil {
		return nil, err
	}
	return s.store.GetItem(ctx, item.ID)
}

func (s *ChecklistService) record(ctx context.Context, actor Actor, itemID string, status model.ItemStatus, observation string) error {
	author, err := s.author(ctx, actor)
	if err != nil {
		return err
	}
	return s.store.RecordObservation(ctx, model.ObservationEntry{
		ID:          newID(),
		ItemID:      itemID,
		Status:      status,
		Observation: observation,
		Author:      author,
		CreatedAt:   s.clock.now(),
	})
}

func (s *ChecklistService) RequestClarification(ctx context.Context, actor Actor, itemID, question string) (*model.Clarification, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, invalid("Por favor, digite uma pergunta")
	}

	item, err := s.loadItem(ctx, actor, itemID, policy.RequestClarification)
	if err != nil {
		return nil, err
	}
	author, err := s.author(ctx, actor)
	if err != nil {
		return nil, err
	}

	c := &model.Clarification{
		ID:       newID(),
		ItemID:   item.ID,
		Question: question,
		AskedBy:  author,
		AskedAt:  s.clock.now(),
	}
	if err := s.store.CreateClarification(ctx, c); err != nil {
		return nil, err
	}

	logger.Info(ctx, "clarification requested", "item_id", item.ID, "clarification_id", c.ID)
	return c, nil
}

// AnswerClarification answers an open clarification. A second answer is
// rejected with store.ErrConflict and the first one kept.
func (s *ChecklistService) AnswerClarification(ctx context.Context, actor Actor, clarificationID, answer string) (*model.Clarification, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, invalid("Por favor, digite uma resposta")
	}

	c, err := s.store.GetClarification(ctx, clarificationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadItem(ctx, actor, c.ItemID, policy.AnswerClarification); err != nil {
		return nil, err
	}
	if c.Answered() {
		return nil, store.ErrConflict
	}
	author, err := s.author(ctx, actor)
	if err != nil {
		return nil, err
	}

	if err := s.store.AnswerClarification(ctx, c.ID, answer, author, s.clock.now()); err != nil {
		return nil, err
	}

	logger.Info(ctx, "clarification answered", "clarification_id", c.ID)
	return s.store.GetClarification(ctx, c.ID)
}

// Progress computes the verified share per fiscal type and overall
func (s *ChecklistService) Progress(ctx context.Context, actor Actor, contractID string) (ProgressReport, error) {
	if !policy.Allow(actor.Role, policy.ViewChecklist, actor.Role.FiscalType()) {
		return ProgressReport{}, ErrForbidden
	}
	if _, err := s.visibleContract(ctx, actor, contractID); err != nil {
		return ProgressReport{}, err
	}
	if err := s.store.EnsureItems(ctx, contractID, s.clock.now()); err != nil {
		return ProgressReport{}, err
	}
	items, err := s.store.ListItems(ctx, contractID, "")
	if err != nil {
		return ProgressReport{}, err
	}

	var adm, tec []model.ChecklistItem
	for _, it := range items {
		switch itemType(&it) {
		case model.FiscalAdministrative:
			adm = append(adm, it)
		case model.FiscalTechnical:
			tec = append(tec, it)
		}
	}
	// fiscals only see their own type
	switch actor.Role.FiscalType() {
	case model.FiscalAdministrative:
		p := model.Progress(adm)
		return ProgressReport{Administrative: p, Overall: p}, nil
	case model.FiscalTechnical:
		p := model.Progress(tec)
		return ProgressReport{Technical: p, Overall: p}, nil
	}
	return ProgressReport{
		Administrative: model.Progress(adm),
		Technical:      model.Progress(tec),
		Overall:        model.Progress(items),
	}, nil
}

// PendingClarifications lists the open questions of a contract in checklist order
func (s *ChecklistService) PendingClarifications(ctx context.Context, actor Actor, contractID string, t model.FiscalType) ([]PendingClarification, error) {
	if t != "" && !policy.Allow(actor.Role, policy.ViewChecklist, t) {
		return nil, ErrForbidden
	}
	if t == "" {
		t = actor.Role.FiscalType()
	}
	if _, err := s.visibleContract(ctx, actor, contractID); err != nil {
		return nil, err
	}
	if err := s.store.EnsureItems(ctx, contractID, s.clock.now()); err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx, contractID, t)
	if err != nil {
		return nil, err
	}

	pending := []PendingClarification{}
	for _, it := range items {
		text := ""
		if it.Definition != nil {
			text = it.Definition.Text
		}
		for _, c := range model.PendingClarifications(it.Clarifications) {
			pending = append(pending, PendingClarification{Clarification: c, ItemText: text, FiscalType: itemType(&it)})
		}
	}
	return pending, nil
}

// DefaultChecklist is the standard verification list for new installations
var DefaultChecklist = []model.ChecklistDefinition{
	{Type: model.FiscalAdministrative, Text: "Garantia contratual apresentada e dentro da validade"},
	{Type: model.FiscalAdministrative, Text: "Certidões de regularidade fiscal e trabalhista válidas"},
	{Type: model.FiscalAdministrative, Text: "Comprovantes de recolhimento de FGTS e INSS dos empregados"},
	{Type: model.FiscalAdministrative, Text: "Folha de pagamento e benefícios pagos no prazo"},
	{Type: model.FiscalAdministrative, Text: "Nota fiscal emitida de acordo com o contrato"},
	{Type: model.FiscalAdministrative, Text: "Vigência e aditivos publicados"},
	{Type: model.FiscalTechnical, Text: "Serviço executado conforme especificações do termo de referência"},
	{Type: model.FiscalTechnical, Text: "Materiais e equipamentos na quantidade e qualidade previstas"},
	{Type: model.FiscalTechnical, Text: "Cronograma de execução cumprido"},
	{Type: model.FiscalTechnical, Text: "Postos de trabalho ocupados e equipe qualificada"},
	{Type: model.FiscalTechnical, Text: "Ocorrências registradas e tratadas"},
	{Type: model.FiscalTechnical, Text: "Medição conferida com o executado"},
}

// SeedDefinitions creates the definitions whose text is not registered yet,
// positioned after the existing ones of the same type. It returns how many
// were created.
func (s *ChecklistService) SeedDefinitions(ctx context.Context, defs []model.ChecklistDefinition) (int, error) {
	existing, err := s.store.ListDefinitions(ctx, "")
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(existing))
	next := map[model.FiscalType]int{}
	for _, d := range existing {
		known[string(d.Type)+"|"+d.Text] = true
		if d.Position >= next[d.Type] {
			next[d.Type] = d.Position + 1
		}
	}

	created := 0
	for _, d := range defs {
		key := string(d.Type) + "|" + d.Text
		if known[key] {
			continue
		}
		if next[d.Type] == 0 {
			next[d.Type] = 1
		}
		def := &model.ChecklistDefinition{
			ID:        newID(),
			Text:      d.Text,
			Type:      d.Type,
			Position:  next[d.Type],
			CreatedAt: s.clock.now(),
		}
		if err := s.store.CreateDefinition(ctx, def); err != nil {
			return created, fmt.Errorf("failed to create definition %q: %w", d.Text, err)
		}
		known[key] = true
		next[d.Type]++
		created++
	}
	if created > 0 {
		logger.Info(ctx, "checklist definitions seeded", "created", created)
	}
	return created, nil
}
