package service

import (
	"context"
	"errors"
	"strings"

	"github.com/licito/backend/model"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/policy"
	"github.com/licito/backend/store"
)

type ContractService struct {
	store store.Store
	clock clock
}

func NewContractService(s store.Store) *ContractService {
	return &ContractService{store: s}
}

// canSee reports whether the actor may read the contract
func canSee(actor Actor, c *model.Contract) bool {
	if policy.Allow(actor.Role, policy.ViewAllContracts, "") {
		return true
	}
	return policy.Allow(actor.Role, policy.ViewContracts, "") && c.AssignedTo(actor.ID, actor.Role)
}

func (s *ContractService) validate(ctx context.Context, c *model.Contract) error {
	c.Number = strings.TrimSpace(c.Number)
	c.Object = strings.TrimSpace(c.Object)

	if c.Number == "" {
		return invalid("Número do contrato é obrigatório")
	}
	if c.Object == "" {
		return invalid("Objeto do contrato é obrigatório")
	}
	if c.EffectiveStart.IsZero() || c.EffectiveEnd.IsZero() {
		return invalid("Início e fim da vigência são obrigatórios")
	}
	if c.EffectiveEnd.Before(c.EffectiveStart) {
		return invalid("O fim da vigência deve ser posterior ao início")
	}
	if c.TotalValue < 0 || c.GuaranteeValue < 0 {
		return invalid("Valores não podem ser negativos")
	}

	for _, r := range responsibles(c) {
		r.User = nil
		r.Name = strings.TrimSpace(r.Name)
		r.Email = strings.TrimSpace(r.Email)
		r.Phone = strings.TrimSpace(r.Phone)
		if r.UserID == nil {
			continue
		}
		if *r.UserID == "" {
			r.UserID = nil
			continue
		}
		if _, err := s.store.GetUser(ctx, *r.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return invalid("Responsável informado não existe")
			}
			return err
		}
	}
	return nil
}

func responsibles(c *model.Contract) []*model.Responsible {
	return []*model.Responsible{&c.Manager, &c.AdministrativeFiscal, &c.TechnicalFiscal, &c.SubstituteFiscal, &c.ExpenditureAuthorizer}
}

// Create stores the contract and instantiates its checklist items
func (s *ContractService) Create(ctx context.Context, c *model.Contract) (*model.Contract, error) {
	if err := s.validate(ctx, c); err != nil {
		return nil, err
	}

	now := s.clock.now()
	c.ID = newID()
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.store.CreateContract(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, invalid("Já existe um contrato com este número")
		}
		return nil, err
	}
	// items are materialized again on first read
	if err := s.store.EnsureItems(ctx, c.ID, now); err != nil {
		logger.Warn(ctx, "failed to instantiate checklist items", "contract_id", c.ID, "error", err)
	}

	logger.Info(ctx, "contract created", "contract_id", c.ID, "number", c.Number)
	return s.store.GetContract(ctx, c.ID)
}

func (s *ContractService) Update(ctx context.Context, id string, c *model.Contract) (*model.Contract, error) {
	existing, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, c); err != nil {
		return nil, err
	}

	c.ID = id
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.clock.now()
	if err := s.store.UpdateContract(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, invalid("Já existe um contrato com este número")
		}
		return nil, err
	}
	return s.store.GetContract(ctx, id)
}

func (s *ContractService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteContract(ctx, id); err != nil {
		return err
	}
	logger.Info(ctx, "contract deleted", "contract_id", id)
	return nil
}

// Get returns the contract when visible to the actor. Invisible contracts
// are reported as missing.
func (s *ContractService) Get(ctx context.Context, actor Actor, id string) (*model.Contract, error) {
	c, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, c) {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (s *ContractService) GetByNumber(ctx context.Context, actor Actor, number string) (*model.Contract, error) {
	c, err := s.store.GetContractByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	if !canSee(actor, c) {
		return nil, store.ErrNotFound
	}
	return c, nil
}

// List returns the contracts visible to the actor matching search
func (s *ContractService) List(ctx context.Context, actor Actor, search string) ([]*model.Contract, error) {
	filter := model.ContractFilter{Search: search}
	if !policy.Allow(actor.Role, policy.ViewAllContracts, "") {
		if !policy.Allow(actor.Role, policy.ViewContracts, "") {
			return nil, ErrForbidden
		}
		filter.ResponsibleID = actor.ID
		filter.ResponsibleRole = actor.Role
	}
	contracts, err := s.store.ListContracts(ctx, filter)
	if err != nil {
		return nil, err
	}
	if contracts == nil {
		contracts = []*model.Contract{}
	}
	return contracts, nil
}

// Stats summarises the contracts visible to the actor
func (s *ContractService) Stats(ctx context.Context, actor Actor) (model.ContractStats, error) {
	contracts, err := s.List(ctx, actor, "")
	if err != nil {
		return model.ContractStats{}, err
	}
	return model.ComputeContractStats(contracts, s.clock.now()), nil
}
