package service

import (
	"context"
	"strings"

	"github.com/licito/backend/model"
	"github.com/licito/backend/pkg/logger"
	"github.com/licito/backend/policy"
	"github.com/licito/backend/store"
)

// NoticeService sends ad-hoc clarification notices from the expenditure
// authorizer to the fiscal of a contract.
type NoticeService struct {
	store      store.Store
	dispatcher *Dispatcher
	clock      clock
}

func NewNoticeService(s store.Store, d *Dispatcher) *NoticeService {
	return &NoticeService{store: s, dispatcher: d}
}

// NoticeResult is a persisted notice with the outcome of its deliveries
type NoticeResult struct {
	Notice     *model.ClarificationNotice `json:"notice"`
	Deliveries []model.Delivery           `json:"deliveries"`
}

// Send records the notice and delivers it to the fiscal of the given type.
// The notice is kept even when no channel could deliver it.
func (s *NoticeService) Send(ctx context.Context, actor Actor, contractID string, t model.FiscalType, message string) (*NoticeResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalid("Por favor, insira uma mensagem")
	}
	if t != model.FiscalAdministrative && t != model.FiscalTechnical {
		return nil, invalid("Tipo de fiscal inválido")
	}
	if !policy.Allow(actor.Role, policy.SendNotice, t) {
		return nil, ErrForbidden
	}

	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, c) {
		return nil, store.ErrNotFound
	}
	sender, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	n := &model.ClarificationNotice{
		ID:         newID(),
		ContractID: c.ID,
		FiscalType: t,
		Message:    message,
		SentBy:     sender.Ref(),
		CreatedAt:  s.clock.now(),
	}
	deliveries := s.dispatcher.deliverNotice(ctx, c, c.FiscalFor(t), n)
	n.Delivered = anyDelivered(deliveries)
	if deliveries == nil {
		deliveries = []model.Delivery{}
	}

	if err := s.store.CreateNotice(ctx, n); err != nil {
		return nil, err
	}

	logger.Info(ctx, "clarification notice sent", "contract_id", c.ID, "fiscal_type", t, "delivered", n.Delivered)
	return &NoticeResult{Notice: n, Deliveries: deliveries}, nil
}

// List returns the notices of a contract visible to the actor
func (s *NoticeService) List(ctx context.Context, actor Actor, contractID string) ([]model.ClarificationNotice, error) {
	c, err := s.store.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, c) {
		return nil, store.ErrNotFound
	}
	notices, err := s.store.ListNotices(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if notices == nil {
		notices = []model.ClarificationNotice{}
	}
	return notices, nil
}
