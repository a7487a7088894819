package service

import (
	"context"
	"testing"
	"time"

	"github.com/licito/backend/model"
	"github.com/licito/backend/store"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() clock {
	return func() time.Time { return testNow }
}

func strPtr(s string) *string { return &s }

type fixture struct {
	store    *store.Memory
	admin    Actor
	manager  Actor
	adm      Actor
	tec      Actor
	other    Actor
	auth     Actor
	contract *model.Contract
}

func actorOf(u *model.User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Name: u.Name}
}

// newFixture seeds one contract with a manager, both fiscals, an authorizer
// and three checklist definitions. "u-other" is an administrative fiscal not
// assigned to the contract.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()

	users := []*model.User{
		{ID: "u-admin", Name: "Admin", Email: "admin@orgao.gov.br", Role: model.RoleAdmin, IsActive: true},
		{ID: "u-manager", Name: "Maria Gestora", Email: "maria@orgao.gov.br", Role: model.RoleManager, WhatsApp: "+55 (11) 98888-0000", IsActive: true},
		{ID: "u-adm", Name: "Ana Fiscal", Email: "ana@orgao.gov.br", Role: model.RoleFiscalAdministrative, WhatsApp: "5511999990000", IsActive: true},
		{ID: "u-tec", Name: "Tiago Técnico", Email: "tiago@orgao.gov.br", Role: model.RoleFiscalTechnical, IsActive: true},
		{ID: "u-other", Name: "Otávio", Email: "otavio@orgao.gov.br", Role: model.RoleFiscalAdministrative, IsActive: true},
		{ID: "u-auth", Name: "Olga Ordenadora", Email: "olga@orgao.gov.br", Role: model.RoleExpenditureAuthorizer, IsActive: true},
	}
	for i, u := range users {
		u.CreatedAt = testNow.Add(time.Duration(i) * time.Minute)
		u.UpdatedAt = u.CreatedAt
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	defs := []*model.ChecklistDefinition{
		{ID: "d-adm-1", Text: "Certidões regulares", Type: model.FiscalAdministrative, Position: 1},
		{ID: "d-adm-2", Text: "Garantia vigente", Type: model.FiscalAdministrative, Position: 2},
		{ID: "d-tec-1", Text: "Serviço executado conforme projeto", Type: model.FiscalTechnical, Position: 1},
	}
	for _, d := range defs {
		if err := s.CreateDefinition(ctx, d); err != nil {
			t.Fatalf("CreateDefinition: %v", err)
		}
	}

	contracts := NewContractService(s)
	contracts.clock = fixedClock()
	c, err := contracts.Create(ctx, &model.Contract{
		Number:                "001/2025",
		Object:                "Limpeza predial",
		ContractingBody:       "Secretaria de Obras",
		ContractorName:        "Limpa Tudo Ltda",
		TotalValue:            120000,
		EffectiveStart:        testNow.AddDate(0, -1, 0),
		EffectiveEnd:          testNow.AddDate(0, 0, 20),
		Manager:               model.Responsible{UserID: strPtr("u-manager")},
		AdministrativeFiscal:  model.Responsible{UserID: strPtr("u-adm")},
		TechnicalFiscal:       model.Responsible{UserID: strPtr("u-tec")},
		ExpenditureAuthorizer: model.Responsible{UserID: strPtr("u-auth")},
		SubstituteFiscal:      model.Responsible{Name: "Sérgio (legado)", Email: "sergio@antigo.br", Phone: "(61) 3333-4444"},
	})
	if err != nil {
		t.Fatalf("Create contract: %v", err)
	}

	return &fixture{
		store:    s,
		admin:    actorOf(users[0]),
		manager:  actorOf(users[1]),
		adm:      actorOf(users[2]),
		tec:      actorOf(users[3]),
		other:    actorOf(users[4]),
		auth:     actorOf(users[5]),
		contract: c,
	}
}

func (f *fixture) checklist() *ChecklistService {
	s := NewChecklistService(f.store)
	s.clock = fixedClock()
	return s
}

func (f *fixture) contracts() *ContractService {
	s := NewContractService(f.store)
	s.clock = fixedClock()
	return s
}

// item returns the contract item of the given definition
func (f *fixture) item(t *testing.T, defID string) model.ChecklistItem {
	t.Helper()
	items, err := f.store.ListItems(context.Background(), f.contract.ID, "")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	for _, it := range items {
		if it.DefinitionID == defID {
			return it
		}
	}
	t.Fatalf("no item for definition %s", defID)
	return model.ChecklistItem{}
}
