package service

import (
	"context"
	"errors"
	"testing"

	"github.com/licito/backend/model"
	"github.com/licito/backend/store"
)

func TestChecklistListItemsDefaultsToOwnType(t *testing.T) {
	f := newFixture(t)
	svc := f.checklist()

	items, err := svc.ListItems(context.Background(), f.adm, f.contract.ID, "")
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 administrative items, got %d", len(items))
	}
	if items[0].Definition.Text != "Certidões regulares" || items[1].Definition.Text != "Garantia vigente" {
		t.Errorf("Items not in definition order: %q, %q", items[0].Definition.Text, items[1].Definition.Text)
	}

	all, err := svc.ListItems(context.Background(), f.manager, f.contract.ID, "")
	if err != nil {
		t.Fatalf("ListItems manager: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected manager to see 3 items, got %d", len(all))
	}
}

func TestChecklistListItemsOtherTypeForbidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.checklist().ListItems(context.Background(), f.adm, f.contract.ID, model.FiscalTechnical)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
}

func TestChecklistListItemsUnassignedFiscal(t *testing.T) {
	f := newFixture(t)
	_, err := f.checklist().ListItems(context.Background(), f.other, f.contract.ID, "")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unassigned fiscal, got %v", err)
	}
}

func TestChecklistListItemsCreatesMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.CreateDefinition(ctx, &model.ChecklistDefinition{
		ID: "d-adm-3", Text: "Recolhimento do FGTS", Type: model.FiscalAdministrative, Position: 3,
	}); err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}

	items, err := f.checklist().ListItems(ctx, f.adm, f.contract.ID, model.FiscalAdministrative)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 3 || items[2].DefinitionID != "d-adm-3" {
		t.Errorf("Expected new definition to be instantiated, got %d items", len(items))
	}
	if items[2].Status != model.ItemPending {
		t.Errorf("Expected new item pending, got %s", items[2].Status)
	}
}

func TestChecklistUpdateStatus(t *testing.T) {
	f := newFixture(t)
	svc := f.checklist()
	item := f.item(t, "d-adm-1")

	updated, err := svc.UpdateStatus(context.Background(), f.adm, item.ID, model.ItemCompliant, "  Certidões apresentadas  ")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != model.ItemCompliant {
		t.Errorf("Expected CONFORME, got %s", updated.Status)
	}
	if updated.CurrentObservation != "Certidões apresentadas" {
		t.Errorf("Expected trimmed observation, got %q", updated.CurrentObservation)
	}
	if len(updated.History) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(updated.History))
	}
	h := updated.History[0]
	if h.Author.ID != "u-adm" || h.Author.Name != "Ana Fiscal" || !h.CreatedAt.Equal(testNow) {
		t.Errorf("Unexpected history entry %+v", h)
	}

	// re-applying the same status appends another row
	again, err := svc.UpdateStatus(context.Background(), f.adm, item.ID, model.ItemCompliant, "Certidões apresentadas")
	if err != nil {
		t.Fatalf("UpdateStatus again: %v", err)
	}
	if len(again.History) != 2 {
		t.Errorf("Expected 2 history entries, got %d", len(again.History))
	}
}

func TestChecklistUpdateStatusRequiresObservation(t *testing.T) {
	f := newFixture(t)
	svc := f.checklist()
	item := f.item(t, "d-adm-1")

	tests := []struct {
		name        string
		status      model.ItemStatus
		observation string
	}{
		{"empty", model.ItemCompliant, ""},
		{"whitespace", model.ItemNonCompliant, "   \t"},
		{"invalid status", "APROVADO", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateStatus(context.Background(), f.adm, item.ID, tt.status, tt.observation)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
		})
	}

	after := f.item(t, "d-adm-1")
	if after.Status != model.ItemPending || len(after.History) != 0 {
		t.Errorf("Expected no side effect, got status %s with %d entries", after.Status, len(after.History))
	}
}

func TestChecklistUpdateStatusPendingWithoutObservation(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "d-tec-1")

	updated, err := f.checklist().UpdateStatus(context.Background(), f.tec, item.ID, model.ItemPending, "")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if len(updated.History) != 1 {
		t.Errorf("Expected history entry, got %d", len(updated.History))
	}
}

func TestChecklistUpdateStatusAuthorization(t *testing.T) {
	f := newFixture(t)
	svc := f.checklist()
	tecItem := f.item(t, "d-tec-1")

	if _, err := svc.UpdateStatus(context.Background(), f.adm, tecItem.ID, model.ItemCompliant, "ok"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected administrative fiscal to be forbidden on technical item, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), f.auth, tecItem.ID, model.ItemCompliant, "ok"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected authorizer to be forbidden, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), f.tec, "missing", model.ItemCompliant, "ok"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestChecklistAddObservationKeepsStatus(t *testing.T) {
	f := newFixture(t)
	svc := f.checklist()
	item := f.item(t, "d-adm-2")

	if _, err := svc.UpdateStatus(context.Background(), f.adm, item.ID, model.ItemNonCompliant, "Garantia vencida"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	updated, err := svc.AddObservation(context.Background(), f.adm, item.ID, "Contratada notificada")
	if err != nil {
		t.Fatalf("AddObservation: %v", err)
	}
	if updated.Status != model.ItemNonCompliant {
		t.Errorf("Expected status kept, got %s", updated.Status)
	}
	if updated.CurrentObservation != "Contratada notificada" || len(updated.History) != 2 {
		t.Errorf("Unexpected item %+v", updated)
	}

	if _, err := svc.AddObservation(context.Background(), f.adm, item.ID, " "); err == nil {
		t.Error("Expected error for empty observation")
	}
}

func TestChecklistClarificationLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := f.checklist()
	ctx := context.Background()
	item := f.item(t, "d-adm-1")

	if _, err := svc.RequestClarification(ctx, f.adm, item.ID, "Pergunta"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected fiscal to be forbidden from asking, got %v", err)
	}
	if _, err := svc.RequestClarification(ctx, f.auth, item.ID, ""); err == nil {
		t.Error("Expected error for empty question")
	}

	c, err := svc.RequestClarification(ctx, f.auth, item.ID, "Qual a validade da certidão?")
	if err != nil {
		t.Fatalf("RequestClarification: %v", err)
	}
	if c.Answered() || c.AskedBy.ID != "u-auth" {
		t.Errorf("Unexpected clarification %+v", c)
	}

	pending, err := svc.PendingClarifications(ctx, f.manager, f.contract.ID, "")
	if err != nil {
		t.Fatalf("PendingClarifications: %v", err)
	}
	if len(pending) != 1 || pending[0].ItemText != "Certidões regulares" || pending[0].FiscalType != model.FiscalAdministrative {
		t.Errorf("Unexpected pending %+v", pending)
	}

	if _, err := svc.AnswerClarification(ctx, f.tec, c.ID, "resposta"); !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected technical fiscal forbidden on administrative item, got %v", err)
	}

	answered, err := svc.AnswerClarification(ctx, f.adm, c.ID, "Válida até dezembro")
	if err != nil {
		t.Fatalf("AnswerClarification: %v", err)
	}
	if answered.Answer == nil || *answered.Answer != "Válida até dezembro" || answered.AnsweredBy.ID != "u-adm" {
		t.Errorf("Unexpected answer %+v", answered)
	}

	_, err = svc.AnswerClarification(ctx, f.adm, c.ID, "Outra resposta")
	if !errors.Is(err, store.ErrConflict) {
		t.Errorf("Expected ErrConflict for second answer, got %v", err)
	}
	kept, _ := f.store.GetClarification(ctx, c.ID)
	if *kept.Answer != "Válida até dezembro" {
		t.Errorf("Expected original answer kept, got %q", *kept.Answer)
	}

	pending, _ = svc.PendingClarifications(ctx, f.manager, f.contract.ID, "")
	if len(pending) != 0 {
		t.Errorf("Expected no pending clarifications, got %d", len(pending))
	}
}

func TestChecklistProgress(t *testing.T) {
	f := newFixture(t)
	svc := f.checklist()
	ctx := context.Background()

	if _, err := svc.UpdateStatus(ctx, f.adm, f.item(t, "d-adm-1").ID, model.ItemCompliant, "ok"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	p, err := svc.Progress(ctx, f.manager, f.contract.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.Administrative != 50 || p.Technical != 0 || p.Overall != 33 {
		t.Errorf("Unexpected progress %+v", p)
	}
}

func TestChecklistProgressIncludesNewDefinitions(t *testing.T) {
	f := newFixture(t)
	svc := f.checklist()
	ctx := context.Background()

	if _, err := svc.UpdateStatus(ctx, f.tec, f.item(t, "d-tec-1").ID, model.ItemCompliant, "ok"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := f.store.CreateDefinition(ctx, &model.ChecklistDefinition{
		ID: "d-tec-2", Text: "Cronograma físico cumprido", Type: model.FiscalTechnical, Position: 2,
	}); err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}

	p, err := svc.Progress(ctx, f.manager, f.contract.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.Technical != 50 || p.Overall != 25 {
		t.Errorf("Expected new definition counted as pending, got %+v", p)
	}
}

func TestChecklistProgressConfinedToOwnType(t *testing.T) {
	f := newFixture(t)
	svc := f.checklist()
	ctx := context.Background()

	if _, err := svc.UpdateStatus(ctx, f.adm, f.item(t, "d-adm-1").ID, model.ItemCompliant, "ok"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	tec, err := svc.Progress(ctx, f.tec, f.contract.ID)
	if err != nil {
		t.Fatalf("Progress tec: %v", err)
	}
	if tec.Administrative != 0 || tec.Technical != 0 || tec.Overall != 0 {
		t.Errorf("Expected technical fiscal to see only technical progress, got %+v", tec)
	}

	adm, err := svc.Progress(ctx, f.adm, f.contract.ID)
	if err != nil {
		t.Fatalf("Progress adm: %v", err)
	}
	if adm.Administrative != 50 || adm.Technical != 0 || adm.Overall != 50 {
		t.Errorf("Expected administrative fiscal to see only administrative progress, got %+v", adm)
	}
}

func TestChecklistPendingClarificationsCreatesMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.CreateDefinition(ctx, &model.ChecklistDefinition{
		ID: "d-adm-3", Text: "Recolhimento do FGTS", Type: model.FiscalAdministrative, Position: 3,
	}); err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}

	if _, err := f.checklist().PendingClarifications(ctx, f.adm, f.contract.ID, ""); err != nil {
		t.Fatalf("PendingClarifications: %v", err)
	}
	items, err := f.store.ListItems(ctx, f.contract.ID, model.FiscalAdministrative)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("Expected new definition to be instantiated, got %d items", len(items))
	}
}

func TestChecklistSeedDefinitionsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	if err := s.CreateDefinition(ctx, &model.ChecklistDefinition{ID: "d-1", Type: model.FiscalTechnical, Text: "Cronograma de execução cumprido", Position: 4}); err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	svc := NewChecklistService(s)
	svc.clock = fixedClock()

	created, err := svc.SeedDefinitions(ctx, DefaultChecklist)
	if err != nil {
		t.Fatalf("SeedDefinitions: %v", err)
	}
	if created != len(DefaultChecklist)-1 {
		t.Errorf("Expected %d created, got %d", len(DefaultChecklist)-1, created)
	}

	tec, _ := s.ListDefinitions(ctx, model.FiscalTechnical)
	if len(tec) != 6 || tec[0].ID != "d-1" || tec[1].Position != 5 {
		t.Errorf("Expected new technical items after the existing one, got %+v", tec)
	}
	adm, _ := s.ListDefinitions(ctx, model.FiscalAdministrative)
	if len(adm) != 6 || adm[0].Position != 1 {
		t.Errorf("Unexpected administrative definitions %+v", adm)
	}

	again, err := svc.SeedDefinitions(ctx, DefaultChecklist)
	if err != nil || again != 0 {
		t.Errorf("Expected second seed to create nothing, got %d (%v)", again, err)
	}
}
