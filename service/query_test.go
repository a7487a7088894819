package service

import (
	"context"
	"errors"
	"testing"

	"github.com/licito/backend/model"
	"github.com/licito/backend/store"
)

func newQueryService(f *fixture) *QueryService {
	q := NewQueryService(f.contracts(), f.checklist())
	q.clock = fixedClock()
	return q
}

func TestQueryContractByNumber(t *testing.T) {
	f := newFixture(t)
	q := newQueryService(f)

	res, err := q.Run(context.Background(), f.manager, QueryRequest{Kind: QueryContractByNumber, ContractNumber: " 001/2025 "})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s, ok := res.(ContractSummary)
	if !ok {
		t.Fatalf("Expected ContractSummary, got %T", res)
	}
	if s.Number != "001/2025" || s.Situation != model.SituationAttention || s.DaysRemaining != 20 || s.Manager != "Maria Gestora" {
		t.Errorf("Unexpected summary %+v", s)
	}

	if _, err := q.Run(context.Background(), f.manager, QueryRequest{Kind: QueryContractByNumber}); err == nil {
		t.Error("Expected error without contract number")
	}
	if _, err := q.Run(context.Background(), f.other, QueryRequest{Kind: QueryContractByNumber, ContractNumber: "001/2025"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected scoped lookup to hide contract, got %v", err)
	}
}

func TestQueryExpiringContracts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	later := validContract("050/2025")
	later.EffectiveEnd = testNow.AddDate(0, 0, 90)
	if _, err := f.contracts().Create(ctx, later); err != nil {
		t.Fatalf("Create: %v", err)
	}
	q := newQueryService(f)

	tests := []struct {
		days int
		want int
	}{
		{0, 1},
		{120, 2},
		{5000, 2},
	}
	for _, tt := range tests {
		res, err := q.Run(ctx, f.manager, QueryRequest{Kind: QueryExpiringContracts, Days: tt.days})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		got := res.([]ContractSummary)
		if len(got) != tt.want {
			t.Errorf("days=%d: expected %d contracts, got %d", tt.days, tt.want, len(got))
		}
		if len(got) == 2 && got[0].Number != "001/2025" {
			t.Errorf("Expected soonest first, got %s", got[0].Number)
		}
	}
}

func TestQuerySearchAndStats(t *testing.T) {
	f := newFixture(t)
	q := newQueryService(f)
	ctx := context.Background()

	res, err := q.Run(ctx, f.manager, QueryRequest{Kind: QuerySearchContracts, Search: "limpeza"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.([]ContractSummary); len(got) != 1 {
		t.Errorf("Expected 1 match, got %d", len(got))
	}

	res, err = q.Run(ctx, f.manager, QueryRequest{Kind: QueryContractStats})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats := res.(model.ContractStats); stats.Total != 1 || stats.ExpiringIn30Days != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestQueryChecklistKinds(t *testing.T) {
	f := newFixture(t)
	q := newQueryService(f)
	ctx := context.Background()
	item := f.item(t, "d-tec-1")

	if _, err := f.checklist().UpdateStatus(ctx, f.tec, item.ID, model.ItemCompliant, "ok"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if _, err := f.checklist().RequestClarification(ctx, f.auth, item.ID, "Fotos?"); err != nil {
		t.Fatalf("RequestClarification: %v", err)
	}

	res, err := q.Run(ctx, f.manager, QueryRequest{Kind: QueryChecklistProgress, ContractNumber: "001/2025"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p := res.(ProgressReport); p.Technical != 100 || p.Overall != 33 {
		t.Errorf("Unexpected progress %+v", p)
	}

	res, err = q.Run(ctx, f.manager, QueryRequest{Kind: QueryPendingClarifications, ContractNumber: "001/2025", FiscalType: "tecnica"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pending := res.([]PendingClarification); len(pending) != 1 || pending[0].Question != "Fotos?" {
		t.Errorf("Unexpected pending %+v", pending)
	}

	if _, err := q.Run(ctx, f.manager, QueryRequest{Kind: QueryPendingClarifications, ContractNumber: "001/2025", FiscalType: "juridica"}); err == nil {
		t.Error("Expected error for unknown fiscal type")
	}
}

func TestQueryUnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := newQueryService(f).Run(context.Background(), f.manager, QueryRequest{Kind: "DROP TABLE contracts"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}
