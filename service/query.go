package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/licito/backend/model"
)

// Query kinds the assistant may run. Each one maps to a fixed, parameterized
// store call scoped to the acting user.
const (
	QueryContractByNumber      = "contract_by_number"
	QuerySearchContracts       = "search_contracts"
	QueryExpiringContracts     = "expiring_contracts"
	QueryContractStats         = "contract_stats"
	QueryChecklistProgress     = "checklist_progress"
	QueryPendingClarifications = "pending_clarifications"
)

// QueryKinds lists the supported kinds in the order they are advertised
var QueryKinds = []string{
	QueryContractByNumber,
	QuerySearchContracts,
	QueryExpiringContracts,
	QueryContractStats,
	QueryChecklistProgress,
	QueryPendingClarifications,
}

const (
	defaultExpiringDays = 30
	maxExpiringDays     = 365
	maxQueryResults     = 20
)

// QueryRequest selects a query kind and its arguments
type QueryRequest struct {
	Kind           string `json:"kind"`
	ContractNumber string `json:"contract_number,omitempty"`
	Search         string `json:"search,omitempty"`
	Days           int    `json:"days,omitempty"`
	FiscalType     string `json:"fiscal_type,omitempty"`
}

// ContractSummary is the compact contract view handed to the assistant
type ContractSummary struct {
	Number               string    `json:"number"`
	Object               string    `json:"object"`
	ContractingBody      string    `json:"contracting_body,omitempty"`
	ContractorName       string    `json:"contractor_name,omitempty"`
	TotalValue           float64   `json:"total_value"`
	EffectiveStart       time.Time `json:"effective_start"`
	EffectiveEnd         time.Time `json:"effective_end"`
	Situation            string    `json:"situation"`
	DaysRemaining        int       `json:"days_remaining"`
	Manager              string    `json:"manager,omitempty"`
	AdministrativeFiscal string    `json:"administrative_fiscal,omitempty"`
	TechnicalFiscal      string    `json:"technical_fiscal,omitempty"`
}

func summarize(c *model.Contract, now time.Time) ContractSummary {
	return ContractSummary{
		Number:               c.Number,
		Object:               c.Object,
		ContractingBody:      c.ContractingBody,
		ContractorName:       c.ContractorName,
		TotalValue:           c.TotalValue,
		EffectiveStart:       c.EffectiveStart,
		EffectiveEnd:         c.EffectiveEnd,
		Situation:            c.Situation(now),
		DaysRemaining:        int(math.Ceil(c.EffectiveEnd.Sub(now).Hours() / 24)),
		Manager:              c.Manager.DisplayName(),
		AdministrativeFiscal: c.AdministrativeFiscal.DisplayName(),
		TechnicalFiscal:      c.TechnicalFiscal.DisplayName(),
	}
}

// QueryService answers the allow-listed contract questions of the assistant
type QueryService struct {
	contracts *ContractService
	checklist *ChecklistService
	clock     clock
}

func NewQueryService(contracts *ContractService, checklist *ChecklistService) *QueryService {
	return &QueryService{contracts: contracts, checklist: checklist}
}

// Run executes the query. Unknown kinds and missing arguments are
// validation errors.
func (q *QueryService) Run(ctx context.Context, actor Actor, req QueryRequest) (any, error) {
	now := q.clock.now()
	number := strings.TrimSpace(req.ContractNumber)

	switch req.Kind {
	case QueryContractByNumber:
		if number == "" {
			return nil, invalid("contract_number é obrigatório")
		}
		c, err := q.contracts.GetByNumber(ctx, actor, number)
		if err != nil {
			return nil, err
		}
		return summarize(c, now), nil

	case QuerySearchContracts:
		contracts, err := q.contracts.List(ctx, actor, req.Search)
		if err != nil {
			return nil, err
		}
		return summaries(contracts, now), nil

	case QueryExpiringContracts:
		days := req.Days
		if days <= 0 {
			days = defaultExpiringDays
		}
		if days > maxExpiringDays {
			days = maxExpiringDays
		}
		contracts, err := q.contracts.List(ctx, actor, "")
		if err != nil {
			return nil, err
		}
		limit := now.Add(time.Duration(days) * 24 * time.Hour)
		var expiring []*model.Contract
		for _, c := range contracts {
			if !c.EffectiveEnd.Before(now) && !c.EffectiveEnd.After(limit) {
				expiring = append(expiring, c)
			}
		}
		sort.SliceStable(expiring, func(i, j int) bool {
			return expiring[i].EffectiveEnd.Before(expiring[j].EffectiveEnd)
		})
		return summaries(expiring, now), nil

	case QueryContractStats:
		return q.contracts.Stats(ctx, actor)

	case QueryChecklistProgress:
		c, err := q.byNumber(ctx, actor, number)
		if err != nil {
			return nil, err
		}
		return q.checklist.Progress(ctx, actor, c.ID)

	case QueryPendingClarifications:
		c, err := q.byNumber(ctx, actor, number)
		if err != nil {
			return nil, err
		}
		var t model.FiscalType
		if req.FiscalType != "" {
			parsed, ok := model.ParseFiscalType(req.FiscalType)
			if !ok {
				return nil, invalid("fiscal_type inválido")
			}
			t = parsed
		}
		return q.checklist.PendingClarifications(ctx, actor, c.ID, t)
	}

	return nil, invalid("Consulta desconhecida: " + req.Kind)
}

func (q *QueryService) byNumber(ctx context.Context, actor Actor, number string) (*model.Contract, error) {
	if number == "" {
		return nil, invalid("contract_number é obrigatório")
	}
	return q.contracts.GetByNumber(ctx, actor, number)
}

func summaries(contracts []*model.Contract, now time.Time) []ContractSummary {
	out := make([]ContractSummary, 0, len(contracts))
	for i, c := range contracts {
		if i == maxQueryResults {
			break
		}
		out = append(out, summarize(c, now))
	}
	return out
}
