package model

import (
	"math"
	"strings"
	"time"
)

// FiscalType is the checklist category a fiscal verifies
type FiscalType string

const (
	FiscalAdministrative FiscalType = "ADMINISTRATIVA"
	FiscalTechnical      FiscalType = "TECNICA"
)

// ParseFiscalType accepts the enum values and the lowercase route slugs
// ("administrativo", "tecnico").
func ParseFiscalType(s string) (FiscalType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "administrativa", "administrativo":
		return FiscalAdministrative, true
	case "tecnica", "tecnico", "técnica", "técnico":
		return FiscalTechnical, true
	}
	return "", false
}

// Label returns the display name of the checklist category
func (t FiscalType) Label() string {
	if t == FiscalTechnical {
		return "Técnica"
	}
	return "Administrativa"
}

// ItemStatus is the verification status of a checklist item
type ItemStatus string

const (
	ItemPending      ItemStatus = "PENDENTE"
	ItemCompliant    ItemStatus = "CONFORME"
	ItemNonCompliant ItemStatus = "NAO_CONFORME"
)

// Valid reports whether s is a known status
func (s ItemStatus) Valid() bool {
	return s == ItemPending || s == ItemCompliant || s == ItemNonCompliant
}

// Label returns the display name of the status
func (s ItemStatus) Label() string {
	switch s {
	case ItemCompliant:
		return "Conforme"
	case ItemNonCompliant:
		return "Não Conforme"
	}
	return "Pendente"
}

// ChecklistDefinition is a static verification point for a fiscal type
type ChecklistDefinition struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Type      FiscalType `json:"type"`
	Position  int        `json:"position"`
	CreatedAt time.Time  `json:"created_at"`
}

// ChecklistItem is one definition evaluated for one contract
type ChecklistItem struct {
	ID                 string     `json:"id"`
	ContractID         string     `json:"contract_id"`
	DefinitionID       string     `json:"checklist_id"`
	Status             ItemStatus `json:"status"`
	CurrentObservation string     `json:"current_observation,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	Definition     *ChecklistDefinition `json:"checklist,omitempty"`
	History        []ObservationEntry   `json:"observation_history"`
	Clarifications []Clarification      `json:"clarifications"`
}

// ObservationEntry is an immutable record of a status/observation write
type ObservationEntry struct {
	ID          string     `json:"id"`
	ItemID      string     `json:"checklist_item_id"`
	Status      ItemStatus `json:"status"`
	Observation string     `json:"observation"`
	Author      UserRef    `json:"user"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Clarification is a question on a checklist item and its optional answer
type Clarification struct {
	ID         string     `json:"id"`
	ItemID     string     `json:"checklist_item_id"`
	Question   string     `json:"question"`
	Answer     *string    `json:"answer"`
	AskedBy    UserRef    `json:"asked_by"`
	AnsweredBy *UserRef   `json:"answered_by"`
	AskedAt    time.Time  `json:"asked_at"`
	AnsweredAt *time.Time `json:"answered_at"`
}

// Answered reports whether the clarification already has an answer
func (c *Clarification) Answered() bool {
	return c.Answer != nil
}

// PendingClarifications returns the unanswered clarifications, preserving order
func PendingClarifications(cs []Clarification) []Clarification {
	pending := make([]Clarification, 0, len(cs))
	for _, c := range cs {
		if !c.Answered() {
			pending = append(pending, c)
		}
	}
	return pending
}

// Progress is the rounded percentage of items no longer pending. Zero items
// yields zero.
func Progress(items []ChecklistItem) int {
	if len(items) == 0 {
		return 0
	}
	done := 0
	for _, it := range items {
		if it.Status != ItemPending {
			done++
		}
	}
	return int(math.Round(float64(done) * 100 / float64(len(items))))
}
