package model

import (
	"strings"
	"time"
)

// Responsible is a party assigned to a contract. It either references a
// registered user or carries a free-text legacy name.
type Responsible struct {
	UserID *string `json:"user_id,omitempty"`
	Name   string  `json:"name,omitempty"`
	Email  string  `json:"email,omitempty"`
	Phone  string  `json:"phone,omitempty"`
	User   *User   `json:"user,omitempty"`
}

// Assigned reports whether the responsible points at the given user.
func (r Responsible) Assigned(userID string) bool {
	return r.UserID != nil && *r.UserID != "" && *r.UserID == userID
}

// ContactEmail returns the user's email when linked, otherwise the legacy email
func (r Responsible) ContactEmail() string {
	if r.User != nil && r.User.Email != "" {
		return r.User.Email
	}
	return strings.TrimSpace(r.Email)
}

// ContactPhone returns the user's WhatsApp when linked, otherwise the legacy phone
func (r Responsible) ContactPhone() string {
	if r.User != nil && r.User.WhatsApp != "" {
		return r.User.WhatsApp
	}
	return strings.TrimSpace(r.Phone)
}

// DisplayName returns the linked user's name or the legacy name
func (r Responsible) DisplayName() string {
	if r.User != nil && r.User.Name != "" {
		return r.User.Name
	}
	return r.Name
}

// Contract represents a public-sector contract record
type Contract struct {
	ID                    string     `json:"id"`
	Number                string     `json:"number"`
	AdministrativeProcess string     `json:"administrative_process,omitempty"`
	BiddingModality       string     `json:"bidding_modality,omitempty"`
	Object                string     `json:"object"`
	ContractingBody       string     `json:"contracting_body,omitempty"`
	SignedAt              *time.Time `json:"signed_at,omitempty"`

	ContractorName      string `json:"contractor_name,omitempty"`
	ContractorCNPJ      string `json:"contractor_cnpj,omitempty"`
	LegalRepresentative string `json:"legal_representative,omitempty"`
	ContractorPhone     string `json:"contractor_phone,omitempty"`
	ContractorEmail     string `json:"contractor_email,omitempty"`
	ContractorAddress   string `json:"contractor_address,omitempty"`

	TotalValue          float64    `json:"total_value"`
	GuaranteeType       string     `json:"guarantee_type,omitempty"`
	GuaranteeValue      float64    `json:"guarantee_value,omitempty"`
	GuaranteeValidUntil *time.Time `json:"guarantee_valid_until,omitempty"`

	EffectiveStart     time.Time  `json:"effective_start"`
	EffectiveEnd       time.Time  `json:"effective_end"`
	AdjustmentIndex    string     `json:"adjustment_index,omitempty"`
	AdjustmentBaseDate *time.Time `json:"adjustment_base_date,omitempty"`
	Sanction           string     `json:"administrative_sanction,omitempty"`

	Manager               Responsible `json:"manager"`
	AdministrativeFiscal  Responsible `json:"administrative_fiscal"`
	TechnicalFiscal       Responsible `json:"technical_fiscal"`
	SubstituteFiscal      Responsible `json:"substitute_fiscal"`
	ExpenditureAuthorizer Responsible `json:"expenditure_authorizer"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contract situations, derived from the effective end date
const (
	SituationActive    = "active"
	SituationAttention = "attention"
	SituationExpired   = "expired"
)

// AttentionWindow is how close to the end date a contract starts needing attention
const AttentionWindow = 30 * 24 * time.Hour

// Situation classifies the contract relative to now
func (c *Contract) Situation(now time.Time) string {
	switch {
	case c.EffectiveEnd.Before(now):
		return SituationExpired
	case !c.EffectiveEnd.After(now.Add(AttentionWindow)):
		return SituationAttention
	default:
		return SituationActive
	}
}

// Responsibles returns every assigned party, in a fixed order.
func (c *Contract) Responsibles() []Responsible {
	return []Responsible{
		c.Manager,
		c.AdministrativeFiscal,
		c.TechnicalFiscal,
		c.SubstituteFiscal,
		c.ExpenditureAuthorizer,
	}
}

// FiscalFor returns the fiscal responsible for the given checklist type
func (c *Contract) FiscalFor(t FiscalType) Responsible {
	if t == FiscalTechnical {
		return c.TechnicalFiscal
	}
	return c.AdministrativeFiscal
}

// ContractFilter narrows contract listings
type ContractFilter struct {
	Search string
	// ResponsibleID and ResponsibleRole restrict the listing to contracts the
	// user is assigned to in the capacity matching the role.
	ResponsibleID   string
	ResponsibleRole Role
}

// ContractStats summarises the contract portfolio
type ContractStats struct {
	Total            int     `json:"total"`
	Active           int     `json:"active"`
	ExpiringIn30Days int     `json:"expiring_in_30_days"`
	ActiveValue      float64 `json:"active_value"`
}

// ComputeContractStats derives portfolio statistics at the given instant
func ComputeContractStats(contracts []*Contract, now time.Time) ContractStats {
	stats := ContractStats{Total: len(contracts)}
	limit := now.Add(AttentionWindow)
	for _, c := range contracts {
		if c.EffectiveEnd.Before(now) {
			continue
		}
		stats.Active++
		stats.ActiveValue += c.TotalValue
		if !c.EffectiveEnd.After(limit) {
			stats.ExpiringIn30Days++
		}
	}
	return stats
}

// MatchesSearch reports whether the term appears in the number, object,
// contracting body or contractor name, ignoring case.
func (c *Contract) MatchesSearch(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range []string{c.Number, c.Object, c.ContractingBody, c.ContractorName} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// AssignedTo reports whether the user holds the contract position that the
// role acts through. Fiscal roles also match the substitute position.
func (c *Contract) AssignedTo(userID string, role Role) bool {
	switch role {
	case RoleManager:
		return c.Manager.Assigned(userID)
	case RoleFiscalAdministrative:
		return c.AdministrativeFiscal.Assigned(userID) || c.SubstituteFiscal.Assigned(userID)
	case RoleFiscalTechnical:
		return c.TechnicalFiscal.Assigned(userID) || c.SubstituteFiscal.Assigned(userID)
	case RoleExpenditureAuthorizer:
		return c.ExpenditureAuthorizer.Assigned(userID)
	}
	return false
}
